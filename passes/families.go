package passes

import (
	"slices"
	"strings"
)

// familyAliases connect properties which set the same computed values
// although their names start differently (shorthands and their longhands,
// logical and physical properties, legacy aliases).
var familyAliases = map[string][]string{
	"line":    {"font"},
	"top":     {"inset"},
	"right":   {"inset"},
	"bottom":  {"inset"},
	"left":    {"inset"},
	"justify": {"align"},
	"place":   {"align"},
	"row":     {"gap"},
	"column":  {"gap"},
	"columns": {"column"},
	"grid":    {"gap"},
	"white":   {"text"},
	"page":    {"break"},
	"word":    {"overflow"},
	"width":   {"size"},
	"height":  {"size"},
	"min":     {"size"},
	"max":     {"size"},
	"inline":  {"size"},
	"block":   {"size"},
}

// families returns groups the property belongs to. Two declarations may
// affect each other only if their families intersect. Grouping is coarse on
// purpose: false positives only cost missed optimizations.
func families(prop string) []string {
	p := strings.ToLower(prop)
	if strings.HasPrefix(p, "--") {
		return []string{p}
	}
	if strings.HasPrefix(p, "-") {
		// vendor prefix
		if i := strings.IndexByte(p[1:], '-'); i >= 0 {
			p = p[i+2:]
		}
	}
	root, _, _ := strings.Cut(p, "-")
	return append([]string{root}, familyAliases[root]...)
}

// propertySet is a set of families declared by a rule.
type propertySet map[string]bool

func newPropertySet(props []string) propertySet {
	set := make(propertySet)
	for _, prop := range props {
		for _, f := range families(prop) {
			set[f] = true
		}
	}
	return set
}

// overlaps reports whether two sets of declarations may fight in cascade.
func (s propertySet) overlaps(o propertySet) bool {
	if (s["all"] && len(o) > 0) || (o["all"] && len(s) > 0) {
		return true
	}
	for f := range s {
		if o[f] {
			return true
		}
	}
	return false
}

// hasCustom reports whether any property is a custom one.
func hasCustom(props []string) bool {
	return slices.ContainsFunc(props, func(p string) bool { return strings.HasPrefix(p, "--") })
}
