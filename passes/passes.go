// Package passes implements optimization passes, one per common.Kind.
package passes

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"cssopt/common"
	"cssopt/css"
	"cssopt/pass"
	"cssopt/selector"
)

// Config is typed configuration fragment of a single pass. Fields not
// relevant to the pass kind are ignored.
type Config struct {
	// remove-unused: selectors mentioning these tags, classes (".name") or
	// ids ("#name") are always kept. Trailing "*" matches a prefix.
	Safelist []string
	// compact-values: number of significant digits kept in numbers, 0 keeps
	// all.
	Precision int
	// rename-idents: which identifiers to rename.
	Mode common.RenameMode
	// rename-idents: identifiers never renamed, same syntax as Safelist.
	Exclude []string
}

// New instantiates pass of the given kind. Passes are created for a single
// run and may keep per-run state.
func New(kind common.Kind, cfg Config, log *zap.Logger) (pass.Pass, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named(kind.String())

	switch kind {
	case common.KindRemoveUnused:
		return &removeUnused{log: log, safelist: newPatterns(cfg.Safelist)}, nil
	case common.KindDedupeDeclarations:
		return &dedupeDeclarations{log: log}, nil
	case common.KindMergeAdjacent:
		return &mergeAdjacent{log: log}, nil
	case common.KindCompactValues:
		return newCompactValues(cfg.Precision, log)
	case common.KindShareDeclarations:
		return &shareDeclarations{log: log}, nil
	case common.KindRenameIdents:
		return &renameIdents{log: log, mode: cfg.Mode, exclude: newPatterns(cfg.Exclude)}, nil
	}
	return nil, fmt.Errorf("unknown optimization kind %d", kind)
}

// patterns match identifiers and tags against Safelist/Exclude entries.
type patterns struct {
	classes, ids, tags []string
}

func newPatterns(entries []string) patterns {
	var p patterns
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e, "."):
			p.classes = append(p.classes, e[1:])
		case strings.HasPrefix(e, "#"):
			p.ids = append(p.ids, e[1:])
		case e != "":
			p.tags = append(p.tags, strings.ToLower(e))
		}
	}
	return p
}

func matchAny(list []string, name string) bool {
	for _, pat := range list {
		if prefix, ok := strings.CutSuffix(pat, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		} else if pat == name {
			return true
		}
	}
	return false
}

func (p patterns) class(name string) bool { return matchAny(p.classes, name) }
func (p patterns) id(name string) bool    { return matchAny(p.ids, name) }
func (p patterns) tag(name string) bool   { return matchAny(p.tags, name) }

// entry mentions anything matched by patterns.
func (p patterns) entry(e *selector.Entry) bool {
	return slices.ContainsFunc(e.Classes, p.class) ||
		slices.ContainsFunc(e.IDs, p.id) ||
		slices.ContainsFunc(e.Tags, p.tag)
}

// mergeable reports whether selector may be joined into a selector list with
// others. Browsers drop the whole rule when one selector of the list is not
// understood, vendor specific pseudo-classes are the usual offenders.
func mergeable(cache *selector.Cache, sel string) bool {
	if strings.Contains(sel, ":-") {
		return false
	}
	_, err := cache.Query(sel)
	return err == nil
}

func allMergeable(cache *selector.Cache, sels []string) bool {
	for _, s := range sels {
		if !mergeable(cache, s) {
			return false
		}
	}
	return true
}

// unionSelectors appends selectors of b missing from a.
func unionSelectors(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.ContainsFunc(out, func(o string) bool { return selector.Normalize(o) == selector.Normalize(s) }) {
			out = append(out, s)
		}
	}
	return out
}

func declarationText(d css.Declaration) string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// droppable at-rules may be removed once their block has no rules left.
// Empty @layer block still declares layer order and stays.
func droppable(at *css.AtRule) bool {
	return at.Conditional() && at.Name != "@layer" && len(at.Items) == 0
}
