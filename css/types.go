package css

import (
	"strings"

	"cssopt/utils/debug"
)

// Declaration is a single property declaration inside a rule or at-rule block.
type Declaration struct {
	Property  string // Property name as written, custom properties keep their case
	Value     string // Raw value text without "!important"
	Important bool   // true if declaration was marked "!important"
}

// Custom returns true for custom property declarations (--name).
func (d Declaration) Custom() bool {
	return strings.HasPrefix(d.Property, "--")
}

// Key returns normalized property name used for comparisons.
func (d Declaration) Key() string {
	if d.Custom() {
		return d.Property
	}
	return strings.ToLower(d.Property)
}

// Equal compares declarations ignoring property name case.
func (d Declaration) Equal(o Declaration) bool {
	return d.Key() == o.Key() && d.Value == o.Value && d.Important == o.Important
}

// Rule represents a style rule: selector list plus declarations in source order.
type Rule struct {
	Selectors    []string      // Individual selectors of the selector list
	Declarations []Declaration // Declarations in source order
	Line         int           // Line number in source (1-based) for source maps and reporting
}

// SelectorText returns the selector list as it is printed.
func (r *Rule) SelectorText() string {
	return strings.Join(r.Selectors, ", ")
}

// SameDeclarations returns true if both rules carry identical declaration
// lists in the same order.
func (r *Rule) SameDeclarations(o *Rule) bool {
	if len(r.Declarations) != len(o.Declarations) {
		return false
	}
	for i := range r.Declarations {
		if !r.Declarations[i].Equal(o.Declarations[i]) {
			return false
		}
	}
	return true
}

// Properties returns normalized names of all properties declared by the rule.
func (r *Rule) Properties() []string {
	props := make([]string, 0, len(r.Declarations))
	for _, d := range r.Declarations {
		props = append(props, d.Key())
	}
	return props
}

// AtRule represents any @-rule. Statement at-rules (@import, @charset,
// @namespace) have no block. Conditional group rules (@media, @supports,
// @layer with block, @container) keep nested items, declaration at-rules
// (@font-face, @page, @property) keep declarations.
type AtRule struct {
	Name         string        // Name including "@", lower case
	Prelude      string        // Everything between name and block or ";"
	Items        []*Item       // Nested items for rules with blocks of rules
	Declarations []Declaration // Declarations for rules with declaration blocks
	HasBlock     bool          // false for statement at-rules
	Line         int
}

// conditionalGroups are at-rules whose nested style rules are ordinary rules
// selected against document elements.
var conditionalGroups = map[string]bool{
	"@media":     true,
	"@supports":  true,
	"@layer":     true,
	"@container": true,
	"@document":  true,
	"@scope":     true,
}

// Conditional returns true if nested rules of the at-rule are regular style
// rules. Rules inside other at-rules (@keyframes for example) use their own
// prelude syntax and must be left alone.
func (a *AtRule) Conditional() bool {
	return conditionalGroups[a.Name]
}

// Item is a single item of a stylesheet or of an at-rule block.
// Exactly one of Rule or AtRule is non-nil.
type Item struct {
	Rule   *Rule
	AtRule *AtRule
}

// Line returns source line of the item.
func (it *Item) Line() int {
	switch {
	case it.Rule != nil:
		return it.Rule.Line
	case it.AtRule != nil:
		return it.AtRule.Line
	}
	return 0
}

// Stylesheet represents a parsed CSS stylesheet - editable rule tree.
type Stylesheet struct {
	Items    []*Item  // All top-level items in source order
	Warnings []string // Warnings for suspicious input which was kept as is
}

// WalkFunc is called for every style rule visited by WalkRules, depth is 0
// for top-level rules.
type WalkFunc func(rule *Rule, depth int) error

// WalkRules visits all style rules in source order, descending into
// conditional group at-rules. Walking stops on first error.
func (s *Stylesheet) WalkRules(fn WalkFunc) error {
	return walkItems(s.Items, 0, fn)
}

func walkItems(items []*Item, depth int, fn WalkFunc) error {
	for _, it := range items {
		switch {
		case it.Rule != nil:
			if err := fn(it.Rule, depth); err != nil {
				return err
			}
		case it.AtRule != nil && it.AtRule.Conditional():
			if err := walkItems(it.AtRule.Items, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// BlockFunc is called for every list of items (stylesheet top level and
// nested blocks of conditional group rules). Callback may replace the list.
type BlockFunc func(items []*Item, depth int) []*Item

// EditBlocks lets passes restructure item lists in place - remove or merge
// neighbouring rules. Blocks are visited depth first, children before parent.
func (s *Stylesheet) EditBlocks(fn BlockFunc) {
	s.Items = editBlocks(s.Items, 0, fn)
}

func editBlocks(items []*Item, depth int, fn BlockFunc) []*Item {
	for _, it := range items {
		if it.AtRule != nil && it.AtRule.Conditional() {
			it.AtRule.Items = editBlocks(it.AtRule.Items, depth+1, fn)
		}
	}
	return fn(items, depth)
}

// RuleCount returns number of style rules reachable by WalkRules.
func (s *Stylesheet) RuleCount() int {
	var n int
	_ = s.WalkRules(func(*Rule, int) error {
		n++
		return nil
	})
	return n
}

// RulesBySelector returns all top-level rules having the given selector in
// their selector list.
func (s *Stylesheet) RulesBySelector(selector string) []*Rule {
	var matches []*Rule
	for _, item := range s.Items {
		if item.Rule == nil {
			continue
		}
		for _, sel := range item.Rule.Selectors {
			if sel == selector {
				matches = append(matches, item.Rule)
				break
			}
		}
	}
	return matches
}

// Dump renders rule tree for debugging.
func (s *Stylesheet) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "stylesheet: %d items", len(s.Items))
	dumpItems(tw, s.Items, 1)
	for _, w := range s.Warnings {
		tw.TextBlock(1, "warning", w)
	}
	return tw.String()
}

func dumpItems(tw *debug.TreeWriter, items []*Item, depth int) {
	for _, it := range items {
		switch {
		case it.Rule != nil:
			tw.Line(depth, "rule @%d", it.Rule.Line)
			for _, sel := range it.Rule.Selectors {
				tw.TextBlock(depth+1, "selector", sel)
			}
			dumpDeclarations(tw, it.Rule.Declarations, depth+1)
		case it.AtRule != nil:
			tw.Line(depth, "%s @%d", it.AtRule.Name, it.AtRule.Line)
			if it.AtRule.Prelude != "" {
				tw.TextBlock(depth+1, "prelude", it.AtRule.Prelude)
			}
			dumpDeclarations(tw, it.AtRule.Declarations, depth+1)
			dumpItems(tw, it.AtRule.Items, depth+1)
		}
	}
}

func dumpDeclarations(tw *debug.TreeWriter, decls []Declaration, depth int) {
	for _, d := range decls {
		if d.Important {
			tw.TextBlock(depth, d.Property+" !important", d.Value)
			continue
		}
		tw.TextBlock(depth, d.Property, d.Value)
	}
}
