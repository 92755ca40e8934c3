package css_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"cssopt/css"
)

func parse(t *testing.T, text string) *css.Stylesheet {
	t.Helper()
	sheet, err := css.NewParser(zaptest.NewLogger(t)).Parse([]byte(text), "test.css")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return sheet
}

func TestParser_Rule(t *testing.T) {
	sheet := parse(t, `a, .b > c:hover { color: red; margin: 0 auto !important }`)

	if len(sheet.Items) != 1 || sheet.Items[0].Rule == nil {
		t.Fatalf("expected single rule, got %d items", len(sheet.Items))
	}
	rule := sheet.Items[0].Rule
	if want := []string{"a", ".b>c:hover"}; !slices.Equal(rule.Selectors, want) {
		t.Errorf("Selectors = %q, want %q", rule.Selectors, want)
	}
	want := []css.Declaration{
		{Property: "color", Value: "red"},
		{Property: "margin", Value: "0 auto", Important: true},
	}
	if !slices.Equal(rule.Declarations, want) {
		t.Errorf("Declarations = %+v, want %+v", rule.Declarations, want)
	}
	if rule.SelectorText() != "a, .b>c:hover" {
		t.Errorf("SelectorText() = %q", rule.SelectorText())
	}
}

func TestParser_SelectorListWithFunctions(t *testing.T) {
	sheet := parse(t, `:is(h1, h2) a, [data-x="1,2"] { top: 0 }`)
	rule := sheet.Items[0].Rule
	if len(rule.Selectors) != 2 {
		t.Fatalf("expected 2 selectors, got %q", rule.Selectors)
	}
	if !strings.HasPrefix(rule.Selectors[0], ":is(h1") || !strings.HasPrefix(rule.Selectors[1], "[data-x") {
		t.Errorf("unexpected selectors %q", rule.Selectors)
	}
}

func TestParser_Lines(t *testing.T) {
	sheet := parse(t, "a { top: 0 }\n\nb {\n  top: 1px\n}\n@media print {\n  c { top: 2px }\n}")

	var lines []int
	_ = sheet.WalkRules(func(r *css.Rule, _ int) error {
		lines = append(lines, r.Line)
		return nil
	})
	if want := []int{1, 3, 7}; !slices.Equal(lines, want) {
		t.Errorf("rule lines = %v, want %v", lines, want)
	}
	if got := sheet.Items[2].Line(); got != 6 {
		t.Errorf("@media line = %d, want 6", got)
	}
}

func TestParser_AtRules(t *testing.T) {
	sheet := parse(t, `@charset "utf-8";
@import url(a.css);
@media (min-width: 10px) { .a { top: 0 } }
@font-face { font-family: x; src: url(x.woff2) }
@keyframes spin { from { top: 0 } to { top: 1px } }`)

	if len(sheet.Items) != 4 {
		t.Fatalf("expected 4 items (@charset dropped), got %d", len(sheet.Items))
	}

	imp := sheet.Items[0].AtRule
	if imp == nil || imp.Name != "@import" || imp.HasBlock || imp.Prelude != "url(a.css)" {
		t.Errorf("unexpected @import %+v", imp)
	}

	media := sheet.Items[1].AtRule
	if media == nil || !media.Conditional() || media.Prelude != "(min-width:10px)" || len(media.Items) != 1 {
		t.Errorf("unexpected @media %+v", media)
	}

	font := sheet.Items[2].AtRule
	if font == nil || font.Conditional() || len(font.Declarations) != 2 || font.Declarations[0].Property != "font-family" {
		t.Errorf("unexpected @font-face %+v", font)
	}

	frames := sheet.Items[3].AtRule
	if frames == nil || frames.Conditional() || len(frames.Items) != 2 {
		t.Errorf("unexpected @keyframes %+v", frames)
	}

	// keyframe selectors are not style rules
	if got := sheet.RuleCount(); got != 1 {
		t.Errorf("RuleCount() = %d, want 1", got)
	}
}

func TestParser_CustomProperty(t *testing.T) {
	sheet := parse(t, `:root { --Brand-Color: #fff; COLOR: var(--Brand-Color) }`)
	decls := sheet.Items[0].Rule.Declarations
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %+v", decls)
	}
	if !decls[0].Custom() || decls[0].Key() != "--Brand-Color" || decls[0].Value != "#fff" {
		t.Errorf("unexpected custom property %+v", decls[0])
	}
	if decls[1].Custom() || decls[1].Key() != "color" {
		t.Errorf("unexpected declaration %+v", decls[1])
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unterminated rule", input: "a { top: 0 }\nb { top: 0"},
		{name: "unterminated at-rule", input: "@media print {\n  a { top: 0 }"},
		{name: "unterminated declaration", input: ".a { color: red"},
		{name: "unterminated font-face", input: "@font-face { font-family: x"},
		{name: "unterminated nested rule", input: "@media print { b { top: 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := css.NewParser(nil).Parse([]byte(tt.input), "broken.css")
			var serr *css.SyntaxError
			if !errors.As(err, &serr) {
				t.Fatalf("expected SyntaxError, got %v", err)
			}
			if serr.Filename != "broken.css" || serr.Line < 1 {
				t.Errorf("unexpected error position %+v", serr)
			}
			if !strings.HasPrefix(err.Error(), "broken.css:") {
				t.Errorf("Error() = %q does not start with file name", err.Error())
			}
		})
	}
}

func TestParser_ParseDeclarations(t *testing.T) {
	decls, err := css.NewParser(nil).ParseDeclarations("color: red; margin: 0 !important")
	if err != nil {
		t.Fatalf("ParseDeclarations() error = %v", err)
	}
	want := []css.Declaration{
		{Property: "color", Value: "red"},
		{Property: "margin", Value: "0", Important: true},
	}
	if !slices.Equal(decls, want) {
		t.Errorf("ParseDeclarations() = %+v, want %+v", decls, want)
	}
}

func TestRule_SameDeclarations(t *testing.T) {
	sheet := parse(t, "a { color: red; top: 0 }\nb { COLOR: red; top: 0 }\nc { top: 0; color: red }")
	a, b, c := sheet.Items[0].Rule, sheet.Items[1].Rule, sheet.Items[2].Rule
	if !a.SameDeclarations(b) {
		t.Error("property name case must not matter")
	}
	if a.SameDeclarations(c) {
		t.Error("declaration order must matter")
	}
	if want := []string{"color", "top"}; !slices.Equal(b.Properties(), want) {
		t.Errorf("Properties() = %v, want %v", b.Properties(), want)
	}
}

func TestStylesheet_EditBlocks(t *testing.T) {
	sheet := parse(t, "a { top: 0 }\n@media print { b { top: 0 } c { top: 0 } }\n@keyframes k { from { top: 0 } }")

	var visited []int
	sheet.EditBlocks(func(items []*css.Item, depth int) []*css.Item {
		visited = append(visited, depth)
		if depth == 1 {
			// drop first rule of nested block
			return items[1:]
		}
		return items
	})
	if want := []int{1, 0}; !slices.Equal(visited, want) {
		t.Errorf("visited depths %v, want %v", visited, want)
	}
	if got := sheet.RuleCount(); got != 2 {
		t.Errorf("RuleCount() = %d, want 2", got)
	}
	if rules := sheet.RulesBySelector("a"); len(rules) != 1 {
		t.Errorf("RulesBySelector(a) = %d rules", len(rules))
	}
}

func TestStylesheet_Dump(t *testing.T) {
	dump := parse(t, "a { top: 0 !important }").Dump()
	for _, want := range []string{"stylesheet: 1 items", "rule @1", "top !important"} {
		if !strings.Contains(dump, want) {
			t.Errorf("Dump() does not contain %q:\n%s", want, dump)
		}
	}
}
