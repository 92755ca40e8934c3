package selector

import (
	"reflect"
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: ".a   .b", want: ".a .b"},
		{in: "  ul  >  li  ", want: "ul>li"},
		{in: "a /* note */ + b", want: "a+b"},
		{in: "a:not( .b , .c ) .d", want: "a:not(.b,.c) .d"},
		{in: "div :is(p)", want: "div :is(p)"},
		{in: "h1~h2", want: "h1~h2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Specificity(t *testing.T) {
	tests := []struct {
		sel  string
		want [3]int
	}{
		{sel: "*", want: [3]int{0, 0, 0}},
		{sel: "li", want: [3]int{0, 0, 1}},
		{sel: "ul li", want: [3]int{0, 0, 2}},
		{sel: "ul ol+li", want: [3]int{0, 0, 3}},
		{sel: "h1 + *[rel=up]", want: [3]int{0, 1, 1}},
		{sel: "ul ol li.red", want: [3]int{0, 1, 3}},
		{sel: "li.red.level", want: [3]int{0, 2, 1}},
		{sel: "#x34y", want: [3]int{1, 0, 0}},
		{sel: "#s12:not(FOO)", want: [3]int{1, 0, 1}},
		{sel: ".foo :is(.bar, #baz)", want: [3]int{1, 1, 0}},
		{sel: ".a:where(#b, .c)", want: [3]int{0, 1, 0}},
		{sel: "p::before", want: [3]int{0, 0, 2}},
		{sel: "p:before", want: [3]int{0, 0, 2}},
		{sel: "li:nth-child(2n + 1)", want: [3]int{0, 1, 1}},
		{sel: "a:hover", want: [3]int{0, 1, 1}},
		{sel: "section:has(> img)", want: [3]int{0, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			e, err := Parse(tt.sel)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.sel, err)
			}
			if e.Specificity != tt.want {
				t.Errorf("Parse(%q) specificity = %v, want %v", tt.sel, e.Specificity, tt.want)
			}
		})
	}
}

func TestParse_Structure(t *testing.T) {
	e, err := Parse(`nav > ul.menu li.item#first[data-x="1"]:hover::after`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(e.Compounds) != 3 {
		t.Fatalf("expected 3 compounds, got %d", len(e.Compounds))
	}
	if e.Compounds[1].Combinator != Child || e.Compounds[2].Combinator != Descendant {
		t.Errorf("unexpected combinators: %q %q", e.Compounds[1].Combinator, e.Compounds[2].Combinator)
	}

	key := e.Key()
	if key.Tag != "li" || !slices.Equal(key.Classes, []string{"item"}) || !slices.Equal(key.IDs, []string{"first"}) {
		t.Errorf("unexpected key compound: %+v", key)
	}
	if len(key.Attributes) != 1 || key.Attributes[0] != (Attribute{Name: "data-x", Op: "=", Value: "1"}) {
		t.Errorf("unexpected attributes: %+v", key.Attributes)
	}
	if e.PseudoElement != "after" || !e.Dynamic {
		t.Errorf("PseudoElement = %q, Dynamic = %v", e.PseudoElement, e.Dynamic)
	}
	if !slices.Equal(e.Classes, []string{"item", "menu"}) || !slices.Equal(e.Tags, []string{"li", "nav", "ul"}) {
		t.Errorf("mentions: classes %v tags %v", e.Classes, e.Tags)
	}

	req := key.Requirement()
	if req.Tag != "li" || !slices.Equal(req.Attributes, []string{"data-x"}) {
		t.Errorf("Requirement() = %+v", req)
	}
}

func TestParse_Mentions(t *testing.T) {
	e, err := Parse(`.card:not(.hidden, #top) [class~="x"]`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !slices.Equal(e.Classes, []string{"card", "hidden"}) || !slices.Equal(e.IDs, []string{"top"}) {
		t.Errorf("mentions: classes %v ids %v", e.Classes, e.IDs)
	}
	if !e.AttrClass || e.AttrID {
		t.Errorf("AttrClass = %v, AttrID = %v", e.AttrClass, e.AttrID)
	}
	if e.Dynamic {
		t.Error("structural selector reported as dynamic")
	}
}

func TestParse_Escapes(t *testing.T) {
	e, err := Parse(`.sm\:p-4 .a\.b`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !slices.Equal(e.Classes, []string{"a.b", "sm:p-4"}) {
		t.Errorf("classes = %v", e.Classes)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, sel := range []string{
		"",
		"   ",
		"a, b",
		"> a",
		"a >",
		"a > > b",
		".",
		"a[",
		"a[href=]",
		"a:not(.b",
		"a::before::after",
		"div span)",
	} {
		t.Run(sel, func(t *testing.T) {
			if _, err := Parse(sel); err == nil {
				t.Errorf("Parse(%q) expected error", sel)
			}
		})
	}
}

func TestRenameIdents(t *testing.T) {
	classes := map[string]string{"a": "x", "b": "y", "nav": "n", "x": "z", "sm:p": "s"}
	ids := map[string]string{"main": "m"}
	rename := func(id bool, name string) string {
		m := classes
		if id {
			m = ids
		}
		if repl, ok := m[name]; ok {
			return repl
		}
		return name
	}

	tests := []struct {
		in, want string
	}{
		{in: ".a .b", want: ".x .y"},
		{in: "#main > .nav", want: "#m > .n"},
		{in: ".keep.x", want: ".keep.z"},
		{in: `a[class="a"][id=main]`, want: `a[class="a"][id=main]`},
		{in: ".a:not(.b)", want: ".x:not(.y)"},
		{in: `.sm\:p`, want: ".s"},
		{in: `.\keep`, want: `.\keep`},
		{in: "#other", want: "#other"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := RenameIdents(tt.in, rename)
			if err != nil {
				t.Fatalf("RenameIdents() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RenameIdents(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEntry_Deterministic(t *testing.T) {
	a, err := Parse(".x  >  .y:hover")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse(".x>.y:hover")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("entries differ:\n%+v\n%+v", a, b)
	}
}
