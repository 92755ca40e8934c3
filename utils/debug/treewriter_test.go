package debug

import (
	"testing"
)

func TestTreeWriter_Empty(t *testing.T) {
	tw := NewTreeWriter()
	if tw.String() != "" {
		t.Error("Expected empty string from new TreeWriter")
	}
}

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{name: "no depth", depth: 0, format: "stylesheet", want: "stylesheet\n"},
		{name: "depth 2", depth: 2, format: "rule", want: "    rule\n"},
		{name: "with formatting", depth: 1, format: "rule @%d", args: []any{42}, want: "  rule @42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		label string
		value string
		want  string
	}{
		{name: "empty value", label: "prelude", want: "prelude: \n"},
		{name: "selector", depth: 1, label: "selector", value: ".a > .b", want: "  selector: \".a > .b\"\n"},
		{name: "quoted value", label: "content", value: `"x"`, want: "content: \"\\\"x\\\"\"\n"},
		{name: "newline", label: "value", value: "a\nb", want: "value: \"a\\nb\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.TextBlock(tt.depth, tt.label, tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_Pair(t *testing.T) {
	tw := NewTreeWriter()
	tw.Pair(1, "long-name", "a")
	if got, want := tw.String(), "  \"long-name\" -> \"a\"\n"; got != want {
		t.Errorf("Pair() = %q, want %q", got, want)
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"hello":      `"hello"`,
		`path\to`:    `"path\\to"`,
		"col1\tcol2": `"col1\tcol2"`,
		`say "hi"`:   `"say \"hi\""`,
	}
	for in, want := range tests {
		if got := quote(in); got != want {
			t.Errorf("quote(%q) = %q, want %q", in, got, want)
		}
	}
}
