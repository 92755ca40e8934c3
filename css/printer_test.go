package css_test

import (
	"slices"
	"testing"

	"cssopt/css"
)

const printerInput = `@import url(a.css);
a, b { color: red; margin: 0 !important }
@media print {
  .x { top: 0 }
}`

func TestPrinter_Compact(t *testing.T) {
	printed := css.Printer{Compact: true}.Print(parse(t, printerInput))

	want := "@import url(a.css);\na,b{color:red;margin:0!important}\n@media print{\n.x{top:0}\n}\n"
	if printed.Text != want {
		t.Errorf("Text = %q, want %q", printed.Text, want)
	}
	if printed.Lines != 5 {
		t.Errorf("Lines = %d, want 5", printed.Lines)
	}
	wantMap := []css.LineMapping{{Generated: 1, Original: 1}, {Generated: 2, Original: 2}, {Generated: 3, Original: 3}, {Generated: 4, Original: 4}}
	if !slices.Equal(printed.Mappings, wantMap) {
		t.Errorf("Mappings = %+v, want %+v", printed.Mappings, wantMap)
	}
}

func TestPrinter_Readable(t *testing.T) {
	sheet := parse(t, printerInput)

	want := "@import url(a.css);\n\na, b {\n  color: red;\n  margin: 0 !important;\n}\n\n@media print {\n  .x {\n    top: 0;\n  }\n}\n"
	if got := sheet.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPrinter_ReparseIsStable(t *testing.T) {
	first := css.Printer{Compact: true}.Print(parse(t, printerInput)).Text
	second := css.Printer{Compact: true}.Print(parse(t, first)).Text
	if first != second {
		t.Errorf("printing is not stable:\n%s\n---\n%s", first, second)
	}
}

func TestPrinter_Empty(t *testing.T) {
	printed := css.Printer{Compact: true}.Print(parse(t, "/* nothing */"))
	if printed.Text != "" || printed.Lines != 0 || len(printed.Mappings) != 0 {
		t.Errorf("unexpected output for empty stylesheet: %+v", printed)
	}
}
