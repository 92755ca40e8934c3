package css

import (
	"io"
	"strings"
)

// LineMapping ties a line of printed output to the source line of the item
// which starts on it. Both lines are 1-based.
type LineMapping struct {
	Generated int
	Original  int
}

// Printer serializes rule trees. In compact mode every rule is written on
// its own line without optional whitespace, which keeps line based source
// maps meaningful.
type Printer struct {
	Compact bool
}

// Printed is the result of serialization.
type Printed struct {
	Text     string
	Lines    int
	Mappings []LineMapping
}

type printState struct {
	sb       strings.Builder
	line     int
	mappings []LineMapping
	compact  bool
}

func (ps *printState) mark(original int) {
	if original > 0 {
		ps.mappings = append(ps.mappings, LineMapping{Generated: ps.line, Original: original})
	}
}

func (ps *printState) write(s string) {
	ps.sb.WriteString(s)
	ps.line += strings.Count(s, "\n")
}

// Print serializes stylesheet preserving item and declaration order.
func (p Printer) Print(s *Stylesheet) Printed {
	ps := &printState{line: 1, compact: p.Compact}
	ps.items(s.Items, 0)
	return Printed{Text: ps.sb.String(), Lines: ps.line - 1, Mappings: ps.mappings}
}

func (ps *printState) indent(depth int) {
	if !ps.compact {
		ps.write(strings.Repeat("  ", depth))
	}
}

func (ps *printState) items(items []*Item, depth int) {
	for i, it := range items {
		if i > 0 && !ps.compact && depth == 0 {
			ps.write("\n")
		}
		switch {
		case it.Rule != nil:
			ps.rule(it.Rule, depth)
		case it.AtRule != nil:
			ps.atRule(it.AtRule, depth)
		}
	}
}

func (ps *printState) rule(r *Rule, depth int) {
	ps.indent(depth)
	ps.mark(r.Line)
	if ps.compact {
		ps.write(strings.Join(r.Selectors, ","))
		ps.write("{")
		ps.declarations(r.Declarations, depth)
		ps.write("}\n")
		return
	}
	ps.write(r.SelectorText())
	ps.write(" {\n")
	ps.declarations(r.Declarations, depth+1)
	ps.indent(depth)
	ps.write("}\n")
}

func (ps *printState) declarations(decls []Declaration, depth int) {
	for i, d := range decls {
		if ps.compact {
			if i > 0 {
				ps.write(";")
			}
			ps.write(d.Property + ":" + d.Value)
			if d.Important {
				ps.write("!important")
			}
			continue
		}
		ps.indent(depth)
		ps.write(d.Property + ": " + d.Value)
		if d.Important {
			ps.write(" !important")
		}
		ps.write(";\n")
	}
}

func (ps *printState) atRule(a *AtRule, depth int) {
	ps.indent(depth)
	ps.mark(a.Line)
	ps.write(a.Name)
	if a.Prelude != "" {
		ps.write(" " + a.Prelude)
	}
	if !a.HasBlock {
		ps.write(";\n")
		return
	}
	if ps.compact {
		ps.write("{")
		if len(a.Declarations) > 0 {
			ps.declarations(a.Declarations, depth)
			ps.write("}\n")
			return
		}
		ps.write("\n")
		ps.items(a.Items, depth+1)
		ps.write("}\n")
		return
	}
	ps.write(" {\n")
	ps.declarations(a.Declarations, depth+1)
	ps.items(a.Items, depth+1)
	ps.indent(depth)
	ps.write("}\n")
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, Printer{}.Print(s).Text)
	return int64(n), err
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	return Printer{}.Print(s).Text
}
