// Package debug contains helpers producing human readable dumps of internal
// structures for debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter accumulates indented lines describing a tree.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) pad(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

// Line writes formatted line at the given depth.
func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.pad(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes "label: value" with value quoted, so whitespace and
// control characters inside CSS values remain visible.
func (tw TreeWriter) TextBlock(depth int, label, value string) {
	tw.pad(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(quote(value))
	tw.w.WriteByte('\n')
}

// Pair writes "from -> to" line, used for rename and merge relations.
func (tw TreeWriter) Pair(depth int, from, to string) {
	tw.pad(depth)
	tw.w.WriteString(quote(from))
	tw.w.WriteString(" -> ")
	tw.w.WriteString(quote(to))
	tw.w.WriteByte('\n')
}

func quote(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
