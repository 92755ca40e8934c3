// Package pass defines the contract every optimization pass satisfies. A pass
// implements SingleFile, MultiFile or both, the orchestrator keeps separate
// lists for each capability.
package pass

import (
	"context"
	"fmt"

	"cssopt/analysis"
	"cssopt/css"
	"cssopt/mapping"
	"cssopt/selector"
	"cssopt/sourcemap"
)

// File is a parsed stylesheet owned by the pipeline for the duration of one
// run. Passes mutate Sheet in place.
type File struct {
	Index    int // position in input, defines output order
	Filename string
	Sheet    *css.Stylesheet
	InputMap *sourcemap.Map // optional map of the source itself (preprocessor output)
}

// Pass is common part of all passes.
type Pass interface {
	Name() string
}

// SingleFile passes see one file at a time and may run concurrently on
// different files. They may rely on cascade order within the file only,
// position of the file in concatenated output is unknown to them.
type SingleFile interface {
	Pass
	OptimizeSingleFile(ctx context.Context, m *mapping.StyleMapping, f *File, facts *analysis.Set, cache *selector.Cache) error
}

// MultiFile passes run after all single file passes completed, one at a time,
// and see all files in input order. Cascade order between files is not a
// valid reason for any rewrite: only template facts or changes recorded in
// the style mapping for every occurrence are.
type MultiFile interface {
	Pass
	OptimizeAllFiles(ctx context.Context, m *mapping.StyleMapping, files []*File, facts *analysis.Set, cache *selector.Cache) error
}

// InvariantError reports a rewrite which is not supported by template facts
// or leaves stylesheets inconsistent with the style mapping. It is a bug in
// the pass, never a property of the input.
type InvariantError struct {
	Pass   string
	File   string
	Detail string
}

func (e *InvariantError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("pass %s violated invariant: %s", e.Pass, e.Detail)
	}
	return fmt.Sprintf("pass %s violated invariant in %s: %s", e.Pass, e.File, e.Detail)
}

// Invariant is a shortcut for passes.
func Invariant(p Pass, file, format string, args ...any) error {
	return &InvariantError{Pass: p.Name(), File: file, Detail: fmt.Sprintf(format, args...)}
}
