// Package optimizer runs optimization passes over a set of stylesheets and
// assembles single output with merged source map and style mapping.
package optimizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cssopt/analysis"
	"cssopt/common"
	"cssopt/css"
	"cssopt/mapping"
	"cssopt/pass"
	"cssopt/passes"
	"cssopt/selector"
	"cssopt/sourcemap"
)

// Source is a single input stylesheet. Either Content or Sheet is used, when
// Sheet is set it becomes property of the optimizer and is modified in place.
type Source struct {
	Filename string
	Content  []byte
	Sheet    *css.Stylesheet
	// Map is optional source map of the stylesheet itself, when present
	// output map points through it to the original sources.
	Map *sourcemap.Map
}

// ParseError reports source which could not be parsed. Nothing is optimized
// when any source fails.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse stylesheet %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Output is concatenated optimized stylesheet.
type Output struct {
	Filename  string
	Content   string
	SourceMap *sourcemap.Map // nil unless requested
}

// Result of a single run.
type Result struct {
	RunID   uuid.UUID
	Output  Output
	Mapping *mapping.StyleMapping
}

// Stage identifies moment when inspector is called.
type Stage string

const (
	StageParsed    Stage = "parsed"
	StageOptimized Stage = "optimized"
)

// InspectFunc receives every file after parsing and after all passes. It is
// called sequentially from Optimize and must not keep the sheet.
type InspectFunc func(stage Stage, f *pass.File)

// Option customizes optimizer.
type Option func(*Optimizer)

// WithPasses appends additional passes to the ones created from options.
// They run after configured passes of the same capability.
func WithPasses(p ...pass.Pass) Option {
	return func(o *Optimizer) {
		o.extra = append(o.extra, p...)
	}
}

// WithInspector installs inspection callback.
func WithInspector(fn InspectFunc) Option {
	return func(o *Optimizer) {
		o.inspect = fn
	}
}

// Optimizer is configured pipeline. It may be used for several runs, but
// runs must not overlap.
type Optimizer struct {
	opts    Options
	name    *template.Template
	log     *zap.Logger
	extra   []pass.Pass
	inspect InspectFunc
}

// New validates options. Invalid options are reported as *ConfigError before
// any work is done.
func New(opts Options, log *zap.Logger, options ...Option) (*Optimizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := parseNameTemplate(opts.OutputName)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if log == nil {
		log = zap.NewNop()
	}
	o := &Optimizer{opts: opts, name: tmpl, log: log.Named("optimizer")}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// instantiate creates passes for a run and splits them by capability. A pass
// implementing both capabilities takes part in both phases.
func (o *Optimizer) instantiate() (single []pass.SingleFile, multi []pass.MultiFile, err error) {
	all := make([]pass.Pass, 0, len(o.opts.Passes)+len(o.extra))
	for _, kind := range o.opts.order() {
		cfg := o.opts.Passes[kind]
		if kind == common.KindRenameIdents {
			cfg.Mode = o.opts.RenameMode
		}
		p, err := passes.New(kind, cfg, o.log)
		if err != nil {
			return nil, nil, &ConfigError{Err: err}
		}
		all = append(all, p)
	}
	all = append(all, o.extra...)

	for _, p := range all {
		matched := false
		if sp, ok := p.(pass.SingleFile); ok {
			single, matched = append(single, sp), true
		}
		if mp, ok := p.(pass.MultiFile); ok {
			multi, matched = append(multi, mp), true
		}
		if !matched {
			return nil, nil, &ConfigError{Err: fmt.Errorf("pass %s implements neither single nor multi file optimization", p.Name())}
		}
	}
	return single, multi, nil
}

func names[T pass.Pass](list []T) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Name())
	}
	return out
}

// Optimize runs the pipeline. Facts may be nil, in which case every decision
// depending on template usage is answered conservatively.
func (o *Optimizer) Optimize(ctx context.Context, sources []Source, facts *analysis.Set) (*Result, error) {
	start := time.Now()

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("unable to generate run id: %w", err)
	}
	log := o.log.With(zap.Stringer("run", runID))

	single, multi, err := o.instantiate()
	if err != nil {
		return nil, err
	}

	log.Info("Optimization starting",
		zap.Int("sources", len(sources)),
		zap.Bool("enabled", o.opts.Enabled),
		zap.Strings("single", names(single)),
		zap.Strings("multi", names(multi)))

	files, err := o.parse(ctx, sources)
	if err != nil {
		return nil, err
	}
	o.visit(StageParsed, files)

	m := mapping.New()
	if o.opts.Enabled {
		cache := selector.NewCache()
		reserve(m, files, facts)

		if err := o.runSingle(ctx, log, single, m, files, facts, cache); err != nil {
			return nil, err
		}
		if err := o.runMulti(ctx, log, multi, m, files, facts, cache); err != nil {
			return nil, err
		}
		hits, computed := cache.Stats()
		log.Debug("Selector cache", zap.Int("entries", cache.Len()), zap.Int64("hits", hits), zap.Int64("computed", computed))
	}
	o.visit(StageOptimized, files)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := o.assemble(runID, sources, files)
	if err != nil {
		return nil, err
	}

	log.Info("Optimization completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.String("output", out.Filename),
		zap.Int("bytes", len(out.Content)),
		zap.Int("renames", len(m.Renames())),
		zap.Int("removals", len(m.Removals())))

	return &Result{RunID: runID, Output: out, Mapping: m}, nil
}

func (o *Optimizer) visit(stage Stage, files []*pass.File) {
	if o.inspect == nil {
		return
	}
	for _, f := range files {
		o.inspect(stage, f)
	}
}

func (o *Optimizer) limit() int {
	if o.opts.Concurrency > 0 {
		return o.opts.Concurrency
	}
	return runtime.NumCPU()
}

// parse builds rule trees concurrently. All sources are parsed before any
// pass runs so identifiers of every file are known up front.
func (o *Optimizer) parse(ctx context.Context, sources []Source) ([]*pass.File, error) {
	files := make([]*pass.File, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit())
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := &pass.File{Index: i, Filename: src.Filename, Sheet: src.Sheet, InputMap: src.Map}
			if f.Sheet == nil {
				data, err := css.Decode(src.Content, o.opts.Charset)
				if err != nil {
					return &ParseError{Filename: src.Filename, Err: err}
				}
				sheet, err := css.NewParser(o.log).Parse(data, src.Filename)
				if err != nil {
					return &ParseError{Filename: src.Filename, Err: err}
				}
				f.Sheet = sheet
			}
			for _, w := range f.Sheet.Warnings {
				o.log.Warn("Stylesheet problem", zap.String("file", src.Filename), zap.String("warning", w))
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return files, nil
}

// reserve marks every identifier used in stylesheets or templates so
// generated names never collide with them.
func reserve(m *mapping.StyleMapping, files []*pass.File, facts *analysis.Set) {
	var classes, ids []string
	for _, f := range files {
		_ = f.Sheet.WalkRules(func(rule *css.Rule, _ int) error {
			for _, sel := range rule.Selectors {
				// used only to collect names, result is discarded
				_, _ = selector.RenameIdents(sel, func(id bool, name string) string {
					if id {
						ids = append(ids, name)
					} else {
						classes = append(classes, name)
					}
					return name
				})
			}
			return nil
		})
	}
	m.Reserve(mapping.IdentKindClass, classes...)
	m.Reserve(mapping.IdentKindClass, facts.Classes()...)
	m.Reserve(mapping.IdentKindId, ids...)
	m.Reserve(mapping.IdentKindId, facts.IDs()...)
}

// failed marks errors which must be returned unchanged.
func failed(err error) bool {
	var (
		ierr *pass.InvariantError
		cerr *mapping.ConflictError
	)
	return errors.As(err, &ierr) || errors.As(err, &cerr)
}

// runSingle is the first phase: files are processed concurrently, passes run
// on each file one after another in configured order.
func (o *Optimizer) runSingle(ctx context.Context, log *zap.Logger, list []pass.SingleFile, m *mapping.StyleMapping, files []*pass.File, facts *analysis.Set, cache *selector.Cache) error {
	if len(list) == 0 {
		return nil
	}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit())
	for _, f := range files {
		g.Go(func() error {
			for _, p := range list {
				if err := gctx.Err(); err != nil {
					return err
				}
				before := f.Sheet.RuleCount()
				if err := p.OptimizeSingleFile(gctx, m, f, facts, cache); err != nil {
					if failed(err) {
						return err
					}
					return fmt.Errorf("pass %s failed on %s: %w", p.Name(), f.Filename, err)
				}
				log.Debug("Pass finished", zap.String("pass", p.Name()), zap.String("file", f.Filename),
					zap.Int("rules before", before), zap.Int("rules after", f.Sheet.RuleCount()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	if err := pass.VerifyRenames("single file passes", m, files...); err != nil {
		return err
	}
	log.Debug("Single file phase completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// runMulti is the second phase: passes see all files in input order and run
// strictly one at a time.
func (o *Optimizer) runMulti(ctx context.Context, log *zap.Logger, list []pass.MultiFile, m *mapping.StyleMapping, files []*pass.File, facts *analysis.Set, cache *selector.Cache) error {
	for _, p := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := p.OptimizeAllFiles(ctx, m, files, facts, cache); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if failed(err) {
				return err
			}
			return fmt.Errorf("pass %s failed: %w", p.Name(), err)
		}
		if err := pass.VerifyRenames(p.Name(), m, files...); err != nil {
			return err
		}
		log.Debug("Pass finished", zap.String("pass", p.Name()), zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// NameValues are available to output name template.
type NameValues struct {
	Context    string   // name of the first source without extension
	SourceFile string   // same as Context, kept for familiarity
	Sources    []string // names of all sources
	RunID      string
}

func (o *Optimizer) outputName(runID uuid.UUID, sources []Source) (string, error) {
	values := NameValues{RunID: runID.String()}
	for _, src := range sources {
		values.Sources = append(values.Sources, src.Filename)
	}
	if len(sources) > 0 {
		base := filepath.Base(sources[0].Filename)
		values.Context = strings.TrimSuffix(base, filepath.Ext(base))
		values.SourceFile = values.Context
	}

	var buf bytes.Buffer
	if err := o.name.Execute(&buf, values); err != nil {
		return "", fmt.Errorf("unable to expand output name template: %w", err)
	}
	name := strings.TrimSpace(buf.String())
	if name == "" {
		name = "styles"
	}
	if !strings.EqualFold(filepath.Ext(name), ".css") {
		name += ".css"
	}
	return name, nil
}

// assemble prints files in input order and merges their line mappings.
func (o *Optimizer) assemble(runID uuid.UUID, sources []Source, files []*pass.File) (Output, error) {
	name, err := o.outputName(runID, sources)
	if err != nil {
		return Output{}, err
	}
	out := Output{Filename: name}

	var (
		sb     strings.Builder
		offset int
		merged = sourcemap.NewBuilder(filepath.Base(name))
	)
	printer := css.Printer{Compact: o.opts.Minify}
	emit := func(f *pass.File, sheet *css.Stylesheet, content []byte) error {
		printed := printer.Print(sheet)
		if printed.Lines == 0 {
			return nil
		}
		if !o.opts.Minify && offset > 0 {
			sb.WriteString("\n")
			offset++
		}
		sb.WriteString(printed.Text)

		if o.opts.SourceMap {
			fm, err := fileMap(f, printed, content)
			if err != nil {
				return err
			}
			if err := merged.Append(offset, fm); err != nil {
				return fmt.Errorf("unable to merge source map of %s: %w", f.Filename, err)
			}
		}
		offset += printed.Lines
		return nil
	}

	// statements which are only valid at the top of the stylesheet go first,
	// or browsers ignore them in every file but the first one
	for _, sheets := range splitHeads(files) {
		for i, f := range files {
			if err := emit(f, sheets[i], sources[i].Content); err != nil {
				return Output{}, err
			}
		}
	}

	out.Content = sb.String()
	if o.opts.SourceMap {
		out.SourceMap = merged.Map()
	}
	return out, nil
}

// headStatement reports whether item is a block-less at-rule which must
// precede style rules to take effect.
func headStatement(it *css.Item) bool {
	if it.AtRule == nil || it.AtRule.HasBlock {
		return false
	}
	switch it.AtRule.Name {
	case "@import", "@namespace", "@layer":
		return true
	}
	return false
}

// splitHeads separates leading @import, @layer and @namespace statements of
// every file from the rest of it. Returned groups are printed one after
// another: @namespace must follow every @import of the whole output. Sheets
// of files are not modified.
func splitHeads(files []*pass.File) [][]*css.Stylesheet {
	imports := make([]*css.Stylesheet, len(files))
	namespaces := make([]*css.Stylesheet, len(files))
	bodies := make([]*css.Stylesheet, len(files))
	for i, f := range files {
		imports[i], namespaces[i] = &css.Stylesheet{}, &css.Stylesheet{}
		n := 0
		for ; n < len(f.Sheet.Items) && headStatement(f.Sheet.Items[n]); n++ {
			it := f.Sheet.Items[n]
			if it.AtRule.Name == "@namespace" {
				namespaces[i].Items = append(namespaces[i].Items, it)
			} else {
				imports[i].Items = append(imports[i].Items, it)
			}
		}
		bodies[i] = &css.Stylesheet{Items: f.Sheet.Items[n:], Warnings: f.Sheet.Warnings}
	}
	return [][]*css.Stylesheet{imports, namespaces, bodies}
}

// fileMap maps printed lines of a single file to original sources, through
// input source map when there is one.
func fileMap(f *pass.File, printed css.Printed, content []byte) (*sourcemap.Map, error) {
	b := sourcemap.NewBuilder(f.Filename)
	if f.InputMap == nil {
		idx := b.AddSource(f.Filename)
		if len(content) > 0 {
			b.SetContent(idx, string(content))
		}
		for _, lm := range printed.Mappings {
			b.Add(lm.Generated, f.Filename, lm.Original)
		}
		return b.Map(), nil
	}

	if _, err := f.InputMap.Segments(); err != nil {
		return nil, fmt.Errorf("unable to decode input source map of %s: %w", f.Filename, err)
	}
	for _, lm := range printed.Mappings {
		if src, orig, ok := f.InputMap.Lookup(lm.Original); ok {
			b.Add(lm.Generated, src, orig)
		}
	}
	return b.Map(), nil
}
