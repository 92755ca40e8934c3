package passes

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"cssopt/analysis"
	"cssopt/common"
	"cssopt/css"
	"cssopt/mapping"
	"cssopt/pass"
	"cssopt/selector"
)

// renameIdents gives the shortest names to the most used classes and ids.
// It needs all files together: usage counts are global and every occurrence
// of an identifier in every file has to get the same replacement.
type renameIdents struct {
	log     *zap.Logger
	mode    common.RenameMode
	exclude patterns
}

func (p *renameIdents) Name() string { return common.KindRenameIdents.String() }

// fragmentRef finds ids referenced from declaration values, "url(#clip)".
var fragmentRef = regexp.MustCompile(`url\(\s*['"]?#([^'")\s]+)`)

type usage struct {
	ident mapping.Ident
	file  string // first file mentioning identifier
	count int
}

type renameScan struct {
	classes, ids bool
	usages       map[mapping.Ident]*usage
	blocked      map[mapping.Ident]bool
}

func kindOf(id bool) mapping.IdentKind {
	if id {
		return mapping.IdentKindId
	}
	return mapping.IdentKindClass
}

func (s *renameScan) enabled(kind mapping.IdentKind) bool {
	if kind == mapping.IdentKindId {
		return s.ids
	}
	return s.classes
}

func (p *renameIdents) scan(files []*pass.File, facts *analysis.Set, cache *selector.Cache) (*renameScan, error) {
	s := &renameScan{
		classes: p.mode.Classes(),
		ids:     p.mode.IDs(),
		usages:  make(map[mapping.Ident]*usage),
		blocked: make(map[mapping.Ident]bool),
	}
	if s.classes && facts.HasDynamicClasses() {
		p.log.Info("Templates compute class names, classes will not be renamed")
		s.classes = false
	}
	if s.ids && facts.HasDynamicIDs() {
		p.log.Info("Templates compute ids, ids will not be renamed")
		s.ids = false
	}

	blockValues := func(decls []css.Declaration) {
		for _, d := range decls {
			for _, m := range fragmentRef.FindAllStringSubmatch(d.Value, -1) {
				s.blocked[mapping.Ident{Kind: mapping.IdentKindId, Name: m[1]}] = true
			}
		}
	}

	// at-rules may reference identifiers too: "@scope (.card)" or
	// descriptors with "url(#id)"
	var visitAtRules func(items []*css.Item)
	visitAtRules = func(items []*css.Item) {
		for _, it := range items {
			if it.AtRule == nil {
				continue
			}
			blockValues(it.AtRule.Declarations)
			if it.AtRule.Name == "@scope" {
				_, _ = selector.RenameIdents(it.AtRule.Prelude, func(id bool, name string) string {
					s.blocked[mapping.Ident{Kind: kindOf(id), Name: name}] = true
					return name
				})
			}
			visitAtRules(it.AtRule.Items)
		}
	}

	for _, f := range files {
		visitAtRules(f.Sheet.Items)
		err := f.Sheet.WalkRules(func(rule *css.Rule, _ int) error {
			blockValues(rule.Declarations)
			for _, sel := range rule.Selectors {
				e, qerr := cache.Query(sel)
				if qerr == nil && e.AttrClass && s.classes {
					p.log.Info("Attribute selector on class, classes will not be renamed", zap.String("file", f.Filename), zap.String("selector", sel))
					s.classes = false
				}
				if qerr == nil && e.AttrID && s.ids {
					p.log.Info("Attribute selector on id, ids will not be renamed", zap.String("file", f.Filename), zap.String("selector", sel))
					s.ids = false
				}
				if qerr != nil && strings.Contains(sel, "[") && (s.classes || s.ids) {
					p.log.Info("Unable to analyze selector, nothing will be renamed", zap.String("file", f.Filename), zap.String("selector", sel), zap.Error(qerr))
					s.classes, s.ids = false, false
				}
				_, err := selector.RenameIdents(sel, func(id bool, name string) string {
					ident := mapping.Ident{Kind: kindOf(id), Name: name}
					if qerr != nil {
						s.blocked[ident] = true
					}
					u, ok := s.usages[ident]
					if !ok {
						u = &usage{ident: ident, file: f.Filename}
						s.usages[ident] = u
					}
					u.count++
					return name
				})
				if err != nil {
					return fmt.Errorf("%s:%d: %w", f.Filename, rule.Line, err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// candidates returns identifiers to rename, most used first.
func (p *renameIdents) candidates(s *renameScan) []*usage {
	list := make([]*usage, 0, len(s.usages))
	for ident, u := range s.usages {
		switch {
		case !s.enabled(ident.Kind), s.blocked[ident]:
		case ident.Kind == mapping.IdentKindClass && p.exclude.class(ident.Name):
		case ident.Kind == mapping.IdentKindId && p.exclude.id(ident.Name):
		case len(ident.Name) < 2:
			// cannot get any shorter
		default:
			list = append(list, u)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.ident.Kind != b.ident.Kind {
			return a.ident.Kind < b.ident.Kind
		}
		return a.ident.Name < b.ident.Name
	})
	return list
}

func (p *renameIdents) OptimizeAllFiles(ctx context.Context, m *mapping.StyleMapping, files []*pass.File, facts *analysis.Set, cache *selector.Cache) error {
	if p.mode == common.RenameModeNone {
		return nil
	}
	s, err := p.scan(files, facts, cache)
	if err != nil {
		return err
	}
	if !s.classes && !s.ids {
		return nil
	}

	list := p.candidates(s)
	for _, u := range list {
		m.RecordRename(u.file, u.ident)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	replace := func(id bool, name string) string {
		ident := mapping.Ident{Kind: kindOf(id), Name: name}
		if !s.enabled(ident.Kind) {
			return name
		}
		if repl, ok := m.Rename(ident); ok {
			return repl
		}
		return name
	}
	for _, f := range files {
		err := f.Sheet.WalkRules(func(rule *css.Rule, _ int) error {
			for i, sel := range rule.Selectors {
				out, err := selector.RenameIdents(sel, replace)
				if err != nil {
					return fmt.Errorf("%s:%d: %w", f.Filename, rule.Line, err)
				}
				rule.Selectors[i] = out
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	p.log.Debug("Renamed identifiers", zap.Int("count", len(list)), zap.Bool("classes", s.classes), zap.Bool("ids", s.ids))
	return nil
}
