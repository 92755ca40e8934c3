package passes

import (
	"context"

	"go.uber.org/zap"

	"cssopt/analysis"
	"cssopt/common"
	"cssopt/css"
	"cssopt/mapping"
	"cssopt/pass"
	"cssopt/selector"
)

// removeUnused drops selectors no analyzed element can match.
type removeUnused struct {
	log      *zap.Logger
	safelist patterns
}

func (p *removeUnused) Name() string { return common.KindRemoveUnused.String() }

// reachable reports whether every compound of the selector can match some
// element. Compounds are checked independently, which can only keep more.
func reachable(e *selector.Entry, facts *analysis.Set) bool {
	for _, c := range e.Compounds {
		if !facts.CanMatch(c.Requirement()) {
			return false
		}
	}
	return true
}

func (p *removeUnused) OptimizeSingleFile(ctx context.Context, m *mapping.StyleMapping, f *pass.File, facts *analysis.Set, cache *selector.Cache) error {
	if facts.Empty() {
		// nothing is known, nothing can be proven unused
		return nil
	}

	var removed int
	f.Sheet.EditBlocks(func(items []*css.Item, _ int) []*css.Item {
		kept := items[:0]
		for _, it := range items {
			switch {
			case it.Rule != nil:
				r := it.Rule
				selectors := r.Selectors[:0]
				for _, sel := range r.Selectors {
					e, err := cache.Query(sel)
					if err != nil || p.safelist.entry(e) || reachable(e, facts) {
						selectors = append(selectors, sel)
						continue
					}
					removed++
					m.RecordRemoval(mapping.Provenance{File: f.Filename, Line: r.Line, Selector: sel, Pass: p.Name()}, mapping.Survivor{})
				}
				r.Selectors = selectors
				if len(r.Selectors) == 0 {
					continue
				}
			case it.AtRule != nil && droppable(it.AtRule):
				p.log.Debug("Dropping emptied at-rule", zap.String("file", f.Filename), zap.String("name", it.AtRule.Name), zap.Int("line", it.AtRule.Line))
				continue
			}
			kept = append(kept, it)
		}
		return kept
	})

	if removed > 0 {
		p.log.Debug("Removed unused selectors", zap.String("file", f.Filename), zap.Int("count", removed))
	}
	return ctx.Err()
}
