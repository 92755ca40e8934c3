package passes

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"cssopt/analysis"
	"cssopt/common"
	"cssopt/css"
	"cssopt/mapping"
	"cssopt/pass"
	"cssopt/selector"
)

// mergeAdjacent merges neighbouring rules of the same block: rules with the
// same selector list get their declarations concatenated, rules with the same
// declarations get their selector lists joined. Nothing stands between merged
// rules, so cascade order relative to every other rule is unchanged.
type mergeAdjacent struct {
	log *zap.Logger
}

func (p *mergeAdjacent) Name() string { return common.KindMergeAdjacent.String() }

func sameSelectors(a, b []string) bool {
	return slices.EqualFunc(a, b, func(x, y string) bool { return selector.Normalize(x) == selector.Normalize(y) })
}

func (p *mergeAdjacent) OptimizeSingleFile(ctx context.Context, m *mapping.StyleMapping, f *pass.File, _ *analysis.Set, cache *selector.Cache) error {
	var merged int

	f.Sheet.EditBlocks(func(items []*css.Item, _ int) []*css.Item {
		kept := items[:0]
		for _, it := range items {
			if it.Rule == nil || len(kept) == 0 || kept[len(kept)-1].Rule == nil {
				kept = append(kept, it)
				continue
			}
			prev, r := kept[len(kept)-1].Rule, it.Rule
			from := mapping.Provenance{File: f.Filename, Line: r.Line, Selector: r.SelectorText(), Pass: p.Name()}

			switch {
			case sameSelectors(prev.Selectors, r.Selectors):
				prev.Declarations = append(prev.Declarations, r.Declarations...)
			case prev.SameDeclarations(r) && allMergeable(cache, prev.Selectors) && allMergeable(cache, r.Selectors):
				prev.Selectors = unionSelectors(prev.Selectors, r.Selectors)
			default:
				kept = append(kept, it)
				continue
			}
			merged++
			m.RecordRemoval(from, mapping.Survivor{File: f.Filename, Line: prev.Line, Selector: prev.SelectorText()})
		}
		return kept
	})

	if merged > 0 {
		p.log.Debug("Merged adjacent rules", zap.String("file", f.Filename), zap.Int("count", merged))
	}
	return ctx.Err()
}
