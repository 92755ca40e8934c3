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

// dedupeDeclarations removes exact duplicate declarations inside a rule,
// the last occurrence survives, and drops rules without declarations.
// Dropping an earlier copy never changes the winner: the later copy carries
// the same value and importance and stays where the winner was.
type dedupeDeclarations struct {
	log *zap.Logger
}

func (p *dedupeDeclarations) Name() string { return common.KindDedupeDeclarations.String() }

func dedupe(decls []css.Declaration) ([]css.Declaration, []css.Declaration) {
	var dropped []css.Declaration
	kept := make([]css.Declaration, 0, len(decls))
	for i, d := range decls {
		duplicate := false
		for _, later := range decls[i+1:] {
			if d.Equal(later) {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped = append(dropped, d)
			continue
		}
		kept = append(kept, d)
	}
	return kept, dropped
}

func (p *dedupeDeclarations) OptimizeSingleFile(ctx context.Context, m *mapping.StyleMapping, f *pass.File, _ *analysis.Set, _ *selector.Cache) error {
	var declarations, rules int

	f.Sheet.EditBlocks(func(items []*css.Item, _ int) []*css.Item {
		kept := items[:0]
		for _, it := range items {
			if it.AtRule != nil && len(it.AtRule.Declarations) > 0 {
				// @font-face and friends, same rules apply
				it.AtRule.Declarations, _ = dedupe(it.AtRule.Declarations)
			}
			if it.Rule == nil {
				kept = append(kept, it)
				continue
			}
			r := it.Rule
			var dropped []css.Declaration
			r.Declarations, dropped = dedupe(r.Declarations)
			for _, d := range dropped {
				declarations++
				m.RecordRemoval(
					mapping.Provenance{File: f.Filename, Line: r.Line, Selector: r.SelectorText(), Declaration: declarationText(d), Pass: p.Name()},
					mapping.Survivor{File: f.Filename, Line: r.Line, Selector: r.SelectorText()},
				)
			}
			if len(r.Declarations) == 0 {
				rules++
				m.RecordRemoval(mapping.Provenance{File: f.Filename, Line: r.Line, Selector: r.SelectorText(), Pass: p.Name()}, mapping.Survivor{})
				continue
			}
			kept = append(kept, it)
		}
		return kept
	})

	if declarations > 0 || rules > 0 {
		p.log.Debug("Removed duplicates", zap.String("file", f.Filename), zap.Int("declarations", declarations), zap.Int("rules", rules))
	}
	return ctx.Err()
}
