package passes

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tdewolff/minify/v2"
	mcss "github.com/tdewolff/minify/v2/css"
	"go.uber.org/zap"

	"cssopt/analysis"
	"cssopt/common"
	"cssopt/css"
	"cssopt/mapping"
	"cssopt/pass"
	"cssopt/selector"
)

const compactMemoSize = 4096

var inlineParams = map[string]string{"inline": "1"}

// compactValues rewrites declaration values to their shortest equivalent
// form. Every declaration is minified on its own, so the structure of the
// rule tree stays intact.
type compactValues struct {
	log       *zap.Logger
	minifier  *minify.M
	precision int
	parser    *css.Parser

	// same declarations repeat a lot across rules and files
	memo *lru.Cache[css.Declaration, css.Declaration]
}

func newCompactValues(precision int, log *zap.Logger) (*compactValues, error) {
	if precision < 0 {
		return nil, fmt.Errorf("negative precision %d", precision)
	}
	memo, err := lru.New[css.Declaration, css.Declaration](compactMemoSize)
	if err != nil {
		return nil, err
	}
	return &compactValues{
		log:       log,
		minifier:  minify.New(),
		precision: precision,
		parser:    css.NewParser(log),
		memo:      memo,
	}, nil
}

func (p *compactValues) Name() string { return common.KindCompactValues.String() }

// compact returns minified declaration or the original one when minifier
// fails or produces something which is not a single declaration of the same
// property.
func (p *compactValues) compact(d css.Declaration) css.Declaration {
	if d.Custom() {
		// custom property values are token streams, keep them verbatim
		return d
	}
	if v, ok := p.memo.Get(d); ok {
		return v
	}

	result := d
	var out strings.Builder
	// css minifier keeps state while running, files are processed concurrently
	m := &mcss.Minifier{Precision: p.precision}
	if err := m.Minify(p.minifier, &out, strings.NewReader(declarationText(d)), inlineParams); err != nil {
		p.log.Debug("Unable to minify declaration", zap.String("declaration", declarationText(d)), zap.Error(err))
	} else if decls, err := p.parser.ParseDeclarations(out.String()); err == nil && len(decls) == 1 && decls[0].Key() == d.Key() {
		result.Value, result.Important = decls[0].Value, decls[0].Important
	}
	p.memo.Add(d, result)
	return result
}

func (p *compactValues) OptimizeSingleFile(ctx context.Context, _ *mapping.StyleMapping, f *pass.File, _ *analysis.Set, _ *selector.Cache) error {
	var changed int
	update := func(decls []css.Declaration) {
		for i, d := range decls {
			if c := p.compact(d); c != d {
				decls[i] = c
				changed++
			}
		}
	}

	f.Sheet.EditBlocks(func(items []*css.Item, _ int) []*css.Item {
		for _, it := range items {
			switch {
			case it.Rule != nil:
				update(it.Rule.Declarations)
			case it.AtRule != nil:
				update(it.AtRule.Declarations)
			}
		}
		return items
	})

	if changed > 0 {
		p.log.Debug("Compacted values", zap.String("file", f.Filename), zap.Int("count", changed))
	}
	return ctx.Err()
}
