package passes

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"cssopt/analysis"
	"cssopt/common"
	"cssopt/css"
	"cssopt/mapping"
	"cssopt/pass"
	"cssopt/selector"
)

// shareDeclarations folds top level rules of later files into rules with
// identical declarations in earlier files. Order of files in output is not a
// valid argument, so a rule is moved only when, for every other rule
// touching the same properties anywhere, template facts prove moved
// selectors never match the same elements.
type shareDeclarations struct {
	log *zap.Logger
}

func (p *shareDeclarations) Name() string { return common.KindShareDeclarations.String() }

var errNotProvable = errors.New("not provable")

// shareable rules carry declarations, no custom properties and only
// selectors which may be joined into a list.
func shareable(r *css.Rule, cache *selector.Cache) bool {
	return len(r.Declarations) > 0 && !hasCustom(r.Properties()) && allMergeable(cache, r.Selectors)
}

func (p *shareDeclarations) OptimizeAllFiles(ctx context.Context, m *mapping.StyleMapping, files []*pass.File, facts *analysis.Set, cache *selector.Cache) error {
	var moved int

	for i := 1; i < len(files); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := files[i]
		kept := f.Sheet.Items[:0]
		for _, it := range f.Sheet.Items {
			if it.Rule == nil || !shareable(it.Rule, cache) {
				kept = append(kept, it)
				continue
			}
			survivor, sfile := p.findSurvivor(files[:i], it.Rule, cache)
			if survivor == nil || !p.provable(files, it.Rule, survivor, facts, cache) {
				kept = append(kept, it)
				continue
			}
			if sfile >= i {
				return pass.Invariant(p, f.Filename, "survivor %q is not in an earlier file", survivor.SelectorText())
			}

			r := it.Rule
			from := mapping.Provenance{File: f.Filename, Line: r.Line, Selector: r.SelectorText(), Pass: p.Name()}
			survivor.Selectors = unionSelectors(survivor.Selectors, r.Selectors)
			m.RecordRemoval(from, mapping.Survivor{File: files[sfile].Filename, Line: survivor.Line, Selector: survivor.SelectorText()})
			moved++
			p.log.Debug("Shared declarations",
				zap.String("file", f.Filename), zap.String("selector", from.Selector),
				zap.String("into", files[sfile].Filename), zap.Int("line", survivor.Line))
		}
		f.Sheet.Items = kept
	}

	if moved > 0 {
		p.log.Debug("Folded rules into earlier files", zap.Int("count", moved))
	}
	return nil
}

// findSurvivor looks for the first top level rule with identical declarations.
func (p *shareDeclarations) findSurvivor(earlier []*pass.File, r *css.Rule, cache *selector.Cache) (*css.Rule, int) {
	for fi, f := range earlier {
		for _, it := range f.Sheet.Items {
			if it.Rule != nil && it.Rule.SameDeclarations(r) && shareable(it.Rule, cache) {
				return it.Rule, fi
			}
		}
	}
	return nil, -1
}

// provable checks every rule which could fight with moved declarations.
// Rules with identical declarations cannot change the outcome wherever they
// are.
func (p *shareDeclarations) provable(files []*pass.File, r, survivor *css.Rule, facts *analysis.Set, cache *selector.Cache) bool {
	props := newPropertySet(r.Properties())
	for _, f := range files {
		err := f.Sheet.WalkRules(func(other *css.Rule, _ int) error {
			if other == r || other == survivor || other.SameDeclarations(r) {
				return nil
			}
			if !props.overlaps(newPropertySet(other.Properties())) {
				return nil
			}
			for _, a := range r.Selectors {
				for _, b := range other.Selectors {
					if !cache.Exclusive(a, b, facts) {
						return errNotProvable
					}
				}
			}
			return nil
		})
		if err != nil {
			return false
		}
	}
	return true
}
