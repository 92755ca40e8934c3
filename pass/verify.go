package pass

import (
	"cssopt/css"
	"cssopt/mapping"
	"cssopt/selector"
)

// VerifyRenames checks that no identifier renamed in the style mapping is
// still mentioned under its original name. Orchestrator runs it after passes
// so the broken one is named in the error.
func VerifyRenames(name string, m *mapping.StyleMapping, files ...*File) error {
	classes, ids := m.Classes(), m.IDs()
	if len(classes) == 0 && len(ids) == 0 {
		return nil
	}

	for _, f := range files {
		err := f.Sheet.WalkRules(func(rule *css.Rule, _ int) error {
			for _, sel := range rule.Selectors {
				var stale *mapping.Ident
				_, err := selector.RenameIdents(sel, func(id bool, ident string) string {
					table, kind := classes, mapping.IdentKindClass
					if id {
						table, kind = ids, mapping.IdentKindId
					}
					if repl, ok := table[ident]; ok && repl != ident && stale == nil {
						stale = &mapping.Ident{Kind: kind, Name: ident}
					}
					return ident
				})
				if err != nil {
					return &InvariantError{Pass: name, File: f.Filename, Detail: err.Error()}
				}
				if stale != nil {
					return &InvariantError{Pass: name, File: f.Filename, Detail: stale.String() + " is renamed but still used in selector " + sel}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
