// Package common keeps enumerations shared by configuration, the optimizer
// and its passes. Kept separate so passes do not have to depend on the whole
// configuration package.
package common

//go:generate go tool go-enum --marshal --names --values

// Kind of optimization pass. Order of declaration is the default pass order.
// ENUM(remove-unused, dedupe-declarations, merge-adjacent, compact-values, share-declarations, rename-idents)
type Kind int

// CrossFile reports whether pass of this kind needs all stylesheets together.
func (k Kind) CrossFile() bool {
	return k == KindShareDeclarations || k == KindRenameIdents
}

// Identifier rewrite mode.
// ENUM(none, classes, ids, both)
type RenameMode int

func (m RenameMode) Classes() bool {
	return m == RenameModeClasses || m == RenameModeBoth
}

func (m RenameMode) IDs() bool {
	return m == RenameModeIds || m == RenameModeBoth
}
