// Package mapping keeps the style mapping: the ledger of identifier renames
// and of selectors removed or merged into surviving ones. Callers apply the
// rename relation to their templates.
package mapping

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"cssopt/utils/debug"
)

//go:generate go tool go-enum --marshal --names --values

// IdentKind distinguishes class names from ids.
// ENUM(class, id)
type IdentKind int

// Ident is an identifier as written in stylesheets and templates.
type Ident struct {
	Kind IdentKind
	Name string
}

func (i Ident) String() string {
	if i.Kind == IdentKindId {
		return "#" + i.Name
	}
	return "." + i.Name
}

// Rename is a single committed entry of the rename relation.
type Rename struct {
	File        string    `json:"file"` // file where identifier was first renamed
	Kind        IdentKind `json:"kind"`
	Original    string    `json:"original"`
	Replacement string    `json:"replacement"`
}

// Provenance describes where removed selector or declaration came from.
type Provenance struct {
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	Selector string `json:"selector"`
	// Declaration is set when a single declaration rather than whole
	// selector was removed.
	Declaration string `json:"declaration,omitempty"`
	Pass        string `json:"pass,omitempty"`
}

// Survivor is what removed item was folded into. Empty Selector means item
// was dropped without replacement.
type Survivor struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// Removal is an entry of removal/merge relation.
type Removal struct {
	From Provenance `json:"from"`
	Into Survivor   `json:"into"`
}

// ConflictError is returned when an identifier would get a second, different
// replacement or when replacement is already taken.
type ConflictError struct {
	File     string
	Ident    Ident
	Existing string // replacement already committed, may be empty
	Proposed string
	Owner    *Ident // identifier owning proposed name, if any
}

func (e *ConflictError) Error() string {
	switch {
	case e.Owner != nil:
		return fmt.Sprintf("rename conflict in %s: cannot rename %s to %q, name is already used by %s", e.File, e.Ident, e.Proposed, *e.Owner)
	case e.Existing == "":
		return fmt.Sprintf("rename conflict in %s: cannot rename %s to %q, name is reserved", e.File, e.Ident, e.Proposed)
	default:
		return fmt.Sprintf("rename conflict in %s: %s is already renamed to %q, refusing %q", e.File, e.Ident, e.Existing, e.Proposed)
	}
}

type nameKey struct {
	kind IdentKind
	name string
}

// StyleMapping is safe for concurrent use. Every rename is committed by a
// single atomic check-and-set, so an identifier never gets two replacements.
type StyleMapping struct {
	mu sync.Mutex

	renames  map[nameKey]*Rename
	order    []*Rename
	taken    map[nameKey]Ident // replacement -> original
	reserved map[nameKey]bool
	removals []Removal
	gen      generator
}

// New creates an empty style mapping.
func New() *StyleMapping {
	return &StyleMapping{
		renames:  make(map[nameKey]*Rename),
		taken:    make(map[nameKey]Ident),
		reserved: make(map[nameKey]bool),
	}
}

// Reserve marks names as being in use. Generated replacements never collide
// with reserved names. Names of already renamed identifiers may be reserved
// as well, they just become unavailable as replacements.
func (m *StyleMapping) Reserve(kind IdentKind, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		m.reserved[nameKey{kind, n}] = true
	}
}

// available reports whether name may be used as replacement for ident.
// Caller holds the lock.
func (m *StyleMapping) available(ident Ident, name string) (*ConflictError, bool) {
	k := nameKey{ident.Kind, name}
	if owner, ok := m.taken[k]; ok && owner != ident {
		return &ConflictError{Ident: ident, Proposed: name, Owner: &owner}, false
	}
	// identifier may keep its own name, any other reserved name is off limits
	// even when its owner is renamed away: templates may still use it
	if m.reserved[k] && name != ident.Name {
		return &ConflictError{Ident: ident, Proposed: name}, false
	}
	return nil, true
}

func (m *StyleMapping) commit(file string, ident Ident, replacement string) *Rename {
	r := &Rename{File: file, Kind: ident.Kind, Original: ident.Name, Replacement: replacement}
	m.renames[nameKey{ident.Kind, ident.Name}] = r
	m.order = append(m.order, r)
	m.taken[nameKey{ident.Kind, replacement}] = ident
	return r
}

// RecordRename returns replacement for the identifier, generating a fresh
// collision free one when identifier is seen for the first time. Calling it
// again for the same identifier returns the same replacement regardless of
// file.
func (m *StyleMapping) RecordRename(file string, ident Ident) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renames[nameKey{ident.Kind, ident.Name}]; ok {
		return r.Replacement
	}
	for {
		name := m.gen.next()
		if _, ok := m.available(ident, name); ok {
			return m.commit(file, ident, name).Replacement
		}
	}
}

// Assign commits explicitly proposed replacement. Assigning the same
// replacement again succeeds, any disagreement with already committed state
// is a *ConflictError and leaves mapping unchanged.
func (m *StyleMapping) Assign(file string, ident Ident, proposed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renames[nameKey{ident.Kind, ident.Name}]; ok {
		if r.Replacement == proposed {
			return nil
		}
		return &ConflictError{File: file, Ident: ident, Existing: r.Replacement, Proposed: proposed}
	}
	if cerr, ok := m.available(ident, proposed); !ok {
		cerr.File = file
		return cerr
	}
	m.commit(file, ident, proposed)
	return nil
}

// Conflicts reports whether committing proposed replacement for identifier
// would contradict the mapping.
func (m *StyleMapping) Conflicts(file string, ident Ident, proposed string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renames[nameKey{ident.Kind, ident.Name}]; ok {
		return r.Replacement != proposed
	}
	_, ok := m.available(ident, proposed)
	return !ok
}

// Rename returns committed replacement.
func (m *StyleMapping) Rename(ident Ident) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renames[nameKey{ident.Kind, ident.Name}]; ok {
		return r.Replacement, true
	}
	return "", false
}

// RecordRemoval appends to removal/merge relation. It never fails.
func (m *StyleMapping) RecordRemoval(from Provenance, into Survivor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals = append(m.removals, Removal{From: from, Into: into})
}

// Renames returns committed renames ordered by kind and original name.
func (m *StyleMapping) Renames() []Rename {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Rename, 0, len(m.order))
	for _, r := range m.order {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Original < out[j].Original
	})
	return out
}

// Removals returns removal/merge entries. Order is deterministic for
// sequential passes, entries recorded by passes running on files
// concurrently are sorted by file.
func (m *StyleMapping) Removals() []Removal {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Removal, len(m.removals))
	copy(out, m.removals)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].From.File < out[j].From.File
	})
	return out
}

// Empty returns true if nothing was recorded.
func (m *StyleMapping) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order) == 0 && len(m.removals) == 0
}

// Classes returns rename table for class names, original -> replacement.
func (m *StyleMapping) Classes() map[string]string {
	return m.table(IdentKindClass)
}

// IDs returns rename table for ids, original -> replacement.
func (m *StyleMapping) IDs() map[string]string {
	return m.table(IdentKindId)
}

func (m *StyleMapping) table(kind IdentKind) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string)
	for _, r := range m.order {
		if r.Kind == kind {
			out[r.Original] = r.Replacement
		}
	}
	return out
}

type jsonMapping struct {
	Classes  map[string]string `json:"classes"`
	IDs      map[string]string `json:"ids"`
	Renames  []Rename          `json:"renames"`
	Removals []Removal         `json:"removals"`
}

// MarshalJSON produces document callers use to rewrite templates.
func (m *StyleMapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMapping{
		Classes:  m.Classes(),
		IDs:      m.IDs(),
		Renames:  m.Renames(),
		Removals: m.Removals(),
	})
}

// Dump renders mapping for debug reports.
func (m *StyleMapping) Dump() string {
	tw := debug.NewTreeWriter()
	renames, removals := m.Renames(), m.Removals()

	tw.Line(0, "renames: %d", len(renames))
	for _, r := range renames {
		tw.Pair(1, Ident{Kind: r.Kind, Name: r.Original}.String(), Ident{Kind: r.Kind, Name: r.Replacement}.String())
	}
	tw.Line(0, "removals: %d", len(removals))
	for _, r := range removals {
		tw.Line(1, "%s:%d [%s]", r.From.File, r.From.Line, r.From.Pass)
		from := r.From.Selector
		if r.From.Declaration != "" {
			from += " { " + r.From.Declaration + " }"
		}
		tw.Pair(2, from, r.Into.Selector)
	}
	return tw.String()
}
