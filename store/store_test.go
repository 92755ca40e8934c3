package store

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"cssopt/mapping"
)

func sampleMapping() *mapping.StyleMapping {
	m := mapping.New()
	m.Reserve(mapping.IdentKindClass, "long-descriptive-name", "nav")
	m.RecordRename("a.css", mapping.Ident{Kind: mapping.IdentKindClass, Name: "long-descriptive-name"})
	m.RecordRename("b.css", mapping.Ident{Kind: mapping.IdentKindId, Name: "main"})
	m.RecordRemoval(
		mapping.Provenance{File: "b.css", Line: 1, Selector: ".bar", Pass: "share-declarations"},
		mapping.Survivor{File: "a.css", Line: 1, Selector: ".foo, .bar"},
	)
	m.RecordRemoval(
		mapping.Provenance{File: "b.css", Line: 3, Selector: ".baz", Declaration: "color: red", Pass: "dedupe-declarations"},
		mapping.Survivor{File: "b.css", Line: 3, Selector: ".baz"},
	)
	return m
}

func TestStore_SaveAndRead(t *testing.T) {
	s, err := Open(":memory:", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	m := sampleMapping()
	run := uuid.Must(uuid.NewV7())
	if err := s.Save(run, "a.min.css", m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	renames, err := s.Renames(run)
	if err != nil {
		t.Fatalf("Renames() error = %v", err)
	}
	if !slices.Equal(renames, m.Renames()) {
		t.Errorf("Renames() = %+v, want %+v", renames, m.Renames())
	}

	removals, err := s.Removals(run)
	if err != nil {
		t.Fatalf("Removals() error = %v", err)
	}
	if !slices.Equal(removals, m.Removals()) {
		t.Errorf("Removals() = %+v, want %+v", removals, m.Removals())
	}

	other, err := s.Renames(uuid.Must(uuid.NewV7()))
	if err != nil {
		t.Fatalf("Renames() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unknown run should have no renames, got %+v", other)
	}
}

func TestStore_DuplicateRunRollsBack(t *testing.T) {
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	run := uuid.Must(uuid.NewV7())
	if err := s.Save(run, "out.css", sampleMapping()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(run, "out.css", mapping.New()); err == nil {
		t.Fatal("expected error saving the same run twice")
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run || runs[0].Output != "out.css" {
		t.Errorf("Runs() = %+v", runs)
	}
	renames, err := s.Renames(run)
	if err != nil {
		t.Fatalf("Renames() error = %v", err)
	}
	if len(renames) != 2 {
		t.Errorf("first run must stay intact, got %+v", renames)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provenance.db")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	first, second := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())
	if err := s.Save(first, "one.css", sampleMapping()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	if err := s.Save(second, "two.css", mapping.New()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != first || runs[1].ID != second {
		t.Errorf("Runs() = %+v", runs)
	}
}
