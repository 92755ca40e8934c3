// Package store persists style mappings of optimizer runs into SQLite
// database, so templates built later (or by other tools) can look up what
// happened to their identifiers and selectors.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"cssopt/mapping"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id      TEXT PRIMARY KEY,
	output  TEXT NOT NULL,
	created TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS renames (
	run         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	file        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	original    TEXT NOT NULL,
	replacement TEXT NOT NULL,
	PRIMARY KEY (run, kind, original)
);
CREATE TABLE IF NOT EXISTS removals (
	run           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	file          TEXT NOT NULL,
	line          INTEGER NOT NULL,
	selector      TEXT NOT NULL,
	declaration   TEXT NOT NULL,
	pass          TEXT NOT NULL,
	into_file     TEXT NOT NULL,
	into_line     INTEGER NOT NULL,
	into_selector TEXT NOT NULL,
	PRIMARY KEY (run, seq)
);
`

// Run is a single saved optimizer run.
type Run struct {
	ID      uuid.UUID
	Output  string
	Created time.Time
}

// Store is a provenance database. Connection is shared, calls are
// serialized.
type Store struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens (creating if necessary) database at path. Use ":memory:" for
// a database which lives as long as the Store.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == ":memory:" {
		flags = append(flags, sqlite.OpenMemory)
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("unable to open provenance database (%s): %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = ON;", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to configure provenance database: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare provenance database schema: %w", err)
	}
	return &Store{conn: conn, log: log.Named("store")}, nil
}

// Close closes database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Save records style mapping of a run in a single transaction.
func (s *Store) Save(run uuid.UUID, output string, m *mapping.StyleMapping) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer sqlitex.Save(s.conn)(&err)

	err = sqlitex.Execute(s.conn, `INSERT INTO runs (id, output, created) VALUES (?, ?, ?);`,
		&sqlitex.ExecOptions{Args: []any{run.String(), output, time.Now().UTC().Format(time.RFC3339Nano)}})
	if err != nil {
		return fmt.Errorf("unable to save run %s: %w", run, err)
	}

	renames := m.Renames()
	for _, r := range renames {
		err = sqlitex.Execute(s.conn,
			`INSERT INTO renames (run, file, kind, original, replacement) VALUES (?, ?, ?, ?, ?);`,
			&sqlitex.ExecOptions{Args: []any{run.String(), r.File, r.Kind.String(), r.Original, r.Replacement}})
		if err != nil {
			return fmt.Errorf("unable to save rename of %s: %w", r.Original, err)
		}
	}

	removals := m.Removals()
	for i, r := range removals {
		err = sqlitex.Execute(s.conn,
			`INSERT INTO removals (run, seq, file, line, selector, declaration, pass, into_file, into_line, into_selector)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			&sqlitex.ExecOptions{Args: []any{
				run.String(), i,
				r.From.File, r.From.Line, r.From.Selector, r.From.Declaration, r.From.Pass,
				r.Into.File, r.Into.Line, r.Into.Selector,
			}})
		if err != nil {
			return fmt.Errorf("unable to save removal of %s: %w", r.From.Selector, err)
		}
	}

	s.log.Debug("Saved style mapping", zap.Stringer("run", run), zap.Int("renames", len(renames)), zap.Int("removals", len(removals)))
	return nil
}

// Runs lists saved runs, oldest first.
func (s *Store) Runs() ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var runs []Run
	err := sqlitex.Execute(s.conn, `SELECT id, output, created FROM runs ORDER BY created, id;`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			id, err := uuid.Parse(stmt.ColumnText(0))
			if err != nil {
				return err
			}
			created, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(2))
			if err != nil {
				return err
			}
			runs = append(runs, Run{ID: id, Output: stmt.ColumnText(1), Created: created})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("unable to list runs: %w", err)
	}
	return runs, nil
}

// Renames returns renames of the run ordered the same way as
// mapping.StyleMapping.Renames does.
func (s *Store) Renames(run uuid.UUID) ([]mapping.Rename, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []mapping.Rename
	err := sqlitex.Execute(s.conn,
		`SELECT file, kind, original, replacement FROM renames WHERE run = ? ORDER BY kind, original;`,
		&sqlitex.ExecOptions{
			Args: []any{run.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				kind, err := mapping.ParseIdentKind(stmt.ColumnText(1))
				if err != nil {
					return err
				}
				out = append(out, mapping.Rename{
					File:        stmt.ColumnText(0),
					Kind:        kind,
					Original:    stmt.ColumnText(2),
					Replacement: stmt.ColumnText(3),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to read renames of run %s: %w", run, err)
	}
	return out, nil
}

// Removals returns removal/merge entries of the run in recorded order.
func (s *Store) Removals(run uuid.UUID) ([]mapping.Removal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []mapping.Removal
	err := sqlitex.Execute(s.conn,
		`SELECT file, line, selector, declaration, pass, into_file, into_line, into_selector
		 FROM removals WHERE run = ? ORDER BY seq;`,
		&sqlitex.ExecOptions{
			Args: []any{run.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, mapping.Removal{
					From: mapping.Provenance{
						File:        stmt.ColumnText(0),
						Line:        stmt.ColumnInt(1),
						Selector:    stmt.ColumnText(2),
						Declaration: stmt.ColumnText(3),
						Pass:        stmt.ColumnText(4),
					},
					Into: mapping.Survivor{
						File:     stmt.ColumnText(5),
						Line:     stmt.ColumnInt(6),
						Selector: stmt.ColumnText(7),
					},
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to read removals of run %s: %w", run, err)
	}
	return out, nil
}
