// CLAUDE:SUMMARY SQLite catalog of saved locators: generated paths per page plus their verification history.
// Package catalog persists generated locators so they can be listed and
// re-verified against fresh copies of their page.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/superx/dbopen"
)

// ErrNotFound is returned for unknown locator ids.
var ErrNotFound = errors.New("catalog: locator not found")

// Store is the catalog database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the catalog database at path and applies the
// schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	all := append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)
	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	return &Store{DB: db}, nil
}

// OpenMemory returns an in-memory Store closed at test cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	return &Store{DB: dbopen.OpenMemory(t, dbopen.WithSchema(Schema))}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
