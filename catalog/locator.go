package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/superx/dbopen"
	"github.com/hazyhaar/superx/idgen"
)

// Locator is a saved pair of paths for one element of a page.
type Locator struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	PageURL       string `json:"page_url"`
	FullPath      string `json:"full_path"`
	OptimizedPath string `json:"optimized_path"`
	Strategy      string `json:"strategy,omitempty"`
	LastCount     int    `json:"last_count"`
	LastCheck     *int64 `json:"last_check,omitempty"`
	LastSuccess   *int64 `json:"last_success,omitempty"`
	FailCount     int    `json:"fail_count"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// Check is one verification of a locator.
type Check struct {
	CheckedAt int64 `json:"checked_at"`
	Count     int   `json:"count"`
	OK        bool  `json:"ok"`
}

const locatorColumns = `id, name, page_url, full_path, optimized_path, strategy,
	last_count, last_check, last_success, fail_count, created_at, updated_at`

// Insert stores l, assigning an id when empty.
func (s *Store) Insert(ctx context.Context, l *Locator) error {
	if l.PageURL == "" || l.FullPath == "" || l.OptimizedPath == "" {
		return fmt.Errorf("catalog: insert: page_url, full_path and optimized_path are required")
	}
	if l.ID == "" {
		l.ID = idgen.Locator()
	}
	now := time.Now().UnixMilli()
	if l.CreatedAt == 0 {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO locators (`+locatorColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.Name, l.PageURL, l.FullPath, l.OptimizedPath, l.Strategy,
		l.LastCount, nullInt(l.LastCheck), nullInt(l.LastSuccess), l.FailCount, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("catalog: insert: %w", err)
	}
	return nil
}

// Get returns the locator with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Locator, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+locatorColumns+` FROM locators WHERE id = ?`, id)
	l, err := scanLocator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get: %w", err)
	}
	return l, nil
}

// List returns locators for pageURL, or every locator when pageURL is
// empty, oldest first.
func (s *Store) List(ctx context.Context, pageURL string) ([]*Locator, error) {
	query := `SELECT ` + locatorColumns + ` FROM locators`
	var args []any
	if pageURL != "" {
		query += ` WHERE page_url = ?`
		args = append(args, pageURL)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []*Locator
	for rows.Next() {
		l, err := scanLocator(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: list: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Delete removes a locator and its check history.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM locators WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// RecordCheck stores a verification result. A successful check resets the
// failure counter; a failed one increments it.
func (s *Store) RecordCheck(ctx context.Context, id string, count int, ok bool) (*Locator, error) {
	now := time.Now().UnixMilli()
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if ok {
			res, err = tx.ExecContext(ctx, `
				UPDATE locators SET last_count = ?, last_check = ?, last_success = ?,
				       fail_count = 0, updated_at = ?
				WHERE id = ?`, count, now, now, now, id)
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE locators SET last_count = ?, last_check = ?,
				       fail_count = fail_count + 1, updated_at = ?
				WHERE id = ?`, count, now, now, id)
		}
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO locator_checks (locator_id, checked_at, count, ok) VALUES (?,?,?,?)`,
			id, now, count, boolInt(ok))
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("catalog: record check: %w", err)
	}
	return s.Get(ctx, id)
}

// Checks returns the most recent verifications of a locator, newest first.
func (s *Store) Checks(ctx context.Context, id string, limit int) ([]Check, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT checked_at, count, ok FROM locator_checks
		WHERE locator_id = ? ORDER BY checked_at DESC, rowid DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: checks: %w", err)
	}
	defer rows.Close()

	var out []Check
	for rows.Next() {
		var c Check
		var ok int
		if err := rows.Scan(&c.CheckedAt, &c.Count, &ok); err != nil {
			return nil, fmt.Errorf("catalog: checks: %w", err)
		}
		c.OK = ok != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLocator(sc scanner) (*Locator, error) {
	l := &Locator{}
	var lastCheck, lastSuccess sql.NullInt64
	if err := sc.Scan(
		&l.ID, &l.Name, &l.PageURL, &l.FullPath, &l.OptimizedPath, &l.Strategy,
		&l.LastCount, &lastCheck, &lastSuccess, &l.FailCount, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastCheck.Valid {
		l.LastCheck = &lastCheck.Int64
	}
	if lastSuccess.Valid {
		l.LastSuccess = &lastSuccess.Int64
	}
	return l, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
