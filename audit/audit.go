// CLAUDE:SUMMARY Asynchronous SQLite audit trail of inspector operations, fed by a kit middleware and queried by the CLI and HTTP API.
// Package audit records one row per inspector operation: which tool ran,
// over which transport, for which request, and how it ended.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/superx/idgen"
	"github.com/hazyhaar/superx/kit"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"

	// maxParams bounds the stored request JSON. Inline pages are large.
	maxParams = 2048
)

// Entry is one recorded operation.
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Operation  string    `json:"operation"`
	Transport  string    `json:"transport"`
	RequestID  string    `json:"request_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Params     string    `json:"params,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Filter selects entries for Query. Zero fields match everything.
type Filter struct {
	Operation string
	Status    string
	Since     time.Time
	Limit     int // default 100
}

// Logger persists entries from a buffered queue on a background goroutine.
type Logger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan *Entry
	done   chan struct{}
}

// Option configures a Logger.
type Option func(*Logger)

// WithIDGenerator sets the entry id generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *Logger) { l.newID = gen }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Logger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New applies the schema and starts the flush loop. bufferSize <= 0 uses 256.
func New(db *sql.DB, bufferSize int, opts ...Option) (*Logger, error) {
	if err := Init(db); err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	l := &Logger{
		db:     db,
		newID:  idgen.Audit,
		logger: slog.Default(),
		ch:     make(chan *Entry, bufferSize),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l, nil
}

// Log inserts e synchronously.
func (l *Logger) Log(ctx context.Context, e *Entry) error {
	l.fill(e)
	return l.insert(ctx, e)
}

// LogAsync queues e. A full queue falls back to a synchronous insert.
func (l *Logger) LogAsync(e *Entry) {
	l.fill(e)
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- e:
	default:
		l.logger.Warn("audit: buffer full, sync fallback", "operation", e.Operation)
		if err := l.insert(context.Background(), e); err != nil {
			l.logger.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// Close drains the queue and stops the flush loop. Entries logged after
// Close are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
	l.mu.Unlock()
	<-l.done
	return nil
}

func (l *Logger) flushLoop() {
	defer close(l.done)
	for e := range l.ch {
		if err := l.insert(context.Background(), e); err != nil {
			l.logger.Error("audit: insert failed", "operation", e.Operation, "error", err)
		}
	}
}

func (l *Logger) fill(e *Entry) {
	if e.ID == "" {
		e.ID = l.newID()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if e.Params == "" {
		e.Params = "{}"
	}
}

func (l *Logger) insert(ctx context.Context, e *Entry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (entry_id, timestamp, operation, transport, request_id,
			session_id, parameters, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UnixMilli(), e.Operation, e.Transport, e.RequestID,
		e.SessionID, e.Params, e.Status, e.Error, e.DurationMs)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first.
func (l *Logger) Query(ctx context.Context, f Filter) ([]Entry, error) {
	q := `SELECT entry_id, timestamp, operation, transport, request_id, session_id,
		parameters, status, error, duration_ms FROM audit_log WHERE 1=1`
	var args []any
	if f.Operation != "" {
		q += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	if !f.Since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " ORDER BY timestamp DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ts int64
		)
		if err := rows.Scan(&e.ID, &ts, &e.Operation, &e.Transport, &e.RequestID,
			&e.SessionID, &e.Params, &e.Status, &e.Error, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Time = time.UnixMilli(ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Middleware records every call of op. Recording happens after the call
// returns and never changes its outcome.
func (l *Logger) Middleware(op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			e := &Entry{
				Operation:  op,
				Transport:  kit.GetTransport(ctx),
				RequestID:  kit.GetRequestID(ctx),
				SessionID:  kit.GetSessionID(ctx),
				Params:     params(req),
				Status:     StatusSuccess,
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				e.Status = StatusError
				if errors.Is(err, context.DeadlineExceeded) {
					e.Status = StatusTimeout
				}
				e.Error = err.Error()
			}
			l.LogAsync(e)
			return resp, err
		}
	}
}

// params renders req as JSON, truncated to maxParams bytes on a rune
// boundary. Truncated output is no longer valid JSON.
func params(req any) string {
	if req == nil {
		return "{}"
	}
	b, err := json.Marshal(req)
	if err != nil {
		return "{}"
	}
	if len(b) <= maxParams {
		return string(b)
	}
	cut := maxParams
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "…"
}
