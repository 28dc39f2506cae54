// Package history keeps a local SQLite record of the commands this client
// sent. The controller deletes command entries from the store once it has
// consumed them, so the store alone cannot answer "who opened the gate".
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Outcome of a command write.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// DefaultLimit is the number of entries List returns when no limit is given.
const DefaultLimit = 50

// ErrNotFound is returned by Get when no entry has the given ID.
var ErrNotFound = errors.New("history entry not found")

// Entry is one recorded command.
type Entry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	UserName  string         `json:"userName"`
	UserEmail string         `json:"userEmail"`
	Data      map[string]any `json:"data,omitempty"`
	Outcome   string         `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Query narrows List results. Zero fields match everything.
type Query struct {
	UserEmail string
	Outcome   string
	Limit     int
}

// Stats summarizes the history.
type Stats struct {
	Total  int            `json:"total"`
	Failed int            `json:"failed"`
	ByType map[string]int `json:"byType"`
}

// Store persists entries in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens the database at dbPath. Use ":memory:" for an in-memory
// database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second pooled connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		user_name TEXT,
		user_email TEXT,
		data_json TEXT,
		outcome TEXT NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_commands_created_at ON commands(created_at);
	CREATE INDEX IF NOT EXISTS idx_commands_user_email ON commands(user_email);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e. An entry with an existing ID is replaced, so a command
// first recorded as sent can be corrected to failed.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("history entry has no ID")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var dataJSON sql.NullString
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("encode data: %w", err)
		}
		dataJSON = sql.NullString{String: string(b), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO commands (id, type, user_name, user_email, data_json, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Type, e.UserName, e.UserEmail, dataJSON, e.Outcome, nullString(e.Error), e.CreatedAt.UTC())
	return err
}

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, user_name, user_email, data_json, outcome, error, created_at
		FROM commands WHERE id = ?
	`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, q Query) ([]*Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT id, type, user_name, user_email, data_json, outcome, error, created_at
		FROM commands WHERE 1=1`
	var args []any
	if q.UserEmail != "" {
		query += ` AND user_email = ?`
		args = append(args, q.UserEmail)
	}
	if q.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, q.Outcome)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats counts entries by outcome and type.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, outcome, COUNT(*) FROM commands GROUP BY type, outcome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Stats{ByType: make(map[string]int)}
	for rows.Next() {
		var typ, outcome string
		var n int
		if err := rows.Scan(&typ, &outcome, &n); err != nil {
			return nil, err
		}
		stats.Total += n
		stats.ByType[typ] += n
		if outcome == OutcomeFailed {
			stats.Failed += n
		}
	}
	return stats, rows.Err()
}

// Prune deletes entries created before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                          Entry
		name, email, data, failure sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Type, &name, &email, &data, &e.Outcome, &failure, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.UserName = name.String
	e.UserEmail = email.String
	e.Error = failure.String
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
			return nil, fmt.Errorf("decode data for %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
