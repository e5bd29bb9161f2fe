package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS responses (
	key TEXT PRIMARY KEY,
	status INTEGER NOT NULL,
	header TEXT NOT NULL,
	body BLOB NOT NULL,
	stored_at INTEGER NOT NULL
)`

// SQLiteStore persists entries in a SQLite database so the cache survives
// restarts.
type SQLiteStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// OpenSQLite opens or creates the database at path. The "sqlite://" and
// "sqlite:" prefixes are accepted and stripped.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(path), "sqlite://"), "sqlite:")
	if dsn == "" {
		return nil, errors.New("cache database path is empty")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	return &SQLiteStore{db: db, queryTimeout: 30 * time.Second}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var (
		status   int
		header   string
		body     []byte
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, header, body, stored_at FROM responses WHERE key = ?`, key,
	).Scan(&status, &header, &body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	h := make(http.Header)
	if err := json.Unmarshal([]byte(header), &h); err != nil {
		return nil, false, fmt.Errorf("decoding cached header: %w", err)
	}

	return &Entry{
		StatusCode: status,
		Header:     h,
		Body:       body,
		StoredAt:   time.Unix(0, storedAt),
	}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, e *Entry) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	header, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (key, status, header, body, stored_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET status = excluded.status, header = excluded.header,
			body = excluded.body, stored_at = excluded.stored_at`,
		key, e.StatusCode, string(header), body, e.StoredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}

// Purge removes entries stored before cutoff and returns how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE stored_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache purge failed: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
