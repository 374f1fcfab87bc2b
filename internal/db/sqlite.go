package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"prime/internal/domain"
)

// Fixed-width UTC timestamps so text comparison orders like time.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS memory_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        TEXT NOT NULL,
	kind      TEXT NOT NULL,
	event     TEXT NOT NULL,
	response  TEXT NOT NULL DEFAULT '',
	outcome   TEXT NOT NULL DEFAULT '',
	weight    REAL NOT NULL DEFAULT 0.5,
	context   TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_memory_events_at ON memory_events(at);
CREATE INDEX IF NOT EXISTS idx_memory_events_kind ON memory_events(kind);
`

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates, with its directory) the database file.
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between the tick loop and handlers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

func (s *SQLiteStore) InsertEvent(ctx context.Context, ev domain.MemoryEvent) (int64, error) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ctxJSON, err := marshalContext(ev.Context)
	if err != nil {
		return 0, fmt.Errorf("marshal context: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_events (at, kind, event, response, outcome, weight, context)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(ev.At), ev.Kind, ev.Event, ev.Response, ev.Outcome, ev.Weight, ctxJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) LatestEvents(ctx context.Context, limit int) ([]domain.MemoryEvent, error) {
	out, err := s.queryEvents(ctx,
		`SELECT id, at, kind, event, response, outcome, weight, context
		 FROM memory_events
		 ORDER BY at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func (s *SQLiteStore) EventsByKind(ctx context.Context, kind string, since time.Time) ([]domain.MemoryEvent, error) {
	return s.queryEvents(ctx,
		`SELECT id, at, kind, event, response, outcome, weight, context
		 FROM memory_events
		 WHERE kind = ? AND at > ?
		 ORDER BY at DESC, id DESC`, kind, formatTime(since))
}

func (s *SQLiteStore) EmotionalEvents(ctx context.Context, minWeight float64, limit int) ([]domain.MemoryEvent, error) {
	return s.queryEvents(ctx,
		`SELECT id, at, kind, event, response, outcome, weight, context
		 FROM memory_events
		 WHERE weight >= ?
		 ORDER BY weight DESC, at DESC
		 LIMIT ?`, minWeight, limit)
}

func (s *SQLiteStore) Patterns(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, outcome, COUNT(*)
		 FROM memory_events
		 WHERE at > ?
		 GROUP BY kind, outcome`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var kind, outcome string
		var count int
		if err := rows.Scan(&kind, &outcome, &count); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out[patternKey(kind, outcome)] = count
	}
	return out, rows.Err()
}

func (s *SQLiteStore) queryEvents(ctx context.Context, q string, args ...any) ([]domain.MemoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.MemoryEvent, 0)
	for rows.Next() {
		var ev domain.MemoryEvent
		var at, ctxRaw string
		if err := rows.Scan(&ev.ID, &at, &ev.Kind, &ev.Event, &ev.Response, &ev.Outcome, &ev.Weight, &ctxRaw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.At, err = time.Parse(sqliteTimeLayout, at); err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		if ev.Context, err = unmarshalContext([]byte(ctxRaw)); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
