package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prime/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS memory_events (
			id BIGSERIAL PRIMARY KEY,
			at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			kind TEXT NOT NULL,
			event TEXT NOT NULL,
			response TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT '',
			weight DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			context JSONB NOT NULL DEFAULT '{}'::jsonb
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_events_at ON memory_events(at);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_events_kind ON memory_events(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_events_weight ON memory_events(weight);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev domain.MemoryEvent) (int64, error) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ctxJSON, err := marshalContext(ev.Context)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO memory_events(at, kind, event, response, outcome, weight, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		RETURNING id
	`, ev.At.UTC(), ev.Kind, ev.Event, ev.Response, ev.Outcome, ev.Weight, ctxJSON).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) LatestEvents(ctx context.Context, limit int) ([]domain.MemoryEvent, error) {
	out, err := s.queryEvents(ctx, `
		SELECT id, at, kind, event, response, outcome, weight, context
		FROM memory_events
		ORDER BY at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func (s *PostgresStore) EventsByKind(ctx context.Context, kind string, since time.Time) ([]domain.MemoryEvent, error) {
	return s.queryEvents(ctx, `
		SELECT id, at, kind, event, response, outcome, weight, context
		FROM memory_events
		WHERE kind=$1 AND at > $2
		ORDER BY at DESC, id DESC
	`, kind, since.UTC())
}

func (s *PostgresStore) EmotionalEvents(ctx context.Context, minWeight float64, limit int) ([]domain.MemoryEvent, error) {
	return s.queryEvents(ctx, `
		SELECT id, at, kind, event, response, outcome, weight, context
		FROM memory_events
		WHERE weight >= $1
		ORDER BY weight DESC, at DESC
		LIMIT $2
	`, minWeight, limit)
}

func (s *PostgresStore) Patterns(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, outcome, COUNT(*)
		FROM memory_events
		WHERE at > $1
		GROUP BY kind, outcome
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var kind, outcome string
		var count int
		if err := rows.Scan(&kind, &outcome, &count); err != nil {
			return nil, err
		}
		out[patternKey(kind, outcome)] = count
	}
	return out, rows.Err()
}

func (s *PostgresStore) queryEvents(ctx context.Context, q string, args ...any) ([]domain.MemoryEvent, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.MemoryEvent, 0)
	for rows.Next() {
		var ev domain.MemoryEvent
		var ctxRaw []byte
		if err := rows.Scan(&ev.ID, &ev.At, &ev.Kind, &ev.Event, &ev.Response, &ev.Outcome, &ev.Weight, &ctxRaw); err != nil {
			return nil, err
		}
		if ev.Context, err = unmarshalContext(ctxRaw); err != nil {
			return nil, err
		}
		ev.At = ev.At.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

func marshalContext(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalContext(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func reverse(events []domain.MemoryEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
