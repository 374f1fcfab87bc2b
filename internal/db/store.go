// Package db persists memory events. Two backends share one schema shape:
// PostgreSQL through pgx for deployments and an embedded SQLite file for a
// single device.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"prime/internal/domain"
)

// Store is the persistent half of the memory collaborator.
type Store interface {
	Migrate(ctx context.Context) error
	InsertEvent(ctx context.Context, ev domain.MemoryEvent) (int64, error)
	// LatestEvents returns up to limit events, oldest first.
	LatestEvents(ctx context.Context, limit int) ([]domain.MemoryEvent, error)
	// EventsByKind returns events of one kind newer than since, newest first.
	EventsByKind(ctx context.Context, kind string, since time.Time) ([]domain.MemoryEvent, error)
	// EmotionalEvents returns the heaviest events at or above minWeight.
	EmotionalEvents(ctx context.Context, minWeight float64, limit int) ([]domain.MemoryEvent, error)
	// Patterns counts events newer than since grouped by "<kind>_<outcome>".
	Patterns(ctx context.Context, since time.Time) (map[string]int, error)
	Close() error
}

// Open picks PostgreSQL when dsn is set and falls back to the SQLite file at
// path otherwise. The returned store is already migrated.
func Open(ctx context.Context, dsn, path string) (Store, error) {
	var (
		store Store
		err   error
	)
	if strings.TrimSpace(dsn) != "" {
		store, err = NewPostgres(ctx, dsn)
	} else {
		store, err = NewSQLite(path)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func patternKey(kind, outcome string) string {
	return kind + "_" + outcome
}
