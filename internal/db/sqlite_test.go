package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"prime/internal/domain"
)

func tempStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "prime.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func seed(t *testing.T, s Store, events ...domain.MemoryEvent) {
	t.Helper()
	for _, ev := range events {
		if _, err := s.InsertEvent(context.Background(), ev); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}
}

func TestSQLiteInsertAndLatest(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	id, err := s.InsertEvent(ctx, domain.MemoryEvent{
		At:       base,
		Kind:     "interaction",
		Event:    "spoke",
		Response: "Morning.",
		Outcome:  "accepted",
		Weight:   0.8,
		Context:  map[string]any{"user_present": true},
	})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}
	seed(t, s,
		domain.MemoryEvent{At: base.Add(time.Minute), Kind: "presence", Event: "arrived", Weight: 0.4},
		domain.MemoryEvent{At: base.Add(2 * time.Minute), Kind: "presence", Event: "left", Weight: 0.3},
	)

	got, err := s.LatestEvents(ctx, 2)
	if err != nil {
		t.Fatalf("LatestEvents: %v", err)
	}
	if len(got) != 2 || got[0].Event != "arrived" || got[1].Event != "left" {
		t.Fatalf("unexpected latest events: %+v", got)
	}

	all, err := s.LatestEvents(ctx, 10)
	if err != nil {
		t.Fatalf("LatestEvents: %v", err)
	}
	first := all[0]
	if !first.At.Equal(base) || first.Response != "Morning." || first.Context["user_present"] != true {
		t.Fatalf("round trip mismatch: %+v", first)
	}
	if all[1].Context != nil {
		t.Fatalf("expected nil context for empty map, got %v", all[1].Context)
	}
}

func TestSQLiteEventsByKind(t *testing.T) {
	s := tempStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seed(t, s,
		domain.MemoryEvent{At: base.AddDate(0, 0, -40), Kind: "interaction", Event: "old"},
		domain.MemoryEvent{At: base.Add(-time.Hour), Kind: "interaction", Event: "earlier"},
		domain.MemoryEvent{At: base, Kind: "interaction", Event: "now"},
		domain.MemoryEvent{At: base, Kind: "presence", Event: "other"},
	)

	got, err := s.EventsByKind(context.Background(), "interaction", base.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("EventsByKind: %v", err)
	}
	if len(got) != 2 || got[0].Event != "now" || got[1].Event != "earlier" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestSQLiteEmotionalEvents(t *testing.T) {
	s := tempStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seed(t, s,
		domain.MemoryEvent{At: base, Kind: "emotional", Event: "mild", Weight: 0.5},
		domain.MemoryEvent{At: base, Kind: "emotional", Event: "strong", Weight: 0.9},
		domain.MemoryEvent{At: base.Add(time.Second), Kind: "emotional", Event: "edge", Weight: 0.7},
	)

	got, err := s.EmotionalEvents(context.Background(), 0.7, 50)
	if err != nil {
		t.Fatalf("EmotionalEvents: %v", err)
	}
	if len(got) != 2 || got[0].Event != "strong" || got[1].Event != "edge" {
		t.Fatalf("unexpected events: %+v", got)
	}

	got, err = s.EmotionalEvents(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("EmotionalEvents: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("limit not applied: %+v", got)
	}
}

func TestSQLitePatterns(t *testing.T) {
	s := tempStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seed(t, s,
		domain.MemoryEvent{At: base, Kind: "interaction", Outcome: "accepted", Event: "a"},
		domain.MemoryEvent{At: base, Kind: "interaction", Outcome: "accepted", Event: "b"},
		domain.MemoryEvent{At: base, Kind: "interaction", Outcome: "ignored", Event: "c"},
		domain.MemoryEvent{At: base.AddDate(0, 0, -10), Kind: "interaction", Outcome: "ignored", Event: "stale"},
	)

	got, err := s.Patterns(context.Background(), base.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if got["interaction_accepted"] != 2 || got["interaction_ignored"] != 1 || len(got) != 2 {
		t.Fatalf("unexpected patterns: %v", got)
	}
}

func TestOpenFallsBackToSQLite(t *testing.T) {
	store, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "prime.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	if _, err := store.InsertEvent(context.Background(), domain.MemoryEvent{Kind: "presence", Event: "boot"}); err != nil {
		t.Fatalf("InsertEvent after Open: %v", err)
	}
}
