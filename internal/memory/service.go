// Package memory keeps the short-term ring of recent events in process and
// forwards longer-range queries to the persistent store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"prime/internal/db"
	"prime/internal/domain"
)

const (
	DefaultShortTermSize     = 20
	DefaultKindWindow        = 30 * 24 * time.Hour
	DefaultPatternWindow     = 7 * 24 * time.Hour
	DefaultEmotionalMinimum  = 0.7
	DefaultEmotionalMaxItems = 50
	// long-range query results are reused for this long unless a new event
	// is stored first
	DefaultQueryTTL = 30 * time.Second
)

var ErrNoStore = errors.New("memory store is not configured")

type Service struct {
	store   db.Store
	size    int
	now     func() time.Time
	queries *cache.Cache

	// gen counts stores; a query result is cached only if no store ran
	// while it was in flight.
	cacheMu sync.Mutex
	gen     uint64

	mu   sync.Mutex
	ring []domain.MemoryEvent
}

// NewService builds the service. A nil store keeps memory in process only.
func NewService(store db.Store, shortTermSize int, now func() time.Time) *Service {
	if shortTermSize <= 0 {
		shortTermSize = DefaultShortTermSize
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   store,
		size:    shortTermSize,
		now:     now,
		queries: cache.New(DefaultQueryTTL, 2*DefaultQueryTTL),
		ring:    make([]domain.MemoryEvent, 0, shortTermSize),
	}
}

// Warm refills the short-term ring from the newest persisted events.
func (s *Service) Warm(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	events, err := s.store.LatestEvents(ctx, s.size)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring = s.ring[:0]
	for _, ev := range events {
		s.push(ev)
	}
	return nil
}

// Store appends to the ring first, so a failing store still leaves the
// event visible to RecentEvents.
func (s *Service) Store(ctx context.Context, ev domain.MemoryEvent) error {
	if ev.At.IsZero() {
		ev.At = s.now()
	}

	s.mu.Lock()
	s.push(ev)
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	_, err := s.store.InsertEvent(ctx, ev)
	s.cacheMu.Lock()
	s.gen++
	s.queries.Flush()
	s.cacheMu.Unlock()
	return err
}

// RecentEvents returns up to limit short-term events, most recent last.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]domain.RecentEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.ring) {
		limit = len(s.ring)
	}
	out := make([]domain.RecentEvent, 0, limit)
	for _, ev := range s.ring[len(s.ring)-limit:] {
		out = append(out, domain.RecentEvent{Summary: ev.Event, Weight: ev.Weight})
	}
	return out, nil
}

// ShortTerm returns a copy of the ring, oldest first.
func (s *Service) ShortTerm() []domain.MemoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MemoryEvent, len(s.ring))
	copy(out, s.ring)
	return out
}

func (s *Service) EventsByKind(ctx context.Context, kind string, window time.Duration) ([]domain.MemoryEvent, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if window <= 0 {
		window = DefaultKindWindow
	}
	return s.store.EventsByKind(ctx, kind, s.now().Add(-window))
}

func (s *Service) EmotionalMemories(ctx context.Context, minWeight float64) ([]domain.MemoryEvent, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if minWeight <= 0 {
		minWeight = DefaultEmotionalMinimum
	}
	key := fmt.Sprintf("emotional:%.3f", minWeight)
	if v, ok := s.queries.Get(key); ok {
		return append([]domain.MemoryEvent(nil), v.([]domain.MemoryEvent)...), nil
	}
	gen := s.generation()
	events, err := s.store.EmotionalEvents(ctx, minWeight, DefaultEmotionalMaxItems)
	if err != nil {
		return nil, err
	}
	s.remember(key, gen, events)
	return append([]domain.MemoryEvent(nil), events...), nil
}

func (s *Service) Patterns(ctx context.Context, window time.Duration) (map[string]int, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if window <= 0 {
		window = DefaultPatternWindow
	}
	key := "patterns:" + window.String()
	if v, ok := s.queries.Get(key); ok {
		return maps.Clone(v.(map[string]int)), nil
	}
	gen := s.generation()
	patterns, err := s.store.Patterns(ctx, s.now().Add(-window))
	if err != nil {
		return nil, err
	}
	s.remember(key, gen, patterns)
	return maps.Clone(patterns), nil
}

func (s *Service) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

func (s *Service) remember(key string, gen uint64, v any) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen == s.gen {
		s.queries.SetDefault(key, v)
	}
}

// push must be called with mu held.
func (s *Service) push(ev domain.MemoryEvent) {
	if len(s.ring) == s.size {
		copy(s.ring, s.ring[1:])
		s.ring = s.ring[:len(s.ring)-1]
	}
	s.ring = append(s.ring, ev)
}
