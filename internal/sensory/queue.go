// Package sensory moves readings from sensor nodes into situational
// awareness through a bounded queue, so slow or bursty sensors never block
// the tick loop.
package sensory

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"prime/internal/domain"
	"prime/internal/metrics"
)

const DefaultQueueSize = 64

// Applier is the situational view that receives updates.
type Applier interface {
	Apply(update domain.SensoryUpdate) bool
}

type Queue struct {
	ch      chan domain.SensoryUpdate
	dropped atomic.Int64
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewQueue(capacity int, m *metrics.Metrics) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Queue{
		ch:      make(chan domain.SensoryUpdate, capacity),
		metrics: m,
		now:     time.Now,
	}
}

// Offer enqueues without blocking. It reports false when the queue is full
// and the update was dropped.
func (q *Queue) Offer(update domain.SensoryUpdate) bool {
	if update.At.IsZero() {
		update.At = q.now()
	}
	select {
	case q.ch <- update:
		return true
	default:
		q.dropped.Add(1)
		q.metrics.SensoryDrop()
		return false
	}
}

func (q *Queue) Dropped() int64 { return q.dropped.Load() }

func (q *Queue) Len() int { return len(q.ch) }

// Run drains the queue into target until ctx is done. registry may be nil.
func (q *Queue) Run(ctx context.Context, target Applier, registry *Registry, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-q.ch:
			ok := target.Apply(update)
			q.metrics.SensoryApplied(update.Field, ok)
			if registry != nil {
				registry.Observe(update)
				q.metrics.SetSensorsOnline(len(registry.ListOnline()))
			}
			if !ok {
				logger.Debug("sensory update ignored", "field", update.Field, "value", update.Value, "source", update.Source)
			}
		}
	}
}
