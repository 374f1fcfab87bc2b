package routine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"prime/internal/domain"
	"prime/internal/memory"
)

type fakeEmotion struct {
	silences []float64
	depleted int
}

func (f *fakeEmotion) ReactToLongSilence(minutes float64) { f.silences = append(f.silences, minutes) }
func (f *fakeEmotion) DepleteEnergy()                     { f.depleted++ }

type fakeInteractions struct{ last time.Time }

func (f *fakeInteractions) LastInteraction() time.Time { return f.last }

type fakeMemory struct {
	events    []domain.MemoryEvent
	patterns  map[string]int
	emotional []domain.MemoryEvent
	err       error
}

func (f *fakeMemory) EventsByKind(context.Context, string, time.Duration) ([]domain.MemoryEvent, error) {
	return f.events, f.err
}

func (f *fakeMemory) EmotionalMemories(context.Context, float64) ([]domain.MemoryEvent, error) {
	return f.emotional, f.err
}

func (f *fakeMemory) Patterns(context.Context, time.Duration) (map[string]int, error) {
	return f.patterns, f.err
}

func newRunner(t *testing.T, now *time.Time, em *fakeEmotion, in *fakeInteractions, mem *fakeMemory) *Runner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return *now }
	r, err := New(cfg, em, in, mem, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestCheckSilenceFiresOncePerLevel(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start
	em := &fakeEmotion{}
	in := &fakeInteractions{last: start}
	r := newRunner(t, &now, em, in, &fakeMemory{})

	steps := []struct {
		after time.Duration
		calls int
	}{
		{5 * time.Minute, 0},
		{11 * time.Minute, 1},
		{20 * time.Minute, 1},
		{31 * time.Minute, 2},
		{90 * time.Minute, 2},
	}
	for _, s := range steps {
		now = start.Add(s.after)
		r.CheckSilence()
		if len(em.silences) != s.calls {
			t.Fatalf("after %s: calls=%d want %d", s.after, len(em.silences), s.calls)
		}
	}
	if em.silences[1] <= 30 {
		t.Fatalf("second reaction should carry the long duration, got %.1f", em.silences[1])
	}

	// a fresh interaction starts a new episode
	in.last = now
	now = now.Add(12 * time.Minute)
	r.CheckSilence()
	if len(em.silences) != 3 {
		t.Fatalf("new episode should react again, calls=%d", len(em.silences))
	}
}

func TestCheckFatigue(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	em := &fakeEmotion{}
	mem := &fakeMemory{}
	r := newRunner(t, &now, em, &fakeInteractions{}, mem)

	for i := 0; i < 5; i++ {
		mem.events = append(mem.events, domain.MemoryEvent{Kind: "interaction", Event: "spoke"})
	}
	mem.events = append(mem.events, domain.MemoryEvent{Kind: "interaction", Event: "greeted"})
	r.CheckFatigue(context.Background())
	if em.depleted != 0 {
		t.Fatalf("five utterances should not tire")
	}

	mem.events = append(mem.events, domain.MemoryEvent{Kind: "interaction", Event: "spoke"})
	r.CheckFatigue(context.Background())
	if em.depleted != 1 {
		t.Fatalf("depleted=%d want 1", em.depleted)
	}

	now = now.Add(30 * time.Minute)
	r.CheckFatigue(context.Background())
	if em.depleted != 1 {
		t.Fatalf("fatigue should apply once per window")
	}
	now = now.Add(31 * time.Minute)
	r.CheckFatigue(context.Background())
	if em.depleted != 2 {
		t.Fatalf("depleted=%d want 2 after the window", em.depleted)
	}
}

func TestCheckFatigueWithoutStore(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	em := &fakeEmotion{}
	r := newRunner(t, &now, em, &fakeInteractions{}, &fakeMemory{err: memory.ErrNoStore})
	r.CheckFatigue(context.Background())
	if em.depleted != 0 {
		t.Fatalf("no store means no fatigue")
	}
}

func TestDigest(t *testing.T) {
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	mem := &fakeMemory{
		patterns: map[string]int{
			"interaction_accepted": 9,
			"interaction_ignored":  2,
			"presence_":            9,
			"interaction_negative": 1,
		},
		emotional: make([]domain.MemoryEvent, 4),
	}
	r := newRunner(t, &now, &fakeEmotion{}, &fakeInteractions{}, mem)

	d, err := r.Digest(context.Background())
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	want := []string{"interaction_accepted", "presence_", "interaction_ignored"}
	if len(d.Top) != 3 {
		t.Fatalf("top=%v", d.Top)
	}
	for i := range want {
		if d.Top[i] != want[i] {
			t.Fatalf("top=%v want %v", d.Top, want)
		}
	}
	if d.EmotionalEvents != 4 {
		t.Fatalf("emotional=%d", d.EmotionalEvents)
	}

	mem.err = errors.New("locked")
	if _, err := r.Digest(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewRejectsBadDigestHour(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DigestHour = 24
	if _, err := New(cfg, &fakeEmotion{}, &fakeInteractions{}, &fakeMemory{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStartAndStop(t *testing.T) {
	now := time.Now()
	r := newRunner(t, &now, &fakeEmotion{}, &fakeInteractions{last: now}, &fakeMemory{})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
