package emotion

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"prime/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// quiet is a situation that triggers no reaction branch at all.
var quiet = domain.SituationalSnapshot{RecentInteraction: true}

func TestReactToInteractionPositiveScenario(t *testing.T) {
	engine := NewEngineWithState(DefaultConfig(), domain.EmotionalState{
		Energy:     0.5,
		Curiosity:  0.5,
		SocialNeed: 0.5,
		Attachment: 0.3,
	})

	engine.ReactToInteraction(domain.InteractionPositive)
	got := engine.Snapshot()

	assertNear(t, got.Attachment, 0.4)
	assertNear(t, got.Energy, 0.55)
	assertNear(t, got.SocialNeed, 0.3)
	assertNear(t, got.Curiosity, 0.5)
	assertNear(t, got.Irritation, 0)
}

func TestReactToInteractionDeltas(t *testing.T) {
	start := domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.5, Irritation: 0.2, Attachment: 0.3}
	tests := []struct {
		name string
		kind domain.InteractionKind
		want domain.EmotionalState
	}{
		{
			name: "positive",
			kind: domain.InteractionPositive,
			want: domain.EmotionalState{Energy: 0.55, Curiosity: 0.5, SocialNeed: 0.3, Irritation: 0.2, Attachment: 0.4},
		},
		{
			name: "negative",
			kind: domain.InteractionNegative,
			want: domain.EmotionalState{Energy: 0.45, Curiosity: 0.5, SocialNeed: 0.5, Irritation: 0.3, Attachment: 0.3},
		},
		{
			name: "ignored",
			kind: domain.InteractionIgnored,
			want: domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.6, Irritation: 0.25, Attachment: 0.3},
		},
		{
			name: "normal",
			kind: domain.InteractionNormal,
			want: domain.EmotionalState{Energy: 0.5, Curiosity: 0.52, SocialNeed: 0.4, Irritation: 0.2, Attachment: 0.3},
		},
		{
			name: "unknown kind is ignored",
			kind: domain.InteractionKind("shrug"),
			want: start,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngineWithState(DefaultConfig(), start)
			engine.ReactToInteraction(tt.kind)
			assertState(t, engine.Snapshot(), tt.want)
		})
	}
}

func TestReactToInteractionClampsAtBounds(t *testing.T) {
	engine := NewEngineWithState(DefaultConfig(), domain.EmotionalState{Energy: 0.98, SocialNeed: 0.05, Attachment: 0.95})
	engine.ReactToInteraction(domain.InteractionPositive)
	got := engine.Snapshot()
	if got.Energy != 1 || got.SocialNeed != 0 || got.Attachment != 1 {
		t.Fatalf("expected clamped state, got %+v", got)
	}
}

func TestAdvanceEnergyDecaysTowardSetpointFromAbove(t *testing.T) {
	engine := NewEngineWithState(DefaultConfig(), domain.EmotionalState{Energy: 0.9, Curiosity: 0.5, SocialNeed: 0.5})

	prev := engine.Snapshot().Energy
	for i := 0; i < 2000; i++ {
		engine.Advance(quiet)
		cur := engine.Snapshot().Energy
		if cur < 0.5 {
			t.Fatalf("tick %d: energy dropped below setpoint: %.6f", i, cur)
		}
		if prev > 0.5 && cur >= prev {
			t.Fatalf("tick %d: energy did not decrease: prev=%.6f cur=%.6f", i, prev, cur)
		}
		prev = cur
	}
	assertNear(t, prev, 0.5)
}

func TestAdvanceEnergyRecoversTowardSetpointFromBelow(t *testing.T) {
	engine := NewEngineWithState(DefaultConfig(), domain.EmotionalState{Energy: 0.1, Curiosity: 0.5, SocialNeed: 0.5})

	prev := engine.Snapshot().Energy
	for i := 0; i < 1000; i++ {
		engine.Advance(quiet)
		cur := engine.Snapshot().Energy
		if cur > 0.5 {
			t.Fatalf("tick %d: energy rose above setpoint: %.6f", i, cur)
		}
		if prev < 0.5 && cur <= prev {
			t.Fatalf("tick %d: energy did not increase: prev=%.6f cur=%.6f", i, prev, cur)
		}
		prev = cur
	}
	assertNear(t, prev, 0.5)
}

func TestAdvanceDecayTerms(t *testing.T) {
	engine := NewEngineWithState(DefaultConfig(), domain.EmotionalState{
		Energy:     0.4,
		Curiosity:  0.8,
		SocialNeed: 0.5,
		Irritation: 0.5,
		Attachment: 0.6,
	})

	engine.Advance(quiet)
	got := engine.Snapshot()

	assertNear(t, got.Energy, 0.4005)
	assertNear(t, got.Curiosity, 0.799)
	assertNear(t, got.SocialNeed, 0.5)
	assertNear(t, got.Irritation, 0.498)
	assertNear(t, got.Attachment, 0.5999)
}

func TestAdvanceSituationalReactions(t *testing.T) {
	tests := []struct {
		name      string
		silence   time.Duration
		situation domain.SituationalSnapshot
		want      domain.EmotionalState
	}{
		{
			name:      "long silence",
			silence:   400 * time.Second,
			situation: domain.SituationalSnapshot{},
			want:      domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.503, Attachment: 0.2},
		},
		{
			name:      "short silence",
			silence:   90 * time.Second,
			situation: domain.SituationalSnapshot{},
			want:      domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.501, Attachment: 0.2},
		},
		{
			name:      "no silence yet",
			silence:   30 * time.Second,
			situation: domain.SituationalSnapshot{},
			want:      domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.5, Attachment: 0.2},
		},
		{
			name:      "present user without interaction",
			silence:   90 * time.Second,
			situation: domain.SituationalSnapshot{UserPresent: true},
			want:      domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.503, Attachment: 0.2},
		},
		{
			name:      "recent interaction blocks social gain",
			silence:   400 * time.Second,
			situation: domain.SituationalSnapshot{UserPresent: true, RecentInteraction: true},
			want:      domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.5, Attachment: 0.2},
		},
		{
			name:      "tired user drains energy",
			silence:   30 * time.Second,
			situation: domain.SituationalSnapshot{UserState: domain.UserStateTired},
			want:      domain.EmotionalState{Energy: 0.4995, Curiosity: 0.5, SocialNeed: 0.5, Attachment: 0.2},
		},
		{
			name:      "noisy room irritates",
			silence:   30 * time.Second,
			situation: domain.SituationalSnapshot{Environment: domain.EnvironmentNoisy},
			want:      domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.5, Irritation: 0.0015, Attachment: 0.2},
		},
		{
			name:    "unknown labels are neutral",
			silence: 30 * time.Second,
			situation: domain.SituationalSnapshot{
				Light:       domain.LightLevel("dim"),
				UserState:   domain.UserState("sleepy"),
				Environment: domain.Environment("loud"),
			},
			want: domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.5, Attachment: 0.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Silence = FixedSilence(tt.silence)
			engine := NewEngineWithState(cfg, domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.5, Attachment: 0.2})
			engine.Advance(tt.situation)
			assertState(t, engine.Snapshot(), tt.want)
		})
	}
}

func TestMeasuredSilenceTracksLastInteraction(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.Silence = MeasuredSilence{}
	cfg.Now = clock.Now
	engine := NewEngineWithState(cfg, domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.5})

	clock.Advance(30 * time.Second)
	engine.Advance(domain.SituationalSnapshot{})
	assertNear(t, engine.Snapshot().SocialNeed, 0.5)

	clock.Advance(60 * time.Second)
	engine.Advance(domain.SituationalSnapshot{})
	assertNear(t, engine.Snapshot().SocialNeed, 0.501)

	clock.Advance(300 * time.Second)
	engine.Advance(domain.SituationalSnapshot{})
	assertNear(t, engine.Snapshot().SocialNeed, 0.504)

	engine.ReactToInteraction(domain.InteractionNormal)
	clock.Advance(10 * time.Second)
	engine.Advance(domain.SituationalSnapshot{})
	assertNear(t, engine.Snapshot().SocialNeed, 0.404)
	if got := engine.Snapshot().UpdatedAt; !got.Equal(clock.Now()) {
		t.Fatalf("updated_at=%s want %s", got, clock.Now())
	}
}

func TestClampInvariantUnderRandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	engine := NewEngine(DefaultConfig())
	kinds := []domain.InteractionKind{
		domain.InteractionPositive,
		domain.InteractionNegative,
		domain.InteractionIgnored,
		domain.InteractionNormal,
	}

	for i := 0; i < 20000; i++ {
		switch rng.Intn(4) {
		case 0:
			engine.ReactToInteraction(kinds[rng.Intn(len(kinds))])
		case 1:
			engine.ReactToLongSilence(rng.Float64() * 60)
		case 2:
			engine.DepleteEnergy()
		default:
			engine.Advance(domain.SituationalSnapshot{
				UserPresent:       rng.Intn(2) == 0,
				RecentInteraction: rng.Intn(2) == 0,
				UserState:         domain.UserStateTired,
				Environment:       domain.EnvironmentNoisy,
			})
		}
		assertBounded(t, engine.Snapshot())
	}
}

func TestReactToLongSilence(t *testing.T) {
	tests := []struct {
		minutes       float64
		wantSocial    float64
		wantCuriosity float64
	}{
		{minutes: 5, wantSocial: 0.4, wantCuriosity: 0.5},
		{minutes: 15, wantSocial: 0.5, wantCuriosity: 0.5},
		{minutes: 45, wantSocial: 0.7, wantCuriosity: 0.6},
	}
	for _, tt := range tests {
		engine := NewEngineWithState(DefaultConfig(), domain.EmotionalState{Energy: 0.5, Curiosity: 0.5, SocialNeed: 0.4})
		engine.ReactToLongSilence(tt.minutes)
		got := engine.Snapshot()
		assertNear(t, got.SocialNeed, tt.wantSocial)
		assertNear(t, got.Curiosity, tt.wantCuriosity)
	}
}

func TestDepleteEnergyNeverNegative(t *testing.T) {
	engine := NewEngineWithState(DefaultConfig(), domain.EmotionalState{Energy: 0.15})
	engine.DepleteEnergy()
	assertNear(t, engine.Snapshot().Energy, 0.05)
	engine.DepleteEnergy()
	if got := engine.Snapshot().Energy; got != 0 {
		t.Fatalf("energy=%.4f want 0", got)
	}
}

func TestSnapshotConsistentUnderConcurrentWriters(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if w%2 == 0 {
					engine.Advance(domain.SituationalSnapshot{UserPresent: true, Environment: domain.EnvironmentNoisy})
				} else {
					engine.ReactToInteraction(domain.InteractionIgnored)
				}
			}
		}(w)
	}

	for i := 0; i < 2000; i++ {
		assertBounded(t, engine.Snapshot())
	}
	close(stop)
	wg.Wait()
}

func TestSilenceFromMode(t *testing.T) {
	src, err := SilenceFromMode("fixed", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := src.Silence(time.Time{}, time.Time{}); got != DefaultSilence {
		t.Fatalf("fixed silence=%s want %s", got, DefaultSilence)
	}
	if _, err := SilenceFromMode("Measured", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := SilenceFromMode("guess", 0); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func assertState(t *testing.T, got, want domain.EmotionalState) {
	t.Helper()
	assertNear(t, got.Energy, want.Energy)
	assertNear(t, got.Curiosity, want.Curiosity)
	assertNear(t, got.SocialNeed, want.SocialNeed)
	assertNear(t, got.Irritation, want.Irritation)
	assertNear(t, got.Attachment, want.Attachment)
}

func assertBounded(t *testing.T, s domain.EmotionalState) {
	t.Helper()
	for name, v := range map[string]float64{
		"energy":      s.Energy,
		"curiosity":   s.Curiosity,
		"social_need": s.SocialNeed,
		"irritation":  s.Irritation,
		"attachment":  s.Attachment,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Fatalf("%s out of range: %f", name, v)
		}
	}
}

func assertNear(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Fatalf("value mismatch: got=%.6f want=%.6f", got, want)
	}
}
