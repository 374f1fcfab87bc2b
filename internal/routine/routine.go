// Package routine runs the slow background rhythms that sit outside the tick
// loop: loneliness after long silences, fatigue after a talkative hour, and a
// nightly look back over memory.
package routine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"prime/internal/domain"
	"prime/internal/memory"
)

type Emotion interface {
	ReactToLongSilence(minutes float64)
	DepleteEnergy()
}

type Interactions interface {
	LastInteraction() time.Time
}

type Memory interface {
	EventsByKind(ctx context.Context, kind string, window time.Duration) ([]domain.MemoryEvent, error)
	EmotionalMemories(ctx context.Context, minWeight float64) ([]domain.MemoryEvent, error)
	Patterns(ctx context.Context, window time.Duration) (map[string]int, error)
}

type Config struct {
	SilenceCheckEvery time.Duration
	FatigueCheckEvery time.Duration
	FatigueWindow     time.Duration
	// FatigueUtterances is how many utterances within FatigueWindow tire the agent.
	FatigueUtterances int
	DigestHour        uint
	Location          *time.Location
	Now               func() time.Time
}

func DefaultConfig() Config {
	return Config{
		SilenceCheckEvery: time.Minute,
		FatigueCheckEvery: 15 * time.Minute,
		FatigueWindow:     time.Hour,
		FatigueUtterances: 6,
		DigestHour:        3,
	}
}

type Runner struct {
	cfg          Config
	emotion      Emotion
	interactions Interactions
	memory       Memory
	logger       *slog.Logger
	scheduler    gocron.Scheduler

	mu           sync.Mutex
	silenceSince time.Time
	silenceLevel int
	lastFatigue  time.Time
}

func New(cfg Config, emotion Emotion, interactions Interactions, mem Memory, logger *slog.Logger) (*Runner, error) {
	def := DefaultConfig()
	if cfg.SilenceCheckEvery <= 0 {
		cfg.SilenceCheckEvery = def.SilenceCheckEvery
	}
	if cfg.FatigueCheckEvery <= 0 {
		cfg.FatigueCheckEvery = def.FatigueCheckEvery
	}
	if cfg.FatigueWindow <= 0 {
		cfg.FatigueWindow = def.FatigueWindow
	}
	if cfg.FatigueUtterances <= 0 {
		cfg.FatigueUtterances = def.FatigueUtterances
	}
	if cfg.DigestHour > 23 {
		return nil, fmt.Errorf("digest hour %d out of range", cfg.DigestHour)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(cfg.Location))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Runner{
		cfg:          cfg,
		emotion:      emotion,
		interactions: interactions,
		memory:       mem,
		logger:       logger,
		scheduler:    scheduler,
	}, nil
}

// Start registers the jobs and starts the scheduler. Jobs stop being
// scheduled once Stop is called; ctx bounds the memory queries they make.
func (r *Runner) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		def  gocron.JobDefinition
		task gocron.Task
	}{
		{"silence_watch", gocron.DurationJob(r.cfg.SilenceCheckEvery), gocron.NewTask(r.CheckSilence)},
		{"fatigue_check", gocron.DurationJob(r.cfg.FatigueCheckEvery), gocron.NewTask(func() { r.CheckFatigue(ctx) })},
		{
			"memory_digest",
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(r.cfg.DigestHour, 0, 0))),
			gocron.NewTask(func() { _, _ = r.Digest(ctx) }),
		},
	}
	for _, j := range jobs {
		if _, err := r.scheduler.NewJob(j.def, j.task,
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return fmt.Errorf("register %s: %w", j.name, err)
		}
	}
	r.scheduler.Start()
	r.logger.Info("routines started",
		"silence_every", r.cfg.SilenceCheckEvery,
		"fatigue_every", r.cfg.FatigueCheckEvery,
		"digest_hour", r.cfg.DigestHour,
	)
	return nil
}

func (r *Runner) Stop() error {
	return r.scheduler.Shutdown()
}

// CheckSilence raises social need once when the silence passes ten minutes
// and once more past thirty. A new interaction starts a new episode.
func (r *Runner) CheckSilence() {
	last := r.interactions.LastInteraction()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !last.Equal(r.silenceSince) {
		r.silenceSince = last
		r.silenceLevel = 0
	}
	minutes := r.cfg.Now().Sub(last).Minutes()
	level := 0
	switch {
	case minutes > 30:
		level = 2
	case minutes > 10:
		level = 1
	}
	if level <= r.silenceLevel {
		return
	}
	r.silenceLevel = level
	r.emotion.ReactToLongSilence(minutes)
	r.logger.Info("long silence", "minutes", int(minutes), "level", level)
}

// CheckFatigue drains energy when the agent spoke at least FatigueUtterances
// times within FatigueWindow. It drains at most once per window.
func (r *Runner) CheckFatigue(ctx context.Context) {
	now := r.cfg.Now()
	r.mu.Lock()
	recent := !r.lastFatigue.IsZero() && now.Sub(r.lastFatigue) < r.cfg.FatigueWindow
	r.mu.Unlock()
	if recent {
		return
	}

	events, err := r.memory.EventsByKind(ctx, "interaction", r.cfg.FatigueWindow)
	if err != nil {
		if !errors.Is(err, memory.ErrNoStore) {
			r.logger.Warn("fatigue check failed", "error", err)
		}
		return
	}
	spoken := 0
	for _, ev := range events {
		if ev.Event == "spoke" {
			spoken++
		}
	}
	if spoken < r.cfg.FatigueUtterances {
		return
	}

	r.mu.Lock()
	r.lastFatigue = now
	r.mu.Unlock()
	r.emotion.DepleteEnergy()
	r.logger.Info("talkative hour, energy drained", "utterances", spoken)
}

type Digest struct {
	Patterns        map[string]int
	Top             []string
	EmotionalEvents int
}

// Digest summarizes the last week of memory into the log.
func (r *Runner) Digest(ctx context.Context) (Digest, error) {
	patterns, err := r.memory.Patterns(ctx, memory.DefaultPatternWindow)
	if err != nil {
		r.logger.Warn("memory digest failed", "error", err)
		return Digest{}, err
	}
	emotional, err := r.memory.EmotionalMemories(ctx, memory.DefaultEmotionalMinimum)
	if err != nil {
		r.logger.Warn("memory digest failed", "error", err)
		return Digest{}, err
	}

	keys := make([]string, 0, len(patterns))
	for k := range patterns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if patterns[keys[i]] != patterns[keys[j]] {
			return patterns[keys[i]] > patterns[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > 3 {
		keys = keys[:3]
	}

	d := Digest{Patterns: patterns, Top: keys, EmotionalEvents: len(emotional)}
	r.logger.Info("memory digest", "top_patterns", d.Top, "emotional_events", d.EmotionalEvents)
	return d, nil
}
