// Package orchestrator runs the presence loop: observe, feel, decide, and
// only then, maybe, speak.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"prime/internal/decision"
	"prime/internal/domain"
	"prime/internal/emotion"
	"prime/internal/expression"
	"prime/internal/metrics"
	"prime/internal/persona"
	"prime/internal/sensory"
	"prime/internal/situation"
)

var ErrUnknownInteraction = errors.New("unknown interaction kind")

const (
	summaryEvery      = 10
	recentEventsLimit = 5
)

type Memory interface {
	RecentEvents(ctx context.Context, limit int) ([]domain.RecentEvent, error)
	Store(ctx context.Context, ev domain.MemoryEvent) error
}

type Renderer interface {
	Render(ctx context.Context, in expression.Input) (string, error)
}

// Publisher mirrors decisions and utterances to listeners. Failures never
// stop the loop.
type Publisher interface {
	PublishDecision(ctx context.Context, payload domain.DecisionPayload) error
	PublishUtterance(ctx context.Context, text string) error
}

type Config struct {
	MemoryTimeout     time.Duration
	ExpressionTimeout time.Duration
}

type Service struct {
	cfg         Config
	emotion     *emotion.Engine
	decision    *decision.Engine
	situation   *situation.Awareness
	personality persona.Profile
	memory      Memory
	renderer    Renderer
	publisher   Publisher
	sensors     *sensory.Registry
	metrics     *metrics.Metrics
	logger      *slog.Logger

	running   atomic.Bool
	tickCount atomic.Int64

	mu            sync.Mutex
	lastDecision  *domain.Decision
	lastUtterance string
}

// Deps groups the collaborators. Emotion, Decision and Situation are
// required; the rest may be nil.
type Deps struct {
	Emotion     *emotion.Engine
	Decision    *decision.Engine
	Situation   *situation.Awareness
	Personality persona.Profile
	Memory      Memory
	Renderer    Renderer
	Publisher   Publisher
	Sensors     *sensory.Registry
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

func New(cfg Config, deps Deps) *Service {
	if cfg.MemoryTimeout <= 0 {
		cfg.MemoryTimeout = 2 * time.Second
	}
	if cfg.ExpressionTimeout <= 0 {
		cfg.ExpressionTimeout = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:         cfg,
		emotion:     deps.Emotion,
		decision:    deps.Decision,
		situation:   deps.Situation,
		personality: deps.Personality,
		memory:      deps.Memory,
		renderer:    deps.Renderer,
		publisher:   deps.Publisher,
		sensors:     deps.Sensors,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// Tick runs one full cycle and returns the decision it made.
func (s *Service) Tick(ctx context.Context) domain.Decision {
	start := time.Now()

	s.situation.Tick()
	snapshot := s.situation.Snapshot()
	s.emotion.Advance(snapshot)
	state := s.emotion.Snapshot()

	recent := s.recentEvents(ctx)
	d := s.decision.Decide(state, snapshot, s.personality.PersonalityProfile, recent)

	count := s.tickCount.Add(1)
	s.mu.Lock()
	s.lastDecision = &d
	s.mu.Unlock()
	s.metrics.ObserveDecision(d)
	s.metrics.SetDrives(state)

	utterance := s.execute(ctx, d, state, snapshot, recent)
	s.publish(ctx, d, state, count, utterance)

	if count%summaryEvery == 0 {
		s.logger.Debug("tick summary",
			"tick", count,
			"decision", d.Kind,
			"intensity", d.Intensity,
			"energy", state.Energy,
			"social_need", state.SocialNeed,
			"curiosity", state.Curiosity,
			"irritation", state.Irritation,
			"user_present", snapshot.UserPresent,
		)
	}
	s.metrics.ObserveTick(time.Since(start))
	return d
}

func (s *Service) recentEvents(ctx context.Context) []domain.RecentEvent {
	if s.memory == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MemoryTimeout)
	defer cancel()
	recent, err := s.memory.RecentEvents(ctx, recentEventsLimit)
	if err != nil {
		s.metrics.CollaboratorFailed("memory")
		s.logger.Warn("load recent events failed", "error", err)
		return nil
	}
	return recent
}

func (s *Service) execute(
	ctx context.Context,
	d domain.Decision,
	state domain.EmotionalState,
	snapshot domain.SituationalSnapshot,
	recent []domain.RecentEvent,
) string {
	if d.Kind != domain.DecisionSpeak {
		s.logger.Debug("decision without speech", "decision", d.Kind, "intensity", d.Intensity, "rationale", d.Rationale)
		return ""
	}
	if s.renderer == nil {
		return ""
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.ExpressionTimeout)
	text, err := s.renderer.Render(rctx, expression.Input{
		Decision:    d,
		Emotion:     state,
		Situation:   snapshot,
		Personality: s.personality,
		Recent:      recent,
	})
	cancel()
	if err != nil {
		s.metrics.CollaboratorFailed("expression")
		s.logger.Warn("render utterance failed, using fallback", "decision_id", d.ID, "error", err)
	}
	if text == "" {
		return ""
	}

	s.logger.Info("prime speaks", "text", text, "decision_id", d.ID, "intensity", d.Intensity)
	s.situation.MarkInteraction(true)
	s.mu.Lock()
	s.lastUtterance = text
	s.mu.Unlock()

	if s.memory != nil {
		mctx, cancel := context.WithTimeout(ctx, s.cfg.MemoryTimeout)
		err := s.memory.Store(mctx, domain.MemoryEvent{
			Kind:     "interaction",
			Event:    "spoke",
			Response: text,
			Outcome:  "accepted",
			Weight:   d.Intensity,
			Context: map[string]any{
				"decision_id": d.ID,
				"rationale":   d.Rationale,
				"clock":       snapshot.Clock,
			},
		})
		cancel()
		if err != nil {
			s.metrics.CollaboratorFailed("memory")
			s.logger.Warn("store memory event failed", "error", err)
		}
	}
	s.emotion.ReactToInteraction(domain.InteractionNormal)
	return text
}

func (s *Service) publish(ctx context.Context, d domain.Decision, state domain.EmotionalState, count int64, utterance string) {
	if s.publisher == nil {
		return
	}
	payload := domain.DecisionPayload{
		Decision:  d,
		Emotion:   state,
		TickCount: count,
		Utterance: utterance,
		TS:        d.DecidedAt.UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishDecision(ctx, payload); err != nil {
		s.metrics.CollaboratorFailed("publisher")
		s.logger.Debug("publish decision failed", "error", err)
	}
	if utterance == "" {
		return
	}
	if err := s.publisher.PublishUtterance(ctx, utterance); err != nil {
		s.metrics.CollaboratorFailed("publisher")
		s.logger.Debug("publish utterance failed", "error", err)
	}
}

// RegisterInteraction records an interaction reported from outside the loop.
func (s *Service) RegisterInteraction(kind domain.InteractionKind) error {
	if !kind.Valid() {
		return ErrUnknownInteraction
	}
	s.emotion.ReactToInteraction(kind)
	s.situation.MarkInteraction(true)
	s.logger.Info("interaction registered", "kind", kind)
	return nil
}

type Status struct {
	Running       bool                       `json:"running"`
	TickCount     int64                      `json:"tick_count"`
	Situation     domain.SituationalSnapshot `json:"situational"`
	Emotion       domain.EmotionalState      `json:"emotional"`
	Personality   domain.PersonalityProfile  `json:"personality"`
	LastDecision  *domain.Decision           `json:"last_decision,omitempty"`
	LastUtterance string                     `json:"last_utterance,omitempty"`
	DecisionFloor float64                    `json:"decision_floor"`
	Sensors       []sensory.Node             `json:"sensors"`
}

func (s *Service) Status() Status {
	st := Status{
		Running:     s.running.Load(),
		TickCount:   s.tickCount.Load(),
		Situation:   s.situation.Snapshot(),
		Emotion:     s.emotion.Snapshot(),
		Personality: s.personality.PersonalityProfile,
		Sensors:     []sensory.Node{},
	}
	if s.decision != nil {
		st.DecisionFloor = s.decision.Floor()
	}
	s.mu.Lock()
	if s.lastDecision != nil {
		d := *s.lastDecision
		st.LastDecision = &d
	}
	st.LastUtterance = s.lastUtterance
	s.mu.Unlock()
	if s.sensors != nil {
		st.Sensors = s.sensors.ListOnline()
	}
	return st
}

func (s *Service) Running() bool {
	return s.running.Load()
}
