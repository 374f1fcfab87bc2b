// Package expression puts an already-made decision into words. It never
// changes what was decided; an empty string is a valid outcome.
package expression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"prime/internal/domain"
	"prime/internal/llm"
	"prime/internal/persona"
)

var ErrRateLimited = errors.New("expression rate limited")

var rules = []string{
	"You are NOT an assistant.",
	"You are a presence in the home.",
	"Speak little. Short sentences.",
	"Be imperfect. Sometimes leave things unfinished.",
	"Do not over-explain.",
	"Do not be predictable.",
	"You do NOT decide emotions; they are already decided.",
	"You do NOT decide initiative; you only put it into words.",
	"Be natural, like a real person.",
}

var minimalReplies = []string{"...", "Hmm...", "Ok.", "Got it."}

type Config struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	// RequestsPerMinute caps provider calls; Burst is the bucket size.
	RequestsPerMinute float64
	Burst             int

	MinimalChance   float64
	SilentFallback  float64
	CutChance       float64
	CutMinRunes     int
	DropPunctChance float64
}

func DefaultConfig() Config {
	return Config{
		Model:             "phi3",
		Temperature:       0.7,
		TopP:              0.9,
		MaxTokens:         80,
		RequestsPerMinute: 6,
		Burst:             2,
		MinimalChance:     0.3,
		SilentFallback:    0.5,
		CutChance:         0.1,
		CutMinRunes:       20,
		DropPunctChance:   0.05,
	}
}

type Input struct {
	Decision    domain.Decision
	Emotion     domain.EmotionalState
	Situation   domain.SituationalSnapshot
	Personality persona.Profile
	Recent      []domain.RecentEvent
}

type Service struct {
	provider llm.Provider
	limiter  *rate.Limiter
	cfg      Config
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService accepts a nil provider; every render then uses the minimal
// replies.
func NewService(provider llm.Provider, cfg Config, rng *rand.Rand, logger *slog.Logger) *Service {
	if cfg.Temperature <= 0 {
		cfg = mergeDefaults(cfg)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Service{
		provider: provider,
		limiter:  rate.NewLimiter(limit, burst),
		cfg:      cfg,
		logger:   logger,
		rng:      rng,
	}
}

// Render returns the utterance for in. The text is always usable; a non-nil
// error reports that the provider path failed and a fallback was used.
func (s *Service) Render(ctx context.Context, in Input) (string, error) {
	switch in.Decision.Kind {
	case domain.DecisionSilence, domain.DecisionIdle:
		if s.float() < s.cfg.MinimalChance {
			return s.minimal(), nil
		}
		return "", nil
	case domain.DecisionSpeak, domain.DecisionObserve, domain.DecisionShiftMood:
	default:
		return "", nil
	}

	if s.provider == nil {
		return s.minimal(), nil
	}
	if !s.limiter.Allow() {
		return s.minimal(), ErrRateLimited
	}

	maxTokens := s.cfg.MaxTokens
	if !in.Personality.Permits(persona.ActionSpeakALot) {
		maxTokens = max(maxTokens/2, 16)
	}
	text, err := s.provider.Complete(ctx, llm.Request{
		System:      SystemPrompt(in.Personality, in.Emotion),
		Prompt:      UserPrompt(in.Decision, in.Situation, in.Recent),
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		TopP:        s.cfg.TopP,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		s.logger.Warn("expression provider failed", "decision_id", in.Decision.ID, "error", err)
		return s.minimal(), fmt.Errorf("complete: %w", err)
	}
	return s.imperfect(strings.TrimSpace(text)), nil
}

// SystemPrompt is the fixed rule block followed by persona and mood
// constraints.
func SystemPrompt(p persona.Profile, em domain.EmotionalState) string {
	constraints := p.Constraints()
	if em.Energy < 0.3 {
		constraints = append(constraints, "You are low on energy. Say little.")
	}
	if em.Irritation > 0.5 {
		constraints = append(constraints, "You are a little irritated. Be brief.")
	}
	if em.SocialNeed > 0.7 {
		constraints = append(constraints, "You feel a need for interaction.")
	}
	return strings.Join(rules, "\n") + "\n\n" + strings.Join(constraints, "\n")
}

func UserPrompt(d domain.Decision, sit domain.SituationalSnapshot, recent []domain.RecentEvent) string {
	rationale := d.Rationale
	if rationale == "" {
		rationale = "autonomous decision"
	}
	lines := []string{"Reason: " + rationale}
	if sit.UserPresent {
		lines = append(lines, "The user is present.")
		if us := sit.Normalized().UserState; us != domain.UserStateUnknown {
			lines = append(lines, "State: "+string(us))
		}
	}
	if len(recent) > 0 {
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		lines = append(lines, "Recent context:")
		for _, ev := range recent {
			lines = append(lines, "- "+ev.Summary)
		}
	}
	lines = append(lines, "\nWrite a short, natural reply. Two sentences at most.")
	return strings.Join(lines, "\n")
}

func (s *Service) minimal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() < s.cfg.SilentFallback {
		return ""
	}
	return minimalReplies[s.rng.Intn(len(minimalReplies))]
}

// imperfect sometimes trails off mid-sentence and otherwise sometimes drops
// the final punctuation mark. A trailing ellipsis is never shortened.
func (s *Service) imperfect(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := utf8.RuneCountInString(text)
	cut := false
	if s.rng.Float64() < s.cfg.CutChance && n > s.cfg.CutMinRunes {
		lo, hi := n/2, n-5
		at := lo + s.rng.Intn(hi-lo+1)
		text = string([]rune(text)[:at]) + "..."
		cut = true
	}
	if s.rng.Float64() < s.cfg.DropPunctChance && !cut && strings.ContainsAny(lastByte(text), ".!?") {
		text = text[:len(text)-1]
	}
	return text
}

func lastByte(text string) string {
	if text == "" {
		return ""
	}
	return text[len(text)-1:]
}

func (s *Service) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func mergeDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.Model != "" {
		d.Model = cfg.Model
	}
	if cfg.MaxTokens > 0 {
		d.MaxTokens = cfg.MaxTokens
	}
	if cfg.RequestsPerMinute > 0 {
		d.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		d.Burst = cfg.Burst
	}
	return d
}
