// Package decision turns the drive vector, the situation and the personality
// into exactly one action per tick. No I/O happens here.
package decision

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"prime/internal/domain"
)

const (
	DefaultFloor  = 0.3
	DefaultJitter = 0.2
)

type Config struct {
	// Floor forces Idle when the winning score is below it.
	Floor float64
	// Jitter is the full width of the perturbation band around each score.
	Jitter float64
	Now    func() time.Time
}

func DefaultConfig() Config {
	return Config{Floor: DefaultFloor, Jitter: DefaultJitter}
}

var rationales = map[domain.DecisionKind][]string{
	domain.DecisionSpeak: {
		"high social need",
		"user present without interaction",
		"curiosity is active",
	},
	domain.DecisionSilence: {
		"low energy",
		"reserved personality",
		"time to rest",
	},
	domain.DecisionObserve: {
		"observant personality",
		"curious about the surroundings",
		"waiting for the right moment",
	},
	domain.DecisionShiftMood: {
		"autonomous decision",
	},
	domain.DecisionIdle: {
		"everything is balanced",
		"no need to act",
		"a quiet moment",
	},
}

type Engine struct {
	cfg Config

	mu  sync.Mutex
	src Source
}

func NewEngine(cfg Config, src Source) *Engine {
	if cfg.Floor <= 0 {
		cfg.Floor = DefaultFloor
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if src == nil {
		src = NewDailySource(cfg.Now)
	}
	return &Engine{cfg: cfg, src: src}
}

func (e *Engine) Floor() float64 { return e.cfg.Floor }

// Decide scores the five candidates, perturbs them with one draw each in
// enumeration order, and picks the highest (earliest kind on ties).
//
// recent is carried for callers that render the decision afterwards; scoring
// never reads it.
func (e *Engine) Decide(
	emotion domain.EmotionalState,
	situation domain.SituationalSnapshot,
	personality domain.PersonalityProfile,
	recent []domain.RecentEvent,
) domain.Decision {
	situation = situation.Normalized()
	raw := rawScores(emotion, situation, personality)

	e.mu.Lock()
	var jittered [len(domain.DecisionKinds)]float64
	for i := range domain.DecisionKinds {
		jittered[i] = clamp01(raw[i] + (e.src.Float64()-0.5)*e.cfg.Jitter)
	}

	best := 0
	for i := 1; i < len(jittered); i++ {
		if jittered[i] > jittered[best] {
			best = i
		}
	}
	kind := domain.DecisionKinds[best]
	intensity := jittered[best]
	if intensity < e.cfg.Floor {
		kind = domain.DecisionIdle
		intensity = e.cfg.Floor
	}
	// a single-entry pool takes no draw, so the stream only advances on a real choice
	pool := rationales[kind]
	rationale := ""
	switch len(pool) {
	case 0:
	case 1:
		rationale = pool[0]
	default:
		rationale = pick(pool, e.src.Float64())
	}
	e.mu.Unlock()

	scores := make(map[domain.DecisionKind]float64, len(jittered))
	for i, k := range domain.DecisionKinds {
		scores[k] = jittered[i]
	}
	return domain.Decision{
		ID:        uuid.NewString(),
		Kind:      kind,
		Intensity: intensity,
		Rationale: rationale,
		Scores:    scores,
		DecidedAt: e.cfg.Now(),
	}
}

// rawScores returns the pre-jitter scores indexed like domain.DecisionKinds.
func rawScores(
	emotion domain.EmotionalState,
	situation domain.SituationalSnapshot,
	personality domain.PersonalityProfile,
) [len(domain.DecisionKinds)]float64 {
	return [...]float64{
		clamp01(speakScore(emotion, situation, personality)),
		clamp01(silenceScore(emotion, situation, personality)),
		clamp01(observeScore(emotion, situation, personality)),
		clamp01(shiftMoodScore(emotion)),
		clamp01(idleScore(emotion, situation)),
	}
}

func speakScore(em domain.EmotionalState, sit domain.SituationalSnapshot, p domain.PersonalityProfile) float64 {
	score := 0.0
	if em.SocialNeed > 0.7 {
		score += 0.4
	}
	if sit.UserPresent && !sit.RecentInteraction {
		score += 0.3
	}
	if em.Curiosity > 0.6 {
		score += 0.2
	}
	if em.Energy > 0.3 {
		score += 0.1
	} else {
		score -= 0.2
	}
	if p.Reserve > 0.5 {
		score *= 0.6
	}
	if em.Irritation > 0.5 {
		score *= 0.5
	}
	return score
}

func silenceScore(em domain.EmotionalState, sit domain.SituationalSnapshot, p domain.PersonalityProfile) float64 {
	score := 0.0
	if p.Reserve > 0.5 {
		score += 0.4
	}
	if em.Energy < 0.3 {
		score += 0.3
	}
	if sit.RecentInteraction {
		score += 0.2
	}
	if !sit.UserPresent {
		score += 0.3
	}
	return score
}

func observeScore(em domain.EmotionalState, sit domain.SituationalSnapshot, p domain.PersonalityProfile) float64 {
	score := 0.5
	if p.Observance > 0.7 {
		score += 0.3
	}
	if em.Curiosity > 0.6 {
		score += 0.2
	}
	if sit.UserPresent && !sit.RecentInteraction {
		score += 0.2
	}
	return score
}

func shiftMoodScore(em domain.EmotionalState) float64 {
	score := 0.0
	if em.Irritation > 0.7 {
		score += 0.4
	}
	if em.Energy < 0.2 {
		score += 0.3
	}
	return score
}

func idleScore(em domain.EmotionalState, sit domain.SituationalSnapshot) float64 {
	score := 0.3
	if em.SocialNeed > 0.3 && em.SocialNeed < 0.7 && em.Energy > 0.3 && em.Energy < 0.7 {
		score += 0.3
	}
	if !sit.UserPresent {
		score += 0.2
	}
	return score
}

func pick(pool []string, u float64) string {
	if len(pool) == 0 {
		return ""
	}
	i := int(u * float64(len(pool)))
	if i >= len(pool) {
		i = len(pool) - 1
	}
	if i < 0 {
		i = 0
	}
	return pool[i]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
