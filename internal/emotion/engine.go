// Package emotion keeps the agent's drive vector and pulls it back toward its
// setpoints once per tick.
package emotion

import (
	"sync"
	"time"

	"prime/internal/domain"
)

// Config holds the per-tick homeostasis constants. Rates are applied once per
// Advance call, independent of wall-clock time between calls.
type Config struct {
	EnergySetpoint       float64
	EnergyRecoverRate    float64
	EnergyDrainRate      float64
	CuriositySetpoint    float64
	CuriosityRecoverRate float64
	CuriosityDecayRate   float64
	IrritationDecayRate  float64
	AttachmentFloor      float64
	AttachmentDecayRate  float64

	LongSilenceAfter    time.Duration
	LongSilenceGain     float64
	ShortSilenceAfter   time.Duration
	ShortSilenceGain    float64
	PresenceSocialGain  float64
	TiredEnergyDrain    float64
	NoiseIrritationGain float64

	Silence SilenceSource
	Now     func() time.Time
}

func DefaultConfig() Config {
	return Config{
		EnergySetpoint:       0.5,
		EnergyRecoverRate:    0.0005,
		EnergyDrainRate:      0.0003,
		CuriositySetpoint:    0.5,
		CuriosityRecoverRate: 0.0005,
		CuriosityDecayRate:   0.001,
		IrritationDecayRate:  0.002,
		AttachmentFloor:      0.2,
		AttachmentDecayRate:  0.0001,
		LongSilenceAfter:     300 * time.Second,
		LongSilenceGain:      0.003,
		ShortSilenceAfter:    60 * time.Second,
		ShortSilenceGain:     0.001,
		PresenceSocialGain:   0.002,
		TiredEnergyDrain:     0.0005,
		NoiseIrritationGain:  0.0015,
		Silence:              FixedSilence(DefaultSilence),
	}
}

// Engine is safe for concurrent use; every mutation and snapshot holds mu.
type Engine struct {
	cfg Config

	mu                sync.Mutex
	state             domain.EmotionalState
	lastInteractionAt time.Time
}

func NewEngine(cfg Config) *Engine {
	now := nowFunc(cfg)()
	return NewEngineWithState(cfg, domain.InitialEmotionalState(now))
}

func NewEngineWithState(cfg Config, initial domain.EmotionalState) *Engine {
	if cfg.EnergySetpoint <= 0 {
		silence, clock := cfg.Silence, cfg.Now
		cfg = DefaultConfig()
		if silence != nil {
			cfg.Silence = silence
		}
		cfg.Now = clock
	}
	if cfg.Silence == nil {
		cfg.Silence = FixedSilence(DefaultSilence)
	}
	cfg.Now = nowFunc(cfg)

	now := cfg.Now()
	if initial.UpdatedAt.IsZero() {
		initial.UpdatedAt = now
	}
	e := &Engine{
		cfg:               cfg,
		state:             initial,
		lastInteractionAt: now,
	}
	e.state = clampState(e.state)
	return e
}

// Advance applies one tick of decay toward the setpoints followed by the
// reaction to the current situation.
func (e *Engine) Advance(situation domain.SituationalSnapshot) {
	situation = situation.Normalized()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.cfg.Now()
	if situation.RecentInteraction {
		e.lastInteractionAt = now
	}

	e.decay()
	e.react(situation, now)
	e.state = clampState(e.state)
	e.state.UpdatedAt = now
}

func (e *Engine) decay() {
	s := &e.state
	s.Energy = approach(s.Energy, e.cfg.EnergySetpoint, e.cfg.EnergyRecoverRate, e.cfg.EnergyDrainRate)
	s.Curiosity = approach(s.Curiosity, e.cfg.CuriositySetpoint, e.cfg.CuriosityRecoverRate, e.cfg.CuriosityDecayRate)
	if s.Irritation > 0 {
		s.Irritation -= e.cfg.IrritationDecayRate
	}
	if s.Attachment > e.cfg.AttachmentFloor {
		s.Attachment = max(e.cfg.AttachmentFloor, s.Attachment-e.cfg.AttachmentDecayRate)
	}
	// social need has no resting drift; only the situation moves it.
}

func (e *Engine) react(situation domain.SituationalSnapshot, now time.Time) {
	s := &e.state
	if !situation.RecentInteraction {
		silence := e.cfg.Silence.Silence(now, e.lastInteractionAt)
		switch {
		case silence > e.cfg.LongSilenceAfter:
			s.SocialNeed += e.cfg.LongSilenceGain
		case silence > e.cfg.ShortSilenceAfter:
			s.SocialNeed += e.cfg.ShortSilenceGain
		}
		if situation.UserPresent {
			s.SocialNeed += e.cfg.PresenceSocialGain
		}
	}

	switch situation.UserState {
	case domain.UserStateTired:
		s.Energy -= e.cfg.TiredEnergyDrain
	case domain.UserStateAgitated, domain.UserStateNormal, domain.UserStateUnknown:
	}

	switch situation.Environment {
	case domain.EnvironmentNoisy:
		s.Irritation += e.cfg.NoiseIrritationGain
	case domain.EnvironmentQuiet, domain.EnvironmentNormal, domain.EnvironmentUnknown:
	}
}

// ReactToInteraction applies the discrete jump for one interaction event.
// Unknown kinds leave the state untouched.
func (e *Engine) ReactToInteraction(kind domain.InteractionKind) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.state
	switch kind {
	case domain.InteractionPositive:
		s.Attachment += 0.1
		s.Energy += 0.05
		s.SocialNeed -= 0.2
	case domain.InteractionNegative:
		s.Irritation += 0.1
		s.Energy -= 0.05
	case domain.InteractionIgnored:
		s.Irritation += 0.05
		s.SocialNeed += 0.1
	case domain.InteractionNormal:
		s.SocialNeed -= 0.1
		s.Curiosity += 0.02
	default:
		return
	}

	now := e.cfg.Now()
	e.lastInteractionAt = now
	e.state = clampState(e.state)
	e.state.UpdatedAt = now
}

// ReactToLongSilence raises social need (and curiosity after half an hour)
// when the agent has been left alone for the given number of minutes.
func (e *Engine) ReactToLongSilence(minutes float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case minutes > 30:
		e.state.SocialNeed += 0.3
		e.state.Curiosity += 0.1
	case minutes > 10:
		e.state.SocialNeed += 0.1
	default:
		return
	}
	e.state = clampState(e.state)
	e.state.UpdatedAt = e.cfg.Now()
}

func (e *Engine) DepleteEnergy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Energy -= 0.1
	e.state = clampState(e.state)
	e.state.UpdatedAt = e.cfg.Now()
}

// Snapshot returns a copy of the state taken under the engine lock.
func (e *Engine) Snapshot() domain.EmotionalState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// approach moves v toward target by up (when below) or down (when at or above)
// without crossing the target.
func approach(v, target, up, down float64) float64 {
	if v < target {
		return min(target, v+up)
	}
	return max(target, v-down)
}

func clampState(s domain.EmotionalState) domain.EmotionalState {
	s.Energy = clamp01(s.Energy)
	s.Curiosity = clamp01(s.Curiosity)
	s.SocialNeed = clamp01(s.SocialNeed)
	s.Irritation = clamp01(s.Irritation)
	s.Attachment = clamp01(s.Attachment)
	return s
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

func nowFunc(cfg Config) func() time.Time {
	if cfg.Now != nil {
		return cfg.Now
	}
	return time.Now
}
