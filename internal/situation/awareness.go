// Package situation keeps the latest observed view of the room and the user.
// It never speaks; sensors and transport handlers write into it and the tick
// loop reads snapshots out of it.
package situation

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"prime/internal/domain"
)

const clockLayout = "15:04"

type Awareness struct {
	now func() time.Time
	// interactionTTL clears RecentInteraction on Tick once it is this old.
	// Zero keeps the flag until it is explicitly reset.
	interactionTTL time.Duration

	mu              sync.Mutex
	state           domain.SituationalSnapshot
	lastInteraction time.Time
	startedAt       time.Time
}

func New(now func() time.Time, interactionTTL time.Duration) *Awareness {
	if now == nil {
		now = time.Now
	}
	a := &Awareness{
		now:            now,
		interactionTTL: interactionTTL,
		state: domain.SituationalSnapshot{
			Light:       domain.LightUnknown,
			UserState:   domain.UserStateUnknown,
			Environment: domain.EnvironmentUnknown,
		},
	}
	a.touch()
	a.startedAt = a.state.UpdatedAt
	return a
}

func (a *Awareness) SetPresence(present bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.UserPresent = present
	a.touch()
}

func (a *Awareness) SetUserState(v domain.UserState) {
	if !v.Valid() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.UserState = v
	a.touch()
}

func (a *Awareness) SetLight(v domain.LightLevel) {
	if !v.Valid() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Light = v
	a.touch()
}

func (a *Awareness) SetEnvironment(v domain.Environment) {
	if !v.Valid() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Environment = v
	a.touch()
}

func (a *Awareness) MarkInteraction(recent bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.RecentInteraction = recent
	a.touch()
	if recent {
		a.lastInteraction = a.state.UpdatedAt
	}
}

// Apply routes a labelled sensor reading to the matching setter. It reports
// whether the update was understood; unknown fields and unparseable values
// leave the snapshot untouched.
func (a *Awareness) Apply(update domain.SensoryUpdate) bool {
	switch update.Field {
	case domain.SensoryPresence, domain.SensoryInteraction:
		v, err := strconv.ParseBool(strings.TrimSpace(update.Value))
		if err != nil {
			return false
		}
		if update.Field == domain.SensoryPresence {
			a.SetPresence(v)
		} else {
			a.MarkInteraction(v)
		}
		return true
	case domain.SensoryUserState:
		v, ok := domain.ParseUserState(update.Value)
		if ok {
			a.SetUserState(v)
		}
		return ok
	case domain.SensoryLight:
		v, ok := domain.ParseLightLevel(update.Value)
		if !ok {
			// cameras report mean frame brightness instead of a label
			brightness, err := strconv.ParseFloat(strings.TrimSpace(update.Value), 64)
			if err != nil || brightness < 0 || brightness > 255 {
				return false
			}
			v, ok = domain.LightFromBrightness(brightness), true
		}
		a.SetLight(v)
		return ok
	case domain.SensoryEnvironment:
		v, ok := domain.ParseEnvironment(update.Value)
		if ok {
			a.SetEnvironment(v)
		}
		return ok
	default:
		return false
	}
}

// Tick refreshes the clock and expires a stale interaction flag.
func (a *Awareness) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touch()
	if a.interactionTTL > 0 && a.state.RecentInteraction &&
		a.state.UpdatedAt.Sub(a.lastInteraction) >= a.interactionTTL {
		a.state.RecentInteraction = false
	}
}

// LastInteraction is the time of the last marked interaction, or the
// creation time when there has been none.
func (a *Awareness) LastInteraction() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastInteraction.IsZero() {
		return a.startedAt
	}
	return a.lastInteraction
}

func (a *Awareness) Snapshot() domain.SituationalSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// touch must be called with mu held.
func (a *Awareness) touch() {
	now := a.now()
	a.state.Clock = now.Format(clockLayout)
	a.state.UpdatedAt = now
}
