package emotion

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSilence is the stand-in silence length used when no real measurement
// is wired; it sits between the short and long silence thresholds.
const DefaultSilence = 120 * time.Second

// SilenceSource reports how long the agent has gone without an interaction.
type SilenceSource interface {
	Silence(now, lastInteraction time.Time) time.Duration
}

// FixedSilence always reports the same duration.
type FixedSilence time.Duration

func (f FixedSilence) Silence(_, _ time.Time) time.Duration {
	return time.Duration(f)
}

// MeasuredSilence reports the wall-clock time since the last interaction seen
// by the engine.
type MeasuredSilence struct{}

func (MeasuredSilence) Silence(now, lastInteraction time.Time) time.Duration {
	if lastInteraction.IsZero() || lastInteraction.After(now) {
		return 0
	}
	return now.Sub(lastInteraction)
}

// SilenceFromMode maps the configured silence mode to a source.
func SilenceFromMode(mode string, fixed time.Duration) (SilenceSource, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "fixed":
		if fixed <= 0 {
			fixed = DefaultSilence
		}
		return FixedSilence(fixed), nil
	case "measured":
		return MeasuredSilence{}, nil
	default:
		return nil, fmt.Errorf("unsupported silence mode: %s", mode)
	}
}
