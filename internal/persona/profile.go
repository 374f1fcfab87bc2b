// Package persona holds the fixed character traits. Traits bias scoring and
// phrasing but never change at runtime.
package persona

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"prime/internal/domain"
)

var ErrInvalidTrait = errors.New("invalid personality trait")

const (
	ActionSpeakALot = "speak_a_lot"
	ActionActFast   = "act_fast"
)

type Profile struct {
	domain.PersonalityProfile
}

func NewProfile(affection, observance, irony, reserve, curiosity float64) Profile {
	return Profile{domain.PersonalityProfile{
		Affection:  clamp01(affection),
		Observance: clamp01(observance),
		Irony:      clamp01(irony),
		Reserve:    clamp01(reserve),
		Curiosity:  clamp01(curiosity),
	}}
}

func DefaultProfile() Profile {
	return NewProfile(0.6, 0.8, 0.4, 0.3, 0.7)
}

// ParseTrait reads one trait value from configuration. Values must be numbers
// within [0,1].
func ParseTrait(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidTrait, name, raw)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: %s=%v out of range [0,1]", ErrInvalidTrait, name, v)
	}
	return v, nil
}

// FromMBTI derives a profile from a four-letter type, starting from the
// defaults.
func FromMBTI(raw string) (Profile, error) {
	return DefaultProfile().WithMBTI(raw)
}

// WithMBTI nudges each trait of p by the letter on each axis of a
// four-letter type. Traits already set on p are kept as the base.
func (p Profile) WithMBTI(raw string) (Profile, error) {
	mbti := strings.ToUpper(strings.TrimSpace(raw))
	if len(mbti) != 4 {
		return Profile{}, fmt.Errorf("%w: mbti must be 4 letters", ErrInvalidTrait)
	}
	c := []byte(mbti)
	if !contains(c[0], "EI") || !contains(c[1], "SN") || !contains(c[2], "TF") || !contains(c[3], "JP") {
		return Profile{}, fmt.Errorf("%w: invalid mbti type %s", ErrInvalidTrait, raw)
	}

	out := p.PersonalityProfile
	apply := func(bias domain.PersonalityProfile, positive bool) {
		sign := 1.0
		if !positive {
			sign = -1.0
		}
		out.Affection = clamp01(out.Affection + sign*bias.Affection)
		out.Observance = clamp01(out.Observance + sign*bias.Observance)
		out.Irony = clamp01(out.Irony + sign*bias.Irony)
		out.Reserve = clamp01(out.Reserve + sign*bias.Reserve)
		out.Curiosity = clamp01(out.Curiosity + sign*bias.Curiosity)
	}

	apply(domain.PersonalityProfile{Affection: 0.05, Observance: -0.10, Reserve: -0.25}, c[0] == 'E')
	apply(domain.PersonalityProfile{Observance: 0.05, Curiosity: -0.15}, c[1] == 'S')
	apply(domain.PersonalityProfile{Affection: -0.15, Irony: 0.15}, c[2] == 'T')
	apply(domain.PersonalityProfile{Observance: 0.10, Curiosity: -0.05}, c[3] == 'J')
	return Profile{out}, nil
}

// Constraints lists the verbal rules the trait values impose on generated
// speech, in a stable order.
func (p Profile) Constraints() []string {
	var out []string
	if p.Reserve > 0.5 {
		out = append(out, "You speak little and prefer silence.")
	}
	if p.Affection > 0.6 {
		out = append(out, "You are affectionate, but never over the top.")
	}
	if p.Irony > 0.4 {
		out = append(out, "You have a touch of subtle irony.")
	}
	if p.Observance > 0.7 {
		out = append(out, "You observe before you speak.")
	}
	if p.Curiosity > 0.6 {
		out = append(out, "You are curious, but not intrusive.")
	}
	return out
}

// Permits reports whether an action style fits the character. Unknown
// actions are always permitted.
func (p Profile) Permits(action string) bool {
	switch action {
	case ActionSpeakALot:
		return p.Reserve <= 0.5
	case ActionActFast:
		return p.Observance <= 0.7
	default:
		return true
	}
}

func contains(b byte, chars string) bool {
	return strings.IndexByte(chars, b) >= 0
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
