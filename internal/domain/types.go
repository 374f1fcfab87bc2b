package domain

import (
	"strings"
	"time"
)

type LightLevel string

const (
	LightUnknown LightLevel = "unknown"
	LightLow     LightLevel = "low"
	LightMedium  LightLevel = "medium"
	LightHigh    LightLevel = "high"
)

type UserState string

const (
	UserStateUnknown  UserState = "unknown"
	UserStateTired    UserState = "tired"
	UserStateAgitated UserState = "agitated"
	UserStateNormal   UserState = "normal"
)

type Environment string

const (
	EnvironmentUnknown Environment = "unknown"
	EnvironmentQuiet   Environment = "quiet"
	EnvironmentNoisy   Environment = "noisy"
	EnvironmentNormal  Environment = "normal"
)

type InteractionKind string

const (
	InteractionPositive InteractionKind = "positive"
	InteractionNegative InteractionKind = "negative"
	InteractionIgnored  InteractionKind = "ignored"
	InteractionNormal   InteractionKind = "normal"
)

type DecisionKind string

const (
	DecisionSpeak     DecisionKind = "speak"
	DecisionSilence   DecisionKind = "silence"
	DecisionObserve   DecisionKind = "observe"
	DecisionShiftMood DecisionKind = "shift_mood"
	DecisionIdle      DecisionKind = "idle"
)

// DecisionKinds is the fixed enumeration order used for jitter draws and tie-breaks.
var DecisionKinds = [...]DecisionKind{
	DecisionSpeak,
	DecisionSilence,
	DecisionObserve,
	DecisionShiftMood,
	DecisionIdle,
}

// English labels plus the labels the first sensor firmware emitted.
var lightAliases = map[string]LightLevel{
	"low":          LightLow,
	"medium":       LightMedium,
	"high":         LightHigh,
	"unknown":      LightUnknown,
	"baixa":        LightLow,
	"media":        LightMedium,
	"média":        LightMedium,
	"alta":         LightHigh,
	"desconhecida": LightUnknown,
}

var userStateAliases = map[string]UserState{
	"tired":        UserStateTired,
	"agitated":     UserStateAgitated,
	"normal":       UserStateNormal,
	"unknown":      UserStateUnknown,
	"cansado":      UserStateTired,
	"agitado":      UserStateAgitated,
	"desconhecido": UserStateUnknown,
}

var environmentAliases = map[string]Environment{
	"quiet":        EnvironmentQuiet,
	"noisy":        EnvironmentNoisy,
	"normal":       EnvironmentNormal,
	"unknown":      EnvironmentUnknown,
	"silencioso":   EnvironmentQuiet,
	"barulhento":   EnvironmentNoisy,
	"desconhecido": EnvironmentUnknown,
}

var interactionAliases = map[string]InteractionKind{
	"positive": InteractionPositive,
	"negative": InteractionNegative,
	"ignored":  InteractionIgnored,
	"normal":   InteractionNormal,
	"positiva": InteractionPositive,
	"negativa": InteractionNegative,
	"ignorada": InteractionIgnored,
}

func normalizeLabel(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func ParseLightLevel(raw string) (LightLevel, bool) {
	v, ok := lightAliases[normalizeLabel(raw)]
	return v, ok
}

func ParseUserState(raw string) (UserState, bool) {
	v, ok := userStateAliases[normalizeLabel(raw)]
	return v, ok
}

func ParseEnvironment(raw string) (Environment, bool) {
	v, ok := environmentAliases[normalizeLabel(raw)]
	return v, ok
}

func ParseInteractionKind(raw string) (InteractionKind, bool) {
	v, ok := interactionAliases[normalizeLabel(raw)]
	return v, ok
}

func (l LightLevel) Valid() bool {
	switch l {
	case LightUnknown, LightLow, LightMedium, LightHigh:
		return true
	}
	return false
}

func (u UserState) Valid() bool {
	switch u {
	case UserStateUnknown, UserStateTired, UserStateAgitated, UserStateNormal:
		return true
	}
	return false
}

func (e Environment) Valid() bool {
	switch e {
	case EnvironmentUnknown, EnvironmentQuiet, EnvironmentNoisy, EnvironmentNormal:
		return true
	}
	return false
}

func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionPositive, InteractionNegative, InteractionIgnored, InteractionNormal:
		return true
	}
	return false
}

// EmotionalState is the drive vector. Every scalar stays within [0,1].
type EmotionalState struct {
	Energy     float64   `json:"energy"`
	Curiosity  float64   `json:"curiosity"`
	SocialNeed float64   `json:"social_need"`
	Irritation float64   `json:"irritation"`
	Attachment float64   `json:"attachment"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func InitialEmotionalState(now time.Time) EmotionalState {
	return EmotionalState{
		Energy:     0.5,
		Curiosity:  0.5,
		SocialNeed: 0.5,
		Irritation: 0,
		Attachment: 0.3,
		UpdatedAt:  now,
	}
}

type SituationalSnapshot struct {
	Clock             string      `json:"clock"`
	Light             LightLevel  `json:"light_level"`
	UserPresent       bool        `json:"user_present"`
	UserState         UserState   `json:"user_state"`
	RecentInteraction bool        `json:"recent_interaction"`
	Environment       Environment `json:"environment"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Normalized maps empty or unrecognized enum fields to their Unknown variant.
func (s SituationalSnapshot) Normalized() SituationalSnapshot {
	if !s.Light.Valid() {
		s.Light = LightUnknown
	}
	if !s.UserState.Valid() {
		s.UserState = UserStateUnknown
	}
	if !s.Environment.Valid() {
		s.Environment = EnvironmentUnknown
	}
	return s
}

type PersonalityProfile struct {
	Affection  float64 `json:"affection"`
	Observance float64 `json:"observance"`
	Irony      float64 `json:"irony"`
	Reserve    float64 `json:"reserve"`
	Curiosity  float64 `json:"curiosity"`
}

type Decision struct {
	ID        string                   `json:"id"`
	Kind      DecisionKind             `json:"kind"`
	Intensity float64                  `json:"intensity"`
	Rationale string                   `json:"rationale"`
	Scores    map[DecisionKind]float64 `json:"score_breakdown"`
	DecidedAt time.Time                `json:"decided_at"`
}

// RecentEvent is the read-only memory context handed to expression, most recent last.
type RecentEvent struct {
	Summary string  `json:"summary"`
	Weight  float64 `json:"weight"`
}

type MemoryEvent struct {
	ID       int64          `json:"id,omitempty"`
	At       time.Time      `json:"at"`
	Kind     string         `json:"kind"`
	Event    string         `json:"event"`
	Response string         `json:"response,omitempty"`
	Outcome  string         `json:"outcome,omitempty"`
	Weight   float64        `json:"weight"`
	Context  map[string]any `json:"context,omitempty"`
}

type SensoryField string

const (
	SensoryPresence    SensoryField = "presence"
	SensoryUserState   SensoryField = "user_state"
	SensoryLight       SensoryField = "light"
	SensoryEnvironment SensoryField = "environment"
	SensoryInteraction SensoryField = "interaction"
)

func ParseSensoryField(raw string) (SensoryField, bool) {
	switch f := SensoryField(normalizeLabel(raw)); f {
	case SensoryPresence, SensoryUserState, SensoryLight, SensoryEnvironment, SensoryInteraction:
		return f, true
	}
	return "", false
}

type SensoryUpdate struct {
	Field  SensoryField `json:"field"`
	Value  string       `json:"value"`
	Source string       `json:"source,omitempty"`
	At     time.Time    `json:"at,omitempty"`
}

// MQTT payloads

type DecisionPayload struct {
	Decision  Decision       `json:"decision"`
	Emotion   EmotionalState `json:"emotion"`
	TickCount int64          `json:"tick_count"`
	Utterance string         `json:"utterance,omitempty"`
	TS        string         `json:"ts"`
}

type StatusPayload struct {
	Running bool   `json:"running"`
	Message string `json:"message,omitempty"`
	TS      string `json:"ts"`
}

// LightFromBrightness buckets a mean 8-bit grey level into a light level.
func LightFromBrightness(mean float64) LightLevel {
	switch {
	case mean < 50:
		return LightLow
	case mean < 150:
		return LightMedium
	default:
		return LightHigh
	}
}
