package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"prime/internal/persona"
)

type Config struct {
	Env      string
	LogLevel string

	TickInterval   time.Duration
	DecisionFloor  float64
	DecisionJitter float64
	Personality    persona.Profile

	SilenceMode     string
	FixedSilence    time.Duration
	InteractionTTL  time.Duration
	ShortTermEvents int

	RoutinesEnabled   bool
	FatigueUtterances int
	DigestHour        int

	LLMProvider       string
	LLMModel          string
	LLMTimeout        time.Duration
	LLMRequestsPerMin float64
	OllamaBaseURL     string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	AnthropicBaseURL  string
	AnthropicAPIKey   string

	DBDSN  string
	DBPath string

	MQTTEnabled     bool
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	HTTPAddr          string
	SensoryQueueSize  int
	SensorTTL         time.Duration
	MemoryTimeout     time.Duration
	ExpressionTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Load reads an optional .env file (or the files named in PRIME_ENV_FILE,
// comma separated) and then the process environment. Variables already set
// in the environment win over the file.
func Load() (Config, error) {
	if err := loadDotenv(); err != nil {
		return Config{}, err
	}

	env := &envReader{}
	cfg := Config{
		Env:      getenvDefault("PRIME_ENV", "development"),
		LogLevel: getenvDefault("PRIME_LOG_LEVEL", "info"),

		TickInterval:   env.durationVar("PRIME_TICK_INTERVAL", 5*time.Second),
		DecisionFloor:  env.floatVar("PRIME_DECISION_FLOOR", 0.3),
		DecisionJitter: env.floatVar("PRIME_DECISION_JITTER", 0.2),

		SilenceMode:     strings.ToLower(getenvDefault("PRIME_SILENCE_MODE", "fixed")),
		FixedSilence:    env.durationVar("PRIME_FIXED_SILENCE", 120*time.Second),
		InteractionTTL:  env.durationVar("PRIME_INTERACTION_TTL", 10*time.Minute),
		ShortTermEvents: env.intVar("PRIME_SHORT_TERM_EVENTS", 20),

		RoutinesEnabled:   env.boolVar("PRIME_ROUTINES_ENABLED", true),
		FatigueUtterances: env.intVar("PRIME_FATIGUE_UTTERANCES", 6),
		DigestHour:        env.intVar("PRIME_DIGEST_HOUR", 3),

		LLMProvider:       strings.ToLower(getenvDefault("PRIME_LLM_PROVIDER", "ollama")),
		LLMModel:          getenvDefault("PRIME_LLM_MODEL", "phi3"),
		LLMTimeout:        env.durationVar("PRIME_LLM_TIMEOUT", 60*time.Second),
		LLMRequestsPerMin: env.floatVar("PRIME_LLM_REQUESTS_PER_MINUTE", 6),
		OllamaBaseURL:     strings.TrimRight(getenvDefault("OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		OpenAIBaseURL:     getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicBaseURL:  getenvDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),

		DBDSN:  os.Getenv("PRIME_DB_DSN"),
		DBPath: getenvDefault("PRIME_DB_PATH", "./data/prime.db"),

		MQTTEnabled:     env.boolVar("PRIME_MQTT_ENABLED", false),
		MQTTBrokerURL:   getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:    getenvDefault("PRIME_MQTT_CLIENT_ID", "prime-agent"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix: strings.Trim(getenvDefault("MQTT_TOPIC_PREFIX", "prime"), "/"),

		HTTPAddr:          getenvDefault("PRIME_HTTP_ADDR", ":9020"),
		SensoryQueueSize:  env.intVar("PRIME_SENSORY_QUEUE_SIZE", 64),
		SensorTTL:         env.durationVar("PRIME_SENSOR_TTL", 60*time.Second),
		MemoryTimeout:     env.durationVar("PRIME_MEMORY_TIMEOUT", 2*time.Second),
		ExpressionTimeout: env.durationVar("PRIME_EXPRESSION_TIMEOUT", 30*time.Second),
		ShutdownTimeout:   env.durationVar("PRIME_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if err := env.err(); err != nil {
		return Config{}, err
	}

	personality, err := loadPersonality()
	if err != nil {
		return Config{}, err
	}
	cfg.Personality = personality

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("PRIME_TICK_INTERVAL must be positive")
	}
	if c.DecisionFloor <= 0 || c.DecisionFloor > 1 {
		return fmt.Errorf("PRIME_DECISION_FLOOR must be within (0,1]")
	}
	if c.DecisionJitter < 0 || c.DecisionJitter > 1 {
		return fmt.Errorf("PRIME_DECISION_JITTER must be within [0,1]")
	}
	if c.SilenceMode != "fixed" && c.SilenceMode != "measured" {
		return fmt.Errorf("PRIME_SILENCE_MODE must be fixed or measured, got %q", c.SilenceMode)
	}
	switch c.LLMProvider {
	case "ollama", "none":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when PRIME_LLM_PROVIDER=openai")
		}
	case "claude":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when PRIME_LLM_PROVIDER=claude")
		}
	default:
		return fmt.Errorf("unsupported PRIME_LLM_PROVIDER: %s", c.LLMProvider)
	}
	if c.RoutinesEnabled && (c.DigestHour < 0 || c.DigestHour > 23) {
		return fmt.Errorf("PRIME_DIGEST_HOUR must be within [0,23]")
	}
	if c.DBDSN == "" && c.DBPath == "" {
		return fmt.Errorf("PRIME_DB_DSN or PRIME_DB_PATH is required")
	}
	if c.MQTTEnabled && c.MQTTBrokerURL == "" {
		return fmt.Errorf("MQTT_BROKER_URL is required when PRIME_MQTT_ENABLED=true")
	}
	return nil
}

func (c Config) Production() bool {
	return c.Env == "production"
}

// loadPersonality layers, lowest first: defaults, PRIME_PERSONALITY_FILE,
// PRIME_MBTI, then explicit PRIME_TRAIT_* values.
func loadPersonality() (persona.Profile, error) {
	p := persona.DefaultProfile()
	if path := os.Getenv("PRIME_PERSONALITY_FILE"); path != "" {
		loaded, err := persona.LoadFile(path)
		if err != nil {
			return persona.Profile{}, err
		}
		p = loaded
	}
	if mbti := os.Getenv("PRIME_MBTI"); mbti != "" {
		derived, err := p.WithMBTI(mbti)
		if err != nil {
			return persona.Profile{}, err
		}
		p = derived
	}
	traits := []struct {
		key string
		dst *float64
	}{
		{"PRIME_TRAIT_AFFECTION", &p.Affection},
		{"PRIME_TRAIT_OBSERVANCE", &p.Observance},
		{"PRIME_TRAIT_IRONY", &p.Irony},
		{"PRIME_TRAIT_RESERVE", &p.Reserve},
		{"PRIME_TRAIT_CURIOSITY", &p.Curiosity},
	}
	for _, tr := range traits {
		raw := os.Getenv(tr.key)
		if raw == "" {
			continue
		}
		v, err := persona.ParseTrait(tr.key, raw)
		if err != nil {
			return persona.Profile{}, err
		}
		*tr.dst = v
	}
	return p, nil
}

func loadDotenv() error {
	files := []string{".env"}
	if v := os.Getenv("PRIME_ENV_FILE"); v != "" {
		files = strings.Split(v, ",")
	}
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

// envReader parses typed variables and keeps every parse failure so Load can
// report them together instead of quietly using the default.
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, raw, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q is not %s", key, raw, want))
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func (e *envReader) intVar(key string, val int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "an integer")
		return val
	}
	return n
}

func (e *envReader) floatVar(key string, val float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, "a number")
		return val
	}
	return n
}

func (e *envReader) boolVar(key string, val bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, "a boolean")
		return val
	}
	return b
}

// durationVar accepts Go durations ("5s", "250ms") or bare seconds ("5", "2.5").
func (e *envReader) durationVar(key string, val time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		e.fail(key, v, "a duration")
		return val
	}
	return time.Duration(secs * float64(time.Second))
}
