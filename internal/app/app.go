// Package app assembles the agent from configuration. Both binaries share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"prime/internal/config"
	"prime/internal/db"
	"prime/internal/decision"
	"prime/internal/domain"
	"prime/internal/emotion"
	"prime/internal/expression"
	"prime/internal/llm"
	"prime/internal/memory"
	"prime/internal/metrics"
	"prime/internal/mqtt"
	"prime/internal/orchestrator"
	"prime/internal/routine"
	"prime/internal/sensory"
	"prime/internal/situation"
)

type App struct {
	Config    config.Config
	Service   *orchestrator.Service
	Awareness *situation.Awareness
	Queue     *sensory.Queue
	Sensors   *sensory.Registry
	Memory    *memory.Service
	Metrics   *metrics.Metrics
	Hub       *mqtt.Hub
	Routines  *routine.Runner

	store  db.Store
	logger *slog.Logger
}

// New opens storage and builds every component. Nothing runs until Start.
func New(ctx context.Context, cfg config.Config, reg prometheus.Registerer, logger *slog.Logger) (*App, error) {
	store, err := db.Open(ctx, cfg.DBDSN, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider:         cfg.LLMProvider,
		Model:            cfg.LLMModel,
		Timeout:          cfg.LLMTimeout,
		OllamaBaseURL:    cfg.OllamaBaseURL,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init llm provider: %w", err)
	}

	silence, err := emotion.SilenceFromMode(cfg.SilenceMode, cfg.FixedSilence)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := metrics.New(reg)
	ecfg := emotion.DefaultConfig()
	ecfg.Silence = silence

	exprCfg := expression.DefaultConfig()
	exprCfg.Model = cfg.LLMModel
	exprCfg.RequestsPerMinute = cfg.LLMRequestsPerMin

	a := &App{
		Config:    cfg,
		Awareness: situation.New(nil, cfg.InteractionTTL),
		Queue:     sensory.NewQueue(cfg.SensoryQueueSize, m),
		Sensors:   sensory.NewRegistry(cfg.SensorTTL, nil),
		Memory:    memory.NewService(store, cfg.ShortTermEvents, nil),
		Metrics:   m,
		store:     store,
		logger:    logger,
	}

	emotions := emotion.NewEngine(ecfg)
	deps := orchestrator.Deps{
		Emotion:     emotions,
		Decision:    decision.NewEngine(decision.Config{Floor: cfg.DecisionFloor, Jitter: cfg.DecisionJitter}, nil),
		Situation:   a.Awareness,
		Personality: cfg.Personality,
		Memory:      a.Memory,
		Renderer:    expression.NewService(provider, exprCfg, nil, logger),
		Sensors:     a.Sensors,
		Metrics:     m,
		Logger:      logger,
	}
	if cfg.MQTTEnabled {
		a.Hub = mqtt.NewHub(mqtt.HubConfig{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, a.Queue, a.Sensors, mqtt.InteractionFunc(a.registerInteraction), logger)
		deps.Publisher = a.Hub
	}
	a.Service = orchestrator.New(orchestrator.Config{
		MemoryTimeout:     cfg.MemoryTimeout,
		ExpressionTimeout: cfg.ExpressionTimeout,
	}, deps)

	if cfg.RoutinesEnabled {
		rcfg := routine.DefaultConfig()
		rcfg.FatigueUtterances = cfg.FatigueUtterances
		rcfg.DigestHour = uint(cfg.DigestHour)
		a.Routines, err = routine.New(rcfg, emotions, a.Awareness, a.Memory, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init routines: %w", err)
		}
	}

	if p, ok := provider.(*llm.OllamaProvider); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := p.Ping(pingCtx); err != nil {
			logger.Warn("ollama not reachable, minimal replies only until it is", "base_url", cfg.OllamaBaseURL, "error", err)
		}
		cancel()
	}
	logger.Info("prime assembled",
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
		"silence_mode", cfg.SilenceMode,
		"mqtt_enabled", cfg.MQTTEnabled,
		"decision_floor", cfg.DecisionFloor,
	)
	return a, nil
}

func (a *App) registerInteraction(kind domain.InteractionKind) error {
	return a.Service.RegisterInteraction(kind)
}

// Start warms memory and launches the sensory worker and the MQTT hub. The
// tick loop itself is left to the caller.
func (a *App) Start(ctx context.Context) error {
	if err := a.Memory.Warm(ctx); err != nil {
		a.logger.Warn("warm short-term memory failed", "error", err)
	}
	go a.Queue.Run(ctx, a.Awareness, a.Sensors, a.logger)
	if a.Routines != nil {
		if err := a.Routines.Start(ctx); err != nil {
			return err
		}
	}

	if a.Hub == nil {
		return nil
	}
	if err := a.Hub.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt hub: %w", err)
	}
	if err := a.Hub.PublishStatus(ctx, a.status(true, "online")); err != nil {
		a.logger.Debug("publish status failed", "error", err)
	}
	return nil
}

// Close stops the routines, publishes the offline status and releases
// storage.
func (a *App) Close(ctx context.Context) error {
	if a.Routines != nil {
		if err := a.Routines.Stop(); err != nil {
			a.logger.Warn("stop routines failed", "error", err)
		}
	}
	if a.Hub != nil {
		if err := a.Hub.PublishStatus(ctx, a.status(false, "shutdown")); err != nil {
			a.logger.Debug("publish status failed", "error", err)
		}
	}
	return a.store.Close()
}

func (a *App) status(running bool, message string) domain.StatusPayload {
	return domain.StatusPayload{
		Running: running,
		Message: message,
		TS:      time.Now().UTC().Format(time.RFC3339),
	}
}
