// Package mqtt connects sensor nodes and listeners on a broker to the agent.
// Readings arrive on {prefix}/sensor/{node}/{field}; decisions, utterances and
// status leave on {prefix}/agent/*.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"prime/internal/domain"
	"prime/internal/sensory"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrNotConnected = errors.New("mqtt hub not connected")

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// UpdateSink accepts readings without blocking the paho callback goroutine.
type UpdateSink interface {
	Offer(update domain.SensoryUpdate) bool
}

// InteractionSink receives typed interactions (touch, voice) reported by nodes.
type InteractionSink interface {
	RegisterInteraction(kind domain.InteractionKind) error
}

type InteractionFunc func(kind domain.InteractionKind) error

func (f InteractionFunc) RegisterInteraction(kind domain.InteractionKind) error {
	return f(kind)
}

type Hub struct {
	cfg          HubConfig
	client       paho.Client
	sink         UpdateSink
	registry     *sensory.Registry
	interactions InteractionSink
	logger       *slog.Logger
}

func NewHub(cfg HubConfig, sink UpdateSink, registry *sensory.Registry, interactions InteractionSink, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:          cfg,
		sink:         sink,
		registry:     registry,
		interactions: interactions,
		logger:       logger,
	}
}

func (h *Hub) Start(ctx context.Context) error {
	status, _ := json.Marshal(domain.StatusPayload{Running: false, Message: "connection lost"})
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetWill(TopicStatus(h.cfg.TopicPrefix), string(status), 1, true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})
	// subscriptions are not persisted by the broker across clean sessions
	opts.SetOnConnectHandler(func(_ paho.Client) {
		if err := h.subscribeHandlers(); err != nil {
			h.logger.Error("mqtt subscribe failed", "error", err)
		}
	})

	h.client = paho.NewClient(opts)
	token := h.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// ConnectRetry keeps dialing in the background
		h.logger.Warn("mqtt broker not reachable yet, retrying", "broker", h.cfg.BrokerURL)
	} else if token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(250)
	}()

	h.logger.Info("mqtt hub started", "broker", h.cfg.BrokerURL, "prefix", h.cfg.TopicPrefix)
	return nil
}

func (h *Hub) subscribeHandlers() error {
	fields := []domain.SensoryField{
		domain.SensoryPresence,
		domain.SensoryUserState,
		domain.SensoryLight,
		domain.SensoryEnvironment,
		domain.SensoryInteraction,
	}
	for _, field := range fields {
		if token := h.client.Subscribe(TopicSensorField(h.cfg.TopicPrefix, string(field)), 1, h.handleReading); token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}
	if token := h.client.Subscribe(TopicSensorOnline(h.cfg.TopicPrefix), 1, h.handleOnline); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := h.client.Subscribe(TopicSensorHeartbeat(h.cfg.TopicPrefix), 0, h.handleHeartbeat); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

type readingPayload struct {
	Value json.RawMessage `json:"value"`
	TS    string          `json:"ts,omitempty"`
}

func (h *Hub) handleReading(_ paho.Client, msg paho.Message) {
	nodeID, kind, err := ParseSensorTopic(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid sensor topic", "topic", msg.Topic(), "error", err)
		return
	}
	field, ok := domain.ParseSensoryField(kind)
	if !ok {
		h.logger.Warn("skip unknown sensor field", "node_id", nodeID, "field", kind)
		return
	}

	value, at := decodeReading(msg.Payload())
	if field == domain.SensoryInteraction && h.interactions != nil {
		if ik, ok := domain.ParseInteractionKind(value); ok {
			if err := h.interactions.RegisterInteraction(ik); err != nil {
				h.logger.Warn("register interaction failed", "node_id", nodeID, "kind", ik, "error", err)
			}
			if h.registry != nil {
				h.registry.Observe(domain.SensoryUpdate{Field: field, Value: value, Source: nodeID, At: at})
			}
			return
		}
	}

	update := domain.SensoryUpdate{Field: field, Value: value, Source: nodeID, At: at}
	if !h.sink.Offer(update) {
		h.logger.Warn("sensory queue full, reading dropped", "node_id", nodeID, "field", field)
	}
}

// decodeReading accepts a bare value or {"value": ..., "ts": RFC3339}.
func decodeReading(payload []byte) (string, time.Time) {
	raw := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(raw, "{") {
		return raw, time.Time{}
	}
	var p readingPayload
	if err := json.Unmarshal(payload, &p); err != nil || len(p.Value) == 0 {
		return raw, time.Time{}
	}
	var at time.Time
	if p.TS != "" {
		if parsed, err := time.Parse(time.RFC3339, p.TS); err == nil {
			at = parsed
		}
	}
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		return strings.TrimSpace(s), at
	}
	// numbers and booleans keep their literal form
	return strings.TrimSpace(string(p.Value)), at
}

func (h *Hub) handleOnline(_ paho.Client, msg paho.Message) {
	nodeID, _, err := ParseSensorTopic(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid online topic", "topic", msg.Topic(), "error", err)
		return
	}
	payload := strings.TrimSpace(strings.ToLower(string(msg.Payload())))
	online := payload == "1" || payload == "true" || payload == "online"
	if h.registry != nil {
		h.registry.SetOnline(nodeID, online)
	}
	h.logger.Info("sensor online status", "node_id", nodeID, "online", online)
}

type heartbeatPayload struct {
	Capabilities []string `json:"capabilities"`
}

func (h *Hub) handleHeartbeat(_ paho.Client, msg paho.Message) {
	nodeID, _, err := ParseSensorTopic(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid heartbeat topic", "topic", msg.Topic(), "error", err)
		return
	}
	var capabilities []domain.SensoryField
	var hb heartbeatPayload
	if len(msg.Payload()) > 0 && json.Unmarshal(msg.Payload(), &hb) == nil {
		for _, c := range hb.Capabilities {
			if f, ok := domain.ParseSensoryField(c); ok {
				capabilities = append(capabilities, f)
			}
		}
	}
	if h.registry != nil {
		h.registry.Heartbeat(nodeID, capabilities)
	}
}

func (h *Hub) PublishDecision(ctx context.Context, payload domain.DecisionPayload) error {
	return h.publishJSON(ctx, TopicDecision(h.cfg.TopicPrefix), false, payload)
}

func (h *Hub) PublishStatus(ctx context.Context, payload domain.StatusPayload) error {
	return h.publishJSON(ctx, TopicStatus(h.cfg.TopicPrefix), true, payload)
}

// PublishUtterance hands spoken text to whichever node owns the speaker.
func (h *Hub) PublishUtterance(ctx context.Context, text string) error {
	return h.publishJSON(ctx, TopicSay(h.cfg.TopicPrefix), false, map[string]string{
		"text": text,
		"ts":   time.Now().Format(time.RFC3339),
	})
}

func (h *Hub) publishJSON(ctx context.Context, topic string, retained bool, v any) error {
	if h.client == nil || !h.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := h.client.Publish(topic, 1, retained, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timeout", topic)
	}
}
