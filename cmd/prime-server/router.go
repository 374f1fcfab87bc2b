package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prime/internal/domain"
	"prime/internal/memory"
	"prime/internal/orchestrator"
)

type agent interface {
	Running() bool
	Status() orchestrator.Status
	RegisterInteraction(kind domain.InteractionKind) error
}

type updateSink interface {
	Offer(update domain.SensoryUpdate) bool
}

type memoryReader interface {
	ShortTerm() []domain.MemoryEvent
	Patterns(ctx context.Context, window time.Duration) (map[string]int, error)
	EmotionalMemories(ctx context.Context, minWeight float64) ([]domain.MemoryEvent, error)
}

func newRouter(a agent, sink updateSink, mem memoryReader, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "prime",
			"about":   "presence agent: feels, decides, and only sometimes speaks",
			"endpoints": []string{
				"GET /healthz",
				"GET /v1/status",
				"POST /v1/interaction",
				"POST /v1/sensory",
				"GET /v1/memory/recent",
				"GET /v1/memory/patterns",
				"GET /v1/memory/emotional",
				"GET /metrics",
			},
		})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !a.Running() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, a.Status())
	})
	r.Post("/v1/interaction", func(w http.ResponseWriter, req *http.Request) {
		raw := req.URL.Query().Get("kind")
		if raw == "" {
			var body struct {
				Kind string `json:"kind"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil && err != io.EOF {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
				return
			}
			raw = body.Kind
		}
		if strings.TrimSpace(raw) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "kind is required"})
			return
		}
		kind, ok := domain.ParseInteractionKind(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown interaction kind: " + raw})
			return
		}
		if err := a.RegisterInteraction(kind); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "kind": kind})
	})
	r.Post("/v1/sensory", func(w http.ResponseWriter, req *http.Request) {
		var update domain.SensoryUpdate
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
		field, ok := domain.ParseSensoryField(string(update.Field))
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown field: " + string(update.Field)})
			return
		}
		update.Field = field
		if update.Source == "" {
			update.Source = "http"
		}
		if !sink.Offer(update) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "sensory queue full"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
	})
	r.Route("/v1/memory", func(r chi.Router) {
		r.Get("/recent", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"events": mem.ShortTerm()})
		})
		r.Get("/patterns", func(w http.ResponseWriter, req *http.Request) {
			var window time.Duration
			if raw := req.URL.Query().Get("window"); raw != "" {
				d, err := time.ParseDuration(raw)
				if err != nil || d <= 0 {
					writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid window"})
					return
				}
				window = d
			}
			patterns, err := mem.Patterns(req.Context(), window)
			if err != nil {
				writeMemoryError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
		})
		r.Get("/emotional", func(w http.ResponseWriter, req *http.Request) {
			var minWeight float64
			if raw := req.URL.Query().Get("min_weight"); raw != "" {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil || v < 0 || v > 1 {
					writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid min_weight"})
					return
				}
				minWeight = v
			}
			events, err := mem.EmotionalMemories(req.Context(), minWeight)
			if err != nil {
				writeMemoryError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"events": events})
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func writeMemoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, memory.ErrNoStore) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
