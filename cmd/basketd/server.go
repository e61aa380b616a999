package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basketcore/basket"
	"basketcore/events"
	"basketcore/observability"
)

const headerRequestID = "X-Request-Id"

// server exposes read-only inspection endpoints over the in-memory ledger.
type server struct {
	token    *basket.Token
	recorder *events.Recorder
	logger   *slog.Logger
	metrics  *observability.GatewayMetricsRegistry
}

func newServer(token *basket.Token, recorder *events.Recorder, logger *slog.Logger) *server {
	return &server{
		token:    token,
		recorder: recorder,
		logger:   logger,
		metrics:  observability.GatewayMetrics(),
	}
}

func (s *server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/positions", s.handlePositions)
	r.Get("/v1/components", s.handleComponents)
	r.Get("/v1/modules", s.handleModules)
	r.Get("/v1/events", s.handleEvents)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)
		s.metrics.ObserveRequest(r.URL.Path, rec.status, duration)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"durationMs", duration.Milliseconds(),
			"requestId", rec.Header().Get(headerRequestID),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type positionPayload struct {
	Component string `json:"component"`
	Module    string `json:"module,omitempty"`
	Unit      string `json:"unit"`
	Kind      string `json:"kind"`
	Data      string `json:"data,omitempty"`
}

func (s *server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions := s.token.Positions()
	payload := make([]positionPayload, 0, len(positions))
	for _, pos := range positions {
		entry := positionPayload{
			Component: pos.Component.Hex(),
			Unit:      pos.Unit.String(),
			Kind:      "default",
		}
		if pos.Kind == basket.KindExternal {
			entry.Kind = "external"
			entry.Module = pos.Module.Hex()
			if len(pos.Data) > 0 {
				entry.Data = hexutil.Encode(pos.Data)
			}
		}
		payload = append(payload, entry)
	}
	s.metrics.SetLedgerStats(len(s.token.Components()), len(s.token.Modules()))
	s.writeJSON(w, map[string]any{
		"basket":             s.token.Address().Hex(),
		"totalSupply":        s.token.TotalSupply().String(),
		"positionMultiplier": s.token.PositionMultiplier().String(),
		"positions":          payload,
	})
}

func (s *server) handleComponents(w http.ResponseWriter, r *http.Request) {
	components := s.token.Components()
	payload := make([]string, 0, len(components))
	for _, component := range components {
		payload = append(payload, component.Hex())
	}
	s.writeJSON(w, map[string]any{"components": payload})
}

func (s *server) handleModules(w http.ResponseWriter, r *http.Request) {
	modules := s.token.Modules()
	payload := make([]map[string]string, 0, len(modules))
	for _, module := range modules {
		payload = append(payload, map[string]string{
			"address": module.Hex(),
			"state":   s.token.ModuleState(module).String(),
		})
	}
	s.writeJSON(w, map[string]any{"modules": payload})
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	recorded := s.recorder.Events()
	payload := make([]*events.Event, 0, len(recorded))
	payload = append(payload, recorded...)
	s.writeJSON(w, map[string]any{"events": payload})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}
