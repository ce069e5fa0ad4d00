// Package http exposes a session manager over HTTP: JSON turns, session
// administration, a Server-Sent Events diff stream, a WebSocket turn channel
// and Prometheus metrics. The contract lives in openapi.yaml, served at
// /openapi.yaml.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/internal/presentation/graph"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/runner"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves one agent's sessions.
type Server struct {
	Manager *session.Manager
	Streams *StreamManager

	logger       *slog.Logger
	gatherer     prometheus.Gatherer
	maxInputSize int
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics serves g at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMaxInputSize bounds the input of one turn in bytes.
func WithMaxInputSize(n int) Option {
	return func(s *Server) { s.maxInputSize = n }
}

// TurnRequest is the body of POST /sessions/{id}/turn.
type TurnRequest struct {
	Input string `json:"input"`
}

// TurnResponse is returned by a successful turn.
type TurnResponse struct {
	Result   *domain.TurnResult `json:"result"`
	Snapshot *domain.Snapshot   `json:"snapshot"`
}

// ErrorResponse describes a failed request. Snapshot is set when a session
// limit was reached and holds the unchanged committed state.
type ErrorResponse struct {
	Error    string           `json:"error"`
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
}

// NewServer creates a Server for the sessions of m.
func NewServer(m *session.Manager, opts ...Option) *Server {
	s := &Server{
		Manager: m,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s
}

// NewHandler creates a new HTTP handler for the sessions of m.
func NewHandler(m *session.Manager, opts ...Option) http.Handler {
	return NewServer(m, opts...).Routes()
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// Routes builds the chi router for every operation in openapi.yaml, plus
// /openapi.yaml itself and /metrics when a gatherer is configured.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec())
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return HandlerFromMux(s, r, func(w http.ResponseWriter, r *http.Request, err error) {
		s.writeError(w, http.StatusBadRequest, err.Error(), nil)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Turn handles POST /sessions/{id}/turn.
func (s *Server) Turn(w http.ResponseWriter, r *http.Request, id string) {
	raw, err := io.ReadAll(r.Body)
	if err == nil {
		err = validateBody("TurnRequest", raw)
	}
	var body TurnRequest
	if err == nil {
		err = json.Unmarshal(raw, &body)
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		s.logger.Warn("turn: invalid request body", "session_id", id, "err", err)
		return
	}

	resp, status, err := s.turn(r.Context(), id, body.Input)
	if err != nil {
		var snap *domain.Snapshot
		if resp != nil {
			snap = resp.Snapshot
		}
		s.writeError(w, status, err.Error(), snap)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// turn sanitizes input, runs the turn and broadcasts the resulting diff. It
// returns the HTTP status matching err.
func (s *Server) turn(ctx context.Context, id, input string) (*TurnResponse, int, error) {
	if input != "" {
		clean, err := s.sanitize(input)
		if err != nil {
			s.logger.Warn("turn: input rejected", "session_id", id, "err", err, "size", len(input))
			return nil, http.StatusBadRequest, fmt.Errorf("invalid input: %w", err)
		}
		input = clean
	}

	res, before, next, err := s.Manager.TurnWithPrevious(ctx, id, input)
	if err == nil {
		s.broadcast(id, before, next)
	}
	if err != nil {
		var limitErr *domain.LimitError
		if errors.As(err, &limitErr) {
			return &TurnResponse{Snapshot: next}, http.StatusUnprocessableEntity, err
		}
		s.logger.Error("turn failed", "session_id", id, "err", err)
		return nil, http.StatusInternalServerError, err
	}
	return &TurnResponse{Result: res, Snapshot: next}, http.StatusOK, nil
}

func (s *Server) sanitize(input string) (string, error) {
	if s.maxInputSize > 0 {
		return runner.SanitizeInputWithLimit(input, s.maxInputSize)
	}
	return runner.SanitizeInput(input)
}

func (s *Server) broadcast(id string, before, after *domain.Snapshot) {
	diff := domain.Diff(before, after)
	if diff == nil || diff.IsEmpty() {
		s.logger.Debug("turn: no diff calculated", "session_id", id)
		return
	}
	if b, err := json.Marshal(diff); err == nil {
		s.Streams.Broadcast(id, string(b))
	}
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Manager.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, id string) {
	snap, err := s.Manager.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.Manager.Delete(r.Context(), id); err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAgent handles GET /agent.
func (s *Server) GetAgent(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Manager.Agent().Inspect())
}

// GetGraph handles GET /agent/graph, returning Mermaid source. With a
// session query parameter the session's path is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request, params GetGraphParams) {
	var overlay *graph.GraphOverlay
	if params.Session != nil && *params.Session != "" {
		snap, err := s.Manager.Load(r.Context(), *params.Session)
		if err != nil {
			s.writeError(w, statusFor(err), err.Error(), nil)
			return
		}
		overlay = graph.OverlayFromSnapshot(snap)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(s.Manager.Agent().Inspect(), overlay)))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "stepwise-http",
		"version": strings.TrimSpace(stepwise.Version),
		"agent":   s.Manager.Agent().Inspect().Name,
	})
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, snap *domain.Snapshot) {
	s.writeJSON(w, status, ErrorResponse{Error: msg, Snapshot: snap})
}
