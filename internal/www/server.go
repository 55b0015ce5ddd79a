package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldrobotics/mission-orchestrator/internal/logging"
	"github.com/fieldrobotics/mission-orchestrator/model"
)

// StatusSource is the read-only controller surface the status API needs.
type StatusSource interface {
	Missions() []model.Mission
	OverallStatus() model.OperationStatus
}

// Server exposes the operator's HTTP surface: Prometheus metrics and a
// JSON status endpoint for dashboards.
type Server struct {
	addr    string
	source  StatusSource
	metrics http.Handler
	log     logging.Logger

	httpServer *http.Server
}

// NewServer builds the HTTP server. metrics may be nil to omit /metrics.
func NewServer(addr string, source StatusSource, metrics http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{addr: addr, source: source, metrics: metrics, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start serves until Shutdown or a listener error.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info(ctx, "http server listening", logging.String("addr", s.addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Status   string        `json:"status"`
	Missions []missionView `json:"missions"`
}

type missionView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Points    int       `json:"points"`
	Inspected int       `json:"inspected"`
	CreatedAt time.Time `json:"created_at"`
	Reason    string    `json:"reason,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:   s.source.OverallStatus().String(),
		Missions: []missionView{},
	}
	for _, m := range s.source.Missions() {
		inspected := 0
		for _, p := range m.Points {
			if !p.InspectedAt.IsZero() {
				inspected++
			}
		}
		resp.Missions = append(resp.Missions, missionView{
			ID:        m.ID,
			Name:      m.Spec.Name,
			Status:    m.Status.String(),
			Points:    len(m.Points),
			Inspected: inspected,
			CreatedAt: m.CreatedAt,
			Reason:    m.FailReason,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn(r.Context(), "status encode failed", logging.Err(err))
	}
}
