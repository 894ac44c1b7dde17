package preview

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/history"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/metrics"
)

// Server exposes watch-mode status over HTTP.
type Server struct {
	addr    string
	cfg     *config.Config
	state   *buildState
	history *history.Store
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a status server. The history store is optional.
func NewServer(addr string, cfg *config.Config, state *buildState) *Server {
	s := &Server{
		addr:   addr,
		cfg:    cfg,
		state:  state,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// WithHistory attaches an invocation ledger for the /history endpoint.
func (s *Server) WithHistory(store *history.Store) *Server {
	s.history = store
	return s
}

// WithMetrics exposes the given Prometheus registry under /metrics.
func (s *Server) WithMetrics(reg *prom.Registry) *Server {
	s.router.Get("/metrics", metrics.HTTPHandler(reg).ServeHTTP)
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/history", s.handleHistory)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Bind failures surface here; the watch loop keeps running
			// without a status server.
			slog.Warn("status server failed", logfields.Path(s.addr), logfields.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

type statusResponse struct {
	Healthy      bool     `json:"healthy"`
	HasGoodBuild bool     `json:"has_good_build"`
	Rebuilds     int      `json:"rebuilds"`
	LastError    string   `json:"last_error,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	Backends     []string `json:"backends,omitempty"`
	InvocationID string   `json:"invocation_id,omitempty"`
	DurationMS   int64    `json:"duration_ms,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	res, lastErr, good, rebuilds := s.state.snapshot()
	resp := statusResponse{
		Healthy:      lastErr == nil,
		HasGoodBuild: good,
		Rebuilds:     rebuilds,
	}
	if lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	if res != nil {
		resp.Mode = res.Mode
		resp.Backends = res.Backends
		resp.InvocationID = res.InvocationID
		resp.DurationMS = res.Duration.Milliseconds()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history disabled"})
		return
	}
	recent, err := s.history.Recent(r.Context(), 20)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
