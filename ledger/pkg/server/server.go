// Package server exposes the ledger core over HTTP, one route per core
// operation. Callers are identified by the X-Caller-Address header set by
// the authenticating proxy in front of this service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/descilabs/desci-ledger/ledger/pkg/core"
	"github.com/descilabs/desci-ledger/ledger/pkg/metrics"
	"github.com/descilabs/desci-ledger/ledger/pkg/store"
)

type Server struct {
	log     *slog.Logger
	cfg     Config
	ledger  *core.Ledger
	store   *store.Store
	router  *chi.Mux
	httpSrv *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log:    cfg.Logger,
		cfg:    cfg,
		ledger: cfg.Ledger,
		store:  cfg.Store,
		router: chi.NewRouter(),
	}
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestMetrics)
	if len(s.cfg.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Caller-Address"},
		}))
	}
	if s.cfg.RequestsPerMinute > 0 {
		limiter := NewRateLimiter(rate.Every(time.Minute/time.Duration(s.cfg.RequestsPerMinute)), s.cfg.RateBurst)
		s.router.Use(RateLimitMiddleware(limiter))
	}

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleHealthz)
	s.router.Get("/version", s.handleVersion)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/experiments", func(r chi.Router) {
			r.Post("/", s.handleCreateExperiment)
			r.Get("/", s.handleListExperiments)
			r.Get("/{id}", s.handleGetExperiment)
			r.Post("/{id}/fund", s.handleFundExperiment)
			r.Post("/{id}/refund", s.handleRefundContributions)
			r.Post("/{id}/process", s.handleProcessFundingSuccess)
			r.Get("/{id}/contributions/{address}", s.handleGetContribution)
			r.Post("/{id}/datasets", s.handleAddDataset)
			r.Get("/{id}/datasets", s.handleListDatasets)
			r.Get("/{id}/datasets/{datasetID}", s.handleGetDataset)
			r.Post("/{id}/datasets/{datasetID}/nft", s.handleMintDatasetNFT)
			r.Post("/{id}/datasets/{datasetID}/cite", s.handleCiteDataset)
		})

		r.Route("/financial", func(r chi.Router) {
			r.Get("/policy", s.handleGetPolicy)
			r.Get("/stats", s.handleGetStats)
			r.Get("/transactions", s.handleGetTransactions)
			r.Post("/yield", s.handleRecordYield)
			r.Post("/distribute", s.handleDistributeProfits)
		})

		r.Route("/milestones", func(r chi.Router) {
			r.Post("/", s.handleCreateMilestone)
			r.Get("/{id}", s.handleGetMilestone)
			r.Put("/{id}/progress", s.handleUpdateMilestoneProgress)
			r.Put("/{id}/kpis/{index}", s.handleUpdateMilestoneKPI)
			r.Post("/{id}/data", s.handleUploadMilestoneData)
			r.Get("/{id}/data", s.handleGetMilestoneData)
		})

		r.Get("/phases/{id}/progress", s.handleGetPhaseProgress)
		r.Post("/managers", s.handleAddProjectManager)
		r.Get("/researchers/{address}/funds", s.handleGetResearcherFunds)
	})
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("server: http listening", "address", s.cfg.ListenAddr)

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	case err := <-serveErrCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		metrics.RequestsTotal.WithLabelValues(r.Method, route, fmt.Sprintf("%d", ww.Status())).Inc()
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write health response", "error", err)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.VersionInfo)
}

// persist writes a fresh snapshot after a committed mutation. Failures are
// logged, not surfaced: the in-memory ledger is authoritative and the next
// mutation writes a superseding snapshot.
func (s *Server) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.SaveSnapshot(saveCtx, s.ledger.Snapshot()); err != nil {
		metrics.SnapshotWritesTotal.WithLabelValues("error").Inc()
		s.log.Error("server: failed to persist snapshot", "error", err)
		return
	}
	metrics.SnapshotWritesTotal.WithLabelValues("ok").Inc()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.log.Error("server: internal error", "error", err)
	}
	metrics.OperationErrorsTotal.WithLabelValues(errorKind(err)).Inc()
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidArgument), errors.Is(err, core.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrExpired),
		errors.Is(err, core.ErrPolicyViolation),
		errors.Is(err, core.ErrAlreadyExists),
		errors.Is(err, core.ErrAlreadyProcessed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, core.ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, core.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, core.ErrExpired):
		return "expired"
	case errors.Is(err, core.ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, core.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, core.ErrAlreadyProcessed):
		return "already_processed"
	default:
		return "internal"
	}
}
