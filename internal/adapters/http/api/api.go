// Package api declares HTTP contracts and route registration for the
// analysis service. Handlers translate JSON to domain calls and back;
// all semantics live in the domain packages.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/torp/internal/domain/benchmark"
	"github.com/okian/torp/internal/domain/enrich"
	"github.com/okian/torp/internal/domain/model"
	"github.com/okian/torp/internal/domain/scoring"
	"github.com/okian/torp/pkg/metrics"
)

// Dependencies bundles the service operations the handlers need.
type Dependencies interface {
	Enrich(ctx context.Context, req model.EnrichmentRequest) (enrich.Result, error)
	Analyze(ctx context.Context, req model.EnrichmentRequest, opts scoring.Options) (scoring.Score, error)
	Benchmark(ctx context.Context, sampleSize int, dr *benchmark.DateRange) (benchmark.Result, error)
	GetStats() map[string]any
}

// Server wires HTTP routes for the analysis API.
type Server struct {
	deps Dependencies
}

// NewServer creates an API server over the given dependencies.
func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(countRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/enrich", s.handleEnrich)
		r.Post("/benchmark", s.handleBenchmark)
	})
	return r
}

// countRequests records per-endpoint request counters.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.RecordHTTPRequest(r.URL.Path, r.Method, strconv.Itoa(ww.Status()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.GetStats())
}
