// Package service wires the enrichment and scoring components together
// and exposes the operations the HTTP API depends on.
//
// Construction is explicit dependency injection: the service is built
// once at process start and passed to call sites. No component keeps
// hidden global state; the cache is the only shared mutable resource.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/torp/internal/adapters/cache"
	"github.com/okian/torp/internal/adapters/sink"
	"github.com/okian/torp/internal/adapters/source"
	"github.com/okian/torp/internal/domain/benchmark"
	"github.com/okian/torp/internal/domain/enrich"
	"github.com/okian/torp/internal/domain/model"
	"github.com/okian/torp/internal/domain/scoring"
	"github.com/okian/torp/pkg/logger"
	"github.com/okian/torp/pkg/metrics"
)

// ErrNotStarted is returned when an operation runs before Start.
var ErrNotStarted = errors.New("service not started")

// ErrNoSampleProvider is returned from Benchmark when no historical
// sample provider was wired.
var ErrNoSampleProvider = errors.New("no sample provider configured")

// Service implements the analysis pipeline behind the API.
type Service struct {
	mu sync.RWMutex

	// Core components, built in Start.
	cache      *cache.Cache[source.Payload]
	aggregator *enrich.Aggregator
	engine     *scoring.Engine
	runner     *benchmark.Runner
	scoreSink  sink.Sink

	// Configuration applied before Start.
	adapters        []source.Adapter
	sampleProvider  benchmark.SampleProvider
	sourceTimeout   time.Duration
	softDeadline    time.Duration
	confidenceBase  int
	confidenceBonus int
	cacheOpts       []cache.Option[source.Payload]
	engineOpts      []scoring.Option

	started bool
	cancel  context.CancelFunc

	log logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithAdapters sets the enrichment source adapters.
func WithAdapters(adapters ...source.Adapter) Option {
	return func(s *Service) {
		s.adapters = adapters
	}
}

// WithSink sets the score persistence sink.
func WithSink(sk sink.Sink) Option {
	return func(s *Service) {
		if sk != nil {
			s.scoreSink = sk
		}
	}
}

// WithSampleProvider wires the historical sample provider used by
// Benchmark.
func WithSampleProvider(p benchmark.SampleProvider) Option {
	return func(s *Service) {
		s.sampleProvider = p
	}
}

// WithSourceTimeout bounds individual source fetches.
func WithSourceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sourceTimeout = d
		}
	}
}

// WithSoftDeadline bounds whole aggregations.
func WithSoftDeadline(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.softDeadline = d
		}
	}
}

// WithConfidence tunes the enrichment confidence heuristic.
func WithConfidence(base, bonus int) Option {
	return func(s *Service) {
		s.confidenceBase = base
		s.confidenceBonus = bonus
	}
}

// WithCacheOptions forwards options to the payload cache.
func WithCacheOptions(opts ...cache.Option[source.Payload]) Option {
	return func(s *Service) {
		s.cacheOpts = append(s.cacheOpts, opts...)
	}
}

// WithScoringOptions forwards options to the scoring engine.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sourceTimeout:   4 * time.Second,
		softDeadline:    8 * time.Second,
		confidenceBase:  70,
		confidenceBonus: 6,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline components. Scoring configuration problems
// are reported here, never at request time.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get().Named("app")
	}
	s.log.Info(ctx, "starting analysis service")

	s.cache = cache.New(s.cacheOpts...)
	janitorCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cache.StartJanitor(janitorCtx)

	s.aggregator = enrich.New(s.adapters, s.cache,
		enrich.WithSourceTimeout(s.sourceTimeout),
		enrich.WithSoftDeadline(s.softDeadline),
		enrich.WithConfidence(s.confidenceBase, s.confidenceBonus),
		enrich.WithLogger(s.log.Named("enrich")),
	)

	engine, err := scoring.New(s.engineOpts...)
	if err != nil {
		cancel()
		return err
	}
	s.engine = engine

	if s.scoreSink == nil {
		s.scoreSink = sink.NewLogSink(s.log.Named("sink"))
	}
	if s.sampleProvider != nil {
		s.runner = benchmark.New(s.engine, s.sampleProvider,
			benchmark.WithLogger(s.log.Named("benchmark")),
		)
	}

	s.started = true
	s.log.Info(ctx, "analysis service started",
		logger.Int("sources", len(s.adapters)),
		logger.String("algorithm_version", s.engine.Version()),
	)
	return nil
}

// Stop shuts the service down, stopping the cache janitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.cache.StopJanitor()
	s.started = false
	s.log.Info(context.Background(), "analysis service stopped")
}

// Enrich aggregates external data for the request.
func (s *Service) Enrich(ctx context.Context, req model.EnrichmentRequest) (enrich.Result, error) {
	s.mu.RLock()
	agg, started := s.aggregator, s.started
	s.mu.RUnlock()
	if !started {
		return enrich.Result{}, ErrNotStarted
	}
	return agg.Enrich(ctx, req)
}

// Calculate scores a record against an existing enrichment.
func (s *Service) Calculate(ctx context.Context, record model.EnrichmentRequest, enr enrich.Result, opts scoring.Options) (scoring.Score, error) {
	s.mu.RLock()
	engine, started := s.engine, s.started
	s.mu.RUnlock()
	if !started {
		return scoring.Score{}, ErrNotStarted
	}
	return engine.Calculate(ctx, record, enr, opts)
}

// Analyze runs the full pipeline: enrich, score, then hand the result to
// the persistence sink without blocking the caller on the write.
func (s *Service) Analyze(ctx context.Context, req model.EnrichmentRequest, opts scoring.Options) (scoring.Score, error) {
	enr, err := s.Enrich(ctx, req)
	if err != nil {
		return scoring.Score{}, err
	}
	score, err := s.Calculate(ctx, req, enr, opts)
	if err != nil {
		return scoring.Score{}, err
	}

	rec := sink.NewRecord(req.Company.Name, score)
	go func() {
		// Fire and forget; persistence problems must not fail analyses.
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.scoreSink.Save(saveCtx, rec); err != nil {
			s.log.Warn(saveCtx, "score persistence failed",
				logger.String("id", rec.ID),
				logger.Error(err),
			)
		}
	}()
	return score, nil
}

// Benchmark runs the calibration batch over historical samples.
func (s *Service) Benchmark(ctx context.Context, sampleSize int, dr *benchmark.DateRange) (benchmark.Result, error) {
	s.mu.RLock()
	runner, started := s.runner, s.started
	s.mu.RUnlock()
	if !started {
		return benchmark.Result{}, ErrNotStarted
	}
	if runner == nil {
		return benchmark.Result{}, ErrNoSampleProvider
	}
	return runner.Run(ctx, sampleSize, dr)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
		"sources": len(s.adapters),
	}
	if s.started {
		n := s.cache.Len(context.Background())
		stats["cache_entries"] = n
		stats["algorithm_version"] = s.engine.Version()
		metrics.UpdateCacheSize(n)
	}
	return stats
}
