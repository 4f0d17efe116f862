package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/torp/internal/adapters/cache"
	"github.com/okian/torp/internal/adapters/http/api"
	"github.com/okian/torp/internal/adapters/source"
	app "github.com/okian/torp/internal/app"
	"github.com/okian/torp/internal/config"
	"github.com/okian/torp/internal/domain/scoring"
	"github.com/okian/torp/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithAdapters(buildAdapters(cfg)...),
		app.WithSourceTimeout(time.Duration(cfg.SourceTimeoutMS)*time.Millisecond),
		app.WithSoftDeadline(time.Duration(cfg.EnrichDeadlineMS)*time.Millisecond),
		app.WithConfidence(cfg.ConfidenceBase, cfg.ConfidenceBonus),
		app.WithCacheOptions(
			cache.WithClassTTL[source.Payload](cache.ClassCompany, time.Duration(cfg.CacheCompanyTTLHours)*time.Hour),
			cache.WithClassTTL[source.Payload](cache.ClassPrice, time.Duration(cfg.CachePriceTTLHours)*time.Hour),
			cache.WithClassTTL[source.Payload](cache.ClassGeo, time.Duration(cfg.CacheGeoTTLHours)*time.Hour),
			cache.WithClassTTL[source.Payload](cache.ClassDefault, time.Duration(cfg.CacheDefaultTTLMin)*time.Minute),
			cache.WithSweepPeriod[source.Payload](time.Duration(cfg.CacheSweepMin)*time.Minute),
		),
		app.WithScoringOptions(
			scoring.WithWeights(axisWeights(cfg.Weights)),
			scoring.WithVersion(cfg.AlgorithmVersion),
			scoring.WithLowAxisThreshold(cfg.LowAxisThreshold),
			scoring.WithPriceTolerance(cfg.PriceTolerancePct, cfg.SevereDeviationPct),
		),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc).Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP shutdown failed", logger.Error(err))
	}
}

// buildAdapters constructs an HTTP adapter per configured source URL.
// Sources without a URL stay unconfigured and never contribute.
func buildAdapters(cfg *config.Config) []source.Adapter {
	classes := map[source.Name]cache.Class{
		source.CompanyRegistry: cache.ClassCompany,
		source.Financial:       cache.ClassCompany,
		source.Reputation:      cache.ClassCompany,
		source.PriceReference:  cache.ClassPrice,
		source.Regional:        cache.ClassGeo,
		source.Compliance:      cache.ClassCompany,
		source.Weather:         cache.ClassDefault,
	}

	var adapters []source.Adapter
	for _, name := range source.Priority {
		baseURL, ok := cfg.Sources[string(name)]
		if !ok || baseURL == "" {
			continue
		}
		adapters = append(adapters, source.NewHTTPAdapter(name, classes[name], baseURL))
	}
	return adapters
}

// axisWeights converts config weight keys to scoring axes.
func axisWeights(w map[string]float64) map[scoring.Axis]float64 {
	out := make(map[scoring.Axis]float64, len(w))
	for k, v := range w {
		out[scoring.Axis(k)] = v
	}
	return out
}
