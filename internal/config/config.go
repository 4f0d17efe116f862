// Package config defines service configuration structures and loading.
//
// Conventions:
// - Provide New(...) defaults and Load(ctx) for layered loading.
// - External errors are wrapped via this package's sentinel kinds.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Sources maps a source name to the base URL of its JSON endpoint.
	// Unlisted sources are simply not configured.
	Sources map[string]string `koanf:"sources"`

	// SourceTimeoutMS bounds each individual source fetch.
	SourceTimeoutMS int `koanf:"source_timeout_ms"`

	// EnrichDeadlineMS is the soft deadline for a whole aggregation.
	EnrichDeadlineMS int `koanf:"enrich_deadline_ms"`

	// Cache TTLs per data class, and the janitor sweep interval.
	CacheCompanyTTLHours int `koanf:"cache_company_ttl_hours"`
	CachePriceTTLHours   int `koanf:"cache_price_ttl_hours"`
	CacheGeoTTLHours     int `koanf:"cache_geo_ttl_hours"`
	CacheDefaultTTLMin   int `koanf:"cache_default_ttl_min"`
	CacheSweepMin        int `koanf:"cache_sweep_min"`

	// ConfidenceBase and ConfidenceBonus tune the coverage heuristic.
	ConfidenceBase  int `koanf:"confidence_base"`
	ConfidenceBonus int `koanf:"confidence_bonus"`

	// Weights maps scoring axes to their weights; must sum to 1.0.
	Weights map[string]float64 `koanf:"weights"`

	// LowAxisThreshold is the axis score below which an alert fires.
	LowAxisThreshold int `koanf:"low_axis_threshold"`

	// PriceTolerancePct and SevereDeviationPct bound the price axis
	// penalty band (fractions, e.g. 0.15).
	PriceTolerancePct  float64 `koanf:"price_tolerance_pct"`
	SevereDeviationPct float64 `koanf:"severe_deviation_pct"`

	// AlgorithmVersion is stamped on every produced score.
	AlgorithmVersion string `koanf:"algorithm_version"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		Sources:              map[string]string{},
		SourceTimeoutMS:      4000,
		EnrichDeadlineMS:     8000,
		CacheCompanyTTLHours: 24,
		CachePriceTTLHours:   6,
		CacheGeoTTLHours:     168,
		CacheDefaultTTLMin:   30,
		CacheSweepMin:        60,
		ConfidenceBase:       70,
		ConfidenceBonus:      6,
		Weights: map[string]float64{
			"price":      0.25,
			"quality":    0.30,
			"delay":      0.20,
			"compliance": 0.25,
		},
		LowAxisThreshold:   400,
		PriceTolerancePct:  0.15,
		SevereDeviationPct: 0.40,
		AlgorithmVersion:   "torp-2024.1",
	}
}
