// Package enrich orchestrates multi-source data enrichment: concurrent
// fan-out to source adapters, TTL-cached lookups, deterministic merging
// and a coverage-based confidence score.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/torp/internal/adapters/cache"
	"github.com/okian/torp/internal/adapters/source"
	"github.com/okian/torp/internal/domain/model"
	"github.com/okian/torp/pkg/logger"
	"github.com/okian/torp/pkg/metrics"
)

// ErrInvalidRequest is returned when the enrichment request lacks the
// structural minimum (company identity, items, region). Source failures
// never surface as errors from Enrich.
var ErrInvalidRequest = errors.New("invalid enrichment request")

// Default aggregation configuration constants.
const (
	defaultSourceTimeout = 4 * time.Second
	defaultSoftDeadline  = 8 * time.Second

	defaultConfidenceBase  = 70
	defaultConfidenceBonus = 6
	confidenceCap          = 100
)

// highValueSources earn a confidence bonus when successfully fetched.
// Coverage of these materially changes how much the score can be trusted.
var highValueSources = map[source.Name]bool{
	source.Financial:      true,
	source.Reputation:     true,
	source.PriceReference: true,
	source.Regional:       true,
	source.Compliance:     true,
}

// Status tags a source outcome.
type Status int

const (
	// StatusSuccess means the source contributed data.
	StatusSuccess Status = iota
	// StatusUnavailable means the source failed or timed out; Reason
	// retains the cause for diagnostics.
	StatusUnavailable
)

// Outcome is the per-source result of an aggregation. Exactly one of
// Data/Reason is meaningful depending on Status.
type Outcome struct {
	Status Status
	Data   source.Payload
	Reason string
	Cached bool
}

// Result is the merged enrichment for one request. Outcomes holds an
// explicit entry for every configured source, including the failed ones:
// a missing source means "not configured", never "silently dropped".
type Result struct {
	Outcomes map[source.Name]Outcome
	// Sources lists the contributing sources in fixed priority order.
	Sources []source.Name
	// Confidence reflects evidentiary coverage in [0,100], not
	// statistical certainty.
	Confidence int
}

// Payload returns the successful payload for a source, if any.
func (r Result) Payload(name source.Name) (source.Payload, bool) {
	o, ok := r.Outcomes[name]
	if !ok || o.Status != StatusSuccess {
		return nil, false
	}
	return o.Data, true
}

// Aggregator fans out enrichment lookups across configured sources.
// Construct once and share; all per-request state is local to Enrich.
type Aggregator struct {
	adapters []source.Adapter
	cache    *cache.Cache[source.Payload]

	sourceTimeout   time.Duration
	softDeadline    time.Duration
	confidenceBase  int
	confidenceBonus int

	log logger.Logger
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithSourceTimeout bounds each individual adapter call.
func WithSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.sourceTimeout = d
		}
	}
}

// WithSoftDeadline bounds the whole aggregation; sources unresolved at
// the deadline are reported unavailable.
func WithSoftDeadline(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.softDeadline = d
		}
	}
}

// WithConfidence overrides the base and per-source bonus of the
// confidence heuristic.
func WithConfidence(base, bonus int) Option {
	return func(a *Aggregator) {
		if base >= 0 && base <= confidenceCap {
			a.confidenceBase = base
		}
		if bonus >= 0 {
			a.confidenceBonus = bonus
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// New creates an Aggregator over the given adapters and cache.
func New(adapters []source.Adapter, c *cache.Cache[source.Payload], opts ...Option) *Aggregator {
	a := &Aggregator{
		adapters:        adapters,
		cache:           c,
		sourceTimeout:   defaultSourceTimeout,
		softDeadline:    defaultSoftDeadline,
		confidenceBase:  defaultConfidenceBase,
		confidenceBonus: defaultConfidenceBonus,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get().Named("enrich")
	}
	return a
}

// Enrich gathers data from every configured source for the request.
// Individual source failures are absorbed into the result; the only
// fatal condition is a structurally invalid request.
func (a *Aggregator) Enrich(ctx context.Context, req model.EnrichmentRequest) (Result, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.softDeadline)
	defer cancel()

	outcomes := make([]Outcome, len(a.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range a.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			outcomes[i] = a.fetchOne(gctx, adapter, req)
			return nil
		})
	}
	// Workers never return errors; failures live in the outcome slots.
	_ = g.Wait()

	res := Result{Outcomes: make(map[source.Name]Outcome, len(a.adapters))}
	for i, adapter := range a.adapters {
		res.Outcomes[adapter.Name()] = outcomes[i]
	}
	// Merge order is fixed by source priority, not arrival order.
	for _, name := range source.Priority {
		if o, ok := res.Outcomes[name]; ok && o.Status == StatusSuccess {
			res.Sources = append(res.Sources, name)
		}
	}
	res.Confidence = a.confidence(res)

	metrics.RecordEnrichmentDuration(float64(time.Since(start).Milliseconds()))
	a.log.Debug(ctx, "enrichment complete",
		logger.String("company", req.Company.Name),
		logger.Int("sources_ok", len(res.Sources)),
		logger.Int("sources_total", len(a.adapters)),
		logger.Int("confidence", res.Confidence),
	)
	return res, nil
}

// fetchOne resolves a single source: cache first, then the adapter with
// its individual timeout. Panics in third-party adapters are contained
// and reported as unavailability.
func (a *Aggregator) fetchOne(ctx context.Context, adapter source.Adapter, req model.EnrichmentRequest) (out Outcome) {
	name := adapter.Name()
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: StatusUnavailable, Reason: fmt.Sprintf("adapter panic: %v", r)}
			metrics.RecordSourceFailure(string(name))
		}
	}()

	key := cacheKey(name, req)
	if data, ok := a.cache.Get(ctx, key); ok {
		metrics.RecordSourceSuccess(string(name))
		return Outcome{Status: StatusSuccess, Data: data, Cached: true}
	}

	fctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	data, err := adapter.Fetch(fctx, req)
	if err != nil {
		metrics.RecordSourceFailure(string(name))
		a.log.Warn(ctx, "source unavailable",
			logger.String("source", string(name)),
			logger.Error(err),
		)
		return Outcome{Status: StatusUnavailable, Reason: err.Error()}
	}
	if data == nil {
		metrics.RecordSourceFailure(string(name))
		return Outcome{Status: StatusUnavailable, Reason: "adapter returned no data"}
	}

	a.cache.Set(ctx, key, data, adapter.Class())
	metrics.RecordSourceSuccess(string(name))
	return Outcome{Status: StatusSuccess, Data: data}
}

// confidence applies the coverage heuristic: a fixed base plus a bonus
// for each high-value source that contributed, capped at 100.
func (a *Aggregator) confidence(res Result) int {
	c := a.confidenceBase
	for _, name := range res.Sources {
		if highValueSources[name] {
			c += a.confidenceBonus
		}
	}
	if c > confidenceCap {
		c = confidenceCap
	}
	if c < 0 {
		c = 0
	}
	return c
}

// cacheKey derives the cache key from the source name and the request
// fields that source keys on.
func cacheKey(name source.Name, req model.EnrichmentRequest) string {
	params := map[string]string{
		"company": req.Company.Name,
	}
	if req.Company.NationalID != "" {
		params["national_id"] = req.Company.NationalID
	}
	switch name {
	case source.PriceReference, source.Regional, source.Weather:
		// Geographic sources key on location, not company.
		params = map[string]string{
			"region":       req.Project.Region,
			"project_type": req.Project.Type,
		}
	case source.CompanyRegistry, source.Financial, source.Reputation, source.Compliance:
		// Company-keyed sources use the identity params above.
	}
	return cache.Key("src:"+string(name), params)
}
