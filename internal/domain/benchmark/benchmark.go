// Package benchmark runs the scoring engine over historical samples to
// produce aggregate statistics and threshold-tuning advice. It serves
// calibration, not the request path, and its suggestions are advisory
// only, never auto-applied.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/torp/internal/domain/enrich"
	"github.com/okian/torp/internal/domain/model"
	"github.com/okian/torp/internal/domain/scoring"
	"github.com/okian/torp/pkg/logger"
	"github.com/okian/torp/pkg/metrics"
)

// ErrSampleFetch marks a failure to obtain the historical sample as a
// whole. Per-record scoring failures are collected, not raised.
var ErrSampleFetch = errors.New("sample fetch failed")

// Saturation fractions that trigger threshold-tuning suggestions.
const (
	floorBand        = 100  // axis scores within this of 0 count as floored
	ceilBand         = 100  // axis scores within this of 1000 count as saturated
	saturationRatio  = 0.25 // fraction of samples at a bound worth flagging
	gradeSkewRatio   = 0.5  // fraction of samples in one grade worth flagging
	minSampleForHint = 10
)

// DateRange bounds a historical sample query.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Sample is one historical record with the enrichment captured when it
// was originally analyzed, so calibration replays exactly what the
// request path saw.
type Sample struct {
	Record     model.EnrichmentRequest
	Enrichment enrich.Result
}

// SampleProvider supplies historical samples. Implemented by the host
// application's storage layer.
type SampleProvider interface {
	GetSample(ctx context.Context, n int, dr *DateRange) ([]Sample, error)
}

// AxisStats aggregates one axis's sub-score distribution.
type AxisStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// ThresholdSuggestion is an advisory calibration hint.
type ThresholdSuggestion struct {
	Axis    scoring.Axis `json:"axis,omitempty"`
	Message string       `json:"message"`
}

// Result is the outcome of one benchmark run. Ephemeral; not persisted
// by this package.
type Result struct {
	RunID            string                         `json:"run_id"`
	SampleSize       int                            `json:"sample_size"`
	Scored           int                            `json:"scored"`
	Skipped          int                            `json:"skipped"`
	SkipReasons      []string                       `json:"skip_reasons,omitempty"`
	AxisStats        map[scoring.Axis]AxisStats     `json:"axis_stats"`
	GradeCounts      map[scoring.Grade]int          `json:"grade_counts"`
	MeanComposite    float64                        `json:"mean_composite"`
	Suggestions      []ThresholdSuggestion          `json:"suggestions"`
	AlgorithmVersion string                         `json:"algorithm_version"`
}

// Runner executes benchmark runs against a scoring engine.
type Runner struct {
	engine   *scoring.Engine
	provider SampleProvider
	log      logger.Logger
}

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Runner over the given engine and sample provider.
func New(engine *scoring.Engine, provider SampleProvider, opts ...Option) *Runner {
	r := &Runner{engine: engine, provider: provider}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("benchmark")
	}
	return r
}

// Run scores up to sampleSize historical records and aggregates the
// distributions. Individual record failures are counted and reported,
// never aborting the batch.
func (r *Runner) Run(ctx context.Context, sampleSize int, dr *DateRange) (Result, error) {
	if sampleSize <= 0 {
		return Result{}, fmt.Errorf("%w: sample size must be positive", ErrSampleFetch)
	}
	samples, err := r.provider.GetSample(ctx, sampleSize, dr)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSampleFetch, err)
	}

	res := Result{
		RunID:            uuid.NewString(),
		SampleSize:       len(samples),
		AxisStats:        make(map[scoring.Axis]AxisStats),
		GradeCounts:      make(map[scoring.Grade]int),
		AlgorithmVersion: r.engine.Version(),
	}

	axisValues := make(map[scoring.Axis][]int)
	var composites []int
	for i, s := range samples {
		score, err := r.engine.Calculate(ctx, s.Record, s.Enrichment, scoring.Options{})
		if err != nil {
			res.Skipped++
			res.SkipReasons = append(res.SkipReasons, fmt.Sprintf("sample %d: %v", i, err))
			continue
		}
		res.Scored++
		composites = append(composites, score.Value)
		res.GradeCounts[score.Grade]++
		for axis, as := range score.Breakdown {
			axisValues[axis] = append(axisValues[axis], as.Score)
		}
	}

	for axis, values := range axisValues {
		res.AxisStats[axis] = stats(values)
	}
	if len(composites) > 0 {
		res.MeanComposite = mean(composites)
	}
	res.Suggestions = r.suggest(res, axisValues)

	metrics.RecordBenchmarkRun(res.Scored, res.Skipped)
	r.log.Info(ctx, "benchmark run complete",
		logger.String("run_id", res.RunID),
		logger.Int("scored", res.Scored),
		logger.Int("skipped", res.Skipped),
	)
	return res, nil
}

// suggest inspects the distributions for saturation and skew worth a
// calibration pass.
func (r *Runner) suggest(res Result, axisValues map[scoring.Axis][]int) []ThresholdSuggestion {
	var out []ThresholdSuggestion
	if res.Scored < minSampleForHint {
		return out
	}

	// Deterministic axis iteration order.
	for _, axis := range []scoring.Axis{scoring.AxisPrice, scoring.AxisQuality, scoring.AxisDelay, scoring.AxisCompliance} {
		values := axisValues[axis]
		if len(values) == 0 {
			continue
		}
		var floored, saturated int
		for _, v := range values {
			if v <= floorBand {
				floored++
			}
			if v >= 1000-ceilBand {
				saturated++
			}
		}
		if float64(floored)/float64(len(values)) >= saturationRatio {
			out = append(out, ThresholdSuggestion{
				Axis:    axis,
				Message: fmt.Sprintf("%s axis floors for %d of %d samples; consider softening its penalty curve", axis, floored, len(values)),
			})
		}
		if float64(saturated)/float64(len(values)) >= saturationRatio {
			out = append(out, ThresholdSuggestion{
				Axis:    axis,
				Message: fmt.Sprintf("%s axis saturates for %d of %d samples; consider tightening its tolerance", axis, saturated, len(values)),
			})
		}
	}

	for _, grade := range []scoring.Grade{scoring.GradeA, scoring.GradeB, scoring.GradeC, scoring.GradeD, scoring.GradeE} {
		count := res.GradeCounts[grade]
		if res.Scored > 0 && float64(count)/float64(res.Scored) >= gradeSkewRatio {
			out = append(out, ThresholdSuggestion{
				Message: fmt.Sprintf("grade %s covers %d of %d samples; grade thresholds may need rebalancing", grade, count, res.Scored),
			})
		}
	}
	return out
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

func stats(values []int) AxisStats {
	if len(values) == 0 {
		return AxisStats{}
	}
	m := mean(values)
	minV, maxV := values[0], values[0]
	var sq float64
	for _, v := range values {
		d := float64(v) - m
		sq += d * d
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return AxisStats{
		Mean:   m,
		StdDev: math.Sqrt(sq / float64(len(values))),
		Min:    minV,
		Max:    maxV,
	}
}
