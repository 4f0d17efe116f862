// Package scoring computes the composite TORP score for a quote from its
// enrichment data: four weighted axis sub-scores, a letter grade, alerts
// and recommendations.
//
// The engine is configured once at construction (fail fast on bad
// weights or thresholds) and is pure afterwards: identical inputs yield
// identical Scores, with no wall-clock or random dependence.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/torp/internal/domain/enrich"
	"github.com/okian/torp/internal/domain/model"
	"github.com/okian/torp/pkg/metrics"
)

// Sentinel error kinds for this package.
var (
	// ErrConfiguration marks invalid engine configuration, detected at
	// construction time, never per request.
	ErrConfiguration = errors.New("invalid scoring configuration")
	// ErrInvalidInput marks a record missing the minimum required fields.
	ErrInvalidInput = errors.New("invalid scoring input")
)

// Axis is one of the four independent scoring dimensions.
type Axis string

const (
	AxisPrice      Axis = "price"
	AxisQuality    Axis = "quality"
	AxisDelay      Axis = "delay"
	AxisCompliance Axis = "compliance"
)

// axisOrder fixes iteration order for deterministic output.
var axisOrder = []Axis{AxisPrice, AxisQuality, AxisDelay, AxisCompliance}

// Grade is the discrete letter bucket of a composite score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// GradeThreshold maps a minimum composite value to a grade. The table is
// evaluated top-down; the first row whose Min is satisfied wins.
type GradeThreshold struct {
	Min   int
	Grade Grade
}

// Axis score range constants.
const (
	maxAxisScore    = 1000
	neutralScore    = 500
	weightEpsilon   = 1e-9
	defaultVersion  = "torp-2024.1"
	defaultLowAxis  = 400
	defaultPriceTol = 0.15 // deviation tolerated before penalty
	defaultSevereTol = 0.40 // deviation considered a red flag
	priceSlope       = 1500 // score lost per 100% deviation past tolerance
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert flags a problem detected during scoring, tied to the axis or
// condition that triggered it.
type Alert struct {
	Severity Severity `json:"severity"`
	Axis     Axis     `json:"axis,omitempty"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// Recommendation suggests a corrective or informational action. Unlike
// an alert it does not flag a defect.
type Recommendation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AxisScore is one axis sub-score plus the fixed weight applied to it.
type AxisScore struct {
	Score  int     `json:"score"`  // [0,1000]
	Weight float64 `json:"weight"` // axis weight, all weights sum to 1.0
}

// Breakdown holds the per-axis sub-scores of a Score.
type Breakdown map[Axis]AxisScore

// Score is the result of one scoring invocation. Immutable once
// produced; persistence is the caller's concern.
type Score struct {
	Value            int              `json:"value"` // [0,1000]
	Grade            Grade            `json:"grade"`
	Confidence       int              `json:"confidence"` // [0,100], from enrichment coverage
	Breakdown        Breakdown        `json:"breakdown"`
	Alerts           []Alert          `json:"alerts"`
	Recommendations  []Recommendation `json:"recommendations"`
	AlgorithmVersion string           `json:"algorithm_version"`
}

// Options carries per-call scoring context. Empty fields fall back to
// the record's own project metadata.
type Options struct {
	Region      string
	ProjectType string
}

// Engine computes Scores with a fixed weight/threshold configuration.
type Engine struct {
	weights   map[Axis]float64
	grades    []GradeThreshold
	version   string
	lowAxis   int
	priceTol  float64
	severeTol float64
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWeights replaces the axis weights. They must cover all four axes
// and sum to 1.0; New fails otherwise.
func WithWeights(w map[Axis]float64) Option {
	return func(e *Engine) {
		e.weights = make(map[Axis]float64, len(w))
		for axis, weight := range w {
			e.weights[axis] = weight
		}
	}
}

// WithGradeTable replaces the grade threshold table.
func WithGradeTable(t []GradeThreshold) Option {
	return func(e *Engine) {
		e.grades = append([]GradeThreshold(nil), t...)
	}
}

// WithVersion sets the algorithm version stamped on every Score.
func WithVersion(v string) Option {
	return func(e *Engine) {
		if v != "" {
			e.version = v
		}
	}
}

// WithLowAxisThreshold sets the axis score below which an alert fires.
func WithLowAxisThreshold(t int) Option {
	return func(e *Engine) {
		if t >= 0 && t <= maxAxisScore {
			e.lowAxis = t
		}
	}
}

// WithPriceTolerance tunes the deviation band of the price axis: tol is
// the penalty-free fraction, severe the red-flag fraction.
func WithPriceTolerance(tol, severe float64) Option {
	return func(e *Engine) {
		if tol > 0 {
			e.priceTol = tol
		}
		if severe > tol {
			e.severeTol = severe
		}
	}
}

// New constructs an Engine, validating the configuration. A weight set
// that does not sum to 1.0 or a malformed grade table is rejected here
// so that Calculate can never run on a broken configuration.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		weights: map[Axis]float64{
			AxisPrice:      0.25,
			AxisQuality:    0.30,
			AxisDelay:      0.20,
			AxisCompliance: 0.25,
		},
		grades: []GradeThreshold{
			{Min: 850, Grade: GradeA},
			{Min: 700, Grade: GradeB},
			{Min: 550, Grade: GradeC},
			{Min: 400, Grade: GradeD},
			{Min: 0, Grade: GradeE},
		},
		version:   defaultVersion,
		lowAxis:   defaultLowAxis,
		priceTol:  defaultPriceTol,
		severeTol: defaultSevereTol,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) validate() error {
	var sum float64
	for _, axis := range axisOrder {
		w, ok := e.weights[axis]
		if !ok {
			return fmt.Errorf("%w: missing weight for axis %q", ErrConfiguration, axis)
		}
		if w < 0 {
			return fmt.Errorf("%w: negative weight for axis %q", ErrConfiguration, axis)
		}
		sum += w
	}
	if len(e.weights) != len(axisOrder) {
		return fmt.Errorf("%w: unknown axis in weights", ErrConfiguration)
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: weights sum to %v, want 1.0", ErrConfiguration, sum)
	}

	if len(e.grades) == 0 {
		return fmt.Errorf("%w: empty grade table", ErrConfiguration)
	}
	for i, row := range e.grades {
		if row.Min < 0 || row.Min > maxAxisScore {
			return fmt.Errorf("%w: grade threshold %d out of range", ErrConfiguration, row.Min)
		}
		if i > 0 && row.Min >= e.grades[i-1].Min {
			return fmt.Errorf("%w: grade table not strictly descending", ErrConfiguration)
		}
	}
	if e.grades[len(e.grades)-1].Min != 0 {
		return fmt.Errorf("%w: grade table leaves a gap below %d", ErrConfiguration, e.grades[len(e.grades)-1].Min)
	}
	return nil
}

// Version returns the algorithm version stamped on Scores.
func (e *Engine) Version() string { return e.version }

// Weights returns a copy of the configured axis weights.
func (e *Engine) Weights() map[Axis]float64 {
	out := make(map[Axis]float64, len(e.weights))
	for a, w := range e.weights {
		out[a] = w
	}
	return out
}

// Calculate scores a record against its enrichment. The computation is
// synchronous and pure; ctx is accepted for interface consistency and
// future external lookups but is not currently blocking.
func (e *Engine) Calculate(ctx context.Context, record model.EnrichmentRequest, enr enrich.Result, opts Options) (Score, error) {
	start := time.Now()
	if err := record.Validate(); err != nil {
		return Score{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if opts.Region == "" {
		opts.Region = record.Project.Region
	}
	if opts.ProjectType == "" {
		opts.ProjectType = record.Project.Type
	}

	axes := map[Axis]axisResult{
		AxisPrice:      e.priceAxis(record, enr),
		AxisQuality:    e.qualityAxis(record, enr),
		AxisDelay:      e.delayAxis(record, enr, opts),
		AxisCompliance: e.complianceAxis(record, enr, opts),
	}

	breakdown := make(Breakdown, len(axisOrder))
	var composite float64
	for _, axis := range axisOrder {
		r := axes[axis]
		breakdown[axis] = AxisScore{Score: r.score, Weight: e.weights[axis]}
		composite += float64(r.score) * e.weights[axis]
	}
	value := int(math.Round(composite))
	if value < 0 {
		value = 0
	}
	if value > maxAxisScore {
		value = maxAxisScore
	}

	score := Score{
		Value:            value,
		Grade:            e.grade(value),
		Confidence:       enr.Confidence,
		Breakdown:        breakdown,
		Alerts:           e.alerts(axes, enr),
		Recommendations:  e.recommendations(record, enr, axes),
		AlgorithmVersion: e.version,
	}

	metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	metrics.RecordGrade(string(score.Grade))
	return score, nil
}

// GradeFor maps a composite value through the ordered threshold table.
// Exposed so hosts and calibration tooling can inspect the mapping.
func (e *Engine) GradeFor(value int) Grade { return e.grade(value) }

// grade maps a composite value through the ordered threshold table,
// first match wins.
func (e *Engine) grade(value int) Grade {
	for _, row := range e.grades {
		if value >= row.Min {
			return row.Grade
		}
	}
	// Unreachable: validate() guarantees a row with Min 0.
	return e.grades[len(e.grades)-1].Grade
}
