package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/torp/internal/adapters/cache"
	"github.com/okian/torp/internal/adapters/sink"
	"github.com/okian/torp/internal/adapters/source"
	app "github.com/okian/torp/internal/app"
	"github.com/okian/torp/internal/domain/benchmark"
	"github.com/okian/torp/internal/domain/model"
	"github.com/okian/torp/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

type capturingSink struct {
	mu   sync.Mutex
	recs []sink.Record
	done chan struct{}
}

func newCapturingSink() *capturingSink {
	return &capturingSink{done: make(chan struct{}, 8)}
}

func (c *capturingSink) Save(_ context.Context, rec sink.Record) error {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func (c *capturingSink) saved() []sink.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sink.Record(nil), c.recs...)
}

func analysisRequest() model.EnrichmentRequest {
	return model.EnrichmentRequest{
		Company: model.CompanyIdentity{Name: "Batimex SARL", NationalID: "123456789"},
		Items: []model.LineItem{
			{Description: "isolation combles", Quantity: 80, UnitPrice: 45, TotalPrice: 3600, Category: "isolation"},
		},
		Project: model.ProjectMeta{Type: "renovation", Region: "bretagne", TradeType: "isolation", DurationDays: 28},
	}
}

func testAdapters() []source.Adapter {
	return []source.Adapter{
		source.Static(source.CompanyRegistry, cache.ClassCompany, source.RegistryData{Registered: true, Active: true, YearsActive: 9}),
		source.Static(source.Reputation, cache.ClassCompany, source.ReputationData{Rating: 4.0, ReviewCount: 25}),
		source.Static(source.PriceReference, cache.ClassPrice, source.PriceBook{
			Region:          "bretagne",
			ReferencePrices: map[string]float64{"isolation": 45},
		}),
		source.Static(source.Regional, cache.ClassGeo, source.RegionalBenchmarks{
			Region:              "bretagne",
			TypicalDurationDays: map[string]int{"renovation": 30},
		}),
		source.Static(source.Compliance, cache.ClassCompany, source.ComplianceData{
			Certifications: []string{"RGE"},
			InsuranceValid: true,
		}),
	}
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given an unstarted service", t, func() {
		svc := app.New(app.WithAdapters(testAdapters()...))

		Convey("Then operations refuse to run", func() {
			_, err := svc.Enrich(context.Background(), analysisRequest())
			So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When started", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			defer svc.Stop()

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})

			Convey("And stats report the wiring", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["sources"], ShouldEqual, 5)
			})
		})
	})

	Convey("Given a service with broken scoring configuration", t, func() {
		svc := app.New(app.WithScoringOptions(scoring.WithWeights(map[scoring.Axis]float64{
			scoring.AxisPrice: 1.5,
		})))

		Convey("Then Start fails fast", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, scoring.ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestServiceAnalyze(t *testing.T) {
	Convey("Given a started service with a capturing sink", t, func() {
		cs := newCapturingSink()
		svc := app.New(
			app.WithAdapters(testAdapters()...),
			app.WithSink(cs),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When analyzing a quote", func() {
			score, err := svc.Analyze(context.Background(), analysisRequest(), scoring.Options{})

			Convey("Then a complete score is produced", func() {
				So(err, ShouldBeNil)
				So(score.Value, ShouldBeBetweenOrEqual, 0, 1000)
				So(score.Grade, ShouldBeIn, []scoring.Grade{scoring.GradeA, scoring.GradeB, scoring.GradeC, scoring.GradeD, scoring.GradeE})
				So(len(score.Breakdown), ShouldEqual, 4)
			})

			Convey("And the score reaches the sink asynchronously", func() {
				select {
				case <-cs.done:
				case <-time.After(time.Second):
					t.Fatal("sink never received the score")
				}
				recs := cs.saved()
				So(len(recs), ShouldEqual, 1)
				So(recs[0].Company, ShouldEqual, "Batimex SARL")
				So(recs[0].ID, ShouldNotBeEmpty)
				So(recs[0].Score.Value, ShouldEqual, score.Value)
			})
		})

		Convey("When analyzing an invalid request", func() {
			bad := analysisRequest()
			bad.Company.Name = ""
			_, err := svc.Analyze(context.Background(), bad, scoring.Options{})

			Convey("Then the pipeline rejects it", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestServiceBenchmark(t *testing.T) {
	Convey("Given a service without a sample provider", t, func() {
		svc := app.New(app.WithAdapters(testAdapters()...))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then Benchmark reports the missing provider", func() {
			_, err := svc.Benchmark(context.Background(), 10, nil)
			So(errors.Is(err, app.ErrNoSampleProvider), ShouldBeTrue)
		})
	})

	Convey("Given a service with a sample provider", t, func() {
		provider := providerFunc(func(_ context.Context, n int, _ *benchmark.DateRange) ([]benchmark.Sample, error) {
			samples := make([]benchmark.Sample, 0, n)
			for i := 0; i < n; i++ {
				samples = append(samples, benchmark.Sample{Record: analysisRequest()})
			}
			return samples, nil
		})
		svc := app.New(
			app.WithAdapters(testAdapters()...),
			app.WithSampleProvider(provider),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then Benchmark aggregates over the sample", func() {
			res, err := svc.Benchmark(context.Background(), 20, nil)
			So(err, ShouldBeNil)
			So(res.Scored, ShouldEqual, 20)
			So(res.Skipped, ShouldEqual, 0)
		})
	})
}

type providerFunc func(ctx context.Context, n int, dr *benchmark.DateRange) ([]benchmark.Sample, error)

func (f providerFunc) GetSample(ctx context.Context, n int, dr *benchmark.DateRange) ([]benchmark.Sample, error) {
	return f(ctx, n, dr)
}
