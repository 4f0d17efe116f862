package source_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/okian/torp/internal/adapters/cache"
	"github.com/okian/torp/internal/adapters/source"
	"github.com/okian/torp/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func httpTestRequest() model.EnrichmentRequest {
	return model.EnrichmentRequest{
		Company: model.CompanyIdentity{Name: "Batimex SARL", NationalID: "123456789"},
		Items:   []model.LineItem{{Description: "lot", Quantity: 1, TotalPrice: 100}},
		Project: model.ProjectMeta{Type: "renovation", Region: "bretagne"},
	}
}

func TestHTTPAdapterFetch(t *testing.T) {
	Convey("Given an endpoint answering valid financial JSON", t, func() {
		var gotCompany, gotNationalID string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCompany = r.URL.Query().Get("company")
			gotNationalID = r.URL.Query().Get("national_id")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"revenue": 500000, "solvency_score": 82, "has_judgment": false}`))
		}))
		defer srv.Close()

		adapter := source.NewHTTPAdapter(source.Financial, cache.ClassCompany, srv.URL)

		Convey("When fetching", func() {
			payload, err := adapter.Fetch(context.Background(), httpTestRequest())

			Convey("Then the typed payload is returned", func() {
				So(err, ShouldBeNil)
				fin, ok := payload.(source.FinancialData)
				So(ok, ShouldBeTrue)
				So(fin.SolvencyScore, ShouldEqual, 82)
				So(fin.Revenue, ShouldEqual, 500000)
			})

			Convey("And the request identity rode along as query params", func() {
				So(gotCompany, ShouldEqual, "Batimex SARL")
				So(gotNationalID, ShouldEqual, "123456789")
			})
		})
	})

	Convey("Given an endpoint that fails once then recovers", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"rating": 4.1, "review_count": 12}`))
		}))
		defer srv.Close()

		adapter := source.NewHTTPAdapter(source.Reputation, cache.ClassCompany, srv.URL)

		Convey("When fetching", func() {
			payload, err := adapter.Fetch(context.Background(), httpTestRequest())

			Convey("Then the retry succeeds", func() {
				So(err, ShouldBeNil)
				So(calls.Load(), ShouldEqual, 2)
				rep, ok := payload.(source.ReputationData)
				So(ok, ShouldBeTrue)
				So(rep.ReviewCount, ShouldEqual, 12)
			})
		})
	})

	Convey("Given an endpoint answering 404", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		adapter := source.NewHTTPAdapter(source.CompanyRegistry, cache.ClassCompany, srv.URL)

		Convey("When fetching", func() {
			_, err := adapter.Fetch(context.Background(), httpTestRequest())

			Convey("Then the client error is not retried", func() {
				So(err, ShouldNotBeNil)
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an endpoint that keeps failing", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		adapter := source.NewHTTPAdapter(source.Weather, cache.ClassDefault, srv.URL, source.WithMaxRetries(1))

		Convey("Then Fetch gives up after the retry budget", func() {
			_, err := adapter.Fetch(context.Background(), httpTestRequest())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStaticAdapter(t *testing.T) {
	Convey("Given a static adapter", t, func() {
		payload := source.PriceBook{Region: "bretagne", ReferencePrices: map[string]float64{"isolation": 45}}
		adapter := source.Static(source.PriceReference, cache.ClassPrice, payload)

		Convey("Then it reports its identity and class", func() {
			So(adapter.Name(), ShouldEqual, source.PriceReference)
			So(adapter.Class(), ShouldEqual, cache.ClassPrice)
		})

		Convey("And it always yields the fixed payload", func() {
			got, err := adapter.Fetch(context.Background(), httpTestRequest())
			So(err, ShouldBeNil)
			So(got, ShouldResemble, payload)
		})
	})
}
