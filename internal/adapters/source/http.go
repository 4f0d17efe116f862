package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/torp/internal/adapters/cache"
	"github.com/okian/torp/internal/domain/model"
)

// Default HTTP adapter configuration constants.
const (
	defaultHTTPTimeout  = 5 * time.Second
	defaultMaxRetries   = 2
	defaultInitialDelay = 100 * time.Millisecond
)

// HTTPAdapter fetches a source payload from a JSON endpoint. One instance
// serves one named source; the endpoint receives the request identity as
// query parameters and must answer with that source's payload schema.
//
// Transient failures are retried with exponential backoff inside the
// caller's context deadline. A 4xx answer is not retried.
type HTTPAdapter struct {
	name    Name
	class   cache.Class
	baseURL string

	client       *http.Client
	maxRetries   uint64
	initialDelay time.Duration
}

// HTTPOption applies a configuration option to the HTTPAdapter.
type HTTPOption func(*HTTPAdapter)

// WithHTTPClient sets a custom client, e.g. one with instrumentation.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(a *HTTPAdapter) {
		if c != nil {
			a.client = c
		}
	}
}

// WithMaxRetries bounds retry attempts after the initial call.
func WithMaxRetries(n uint64) HTTPOption {
	return func(a *HTTPAdapter) { a.maxRetries = n }
}

// WithInitialDelay sets the first backoff interval.
func WithInitialDelay(d time.Duration) HTTPOption {
	return func(a *HTTPAdapter) {
		if d > 0 {
			a.initialDelay = d
		}
	}
}

// NewHTTPAdapter creates an adapter for one named source backed by a JSON
// endpoint at baseURL.
func NewHTTPAdapter(name Name, class cache.Class, baseURL string, opts ...HTTPOption) *HTTPAdapter {
	a := &HTTPAdapter{
		name:         name,
		class:        class,
		baseURL:      baseURL,
		client:       &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries:   defaultMaxRetries,
		initialDelay: defaultInitialDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the source identifier.
func (a *HTTPAdapter) Name() Name { return a.name }

// Class returns the cache data class for results.
func (a *HTTPAdapter) Class() cache.Class { return a.class }

// Fetch performs the HTTP call with retries and decodes the payload.
func (a *HTTPAdapter) Fetch(ctx context.Context, req model.EnrichmentRequest) (Payload, error) {
	q := url.Values{}
	q.Set("company", req.Company.Name)
	if req.Company.NationalID != "" {
		q.Set("national_id", req.Company.NationalID)
	}
	q.Set("region", req.Project.Region)
	if req.Project.Type != "" {
		q.Set("project_type", req.Project.Type)
	}
	endpoint := a.baseURL + "?" + q.Encode()

	var body []byte
	operation := func() error {
		b, err := a.do(ctx, endpoint)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(a.initialDelay),
		), a.maxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, fmt.Errorf("source %s: %w", a.name, err)
	}
	return decodePayload(a.name, body)
}

func (a *HTTPAdapter) do(ctx context.Context, endpoint string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// decodeInto unmarshals body into a value of the source's payload schema.
func decodeInto[P Payload](name Name, body []byte) (Payload, error) {
	var p P
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("source %s: decode: %w", name, err)
	}
	return p, nil
}

// decodePayload picks the schema matching the named source.
func decodePayload(name Name, body []byte) (Payload, error) {
	switch name {
	case CompanyRegistry:
		return decodeInto[RegistryData](name, body)
	case Financial:
		return decodeInto[FinancialData](name, body)
	case Reputation:
		return decodeInto[ReputationData](name, body)
	case PriceReference:
		return decodeInto[PriceBook](name, body)
	case Regional:
		return decodeInto[RegionalBenchmarks](name, body)
	case Compliance:
		return decodeInto[ComplianceData](name, body)
	case Weather:
		return decodeInto[WeatherRisk](name, body)
	default:
		return nil, fmt.Errorf("source %s: no payload schema", name)
	}
}
