package source

import (
	"context"

	"github.com/okian/torp/internal/adapters/cache"
	"github.com/okian/torp/internal/domain/model"
)

// Func adapts a plain function into an Adapter. Used for fixtures, demos
// and tests; production adapters wrap real API clients.
type Func struct {
	SourceName Name
	DataClass  cache.Class
	FetchFunc  func(ctx context.Context, req model.EnrichmentRequest) (Payload, error)
}

// Name returns the source identifier.
func (f Func) Name() Name { return f.SourceName }

// Class returns the cache data class for results.
func (f Func) Class() cache.Class { return f.DataClass }

// Fetch invokes the wrapped function.
func (f Func) Fetch(ctx context.Context, req model.EnrichmentRequest) (Payload, error) {
	return f.FetchFunc(ctx, req)
}

// Static returns an adapter that always yields the same payload. Handy
// for seeding a development instance without live providers.
func Static(name Name, class cache.Class, payload Payload) Adapter {
	return Func{
		SourceName: name,
		DataClass:  class,
		FetchFunc: func(context.Context, model.EnrichmentRequest) (Payload, error) {
			return payload, nil
		},
	}
}
