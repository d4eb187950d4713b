package catalog

import (
	"context"

	"github.com/streamvault/streamvault/internal/telemetry"
)

// InstrumentedResolver wraps a Resolver with telemetry.
type InstrumentedResolver struct {
	resolver Resolver
	tel      *telemetry.Telemetry
	backend  string
}

// NewInstrumentedResolver decorates resolver with spans and client metrics
// attributed to the given backend name.
func NewInstrumentedResolver(resolver Resolver, tel *telemetry.Telemetry, backend string) *InstrumentedResolver {
	return &InstrumentedResolver{
		resolver: resolver,
		tel:      tel,
		backend:  backend,
	}
}

func (r *InstrumentedResolver) Resolve(ctx context.Context, mediaType MediaType, id string) (*Item, error) {
	var result *Item

	var err error

	instrumentedErr := r.tel.InstrumentClientOperation(ctx, r.backend, "resolve", func(ctx context.Context) error {
		result, err = r.resolver.Resolve(ctx, mediaType, id)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
