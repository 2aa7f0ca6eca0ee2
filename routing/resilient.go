package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

// DefaultTimeout bounds a provider call when none is configured.
const DefaultTimeout = 10 * time.Second

// Resilient bounds every call to the wrapped provider. An expired call is
// reported as an error so the engine marks the route failed.
type Resilient struct {
	inner Provider
	limit time.Duration
}

func NewResilient(inner Provider, limit time.Duration) *Resilient {
	if limit <= 0 {
		limit = DefaultTimeout
	}
	return &Resilient{inner: inner, limit: limit}
}

func (r *Resilient) Route(ctx context.Context, origin, dest geo.Coordinate) ([]geo.Coordinate, error) {
	t := timeout.New[[]geo.Coordinate](timeout.Config{
		DefaultTimeout: r.limit,
	})
	path, err := t.Execute(ctx, r.limit, func(ctx context.Context) ([]geo.Coordinate, error) {
		return r.inner.Route(ctx, origin, dest)
	})
	if err != nil {
		return nil, fmt.Errorf("route %s -> %s: %w", origin, dest, err)
	}
	return path, nil
}
