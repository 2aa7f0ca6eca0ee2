package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/theoremus-urban-solutions/taskroute-live/config"
	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

// Provider computes a travel path from origin to dest.
type Provider interface {
	Route(ctx context.Context, origin, dest geo.Coordinate) ([]geo.Coordinate, error)
}

// ErrNoRoute is returned when the provider answered but found no path.
var ErrNoRoute = errors.New("no route found")

// Straight returns the two-point segment between origin and dest. It is used
// offline and in development where no routing service is reachable.
type Straight struct{}

func (Straight) Route(ctx context.Context, origin, dest geo.Coordinate) ([]geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !origin.Valid() || !dest.Valid() {
		return nil, fmt.Errorf("invalid coordinates %s -> %s", origin, dest)
	}
	return []geo.Coordinate{origin, dest}, nil
}

// New builds the configured provider wrapped in Resilient.
func New(cfg config.RoutingConfig) (*Resilient, error) {
	var inner Provider
	switch cfg.Provider {
	case "straight":
		inner = Straight{}
	case "osrm", "":
		if cfg.BaseURL == "" {
			return nil, errors.New("routing.baseURL is required for the osrm provider")
		}
		inner = NewOSRM(cfg.BaseURL, cfg.Profile, &http.Client{})
	default:
		return nil, fmt.Errorf("unknown routing provider %q", cfg.Provider)
	}
	return NewResilient(inner, cfg.Timeout()), nil
}
