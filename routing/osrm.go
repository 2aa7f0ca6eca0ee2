package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/theoremus-urban-solutions/taskroute-live/geo"
)

const defaultProfile = "driving"

// OSRM queries the route service of an OSRM-compatible server.
type OSRM struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

// NewOSRM creates an OSRM provider. An empty profile means "driving".
func NewOSRM(baseURL, profile string, httpClient *http.Client) *OSRM {
	if profile == "" {
		profile = defaultProfile
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OSRM{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		httpClient: httpClient,
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Type        string       `json:"type"`
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// URL returns the request URL for a route. OSRM takes lng,lat pairs.
func (o *OSRM) URL(origin, dest geo.Coordinate) string {
	return fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=full&geometries=geojson",
		o.baseURL, o.profile, origin.Lng, origin.Lat, dest.Lng, dest.Lat)
}

func (o *OSRM) Route(ctx context.Context, origin, dest geo.Coordinate) ([]geo.Coordinate, error) {
	url := o.URL(origin, dest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build route request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch route: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read route response: %w", err)
	}

	var out osrmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d from routing service", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode route response: %w", err)
	}
	// OSRM reports NoRoute and friends with a 400 and a JSON body
	if out.Code != "Ok" {
		if out.Code == "NoRoute" {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("routing service returned %s: %s", out.Code, out.Message)
	}
	if len(out.Routes) == 0 || len(out.Routes[0].Geometry.Coordinates) == 0 {
		return nil, ErrNoRoute
	}

	coords := out.Routes[0].Geometry.Coordinates
	path := make([]geo.Coordinate, 0, len(coords))
	for _, c := range coords {
		path = append(path, geo.Coordinate{Lat: c[1], Lng: c[0]})
	}
	return path, nil
}
