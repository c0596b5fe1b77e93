package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"waste-dispatch-service/internal/adapters/httpjson"
	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/obs"
)

// ORSRouteProvider implements RouteProvider using the OpenRouteService
// directions endpoint.
//
// The provider is safe for concurrent use.
type ORSRouteProvider struct {
	client  httpjson.Requester
	baseURL string
	profile string
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

func NewORSRouteProvider(apiKey, profile string, timeout time.Duration) (*ORSRouteProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if profile == "" {
		profile = "driving-car"
	}

	return &ORSRouteProvider{
		client:  httpjson.NewRequester(apiKey, timeout),
		baseURL: "https://api.openrouteservice.org",
		profile: profile,
	}, nil
}

// WithBaseURL points the provider at another ORS deployment.
func (o *ORSRouteProvider) WithBaseURL(u string) *ORSRouteProvider {
	o.baseURL = u
	return o
}

// Route fetches a route geometry with its summary distance and duration.
func (o *ORSRouteProvider) Route(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ domain.RouteResult, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, o.profile)

	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{from.CoordsToList(), to.CoordsToList()},
	})
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("marshal directions request: %w", err)
	}

	req, err := o.client.NewRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.RouteResult{}, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return domain.RouteResult{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Features) == 0 {
		return domain.RouteResult{}, errors.New("directions response has no features")
	}

	f := dr.Features[0]
	out, err := toRoute(f.Geometry.Coordinates, f.Properties.Summary.Distance, f.Properties.Summary.Duration)
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("ors route: %w", err)
	}
	return out, nil
}
