package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/adapters/httpjson"
	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/obs"
)

// DefaultOSRMServers are the public demo servers. Both are rate limited.
var DefaultOSRMServers = []string{
	"http://router.project-osrm.org/route/v1/driving",
	"https://routing.openstreetmap.de/routed-car/route/v1/driving",
}

// OSRMRouteProvider implements RouteProvider against one or more OSRM
// servers. A 429 from the current server moves later calls to the next one.
//
// The provider is safe for concurrent use.
type OSRMRouteProvider struct {
	client  httpjson.Requester
	servers []string

	mu      sync.Mutex
	current int
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

func NewOSRMRouteProvider(servers []string, timeout time.Duration) (*OSRMRouteProvider, error) {
	clean := make([]string, 0, len(servers))
	for _, s := range servers {
		if s = strings.TrimRight(strings.TrimSpace(s), "/"); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return nil, errors.New("OSRM server list is empty")
	}

	return &OSRMRouteProvider{
		client:  httpjson.NewRequester("", timeout),
		servers: clean,
	}, nil
}

func (o *OSRMRouteProvider) server() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.servers[o.current]
}

func (o *OSRMRouteProvider) rotate(from string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Another caller may have rotated already.
	if o.servers[o.current] != from {
		return
	}
	o.current = (o.current + 1) % len(o.servers)
	log.Warn().Str("from", from).Str("to", o.servers[o.current]).Msg("osrm rate limited, switching server")
}

// Route fetches a driving route between two points.
func (o *OSRMRouteProvider) Route(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ domain.RouteResult, err error) {
	defer obs.Time(ctx, "osrm.Route")(&err)

	base := o.server()
	endpoint := fmt.Sprintf("%s/%f,%f;%f,%f", base, from.Lon, from.Lat, to.Lon, to.Lat)

	req, err := o.client.NewRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.RouteResult{}, err
	}
	q := req.URL.Query()
	q.Set("overview", "full")
	q.Set("geometries", "geojson")
	req.URL.RawQuery = q.Encode()

	resp, err := o.client.Do(req)
	if err != nil {
		var he *httpjson.StatusError
		if errors.As(err, &he) && he.Code == http.StatusTooManyRequests {
			o.rotate(base)
		}
		return domain.RouteResult{}, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	var decoded osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.RouteResult{}, fmt.Errorf("decode osrm response: %w", err)
	}

	if decoded.Code != "Ok" || len(decoded.Routes) == 0 {
		return domain.RouteResult{}, fmt.Errorf("osrm returned code %q with %d routes", decoded.Code, len(decoded.Routes))
	}

	r := decoded.Routes[0]
	out, err := toRoute(r.Geometry.Coordinates, r.Distance, r.Duration)
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("osrm route: %w", err)
	}
	return out, nil
}
