package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/adapters/httpjson"
	"waste-dispatch-service/internal/domain"
)

func TestORSRouteSendsLonLatAndParsesSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/directions/driving-hgv/geojson", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("Authorization"))

		var body directionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, [][]float64{{-70.13, -20.26}, {-70.11, -20.24}}, body.Coordinates)

		fmt.Fprint(w, `{"features":[{"geometry":{"coordinates":[[-70.13,-20.26],[-70.11,-20.24]]},
"properties":{"summary":{"distance":1200,"duration":90}}}]}`)
	}))
	defer srv.Close()

	p, err := NewORSRouteProvider("secret", "driving-hgv", time.Second)
	require.NoError(t, err)
	p.WithBaseURL(srv.URL)

	r, err := p.Route(context.Background(),
		domain.Coordinates{Lat: -20.26, Lon: -70.13},
		domain.Coordinates{Lat: -20.24, Lon: -70.11})
	require.NoError(t, err)
	require.InDelta(t, 1.2, r.DistanceKm, 1e-9)
	require.InDelta(t, 1.5, r.DurationMin, 1e-9)
	require.Equal(t, -20.26, r.Geometry[0].Lat)
}

func TestORSRouteReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	p, err := NewORSRouteProvider("secret", "", time.Second)
	require.NoError(t, err)
	p.WithBaseURL(srv.URL)

	_, err = p.Route(context.Background(), domain.Coordinates{}, domain.Coordinates{Lat: 1})
	var he *httpjson.StatusError
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusForbidden, he.Code)
	require.False(t, he.Temporary())
}

func TestNewORSRouteProviderRequiresKey(t *testing.T) {
	_, err := NewORSRouteProvider("", "", time.Second)
	require.Error(t, err)
}
