package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/domain"
)

func TestSimplifyDropsNearbyPointsButKeepsEnds(t *testing.T) {
	in := []domain.Coordinates{
		{Lat: 0, Lon: 0},
		{Lat: 0.00003, Lon: 0.00003}, // within tolerance of the first
		{Lat: 0.001, Lon: 0},
		{Lat: 0.00101, Lon: 0.00001}, // within tolerance of the previous kept
		{Lat: 0.001005, Lon: 0},      // last is always kept
	}

	out := simplify(in)
	require.Equal(t, []domain.Coordinates{in[0], in[2], in[4]}, out)
}

func TestKeyRoundsToSixDecimals(t *testing.T) {
	a := domain.Coordinates{Lat: -20.26660001, Lon: -70.13}
	b := domain.Coordinates{Lat: -20.2140004, Lon: -70.1522}
	require.Equal(t, "-20.266600,-70.130000--20.214000,-70.152200", Key(a, b))
}
