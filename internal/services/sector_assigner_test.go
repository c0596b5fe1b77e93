package services

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/domain"
)

func randomPoints(rng *rand.Rand, n int) []domain.PickupPoint {
	pts := make([]domain.PickupPoint, 0, n)
	for i := 1; i <= n; i++ {
		pts = append(pts, point(i, 10, rng.Float64()*0.1-0.05, rng.Float64()*0.1-0.05))
	}
	return pts
}

func TestAssignSectorsCoversEverySector(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, tc := range []struct{ n, k int }{{1, 1}, {5, 5}, {12, 3}, {40, 7}, {100, 10}} {
		for seed := uint64(0); seed < 5; seed++ {
			pts := randomPoints(rng, tc.n)

			sectors, err := AssignSectors(pts, tc.k, seed)
			require.NoError(t, err)
			require.Len(t, sectors, tc.n)

			counts := make([]int, tc.k)
			for _, p := range pts {
				s, ok := sectors[p.ID]
				require.True(t, ok)
				require.GreaterOrEqual(t, s, 0)
				require.Less(t, s, tc.k)
				counts[s]++
			}
			for s, c := range counts {
				require.NotZero(t, c, "n=%d k=%d seed=%d: sector %d empty", tc.n, tc.k, seed, s)
			}
		}
	}
}

func TestAssignSectorsWithDuplicateLocations(t *testing.T) {
	pts := []domain.PickupPoint{point(1, 1, 0, 0), point(2, 1, 0, 0), point(3, 1, 0, 0), point(4, 1, 0.01, 0)}

	sectors, err := AssignSectors(pts, 3, 42)
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, s := range sectors {
		seen[s] = true
	}
	require.Len(t, seen, 3)
}

func TestAssignSectorsIsDeterministicPerSeed(t *testing.T) {
	pts := randomPoints(rand.New(rand.NewPCG(3, 4)), 30)

	a, err := AssignSectors(pts, 4, 99)
	require.NoError(t, err)
	b, err := AssignSectors(pts, 4, 99)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestAssignSectorsSeparatesClusters(t *testing.T) {
	var pts []domain.PickupPoint
	for i := 0; i < 5; i++ {
		pts = append(pts, point(i+1, 1, 0.001*float64(i), 0))
		pts = append(pts, point(i+6, 1, 0.5+0.001*float64(i), 0.5))
	}

	sectors, err := AssignSectors(pts, 2, 7)
	require.NoError(t, err)
	for i := 2; i <= 5; i++ {
		require.Equal(t, sectors[1], sectors[i])
		require.Equal(t, sectors[6], sectors[i+5])
	}
	require.NotEqual(t, sectors[1], sectors[6])
}

func TestAssignSectorsRejectsZeroSectors(t *testing.T) {
	_, err := AssignSectors([]domain.PickupPoint{point(1, 1, 0, 0)}, 0, 1)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestScopeFallsBackToBusiestSector(t *testing.T) {
	pending := []domain.PickupPoint{point(1, 1, 0, 0), point(2, 1, 0, 0), point(3, 1, 0, 0), point(4, 1, 0, 0)}
	sectors := Sectors{1: 0, 2: 1, 3: 1, 4: 2, 5: 3}

	inSector := func(sector int) domain.Vehicle {
		v := vehicleAt(1, 100, 0, depot)
		v.Sector = sector
		return v
	}

	require.Equal(t, []domain.PickupPoint{pending[0]}, sectors.Scope(pending, inSector(0)))
	// Sector 3 has nothing pending, so it helps sector 1.
	require.Equal(t, []domain.PickupPoint{pending[1], pending[2]}, sectors.Scope(pending, inSector(3)))
	require.Equal(t, pending, Sectors{}.Scope(pending, inSector(0)))
}

func TestScopeSkipsSectorWithNothingServable(t *testing.T) {
	pending := []domain.PickupPoint{point(1, 200, 0, 0), point(2, 10, 0, 0), point(3, 10, 0, 0), point(4, 300, 0, 0)}
	sectors := Sectors{1: 0, 2: 1, 3: 1, 4: 2}

	small := vehicleAt(1, 50, 0, depot)
	small.Sector = 0

	// The 200 kg point is pending in sector 0 but the truck cannot take it.
	require.Equal(t, []domain.PickupPoint{pending[1], pending[2]}, sectors.Scope(pending, small))

	full := vehicleAt(2, 50, 45, depot)
	require.Empty(t, sectors.Scope(pending, full))
	require.Empty(t, Sectors{}.Scope(pending, full))
}
