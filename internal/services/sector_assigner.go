package services

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"waste-dispatch-service/internal/domain"
)

const kmeansIterations = 10

// Sectors maps a pickup point id to its sector.
type Sectors map[int]int

// AssignSectors partitions points into k sectors with Lloyd's k-means on
// raw (lat, lon). The result is deterministic for a given seed. Whenever
// len(points) >= k every sector receives at least one point.
func AssignSectors(points []domain.PickupPoint, k int, seed uint64) (Sectors, error) {
	if k <= 0 {
		return nil, fmt.Errorf("assign sectors: k=%d: %w", k, domain.ErrInvalidConfiguration)
	}

	out := make(Sectors, len(points))
	if len(points) == 0 {
		return out, nil
	}

	pts := slices.Clone(points)
	slices.SortFunc(pts, func(a, b domain.PickupPoint) int { return a.ID - b.ID })

	n := len(pts)
	clusters := min(k, n)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	centroids := make([]domain.Coordinates, clusters)
	for i, idx := range rng.Perm(n)[:clusters] {
		centroids[i] = pts[idx].Location
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, p := range pts {
			c := nearestCentroid(p.Location, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]domain.Coordinates, clusters)
		counts := make([]int, clusters)
		for i, p := range pts {
			c := assign[i]
			sums[c].Lat += p.Location.Lat
			sums[c].Lon += p.Location.Lon
			counts[c]++
		}
		for c := range centroids {
			// Empty clusters keep their previous centroid.
			if counts[c] == 0 {
				continue
			}
			centroids[c] = domain.Coordinates{
				Lat: sums[c].Lat / float64(counts[c]),
				Lon: sums[c].Lon / float64(counts[c]),
			}
		}
	}

	fillEmptySectors(pts, assign, centroids)

	for i, p := range pts {
		out[p.ID] = assign[i]
	}
	return out, nil
}

// fillEmptySectors moves, for each empty sector, the point of the largest
// sector that lies farthest from its centroid. With n >= clusters a donor
// with at least two points always exists.
func fillEmptySectors(pts []domain.PickupPoint, assign []int, centroids []domain.Coordinates) {
	for {
		counts := make([]int, len(centroids))
		for _, c := range assign {
			counts[c]++
		}

		empty := slices.Index(counts, 0)
		if empty < 0 {
			return
		}

		donor := 0
		for c := range counts {
			if counts[c] > counts[donor] {
				donor = c
			}
		}
		if counts[donor] < 2 {
			return
		}

		far, farDist := -1, -1.0
		for i, c := range assign {
			if c != donor {
				continue
			}
			if d := euclidean(pts[i].Location, centroids[donor]); d > farDist {
				far, farDist = i, d
			}
		}

		assign[far] = empty
		centroids[empty] = pts[far].Location
	}
}

func nearestCentroid(p domain.Coordinates, centroids []domain.Coordinates) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := euclidean(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func euclidean(a, b domain.Coordinates) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

// Scope returns the pending points vehicle v should consider, leaving out
// those it cannot serve: its own sector, or the busiest sector once its own
// has nothing it can take, or everything when no sectors were assigned.
func (s Sectors) Scope(pending []domain.PickupPoint, v domain.Vehicle) []domain.PickupPoint {
	feasible := feasibleFor(v, pending)
	if len(s) == 0 {
		return feasible
	}

	bySector := make(map[int][]domain.PickupPoint)
	for _, p := range feasible {
		sec, ok := s[p.ID]
		if !ok {
			sec = -1
		}
		bySector[sec] = append(bySector[sec], p)
	}

	if own := bySector[v.Sector]; len(own) > 0 {
		return own
	}

	busiest, most := 0, 0
	for sec, pts := range bySector {
		if len(pts) > most || (len(pts) == most && sec < busiest) {
			busiest, most = sec, len(pts)
		}
	}
	if most == 0 {
		return feasible
	}
	return bySector[busiest]
}
