package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/routing"
	"waste-dispatch-service/internal/services"
)

func TestLoadScenario(t *testing.T) {
	sc, err := loadScenario("testdata/scenario.yaml")
	require.NoError(t, err)

	require.Equal(t, 2, sc.Episode.Vehicles)
	require.Equal(t, 120.0, sc.Episode.CapacityKg)
	require.Equal(t, uint64(3), sc.Episode.Seed)
	require.Equal(t, -20.2666, sc.Episode.Depot.Lat)
	require.Equal(t, 12.0, sc.Episode.Weights.BaseReward)
	require.Equal(t, 8, sc.Episode.Heuristic.MaxCandidates)

	require.Len(t, sc.Points, 5)
	require.Equal(t, "Av. Arturo Prat", sc.Points[0].Street)
	require.Equal(t, domain.PriorityUrgent, sc.Points[3].Priority)
	require.Equal(t, "point-5", sc.Points[4].Name)
}

func TestDecodeScenarioRejectsBadDocuments(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":         "",
		"no points":     "episode: {vehicles: 1}\n",
		"unknown field": "episode: {trucks: 1}\npoints: [{id: 1}]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeScenario(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestScenarioRunsOffline(t *testing.T) {
	t.Setenv("ROUTE_PROVIDER", "none")
	t.Setenv("ROUTE_CACHE", "memory")
	t.Setenv("POLICY_URL", "")

	sc, err := loadScenario("testdata/scenario.yaml")
	require.NoError(t, err)

	rep, err := run(context.Background(), sc, 0, false)
	require.NoError(t, err)
	require.True(t, rep.Complete)
	require.Equal(t, 5, rep.Served)
	require.Equal(t, 240.0, rep.TotalCollectedKg)
	require.True(t, rep.Routing.Degraded)

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, rep))
	out := buf.String()
	require.Contains(t, out, "complete in")
	require.Contains(t, out, "5 / 5 (100.0%)")
	require.Contains(t, out, "240 kg")
	require.Contains(t, out, "(degraded)")
}

func TestWriteReportFormatsLargeNumbers(t *testing.T) {
	rep := services.FinalReport{
		EpisodeID:        "ep",
		Policy:           "heuristic",
		Rounds:           1200,
		Truncated:        true,
		Served:           10,
		Total:            12,
		CompletionPct:    83.3,
		TotalCollectedKg: 12345.6,
		TotalDistanceKm:  1500.25,
		Routing:          routing.Stats{Lookups: 25000, RemoteCalls: 1234},
		Elapsed:          1500 * time.Millisecond,
		Vehicles: []services.VehicleReport{
			{ID: 1, Trips: 2, DistanceKm: 1500.25, CollectedKg: 12345.6, Route: []int{3, 1, 2}},
			{ID: 2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, rep))
	out := buf.String()
	require.Contains(t, out, "truncated after 1,200 rounds")
	require.Contains(t, out, "12,345.6 kg")
	require.Contains(t, out, "1,500.25 km")
	require.Contains(t, out, "25,000 lookups, 1,234 remote, 0 fallback")
	require.Contains(t, out, "3>1>2")
	require.Contains(t, out, "1.5s")
}
