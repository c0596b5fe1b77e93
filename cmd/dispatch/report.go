package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"waste-dispatch-service/internal/services"
)

func writeReport(w io.Writer, rep services.FinalReport) error {
	status := fmt.Sprintf("complete in %s rounds", humanize.Comma(int64(rep.Rounds)))
	if rep.Truncated {
		status = fmt.Sprintf("truncated after %s rounds", humanize.Comma(int64(rep.Rounds)))
	}

	routing := fmt.Sprintf("%s lookups, %s remote, %s fallback",
		humanize.Comma(rep.Routing.Lookups),
		humanize.Comma(rep.Routing.RemoteCalls),
		humanize.Comma(rep.Routing.Fallbacks))
	if rep.Routing.Degraded {
		routing += " (degraded)"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "episode\t%s (%s)\n", rep.EpisodeID, rep.Policy)
	fmt.Fprintf(tw, "status\t%s\n", status)
	fmt.Fprintf(tw, "served\t%d / %d (%.1f%%), %d deferred\n", rep.Served, rep.Total, rep.CompletionPct, rep.Deferred)
	fmt.Fprintf(tw, "collected\t%s kg\n", humanize.CommafWithDigits(rep.TotalCollectedKg, 1))
	fmt.Fprintf(tw, "distance\t%s km\n", humanize.CommafWithDigits(rep.TotalDistanceKm, 2))
	fmt.Fprintf(tw, "reward\t%.2f\n", rep.TotalReward)
	fmt.Fprintf(tw, "conflicts\t%d, %d stale, %d stalled rounds\n", rep.Conflicts, rep.Stale, rep.StalledRounds)
	fmt.Fprintf(tw, "routing\t%s\n", routing)
	fmt.Fprintf(tw, "elapsed\t%s\n", rep.Elapsed.Round(1e6))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "vehicle\tsector\ttrips\tkm\tkg\troute\t")
	for _, v := range rep.Vehicles {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\t\n",
			v.ID, v.Sector, v.Trips,
			humanize.CommafWithDigits(v.DistanceKm, 2),
			humanize.CommafWithDigits(v.CollectedKg, 1),
			joinIDs(v.Route))
	}
	return tw.Flush()
}

func joinIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ">")
}

// roundLine is the -v progress output for one round.
func roundLine(rep services.RoundReport) string {
	return fmt.Sprintf("round %3d: %d visits, %d returns, %d conflicts, reward %+.2f, %d pending",
		rep.Round, len(rep.Visits), len(rep.Returns), rep.Conflicts, rep.TotalReward, rep.Pending)
}
