package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"aurora/internal/library"
	"aurora/internal/link"
	"aurora/internal/metadata"
	"aurora/internal/recorder"
)

// PlannedTrack is one line of a dry run.
type PlannedTrack struct {
	Index int
	ID    string
	Track metadata.TrackInfo
	Path  string
	Skip  bool // already recorded
	Err   error
}

// Plan looks up every queued track and decides where it would be written and
// whether it would be skipped. Nothing is played or recorded.
func Plan(ctx context.Context, catalog recorder.Player, layout library.Layout, ids []string, startFrom int, skipExisting bool) []PlannedTrack {
	startFrom = max(startFrom, 1)
	var plan []PlannedTrack
	for i := startFrom - 1; i < len(ids); i++ {
		if ctx.Err() != nil {
			break
		}
		p := PlannedTrack{Index: i + 1, ID: ids[i]}
		track, err := catalog.Track(ctx, ids[i])
		if err != nil {
			p.Err = err
			plan = append(plan, p)
			continue
		}
		p.Track = track
		p.Path = layout.Path(track)
		p.Skip = skipExisting && library.AlreadyRecorded(p.Path, track.ID)
		plan = append(plan, p)
	}
	return plan
}

// PrintPlan writes a human readable dry-run report.
func PrintPlan(w io.Writer, plan []PlannedTrack) {
	var total time.Duration
	skipped, unavailable := 0, 0

	fmt.Fprintln(w, "=== DRY RUN: nothing will be played or recorded ===")
	for _, p := range plan {
		switch {
		case p.Err != nil:
			unavailable++
			fmt.Fprintf(w, "#%-3d UNAVAILABLE %s (%v)\n", p.Index, link.TrackWebURL(p.ID), p.Err)
		case p.Skip:
			skipped++
			fmt.Fprintf(w, "#%-3d SKIP   %s -> %s (already recorded)\n", p.Index, p.Track.DisplayName(), p.Path)
		default:
			total += p.Track.Duration
			fmt.Fprintf(w, "#%-3d RECORD %s [%s] -> %s\n", p.Index, p.Track.DisplayName(), clock(p.Track.Duration), p.Path)
		}
	}
	fmt.Fprintf(w, "%d to record (%s of playback), %d already recorded, %d unavailable\n",
		len(plan)-skipped-unavailable, total.Round(time.Second), skipped, unavailable)
}

func clock(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	s := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
