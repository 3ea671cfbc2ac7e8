package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"aurora/internal/capture"
	"aurora/internal/config"
	"aurora/internal/finalize"
	"aurora/internal/library"
	"aurora/internal/link"
	"aurora/internal/logger"
	"aurora/internal/recorder"
)

// Client is the Spotify surface a run needs.
type Client interface {
	recorder.Player
	PlaylistTrackIDs(ctx context.Context, id string) ([]string, error)
	AlbumTrackIDs(ctx context.Context, id string) ([]string, error)
}

type Hooks struct {
	Recorder   recorder.Hooks
	OnQueued   func(total int)
	OnFinalize func(finalize.Task)
	OnResult   func(finalize.Result)
	// Out receives the dry-run plan (stdout when nil).
	Out io.Writer
}

// Summary reports a finished run.
type Summary struct {
	Recorder  recorder.Stats
	Finalized finalize.Stats
}

// NewCapturer builds the ffmpeg capturer described by cfg.
func NewCapturer(cfg config.Config) recorder.Capturer {
	return recorder.FFmpegCapturer{Base: capture.Options{
		FFmpegPath:  cfg.FFmpegPath,
		InputFormat: cfg.InputFormat,
		Device:      cfg.AudioDevice,
		Format:      cfg.Format,
	}}
}

// Layout returns the library layout described by cfg.
func Layout(cfg config.Config) library.Layout {
	return library.Layout{Root: cfg.OutputDir, Format: cfg.Format, Organize: cfg.OrganizeByArtistAlbum}
}

// Run records the configured source (or follows playback) while a single
// finalization worker processes stopped captures in the background.
func Run(ctx context.Context, cfg config.Config, log *logger.Logger, client Client, capturer recorder.Capturer, hooks Hooks) (Summary, error) {
	var sum Summary
	layout := Layout(cfg)
	failed := library.NewFailedLog(cfg.FailedLogPath())

	var ids []string
	if !cfg.Follow {
		var err error
		ids, err = Resolve(ctx, client, cfg, log, failed)
		if err != nil {
			return sum, err
		}
		log.Info("Tracks to record: %d", len(ids))
	}

	if cfg.DryRun {
		if cfg.Follow {
			return sum, errors.New("--dry-run has nothing to plan in follow mode")
		}
		out := hooks.Out
		if out == nil {
			out = os.Stdout
		}
		plan := Plan(ctx, client, layout, ids, cfg.StartFrom, cfg.SkipExisting)
		PrintPlan(out, plan)
		return sum, nil
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return sum, fmt.Errorf("failed to create output directory: %w", err)
	}
	if n, err := layout.SweepScratch(); err != nil {
		log.Warn("Could not clean leftover captures: %v", err)
	} else if n > 0 {
		log.Info("Removed %d leftover capture(s) from an earlier run", n)
	}

	worker := finalize.New(finalize.Options{
		FFmpegPath:   cfg.FFmpegPath,
		Rewrite:      cfg.RewriteHeaders,
		MinDuration:  cfg.MinDuration(),
		CoverMaxSize: cfg.CoverMaxSize,
		EmbedLyrics:  cfg.EmbedLyrics,
		Settle:       settleDelay,
	}, log, failed, library.NewJournal(library.JournalPath(cfg.OutputDir)))
	worker.OnStart = hooks.OnFinalize
	worker.OnResult = hooks.OnResult

	rec := recorder.New(client, capturer, worker, recorder.Options{
		Layout:          layout,
		SkipExisting:    cfg.SkipExisting,
		PollInterval:    cfg.PollInterval(),
		Preroll:         cfg.Preroll(),
		Gap:             cfg.Gap(),
		Buffer:          cfg.Buffer(),
		MaxCapture:      cfg.MaxCapture(),
		StandbyLength:   cfg.StandbyLength(),
		PreferredDevice: cfg.SpotifyDevice,
	}, log, failed)
	rec.Hooks = hooks.Recorder

	if n := len(ids) - max(cfg.StartFrom, 1) + 1; hooks.OnQueued != nil && !cfg.Follow && n > 0 {
		hooks.OnQueued(n)
	}

	var g errgroup.Group
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		defer worker.Close()
		if cfg.Follow {
			return rec.Follow(ctx)
		}
		stats, err := rec.RecordQueue(ctx, ids, cfg.StartFrom)
		sum.Recorder = stats
		return err
	})
	err := g.Wait()
	sum.Finalized = worker.Stats()

	if !cfg.Follow {
		log.Info("Recording finished: %d recorded, %d skipped, %d failed",
			sum.Recorder.Recorded, sum.Recorder.Skipped, sum.Recorder.Failed)
	}
	log.Info("Finalized: %d saved, %d discarded, %d failed",
		sum.Finalized.Saved, sum.Finalized.Discarded, sum.Finalized.Failed)
	if sum.Finalized.Discarded+sum.Finalized.Failed+sum.Recorder.Failed > 0 {
		log.Info("Links of tracks to retry were written to %s", failed.Path())
	}
	return sum, err
}

// settleDelay lets the filesystem release a capture before it is moved.
const settleDelay = 5 * time.Second

// Resolve expands the configured source into an ordered list of track IDs.
// Malformed lines of a links file are logged as failed and skipped.
func Resolve(ctx context.Context, client Client, cfg config.Config, log *logger.Logger, failed *library.FailedLog) ([]string, error) {
	var (
		ids []string
		err error
	)
	switch {
	case cfg.Playlist != "":
		ids, err = expandCollection(ctx, client, cfg.Playlist)
	case cfg.Album != "":
		ids, err = expandCollection(ctx, client, cfg.Album)
	case link.IsLinksFile(cfg.Input):
		ids, err = fromLinksFile(ctx, client, cfg.Input, log, failed)
	case cfg.Input != "":
		var ref link.Ref
		ref, err = link.Parse(cfg.Input)
		if err == nil {
			ids, err = expand(ctx, client, ref)
		}
	default:
		return nil, errors.New("no source given")
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New("no playable tracks found")
	}
	return ids, nil
}

// expandCollection accepts an album or a playlist under either flag.
func expandCollection(ctx context.Context, client Client, raw string) ([]string, error) {
	ref, err := link.Parse(raw)
	if err != nil {
		return nil, err
	}
	if ref.Kind == link.KindTrack {
		return nil, fmt.Errorf("%q is a track link, expected an album or a playlist", raw)
	}
	return expand(ctx, client, ref)
}

func expand(ctx context.Context, client Client, ref link.Ref) ([]string, error) {
	switch ref.Kind {
	case link.KindPlaylist:
		ids, err := client.PlaylistTrackIDs(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read playlist %s: %w", ref.ID, err)
		}
		return ids, nil
	case link.KindAlbum:
		ids, err := client.AlbumTrackIDs(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read album %s: %w", ref.ID, err)
		}
		return ids, nil
	}
	return []string{ref.ID}, nil
}

func fromLinksFile(ctx context.Context, client Client, path string, log *logger.Logger, failed *library.FailedLog) ([]string, error) {
	lines, err := link.ReadLinksFile(path)
	if err != nil {
		return nil, err
	}
	log.Info("Read %d link(s) from %s", len(lines), path)

	var ids []string
	for _, line := range lines {
		ref, err := link.Parse(line)
		if err == nil {
			var more []string
			more, err = expand(ctx, client, ref)
			ids = append(ids, more...)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("Skipping %s: %v", line, err)
			if failed != nil {
				if werr := failed.RecordLink(line); werr != nil {
					log.Warn("Could not update failed log: %v", werr)
				}
			}
		}
	}
	return ids, nil
}
