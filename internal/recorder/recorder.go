// Package recorder drives playback and capture: it plays a queue of tracks
// one at a time, or follows whatever the user plays, and hands every stopped
// capture to the finalizer.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"aurora/internal/capture"
	"aurora/internal/finalize"
	"aurora/internal/library"
	"aurora/internal/link"
	"aurora/internal/logger"
	"aurora/internal/metadata"
	"aurora/internal/spotify"
)

// Stop reasons recorded with every capture.
const (
	ReasonStopped  = "Playback stopped or track unavailable"
	ReasonChanged  = "Track changed"
	ReasonFinished = "Track finished"
	ReasonShutdown = "Shutdown"
)

const (
	finishWindow     = 200 * time.Millisecond
	maxPollErrors    = 3
	transferSettle   = 800 * time.Millisecond
	defaultMetaDelay = 250 * time.Millisecond
)

// Player is the playback and catalog API the recorder drives.
type Player interface {
	CurrentPlayback(ctx context.Context) (*spotify.Playback, error)
	StartPlayback(ctx context.Context, deviceID string, uris []string) error
	Devices(ctx context.Context) ([]spotify.Device, error)
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	Track(ctx context.Context, id string) (metadata.TrackInfo, error)
}

// Capture is a running recording process.
type Capture interface {
	Path() string
	StartedAt() time.Time
	Running() bool
	Err() error
	Stop() error
	Wait(timeout time.Duration) error
}

// Capturer starts recordings.
type Capturer interface {
	Start(path string, maxDuration time.Duration) (Capture, error)
}

// Finalizer accepts stopped captures.
type Finalizer interface {
	Enqueue(t finalize.Task) error
}

// FFmpegCapturer starts ffmpeg captures with shared options.
type FFmpegCapturer struct {
	Base capture.Options
}

func (f FFmpegCapturer) Start(path string, maxDuration time.Duration) (Capture, error) {
	opts := f.Base
	opts.Path = path
	opts.MaxDuration = maxDuration
	c, err := capture.Start(opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options configure a Recorder.
type Options struct {
	Layout          library.Layout
	SkipExisting    bool
	PollInterval    time.Duration
	Preroll         time.Duration
	MetadataDelay   time.Duration
	Gap             time.Duration
	Buffer          time.Duration // added to the catalog duration for the target
	MaxCapture      time.Duration
	StandbyLength   time.Duration
	PreferredDevice string // Spotify Connect device name to transfer to
}

// Hooks observe the recorder. All are optional.
type Hooks struct {
	OnSkipped   func(index int, track metadata.TrackInfo, path string)
	OnArmed     func(session string, track metadata.TrackInfo)
	OnRecording func(session string, track metadata.TrackInfo, path string, expected time.Duration)
	OnProgress  func(session string, position, duration time.Duration)
	OnStopped   func(session string, track metadata.TrackInfo, reason string)
	OnFailed    func(session string, track metadata.TrackInfo, err error)
}

// Stats summarizes a queue run.
type Stats struct {
	Total    int
	Recorded int
	Skipped  int
	Failed   int
}

// Recorder records tracks played through a Player.
type Recorder struct {
	player    Player
	capturer  Capturer
	finalizer Finalizer
	opts      Options
	log       *logger.Logger
	failed    *library.FailedLog

	Hooks Hooks

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

// New creates a Recorder. failed may be nil.
func New(player Player, capturer Capturer, finalizer Finalizer, opts Options, log *logger.Logger, failed *library.FailedLog) *Recorder {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 350 * time.Millisecond
	}
	if opts.MetadataDelay <= 0 {
		opts.MetadataDelay = defaultMetaDelay
	}
	if opts.MaxCapture <= 0 {
		opts.MaxCapture = time.Hour
	}
	if opts.StandbyLength < 10*time.Second {
		opts.StandbyLength = 10 * time.Second
	}
	return &Recorder{
		player:    player,
		capturer:  capturer,
		finalizer: finalizer,
		opts:      opts,
		log:       log,
		failed:    failed,
		sleep:     sleepCtx,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// StopReason decides whether the capture of trackID should end given the
// current player state.
func StopReason(p *spotify.Playback, trackID string) (string, bool) {
	switch {
	case p == nil || !p.HasTrack() || !p.IsPlaying:
		return ReasonStopped, true
	case p.Track.ID != trackID:
		return ReasonChanged, true
	case p.Track.Duration > 0 && p.Progress >= max(0, p.Track.Duration-finishWindow):
		return ReasonFinished, true
	}
	return "", false
}

// RecordQueue plays and records ids in order, starting at the 1-based index
// startFrom. Cancelling ctx stops after the current capture is handed off.
func (r *Recorder) RecordQueue(ctx context.Context, ids []string, startFrom int) (Stats, error) {
	if len(ids) == 0 {
		return Stats{}, errors.New("no playable tracks")
	}
	if startFrom < 1 {
		startFrom = 1
	}
	if startFrom > len(ids) {
		return Stats{}, fmt.Errorf("start index %d is larger than the track list (%d)", startFrom, len(ids))
	}
	if startFrom > 1 {
		r.log.Info("Starting from track #%d", startFrom)
	}

	stats := Stats{Total: len(ids) - startFrom + 1}
	device := r.ensureActiveDevice(ctx)

	for i := startFrom - 1; i < len(ids); i++ {
		if ctx.Err() != nil {
			break
		}

		outcome := r.recordOne(ctx, i+1, ids[i], device)
		switch outcome {
		case outcomeRecorded:
			stats.Recorded++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeFailed:
			stats.Failed++
		case outcomeShutdown:
			stats.Recorded++
			return stats, nil
		case outcomeAborted:
			return stats, nil
		}

		if outcome == outcomeRecorded && i < len(ids)-1 && r.opts.Gap > 0 {
			r.log.Debug("Waiting %s before the next track", r.opts.Gap)
			if err := r.sleep(ctx, r.opts.Gap); err != nil {
				break
			}
		}
	}
	return stats, nil
}

type outcome int

const (
	outcomeRecorded outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeShutdown // recorded, then interrupted
	outcomeAborted  // interrupted before recording began
)

func (r *Recorder) recordOne(ctx context.Context, index int, id, device string) outcome {
	preview, err := r.player.Track(ctx, id)
	hasPreview := err == nil && preview.ID != ""
	if err != nil {
		if ctx.Err() != nil {
			return outcomeAborted
		}
		r.log.Debug("Metadata preview for %s failed: %v", id, err)
	}

	if hasPreview {
		target := r.opts.Layout.Path(preview)
		if r.opts.SkipExisting && library.AlreadyRecorded(target, preview.ID) {
			r.log.Info("Skipping track #%d: already recorded -> %s", index, target)
			if r.Hooks.OnSkipped != nil {
				r.Hooks.OnSkipped(index, preview, target)
			}
			return outcomeSkipped
		}
	}

	session := r.newID()
	arming := r.opts.Layout.ArmingPath(session)
	proc, err := r.capturer.Start(arming, r.opts.MaxCapture)
	if err != nil {
		r.fail(session, id, preview, fmt.Errorf("failed to arm capture: %w", err))
		return outcomeFailed
	}
	if r.Hooks.OnArmed != nil {
		r.Hooks.OnArmed(session, preview)
	}

	abandon := func() {
		if err := proc.Stop(); err != nil {
			r.log.Warn("Capture did not stop cleanly: %v", err)
		}
		os.Remove(arming)
	}

	if err := r.sleep(ctx, r.opts.Preroll); err != nil {
		abandon()
		return outcomeAborted
	}

	if !proc.Running() {
		cause := proc.Err()
		if cause == nil {
			cause = errors.New("capture exited before playback started")
		}
		abandon()
		r.fail(session, id, preview, fmt.Errorf("capture device failed: %w", cause))
		return outcomeFailed
	}

	if err := r.player.StartPlayback(ctx, device, []string{link.TrackURI(id)}); err != nil {
		abandon()
		if ctx.Err() != nil {
			return outcomeAborted
		}
		r.fail(session, id, preview, err)
		return outcomeFailed
	}

	if err := r.sleep(ctx, r.opts.MetadataDelay); err != nil {
		abandon()
		return outcomeAborted
	}

	now, err := r.player.CurrentPlayback(ctx)
	if err != nil || !now.HasTrack() {
		abandon()
		if ctx.Err() != nil {
			return outcomeAborted
		}
		if err == nil {
			err = errors.New("no metadata after playback start")
		}
		r.fail(session, id, preview, err)
		return outcomeFailed
	}

	track := now.Track
	final := r.opts.Layout.Path(track)
	expected := track.Duration + r.opts.Buffer
	r.log.Info("Recording %s (%s) -> %s", track.DisplayName(), strings.ToUpper(r.opts.Layout.Format), final)
	if r.Hooks.OnRecording != nil {
		r.Hooks.OnRecording(session, track, final, expected)
	}

	reason := r.monitor(ctx, session, track)
	r.finish(session, proc, track, final, reason, 0)

	if reason == ReasonShutdown {
		return outcomeShutdown
	}
	return outcomeRecorded
}

// monitor polls the player until the capture of track should stop.
func (r *Recorder) monitor(ctx context.Context, session string, track metadata.TrackInfo) string {
	failures := 0
	for {
		if ctx.Err() != nil {
			return ReasonShutdown
		}

		p, err := r.player.CurrentPlayback(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ReasonShutdown
			}
			failures++
			r.log.Debug("Playback poll failed (%d/%d): %v", failures, maxPollErrors, err)
			if failures >= maxPollErrors {
				return ReasonStopped
			}
		} else {
			failures = 0
			if reason, stop := StopReason(p, track.ID); stop {
				return reason
			}
			if r.Hooks.OnProgress != nil {
				r.Hooks.OnProgress(session, p.Progress, p.Track.Duration)
			}
		}

		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			return ReasonShutdown
		}
	}
}

// finish stops a capture and queues it for finalization.
func (r *Recorder) finish(session string, proc Capture, track metadata.TrackInfo, final, reason string, skip time.Duration) {
	stoppedAt := r.now()
	if err := proc.Stop(); err != nil {
		r.log.Warn("Capture did not stop cleanly: %v", err)
	}
	r.log.Info("Stopped %s: %s", track.DisplayName(), reason)
	if r.Hooks.OnStopped != nil {
		r.Hooks.OnStopped(session, track, reason)
	}

	task := finalize.Task{
		SessionID:   session,
		Capture:     proc,
		TempPath:    proc.Path(),
		FinalPath:   final,
		Track:       track,
		StartedAt:   proc.StartedAt(),
		StoppedAt:   stoppedAt,
		Expected:    track.Duration + r.opts.Buffer,
		StopReason:  reason,
		SkipLeading: skip,
	}
	if err := r.finalizer.Enqueue(task); err != nil {
		r.log.Error("Could not queue %s for finalization: %v", track.DisplayName(), err)
	}
}

func (r *Recorder) fail(session, id string, track metadata.TrackInfo, err error) {
	name := link.TrackURI(id)
	if track.Title != "" {
		name = track.DisplayName()
	}
	r.log.Error("FAILED %s: %v", name, err)
	if r.failed != nil {
		if werr := r.failed.RecordLink(id); werr != nil {
			r.log.Warn("Could not update failed log: %v", werr)
		}
	}
	if r.Hooks.OnFailed != nil {
		r.Hooks.OnFailed(session, track, err)
	}
}

// ensureActiveDevice makes sure some Spotify Connect device will accept
// playback commands and returns its ID ("" means use the active one).
func (r *Recorder) ensureActiveDevice(ctx context.Context) string {
	devices, err := r.player.Devices(ctx)
	if err != nil {
		r.log.Warn("Could not list Spotify devices: %v", err)
		return ""
	}
	if len(devices) == 0 {
		r.log.Warn("No Spotify devices found; open Spotify on this computer")
		return ""
	}

	var chosen *spotify.Device
	if want := strings.ToLower(strings.TrimSpace(r.opts.PreferredDevice)); want != "" {
		for i := range devices {
			if strings.Contains(strings.ToLower(devices[i].Name), want) {
				chosen = &devices[i]
				break
			}
		}
		if chosen == nil {
			r.log.Warn("Spotify device %q not found", r.opts.PreferredDevice)
		}
	}
	if chosen == nil {
		for i := range devices {
			if devices[i].IsActive {
				return devices[i].ID
			}
		}
		chosen = &devices[0]
	}
	if chosen.IsActive {
		return chosen.ID
	}

	r.log.Info("Transferring playback to %s", chosen.Name)
	if err := r.player.TransferPlayback(ctx, chosen.ID, false); err != nil {
		r.log.Warn("Could not transfer playback: %v", err)
		return ""
	}
	r.sleep(ctx, transferSettle)
	return chosen.ID
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
