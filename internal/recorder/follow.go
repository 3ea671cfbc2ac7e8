package recorder

import (
	"context"
	"fmt"
	"os"
	"time"

	"aurora/internal/metadata"
	"aurora/internal/spotify"
)

// active is the capture currently assigned to a track.
type active struct {
	session string
	proc    Capture
	track   metadata.TrackInfo
	final   string
	skip    time.Duration
}

// standby is an armed capture waiting for playback to start.
type standby struct {
	session string
	proc    Capture
}

// Follow records whatever the user plays until ctx is cancelled. A standby
// capture is kept armed at all times so the start of a track is never lost;
// when playback begins it is adopted and the silence before the track is
// trimmed during finalization.
func (r *Recorder) Follow(ctx context.Context) error {
	var (
		cur      *active
		spare    *standby
		failures int
	)

	defer func() {
		if cur != nil {
			r.finish(cur.session, cur.proc, cur.track, cur.final, ReasonShutdown, cur.skip)
		}
		r.dropStandby(spare)
	}()

	if err := r.ensureStandby(&spare); err != nil {
		return fmt.Errorf("failed to arm standby capture: %w", err)
	}
	r.log.Info("Following playback; start a track in Spotify (Ctrl+C to stop)")

	for {
		if ctx.Err() != nil {
			return nil
		}

		p, err := r.player.CurrentPlayback(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			r.log.Debug("Playback poll failed (%d/%d): %v", failures, maxPollErrors, err)
			if cur != nil && failures >= maxPollErrors {
				r.finish(cur.session, cur.proc, cur.track, cur.final, ReasonStopped, cur.skip)
				cur = nil
			}
		} else {
			failures = 0
			if cur == nil {
				if p.HasTrack() && p.IsPlaying {
					cur, err = r.adopt(&spare, p)
					if err != nil {
						r.log.Error("Could not start recording %s: %v", p.Track.DisplayName(), err)
					}
				} else if err := r.ensureStandby(&spare); err != nil {
					r.log.Warn("Standby capture: %v", err)
				}
			} else if !cur.proc.Running() {
				if err := cur.proc.Err(); err != nil {
					r.log.Warn("Capture of %s failed: %v", cur.track.DisplayName(), err)
				} else {
					r.log.Warn("Capture of %s ended before the track did", cur.track.DisplayName())
				}
				r.finish(cur.session, cur.proc, cur.track, cur.final, ReasonStopped, cur.skip)
				cur = nil
			} else if reason, stop := StopReason(p, cur.track.ID); stop {
				r.finish(cur.session, cur.proc, cur.track, cur.final, reason, cur.skip)
				cur = nil
			} else if r.Hooks.OnProgress != nil {
				r.Hooks.OnProgress(cur.session, p.Progress, p.Track.Duration)
			}
		}

		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			return nil
		}
	}
}

// adopt assigns the standby capture to the track now playing and arms a
// fresh standby.
func (r *Recorder) adopt(spare **standby, p *spotify.Playback) (*active, error) {
	if *spare == nil || !(*spare).proc.Running() {
		if err := r.ensureStandby(spare); err != nil {
			return nil, err
		}
	}
	sb := *spare
	*spare = nil

	now := r.now()
	// The track started about Progress ago; keep Preroll of lead-in.
	trackStart := now.Add(-p.Progress)
	skip := max(0, trackStart.Sub(sb.proc.StartedAt())-r.opts.Preroll)

	cur := &active{
		session: sb.session,
		proc:    sb.proc,
		track:   p.Track,
		final:   r.opts.Layout.Path(p.Track),
		skip:    skip,
	}
	expected := p.Track.Duration + r.opts.Buffer
	r.log.Info("Recording %s -> %s", p.Track.DisplayName(), cur.final)
	if r.Hooks.OnRecording != nil {
		r.Hooks.OnRecording(cur.session, cur.track, cur.final, expected)
	}

	if err := r.ensureStandby(spare); err != nil {
		r.log.Warn("Could not arm the next standby capture: %v", err)
	}
	return cur, nil
}

// ensureStandby arms a standby capture unless a live one exists. A standby
// that exited or has been idle for StandbyLength is discarded and replaced.
// Standbys run with the full capture limit so an adopted one can hold a
// whole track.
func (r *Recorder) ensureStandby(spare **standby) error {
	if sb := *spare; sb != nil {
		if sb.proc.Running() && r.now().Sub(sb.proc.StartedAt()) < r.opts.StandbyLength {
			return nil
		}
		r.dropStandby(sb)
		*spare = nil
	}

	session := r.newID()
	proc, err := r.capturer.Start(r.opts.Layout.StandbyPath(session), r.opts.MaxCapture)
	if err != nil {
		return err
	}
	*spare = &standby{session: session, proc: proc}
	r.log.Debug("Standby capture armed: %s", proc.Path())
	if r.Hooks.OnArmed != nil {
		r.Hooks.OnArmed(session, metadata.TrackInfo{})
	}
	return nil
}

func (r *Recorder) dropStandby(sb *standby) {
	if sb == nil {
		return
	}
	if err := sb.proc.Stop(); err != nil {
		r.log.Warn("Standby capture did not stop cleanly: %v", err)
	}
	os.Remove(sb.proc.Path())
}
