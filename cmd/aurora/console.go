package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"aurora/internal/finalize"
	"aurora/internal/logger"
	"aurora/internal/metadata"
	"aurora/internal/progress"
	"aurora/internal/recorder"
)

// console renders recording banners and the per-track progress bar.
type console struct {
	out     io.Writer
	log     *logger.Logger
	format  string
	showBar bool

	mu  sync.Mutex
	bar *progress.Bar
}

func newConsole(out io.Writer, log *logger.Logger, format string, showBar bool) *console {
	return &console{out: out, log: log, format: format, showBar: showBar}
}

func (c *console) hooks() recorder.Hooks {
	return recorder.Hooks{
		OnRecording: func(_ string, track metadata.TrackInfo, path string, expected time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()

			fmt.Fprintln(c.out, progress.RecordingStarted(track.DisplayName(), c.format, path, expected))
			if c.showBar {
				c.bar = progress.New(c.out, track.DisplayName(), track.Duration)
				c.log.SetProgressBar(true)
			}
		},
		OnProgress: func(_ string, position, duration time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()

			if c.bar != nil {
				c.bar.Update(position, duration)
			}
		},
		OnStopped: func(_ string, _ metadata.TrackInfo, reason string) {
			c.mu.Lock()
			defer c.mu.Unlock()

			if c.bar != nil {
				c.bar.Finish(reason)
				c.bar = nil
				c.log.SetProgressBar(false)
			}
		},
	}
}

// onQueued announces how many tracks the run will play.
func (c *console) onQueued(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	noun := "tracks"
	if total == 1 {
		noun = "track"
	}
	fmt.Fprintf(c.out, "%d %s queued for recording\n", total, noun)
}

// onResult logs where a finalized capture ended up.
func (c *console) onResult(res finalize.Result) {
	if res.Outcome == finalize.Saved && res.Recorded > 0 {
		c.log.Debug("%s: %s recorded", res.Path, progress.FormatClock(res.Recorded))
	}
}

// chainHooks calls the hooks of every set in order.
func chainHooks(sets ...recorder.Hooks) recorder.Hooks {
	var out recorder.Hooks
	for _, h := range sets {
		if fn := h.OnSkipped; fn != nil {
			prev := out.OnSkipped
			out.OnSkipped = func(i int, t metadata.TrackInfo, p string) {
				if prev != nil {
					prev(i, t, p)
				}
				fn(i, t, p)
			}
		}
		if fn := h.OnArmed; fn != nil {
			prev := out.OnArmed
			out.OnArmed = func(s string, t metadata.TrackInfo) {
				if prev != nil {
					prev(s, t)
				}
				fn(s, t)
			}
		}
		if fn := h.OnRecording; fn != nil {
			prev := out.OnRecording
			out.OnRecording = func(s string, t metadata.TrackInfo, p string, d time.Duration) {
				if prev != nil {
					prev(s, t, p, d)
				}
				fn(s, t, p, d)
			}
		}
		if fn := h.OnProgress; fn != nil {
			prev := out.OnProgress
			out.OnProgress = func(s string, pos, dur time.Duration) {
				if prev != nil {
					prev(s, pos, dur)
				}
				fn(s, pos, dur)
			}
		}
		if fn := h.OnStopped; fn != nil {
			prev := out.OnStopped
			out.OnStopped = func(s string, t metadata.TrackInfo, r string) {
				if prev != nil {
					prev(s, t, r)
				}
				fn(s, t, r)
			}
		}
		if fn := h.OnFailed; fn != nil {
			prev := out.OnFailed
			out.OnFailed = func(s string, t metadata.TrackInfo, err error) {
				if prev != nil {
					prev(s, t, err)
				}
				fn(s, t, err)
			}
		}
	}
	return out
}
