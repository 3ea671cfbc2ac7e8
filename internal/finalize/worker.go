// Package finalize turns stopped captures into tagged files in the library,
// one at a time, in the background.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"aurora/internal/library"
	"aurora/internal/logger"
	"aurora/internal/lyrics"
	"aurora/internal/metadata"
	"aurora/internal/transcode"
	"aurora/pkg/utils"
)

const (
	queueSize = 64

	// durationSlack is how much shorter than the catalog duration a capture
	// may be and still be kept.
	durationSlack = 3 * time.Second
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("finalizer queue is closed")

// Process is the part of a capture the finalizer needs.
type Process interface {
	Running() bool
	Wait(timeout time.Duration) error
}

// Task describes one stopped capture.
type Task struct {
	SessionID   string
	Capture     Process // nil when the process is already gone
	TempPath    string
	FinalPath   string
	Track       metadata.TrackInfo
	StartedAt   time.Time
	StoppedAt   time.Time
	Expected    time.Duration // duration limit the capture was started with
	StopReason  string
	SkipLeading time.Duration // audio to drop from the start (adopted standby)
}

// Outcome is what happened to a task.
type Outcome string

const (
	Saved     Outcome = "saved"
	Discarded Outcome = "discarded"
	Failed    Outcome = "failed"
)

// Result reports one finished task.
type Result struct {
	Task            Task
	Outcome         Outcome
	Path            string
	Recorded        time.Duration // zero when unknown
	HeaderRewritten bool
	Reason          string
}

// Options configure a Worker.
type Options struct {
	FFmpegPath   string
	Rewrite      bool
	MinDuration  time.Duration // floor used when the catalog duration is unknown
	CoverMaxSize int
	EmbedLyrics  bool
	ExitTimeout  time.Duration
	Settle       time.Duration
}

// Stats counts outcomes.
type Stats struct {
	Saved     int
	Discarded int
	Failed    int
}

type artworkFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type lyricsFetcher interface {
	Fetch(ctx context.Context, track metadata.TrackInfo) (lyrics.Result, error)
}

// Worker drains a queue of Tasks.
type Worker struct {
	opts    Options
	log     *logger.Logger
	failed  *library.FailedLog
	journal *library.Journal

	artwork artworkFetcher
	lyrics  lyricsFetcher
	rewrite func(ctx context.Context, ffmpegPath, path string, opts transcode.Options) error
	measure func(path string) (time.Duration, error)
	sleep   func(time.Duration)
	now     func() time.Time

	// OnStart and OnResult are called from the worker goroutine.
	OnStart  func(Task)
	OnResult func(Result)

	queue  chan Task
	mu     sync.Mutex
	closed bool

	saved, discarded, failedCount atomic.Int64
}

// New creates a Worker. failed and journal may be nil.
func New(opts Options, log *logger.Logger, failed *library.FailedLog, journal *library.Journal) *Worker {
	if opts.ExitTimeout <= 0 {
		opts.ExitTimeout = 8 * time.Second
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	w := &Worker{
		opts:    opts,
		log:     log,
		failed:  failed,
		journal: journal,
		artwork: metadata.NewArtworkClient(),
		rewrite: transcode.RewriteHeaders,
		measure: metadata.Length,
		sleep:   time.Sleep,
		now:     time.Now,
		queue:   make(chan Task, queueSize),
	}
	if opts.EmbedLyrics {
		w.lyrics = lyrics.NewClient()
	}
	return w
}

// Enqueue hands a task to the worker.
func (w *Worker) Enqueue(t Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.queue <- t
	return nil
}

// Close stops accepting tasks. Run returns once the queue is empty.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
}

// Run processes tasks until Close is called and the queue is drained.
// Cancelling ctx does not abandon queued captures.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Debug("Finalization worker started")
	defer w.log.Debug("Finalization worker stopped")

	ctx = context.WithoutCancel(ctx)
	for t := range w.queue {
		w.Process(ctx, t)
	}
	return nil
}

// Stats returns the outcome counts so far.
func (w *Worker) Stats() Stats {
	return Stats{
		Saved:     int(w.saved.Load()),
		Discarded: int(w.discarded.Load()),
		Failed:    int(w.failedCount.Load()),
	}
}

// Process finalizes one task synchronously.
func (w *Worker) Process(ctx context.Context, t Task) Result {
	if w.OnStart != nil {
		w.OnStart(t)
	}
	res := w.process(ctx, t)

	switch res.Outcome {
	case Saved:
		w.saved.Add(1)
		w.log.Info("Saved: %s", res.Path)
	case Discarded:
		w.discarded.Add(1)
		w.log.Warn("Discarded %s: %s", t.Track.DisplayName(), res.Reason)
	default:
		w.failedCount.Add(1)
		w.log.Error("Finalization of %s failed: %s", t.Track.DisplayName(), res.Reason)
	}

	if w.OnResult != nil {
		w.OnResult(res)
	}
	return res
}

func (w *Worker) process(ctx context.Context, t Task) Result {
	res := Result{Task: t, Path: t.TempPath}

	if t.Capture != nil && t.Capture.Running() {
		if err := t.Capture.Wait(w.opts.ExitTimeout); err != nil {
			w.log.Warn("Capture for %s did not exit: %v", t.Track.DisplayName(), err)
		}
		w.sleep(w.opts.Settle)
	}

	if t.FinalPath != "" && t.FinalPath != t.TempPath {
		path, err := w.place(t)
		if err != nil {
			res.Outcome = Failed
			res.Reason = err.Error()
			w.recordFailed(t.Track)
			return res
		}
		res.Path = path
	}

	size := utils.FileSize(res.Path)
	if size < 0 {
		res.Outcome = Failed
		res.Reason = "capture file is missing"
		w.recordFailed(t.Track)
		return res
	}
	if size <= transcode.MinSize {
		os.Remove(res.Path)
		res.Outcome = Discarded
		res.Reason = "capture is empty"
		w.recordFailed(t.Track)
		return res
	}

	if w.opts.Rewrite || t.SkipLeading > 0 {
		err := w.rewrite(ctx, w.opts.FFmpegPath, res.Path, transcode.Options{SkipLeading: t.SkipLeading})
		if err != nil {
			w.log.Warn("Header rewrite failed for %s: %v", filepath.Base(res.Path), err)
		}
		res.HeaderRewritten = err == nil
	}

	res.Recorded = w.recordedLength(res.Path, t)
	if required := w.required(t.Track); res.Recorded > 0 && res.Recorded < required {
		os.Remove(res.Path)
		res.Outcome = Discarded
		res.Reason = fmt.Sprintf("recorded %s, need at least %s", res.Recorded.Round(10*time.Millisecond), required)
		w.recordFailed(t.Track)
		return res
	}

	if t.Track.ID == "" && t.Track.Title == "" {
		// Nothing to tag with; keep the audio.
		w.log.Debug("No metadata for %s", res.Path)
	} else {
		w.tag(ctx, res.Path, t.Track)
	}

	w.appendJournal(t, res)
	res.Outcome = Saved
	return res
}

// place moves the capture to its final path. When that fails it lands next
// to the scratch dir under the final file name, so the next run's sweep
// never removes it.
func (w *Worker) place(t Task) (string, error) {
	if utils.FileSize(t.TempPath) < 0 {
		return "", errors.New("capture file is missing")
	}
	err := utils.MoveFile(t.TempPath, t.FinalPath)
	if err == nil {
		return t.FinalPath, nil
	}
	w.log.Warn("Move failed: %v", err)

	fallback := filepath.Join(filepath.Dir(filepath.Dir(t.TempPath)), filepath.Base(t.FinalPath))
	if fallback == t.FinalPath {
		return "", fmt.Errorf("capture left at %s: %w", t.TempPath, err)
	}
	if ferr := utils.MoveFile(t.TempPath, fallback); ferr != nil {
		return "", fmt.Errorf("capture left at %s: %w", t.TempPath, ferr)
	}
	w.log.Warn("Saved to %s instead", fallback)
	return fallback, nil
}

// recordedLength reads the audio length from the file, falling back to the
// capture's wall-clock span.
func (w *Worker) recordedLength(path string, t Task) time.Duration {
	if d, err := w.measure(path); err == nil && d > 0 {
		return d
	}
	if t.StartedAt.IsZero() || t.StoppedAt.Before(t.StartedAt) {
		return 0
	}
	return t.StoppedAt.Sub(t.StartedAt) - t.SkipLeading
}

func (w *Worker) required(track metadata.TrackInfo) time.Duration {
	if track.Duration > 0 {
		return max(track.Duration-durationSlack, 0)
	}
	return w.opts.MinDuration
}

func (w *Worker) tag(ctx context.Context, path string, track metadata.TrackInfo) {
	if err := metadata.WriteTags(path, track); err != nil {
		w.log.Warn("Failed to write tags to %s: %v", filepath.Base(path), err)
	}

	if track.ArtworkURL != "" && w.artwork != nil {
		data, err := w.artwork.Fetch(ctx, track.ArtworkURL)
		if err == nil && len(data) > 0 {
			data, err = metadata.PrepareArtwork(data, w.opts.CoverMaxSize)
		}
		if err == nil {
			err = metadata.WriteArtwork(path, data)
		}
		if err != nil {
			w.log.Warn("Cover art for %s: %v", filepath.Base(path), err)
		}
	}

	if w.lyrics != nil {
		res, err := w.lyrics.Fetch(ctx, track)
		if err != nil {
			w.log.Debug("Lyrics lookup for %s: %v", track.DisplayName(), err)
			return
		}
		if text := res.Best(); text != "" {
			if err := metadata.WriteLyrics(path, text); err != nil {
				w.log.Warn("Failed to embed lyrics in %s: %v", filepath.Base(path), err)
			}
		}
	}
}

func (w *Worker) recordFailed(track metadata.TrackInfo) {
	if w.failed == nil || (track.ID == "" && track.Title == "") {
		return
	}
	if err := w.failed.Record(track); err != nil {
		w.log.Warn("Could not update %s: %v", filepath.Base(w.failed.Path()), err)
	}
}

func (w *Worker) appendJournal(t Task, res Result) {
	if w.journal == nil {
		return
	}
	var recorded *float64
	if res.Recorded > 0 {
		v := math.Round(res.Recorded.Seconds()*100) / 100
		recorded = &v
	}
	track := t.Track.WithDefaults()
	entry := library.Entry{
		SessionID:        t.SessionID,
		TrackID:          t.Track.ID,
		Title:            track.Title,
		Artist:           track.Artist,
		Album:            track.Album,
		StartTime:        t.StartedAt.UTC(),
		EndTime:          w.now().UTC(),
		OriginalDuration: t.Track.Duration.Seconds(),
		TargetDuration:   t.Expected.Seconds(),
		RecordedDuration: recorded,
		HeaderRewritten:  res.HeaderRewritten,
		StopReason:       t.StopReason,
		Filename:         res.Path,
		Format:           strings.TrimPrefix(filepath.Ext(res.Path), "."),
	}
	if err := w.journal.Append(entry); err != nil {
		w.log.Warn("Journal write failed: %v", err)
	}
}
