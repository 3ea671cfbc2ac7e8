// Package capture records the loopback device with an ffmpeg subprocess.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	stopGrace = 6 * time.Second
	killGrace = 3 * time.Second

	maxStderr = 8 * 1024
)

// ErrNotExited is returned when ffmpeg survives a kill.
var ErrNotExited = errors.New("ffmpeg did not exit")

// Options describe one capture.
type Options struct {
	FFmpegPath  string
	InputFormat string // empty selects the platform format
	Device      string // empty selects the platform default device
	Format      string // flac, mp3 or wav
	MaxDuration time.Duration
	Path        string
}

func (o Options) withDefaults() Options {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.InputFormat == "" {
		o.InputFormat = platform.inputFormat
	}
	if o.Device == "" {
		o.Device = platform.defaultDevice
	}
	if o.Format == "" {
		o.Format = "flac"
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = time.Hour
	}
	return o
}

// BuildArgs returns the ffmpeg arguments for opts.
func BuildArgs(opts Options) []string {
	opts = opts.withDefaults()
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-fflags", "+nobuffer",
		"-flags", "low_delay",
		"-thread_queue_size", "1024",
		"-f", opts.InputFormat,
		"-i", opts.Device,
		"-t", strconv.FormatFloat(max(0.1, opts.MaxDuration.Seconds()), 'f', -1, 64),
		"-ac", "2",
		"-ar", "44100",
		"-vn",
	}
	args = append(args, codecArgs(opts.Format)...)
	return append(args, opts.Path)
}

func codecArgs(format string) []string {
	switch format {
	case "mp3":
		return []string{"-acodec", "libmp3lame", "-b:a", "320k"}
	case "wav":
		return []string{"-acodec", "pcm_s16le"}
	default:
		return []string{"-sample_fmt", "s32", "-acodec", "flac"}
	}
}

// Capture is a running ffmpeg recording.
type Capture struct {
	path      string
	startedAt time.Time

	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool
	stderr  limitedBuffer
}

// Start launches ffmpeg writing to opts.Path. An existing file at that path
// is replaced.
func Start(opts Options) (*Capture, error) {
	opts = opts.withDefaults()
	if opts.Path == "" {
		return nil, errors.New("capture path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	if err := os.Remove(opts.Path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale capture: %w", err)
	}

	c := &Capture{path: opts.Path, done: make(chan struct{})}
	c.stderr.limit = maxStderr

	cmd := exec.Command(opts.FFmpegPath, BuildArgs(opts)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &c.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.startedAt = time.Now()

	go func() {
		err := cmd.Wait()
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	}()

	return c, nil
}

// Path returns the file being written.
func (c *Capture) Path() string { return c.path }

// StartedAt returns when the process was launched.
func (c *Capture) StartedAt() time.Time { return c.startedAt }

// Done is closed when the process has exited.
func (c *Capture) Done() <-chan struct{} { return c.done }

// Running reports whether the process is still alive.
func (c *Capture) Running() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Err returns the exit error once the process has exited. A capture ended by
// Stop or one that ran to its duration limit reports nil.
func (c *Capture) Err() error {
	select {
	case <-c.done:
	default:
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil || c.stopped {
		return nil
	}
	if msg := strings.TrimSpace(c.stderr.String()); msg != "" {
		return fmt.Errorf("%w: %s", c.err, msg)
	}
	return c.err
}

// Stop asks ffmpeg to quit so it can close the container, killing it when it
// does not exit in time.
func (c *Capture) Stop() error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	if !c.Running() {
		return nil
	}
	c.stdin.Write([]byte("q"))
	c.stdin.Close()

	select {
	case <-c.done:
		return nil
	case <-time.After(stopGrace):
	}
	return c.Kill()
}

// Wait waits up to timeout for the process to exit, then kills it.
func (c *Capture) Wait(timeout time.Duration) error {
	select {
	case <-c.done:
		return nil
	case <-time.After(timeout):
	}
	return c.Kill()
}

// Kill terminates the process and waits briefly for it to exit.
func (c *Capture) Kill() error {
	if !c.Running() {
		return nil
	}
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.cmd.Process.Kill()

	select {
	case <-c.done:
		return nil
	case <-time.After(killGrace):
		return ErrNotExited
	}
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
