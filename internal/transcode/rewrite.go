// Package transcode re-muxes finished captures with ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// MinSize is the smallest file worth rewriting, and the smallest result
	// accepted as a replacement.
	MinSize = 1024

	rewriteTimeout = 120 * time.Second
)

// ErrTooSmall is returned for inputs below MinSize.
var ErrTooSmall = errors.New("file too small to rewrite")

// Options tune RewriteHeaders.
type Options struct {
	// SkipLeading drops this much audio from the start of the file.
	SkipLeading time.Duration
}

// TempPath returns the scratch file used while rewriting path.
func TempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_rewrite_temp" + ext
}

// BuildArgs returns the ffmpeg arguments for rewriting src into dst.
func BuildArgs(src, dst string, opts Options) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if opts.SkipLeading > 0 {
		args = append(args, "-ss", strconv.FormatFloat(opts.SkipLeading.Seconds(), 'f', 3, 64))
	}
	args = append(args, "-i", src)
	if opts.SkipLeading > 0 {
		// Stream copy cannot cut between frames, so a trimmed file is re-encoded.
		args = append(args, "-vn", "-map_metadata", "-1")
	} else {
		args = append(args, "-acodec", "copy", "-vn", "-map_metadata", "-1")
	}
	return append(args, dst)
}

// RewriteHeaders re-muxes path so its container headers (duration, seek
// tables) match the audio actually written, dropping any metadata. The
// original is replaced only when ffmpeg succeeds and the result is at least
// MinSize bytes.
func RewriteHeaders(ctx context.Context, ffmpegPath, path string, opts Options) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot rewrite %s: %w", path, err)
	}
	if info.Size() < MinSize {
		return ErrTooSmall
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, rewriteTimeout)
	defer cancel()

	tmp := TempPath(path)
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, ffmpegPath, BuildArgs(path, tmp, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("header rewrite of %s timed out: %w", filepath.Base(path), ctx.Err())
		}
		return fmt.Errorf("ffmpeg header rewrite failed: %w\nDetails: %s", err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.Stat(tmp)
	if err != nil || out.Size() < MinSize {
		return fmt.Errorf("header rewrite of %s produced no usable output", filepath.Base(path))
	}

	if err := replaceFile(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// replaceFile renames src over dst. Windows refuses to rename onto an
// existing file, so dst is removed and the rename retried there.
func replaceFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || runtime.GOOS != "windows" {
		return err
	}
	if _, serr := os.Stat(src); serr != nil {
		return err
	}
	if rerr := os.Remove(dst); rerr != nil {
		return err
	}
	return os.Rename(src, dst)
}
