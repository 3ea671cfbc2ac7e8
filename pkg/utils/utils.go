package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// moveRetryDelay is how long MoveFile waits before its single retry. Windows
// keeps a file locked for a moment after the process writing it exits.
var moveRetryDelay = 500 * time.Millisecond

// CheckDependencies verifies that the ffmpeg binary can be found.
func CheckDependencies(ffmpegPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return fmt.Errorf("required command '%s' not found. Install ffmpeg or set ffmpeg_path in the config", ffmpegPath)
	}
	return nil
}

// FileSize returns the size of path, or -1 when it cannot be read.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// MoveFile moves a file from src to dst, creating the destination directory if needed.
// Falls back to copy+delete when src and dst are on different filesystems, and
// retries once after a short delay.
func MoveFile(src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("source and destination paths cannot be empty")
	}

	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("source file does not exist: %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	err := move(src, dst)
	if err == nil {
		return nil
	}
	time.Sleep(moveRetryDelay)
	if retryErr := move(src, dst); retryErr != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, retryErr)
	}
	return nil
}

func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	// Cross-device link, or a destination the platform refuses to replace:
	// fall back to copy + delete
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && !errors.Is(linkErr.Err, syscall.ENOENT) {
		return copyAndDelete(src, dst)
	}
	return err
}

func copyAndDelete(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", src, err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source %s: %w", src, err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("failed to create destination %s: %w", dst, err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := dstFile.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to close destination %s: %w", dst, err)
	}

	srcFile.Close()
	return os.Remove(src)
}
