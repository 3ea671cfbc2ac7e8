package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "__arming__", "arming_x.flac")
	dst := filepath.Join(dir, "Artist", "Album", "01 Song.flac")

	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile() error: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "audio" {
		t.Errorf("destination = %q, %v", data, err)
	}
}

func TestMoveFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.flac")
	dst := filepath.Join(dir, "b.flac")
	os.WriteFile(src, []byte("new"), 0644)
	os.WriteFile(dst, []byte("old"), 0644)

	if err := MoveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "new" {
		t.Errorf("destination = %q, want new", data)
	}
}

func TestMoveFileErrors(t *testing.T) {
	moveRetryDelay = 0
	if err := MoveFile("", "x"); err == nil {
		t.Error("expected error for empty source")
	}
	if err := MoveFile(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestCopyAndDelete(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "dst.wav")
	os.WriteFile(src, []byte("pcm"), 0644)

	if err := copyAndDelete(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists")
	}
	if data, _ := os.ReadFile(dst); string(data) != "pcm" {
		t.Errorf("destination = %q", data)
	}
}

func TestFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	os.WriteFile(path, make([]byte, 2048), 0644)
	if got := FileSize(path); got != 2048 {
		t.Errorf("FileSize() = %d", got)
	}
	if got := FileSize(path + ".missing"); got != -1 {
		t.Errorf("FileSize(missing) = %d", got)
	}
}

func TestCheckDependencies(t *testing.T) {
	if err := CheckDependencies("/nonexistent/ffmpeg-binary"); err == nil {
		t.Error("expected error for missing binary")
	}
}
