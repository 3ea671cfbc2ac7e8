package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"aurora/internal/link"
	"aurora/internal/metadata"
)

// FailedLog appends tracks that could not be recorded, one web link per line.
// Its name is reserved as input, so copy or rename it to retry the tracks.
type FailedLog struct {
	path string
	mu   sync.Mutex
}

// NewFailedLog creates a FailedLog writing to path.
func NewFailedLog(path string) *FailedLog {
	return &FailedLog{path: path}
}

// Path returns the file the log writes to.
func (f *FailedLog) Path() string {
	return f.path
}

// Record appends the track's web link, or "Artist - Title" without an ID.
func (f *FailedLog) Record(track metadata.TrackInfo) error {
	if track.ID != "" {
		return f.append(link.TrackWebURL(track.ID))
	}
	return f.append(track.DisplayName())
}

// RecordLink appends a raw reference, normalized to a web link when it parses.
func (f *FailedLog) RecordLink(raw string) error {
	if raw == "" {
		return nil
	}
	if ref, err := link.Parse(raw); err == nil {
		raw = ref.WebURL()
	}
	return f.append(raw)
}

func (f *FailedLog) append(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return appendLine(f.path, []byte(line))
}

// Entry is one line of the session journal.
type Entry struct {
	SessionID        string    `json:"session_id"`
	TrackID          string    `json:"track_id"`
	Title            string    `json:"title"`
	Artist           string    `json:"artist_str"`
	Album            string    `json:"album"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	OriginalDuration float64   `json:"original_duration_sec"`
	TargetDuration   float64   `json:"ffmpeg_target_duration_sec"`
	RecordedDuration *float64  `json:"recorded_duration_seconds"`
	HeaderRewritten  bool      `json:"header_rewrite_successful"`
	StopReason       string    `json:"stop_reason"`
	Filename         string    `json:"filename"`
	Format           string    `json:"format"`
}

// Journal appends Entry values as JSON lines.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal creates a Journal writing to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// JournalPath is the default journal location inside an output root.
func JournalPath(root string) string {
	return filepath.Join(root, "aurora_metadata.jsonl")
}

// Append writes e as one line.
func (j *Journal) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return appendLine(j.path, data)
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return f.Close()
}
