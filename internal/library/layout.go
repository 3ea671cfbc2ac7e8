// Package library decides where captures live on disk and keeps the
// bookkeeping files next to them.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"aurora/internal/metadata"
)

const (
	armingDir  = "__arming__"
	standbyDir = "__standby__"

	// MinRecordedBytes is the smallest file considered a finished recording.
	MinRecordedBytes = 20 * 1024

	maxNameRunes = 70
)

var separatorRuns = regexp.MustCompile(`[_ ]{2,}`)

// Sanitize makes text safe as a single path element: letters, numbers and
// " ._-" are kept, everything else becomes "_", runs of separators collapse
// and the result is cut to 70 characters. Names made only of dots come back
// empty.
func Sanitize(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || strings.ContainsRune(" ._-", r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	s := strings.TrimSpace(b.String())
	s = separatorRuns.ReplaceAllString(s, "_")
	if runes := []rune(s); len(runes) > maxNameRunes {
		s = string(runes[:maxNameRunes])
	}
	s = strings.Trim(s, "_")
	if strings.Trim(s, ". ") == "" {
		return ""
	}
	return s
}

// element sanitizes text, falling back to the sanitized placeholder.
func element(text, placeholder string) string {
	if s := Sanitize(text); s != "" {
		return s
	}
	return Sanitize(placeholder)
}

// Layout maps tracks to paths under Root.
type Layout struct {
	Root     string
	Format   string // file extension without the dot
	Organize bool   // Root/Artist/Album when set
}

// Dir returns the directory a track is filed under.
func (l Layout) Dir(track metadata.TrackInfo) string {
	if !l.Organize {
		return l.Root
	}
	t := track.WithDefaults()
	return filepath.Join(l.Root,
		element(t.PrimaryArtist(), metadata.UnknownArtist),
		element(t.Album, metadata.UnknownAlbum))
}

// FileName returns "NN Title.ext", NN being the zero-padded track number or 00.
func (l Layout) FileName(track metadata.TrackInfo) string {
	prefix := "00"
	if track.TrackNumber > 0 {
		prefix = fmt.Sprintf("%02d", track.TrackNumber)
	}
	return fmt.Sprintf("%s %s.%s", prefix, element(track.Title, metadata.UnknownTitle), l.Format)
}

// Path returns the final location of a track.
func (l Layout) Path(track metadata.TrackInfo) string {
	return filepath.Join(l.Dir(track), l.FileName(track))
}

// ArmingPath is where a capture is written before its track is known for sure.
func (l Layout) ArmingPath(session string) string {
	return filepath.Join(l.Root, armingDir, "arming_"+session+"."+l.Format)
}

// StandbyPath is where the always-on capture of follow mode is written.
func (l Layout) StandbyPath(session string) string {
	return filepath.Join(l.Root, standbyDir, "standby_"+session+"."+l.Format)
}

// AlreadyRecorded reports whether path holds a finished recording of trackID.
func AlreadyRecorded(path, trackID string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() < MinRecordedBytes {
		return false
	}
	return metadata.IsRecorded(path, trackID)
}

// SweepScratch removes captures left in the scratch dirs by an earlier run.
func (l Layout) SweepScratch() (int, error) {
	removed := 0
	for _, dir := range []string{armingDir, standbyDir} {
		entries, err := os.ReadDir(filepath.Join(l.Root, dir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(l.Root, dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
