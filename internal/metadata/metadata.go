package metadata

import (
	"strconv"
	"strings"
	"time"
)

const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// TrackInfo contains metadata for a single audio track.
type TrackInfo struct {
	ID          string // streaming catalog identifier
	Title       string
	Artists     []string
	Artist      string // Artists joined with ", "
	Album       string
	AlbumArtist string
	Composer    string
	Performer   string
	TrackNumber int
	DiscNumber  int
	TotalTracks int
	ReleaseDate string // "2020-03-20", "2020-03" or "2020"
	Year        int
	ISRC        string
	ArtworkURL  string
	Duration    time.Duration
}

// PrimaryArtist returns the first credited artist.
func (t TrackInfo) PrimaryArtist() string {
	for _, a := range t.Artists {
		if a = strings.TrimSpace(a); a != "" {
			return a
		}
	}
	if t.Artist != "" {
		if i := strings.Index(t.Artist, ","); i > 0 {
			return strings.TrimSpace(t.Artist[:i])
		}
		return t.Artist
	}
	return UnknownArtist
}

// YearString returns the release year, "" when unknown.
func (t TrackInfo) YearString() string {
	if t.Year > 0 {
		return strconv.Itoa(t.Year)
	}
	if y := ParseYear(t.ReleaseDate); y > 0 {
		return strconv.Itoa(y)
	}
	return ""
}

// WithDefaults fills empty title, artist and album with placeholder names.
func (t TrackInfo) WithDefaults() TrackInfo {
	if t.Title == "" {
		t.Title = UnknownTitle
	}
	if len(t.Artists) == 0 && t.Artist != "" {
		t.Artists = []string{t.Artist}
	}
	if len(t.Artists) == 0 {
		t.Artists = []string{UnknownArtist}
	}
	if t.Artist == "" {
		t.Artist = strings.Join(t.Artists, ", ")
	}
	if t.Album == "" {
		t.Album = UnknownAlbum
	}
	return t
}

// DisplayName is "Artist - Title" for logs and the failed list.
func (t TrackInfo) DisplayName() string {
	d := t.WithDefaults()
	return d.Artist + " - " + d.Title
}

// ParseYear extracts the leading year of a release date.
func ParseYear(releaseDate string) int {
	if len(releaseDate) >= 4 {
		if y, err := strconv.Atoi(releaseDate[:4]); err == nil {
			return y
		}
	}
	return 0
}
