// Package link parses Spotify track, album and playlist references and reads
// text files of links.
package link

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Kind is the type of catalog object a reference points to.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
)

const webBase = "https://open.spotify.com"

// Ref identifies one catalog object.
type Ref struct {
	Kind Kind
	ID   string
}

// URI returns the spotify:<kind>:<id> form.
func (r Ref) URI() string {
	return fmt.Sprintf("spotify:%s:%s", r.Kind, r.ID)
}

// WebURL returns the open.spotify.com link.
func (r Ref) WebURL() string {
	return fmt.Sprintf("%s/%s/%s", webBase, r.Kind, r.ID)
}

// TrackURI is a shortcut for Ref{KindTrack, id}.URI().
func TrackURI(id string) string {
	return Ref{Kind: KindTrack, ID: id}.URI()
}

// TrackWebURL is a shortcut for Ref{KindTrack, id}.WebURL().
func TrackWebURL(id string) string {
	return Ref{Kind: KindTrack, ID: id}.WebURL()
}

// Parse accepts open.spotify.com links (with or without an intl- prefix and
// query string), spotify:<kind>:<id> URIs and bare 22-character track IDs.
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty link")
	}

	if strings.HasPrefix(s, "spotify:") {
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return Ref{}, fmt.Errorf("malformed spotify URI %q", s)
		}
		return newRef(parts[1], parts[2], s)
	}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return Ref{}, fmt.Errorf("invalid link %q: %w", s, err)
		}
		if host := u.Hostname(); host != "spotify.com" && !strings.HasSuffix(host, ".spotify.com") {
			return Ref{}, fmt.Errorf("not a spotify link: %q", s)
		}
		segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
		if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
			segments = segments[1:]
		}
		if len(segments) < 2 {
			return Ref{}, fmt.Errorf("link %q has no object id", s)
		}
		return newRef(segments[0], segments[1], s)
	}

	if isBareID(s) {
		return Ref{Kind: KindTrack, ID: s}, nil
	}

	return Ref{}, fmt.Errorf("unsupported link %q", s)
}

func newRef(kind, id, raw string) (Ref, error) {
	k := Kind(kind)
	switch k {
	case KindTrack, KindAlbum, KindPlaylist:
	default:
		return Ref{}, fmt.Errorf("unsupported object type %q in %q", kind, raw)
	}
	if !isBareID(id) {
		return Ref{}, fmt.Errorf("invalid object id %q in %q", id, raw)
	}
	return Ref{Kind: k, ID: id}, nil
}

// Spotify IDs are base62 strings of 22 characters.
func isBareID(s string) bool {
	if len(s) != 22 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// reservedNames are text files that live next to the tool and are never inputs.
var reservedNames = map[string]bool{
	"failed_tracks.txt": true,
	"requirements.txt":  true,
}

// IsLinksFile reports whether path names an existing .txt file.
func IsLinksFile(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".txt") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadLinksFile returns the non-empty lines of a links file. Lines starting
// with # are comments.
func ReadLinksFile(path string) ([]string, error) {
	name := strings.ToLower(filepath.Base(path))
	if reservedNames[name] {
		return nil, fmt.Errorf("'%s' is a reserved internal file and cannot be used as input", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open links file: %w", err)
	}
	defer f.Close()

	var links []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading links file: %w", err)
	}
	return links, nil
}
