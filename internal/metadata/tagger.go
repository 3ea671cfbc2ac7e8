package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.senan.xyz/taglib"
)

// Tag keys without a taglib constant.
const (
	TagComposer  = "COMPOSER"
	TagPerformer = "PERFORMER"
	TagYear      = "YEAR"
	TagLyrics    = "LYRICS"
	TagTrackID   = "SPOTIFY_TRACK_ID"
)

// trackIDAliases are keys other taggers have used for the catalog identifier.
var trackIDAliases = []string{"spotify_track_id", "spotify:id", "spotifyid", "trackid", "track_id", "spotify_track"}

// WriteTags writes the given TrackInfo metadata to an audio file.
func WriteTags(path string, info TrackInfo) error {
	tags := make(map[string][]string)

	set := func(key, value string) {
		if value != "" {
			tags[key] = []string{value}
		}
	}

	set(taglib.Title, info.Title)
	set(taglib.Artist, info.Artist)
	set(taglib.Album, info.Album)
	set(taglib.AlbumArtist, info.AlbumArtist)
	set(TagComposer, info.Composer)
	set(TagPerformer, info.Performer)
	if year := info.YearString(); year != "" {
		tags[taglib.Date] = []string{year}
		tags[TagYear] = []string{year}
	}
	if info.TrackNumber > 0 {
		tags[taglib.TrackNumber] = []string{strconv.Itoa(info.TrackNumber)}
	}
	if info.DiscNumber > 0 {
		tags[taglib.DiscNumber] = []string{strconv.Itoa(info.DiscNumber)}
	}
	set(taglib.ISRC, info.ISRC)
	set(TagTrackID, info.ID)

	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", path, err)
	}
	return nil
}

// WriteArtwork embeds artwork image data into an audio file.
func WriteArtwork(path string, imageData []byte) error {
	if len(imageData) == 0 {
		return nil
	}
	if err := taglib.WriteImage(path, imageData); err != nil {
		return fmt.Errorf("failed to write artwork to %s: %w", path, err)
	}
	return nil
}

// WriteLyrics stores lyrics (plain or LRC) in the LYRICS tag.
func WriteLyrics(path, lyrics string) error {
	if strings.TrimSpace(lyrics) == "" {
		return nil
	}
	if err := taglib.WriteTags(path, map[string][]string{TagLyrics: {lyrics}}, 0); err != nil {
		return fmt.Errorf("failed to write lyrics to %s: %w", path, err)
	}
	return nil
}

// RecordedTrackID returns the catalog identifier stored in a file's tags.
func RecordedTrackID(path string) (string, bool) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return "", false
	}

	if id := firstTag(tags, TagTrackID); id != "" {
		return strings.TrimSpace(id), true
	}

	for key, vals := range tags {
		for _, alias := range trackIDAliases {
			if strings.EqualFold(key, alias) && len(vals) > 0 {
				return strings.TrimSpace(vals[0]), true
			}
		}
	}
	return "", false
}

// IsRecorded reports whether the file at path carries trackID. Unreadable or
// untagged files are not recorded.
func IsRecorded(path, trackID string) bool {
	if trackID == "" {
		return false
	}
	id, ok := RecordedTrackID(path)
	return ok && id == strings.TrimSpace(trackID)
}

// Length returns the audio length reported by the container.
func Length(path string) (time.Duration, error) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read properties of %s: %w", path, err)
	}
	return props.Length, nil
}

func firstTag(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}
