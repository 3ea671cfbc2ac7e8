package spotify

import (
	"strings"
	"time"

	"aurora/internal/metadata"
)

// Spotify API response types

type trackItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Artists     []artist   `json:"artists"`
	Album       albumInfo  `json:"album"`
	TrackNumber int        `json:"track_number"`
	DiscNumber  int        `json:"disc_number"`
	DurationMs  int        `json:"duration_ms"`
	IsLocal     bool       `json:"is_local"`
	ExternalIDs externalID `json:"external_ids"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type albumInfo struct {
	Name        string   `json:"name"`
	Artists     []artist `json:"artists"`
	ReleaseDate string   `json:"release_date"`
	TotalTracks int      `json:"total_tracks"`
	Images      []image  `json:"images"`
}

type image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type externalID struct {
	ISRC string `json:"isrc"`
}

type playbackResponse struct {
	Device               deviceItem `json:"device"`
	IsPlaying            bool       `json:"is_playing"`
	ProgressMs           int        `json:"progress_ms"`
	CurrentlyPlayingType string     `json:"currently_playing_type"`
	Item                 *trackItem `json:"item"`
}

type deviceItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

type devicesResponse struct {
	Devices []deviceItem `json:"devices"`
}

type playlistPage struct {
	Items []struct {
		Track *trackItem `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

type albumPage struct {
	Items []trackItem `json:"items"`
	Next  string      `json:"next"`
}

// Device is a Spotify Connect device.
type Device struct {
	ID       string
	Name     string
	Type     string
	IsActive bool
}

// Playback is a snapshot of the user's player.
type Playback struct {
	Track     metadata.TrackInfo
	IsPlaying bool
	Progress  time.Duration
	DeviceID  string
}

// HasTrack reports whether a track (not an episode or ad) is loaded.
func (p *Playback) HasTrack() bool {
	return p != nil && p.Track.ID != ""
}

func toTrackInfo(item trackItem) metadata.TrackInfo {
	var artists []string
	for _, a := range item.Artists {
		if name := strings.TrimSpace(a.Name); name != "" {
			artists = append(artists, name)
		}
	}

	var albumArtist string
	if len(item.Album.Artists) > 0 {
		albumArtist = item.Album.Artists[0].Name
	}

	// Images are ordered largest first.
	var artworkURL string
	if len(item.Album.Images) > 0 {
		artworkURL = item.Album.Images[0].URL
	}

	return metadata.TrackInfo{
		ID:          item.ID,
		Title:       item.Name,
		Artists:     artists,
		Artist:      strings.Join(artists, ", "),
		Album:       item.Album.Name,
		AlbumArtist: albumArtist,
		TrackNumber: item.TrackNumber,
		TotalTracks: item.Album.TotalTracks,
		DiscNumber:  item.DiscNumber,
		Year:        metadata.ParseYear(item.Album.ReleaseDate),
		ReleaseDate: item.Album.ReleaseDate,
		ISRC:        item.ExternalIDs.ISRC,
		ArtworkURL:  artworkURL,
		Duration:    time.Duration(item.DurationMs) * time.Millisecond,
	}
}
