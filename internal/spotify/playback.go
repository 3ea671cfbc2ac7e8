package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CurrentPlayback returns the player state, or nil when nothing is loaded.
func (c *Client) CurrentPlayback(ctx context.Context) (*Playback, error) {
	resp, err := c.do(ctx, http.MethodGet, "/me/player?additional_types=track", nil)
	if err != nil {
		return nil, fmt.Errorf("spotify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var pr playbackResponse
	if err := decode(resp, &pr); err != nil {
		return nil, err
	}

	p := &Playback{
		IsPlaying: pr.IsPlaying,
		Progress:  time.Duration(pr.ProgressMs) * time.Millisecond,
		DeviceID:  pr.Device.ID,
	}
	if pr.Item != nil && pr.CurrentlyPlayingType != "episode" && pr.CurrentlyPlayingType != "ad" {
		p.Track = toTrackInfo(*pr.Item)
	}
	return p, nil
}

// StartPlayback plays uris on deviceID (empty means the active device).
func (c *Client) StartPlayback(ctx context.Context, deviceID string, uris []string) error {
	path := "/me/player/play"
	if deviceID != "" {
		path += "?device_id=" + url.QueryEscape(deviceID)
	}
	body := map[string]any{"uris": uris, "position_ms": 0}
	if err := c.send(ctx, http.MethodPut, path, body); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	return nil
}

// Devices lists the user's Spotify Connect devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var dr devicesResponse
	if err := c.getJSON(ctx, "/me/player/devices", &dr); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	devices := make([]Device, 0, len(dr.Devices))
	for _, d := range dr.Devices {
		devices = append(devices, Device{ID: d.ID, Name: d.Name, Type: d.Type, IsActive: d.IsActive})
	}
	return devices, nil
}

// TransferPlayback moves playback to deviceID.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	body := map[string]any{"device_ids": []string{deviceID}, "play": play}
	if err := c.send(ctx, http.MethodPut, "/me/player", body); err != nil {
		return fmt.Errorf("failed to transfer playback: %w", err)
	}
	return nil
}
