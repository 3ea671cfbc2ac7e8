package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"aurora/internal/metadata"
)

// Track fetches one track's metadata.
func (c *Client) Track(ctx context.Context, id string) (metadata.TrackInfo, error) {
	var item trackItem
	if err := c.getJSON(ctx, "/tracks/"+url.PathEscape(id), &item); err != nil {
		return metadata.TrackInfo{}, fmt.Errorf("failed to fetch track %s: %w", id, err)
	}
	return toTrackInfo(item), nil
}

// PlaylistTrackIDs returns the playable track IDs of a playlist in order.
// Local files, episodes and removed tracks are left out.
func (c *Client) PlaylistTrackIDs(ctx context.Context, id string) ([]string, error) {
	var ids []string
	next := "/playlists/" + url.PathEscape(id) + "/tracks?limit=100&fields=items(track(id,type,is_local)),next"
	for next != "" {
		var page playlistPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch playlist %s: %w", id, err)
		}
		for _, it := range page.Items {
			if t := it.Track; t != nil && t.ID != "" && !t.IsLocal && (t.Type == "" || t.Type == "track") {
				ids = append(ids, t.ID)
			}
		}
		next = page.Next
	}
	return ids, nil
}

// AlbumTrackIDs returns an album's track IDs in order.
func (c *Client) AlbumTrackIDs(ctx context.Context, id string) ([]string, error) {
	var ids []string
	next := "/albums/" + url.PathEscape(id) + "/tracks?limit=50"
	for next != "" {
		var page albumPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch album %s: %w", id, err)
		}
		for _, t := range page.Items {
			if t.ID != "" {
				ids = append(ids, t.ID)
			}
		}
		next = page.Next
	}
	return ids, nil
}

func decode(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode spotify response: %w", err)
	}
	return nil
}
