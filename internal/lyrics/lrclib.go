// Package lyrics looks up song lyrics on LRCLIB.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aurora/internal/metadata"
)

const userAgent = "aurora/1.0 (+https://lrclib.net)"

type Result struct {
	Synced string // LRC format with timestamps, empty if unavailable
	Plain  string // plain text lyrics, empty if unavailable
}

// Best returns synced lyrics when present, plain lyrics otherwise.
func (r Result) Best() string {
	if strings.TrimSpace(r.Synced) != "" {
		return r.Synced
	}
	return r.Plain
}

type Client struct {
	httpClient *http.Client
	apiURL     string
	retryDelay time.Duration
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://lrclib.net/api/get",
		retryDelay: 2 * time.Second,
	}
}

// Fetch retrieves lyrics for a recorded track. A not-found track yields an
// empty Result and no error. Network errors are retried once.
func (c *Client) Fetch(ctx context.Context, track metadata.TrackInfo) (Result, error) {
	if track.Title == "" || track.PrimaryArtist() == metadata.UnknownArtist {
		return Result{}, nil
	}

	result, err := c.doFetch(ctx, track)
	if err == nil || !isTransient(err) {
		return result, err
	}

	select {
	case <-ctx.Done():
		return Result{}, err
	case <-time.After(c.retryDelay):
	}
	return c.doFetch(ctx, track)
}

func isTransient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) doFetch(ctx context.Context, track metadata.TrackInfo) (Result, error) {
	params := url.Values{}
	params.Set("artist_name", track.PrimaryArtist())
	params.Set("track_name", track.Title)
	if track.Album != "" {
		params.Set("album_name", track.Album)
	}
	if track.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(track.Duration.Round(time.Second).Seconds())))
	}

	reqURL := fmt.Sprintf("%s?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create lrclib request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("lrclib request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Result{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("lrclib returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Result{}, fmt.Errorf("failed to decode lrclib response: %w", err)
	}
	if apiResp.Instrumental {
		return Result{}, nil
	}

	return Result{
		Synced: apiResp.SyncedLyrics,
		Plain:  apiResp.PlainLyrics,
	}, nil
}

type apiResponse struct {
	Instrumental bool   `json:"instrumental"`
	SyncedLyrics string `json:"syncedLyrics"`
	PlainLyrics  string `json:"plainLyrics"`
}
