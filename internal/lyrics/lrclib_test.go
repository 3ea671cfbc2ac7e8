package lyrics

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aurora/internal/metadata"
)

var letItBe = metadata.TrackInfo{
	Title:    "Let It Be",
	Artists:  []string{"The Beatles"},
	Album:    "Let It Be",
	Duration: 243400 * time.Millisecond,
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantSynced string
		wantPlain  string
		wantErr    bool
	}{
		{
			name:   "synced and plain lyrics",
			status: http.StatusOK,
			body: `{
				"syncedLyrics": "[00:12.00]Hello world",
				"plainLyrics": "Hello world"
			}`,
			wantSynced: "[00:12.00]Hello world",
			wantPlain:  "Hello world",
		},
		{
			name:      "plain only",
			status:    http.StatusOK,
			body:      `{"syncedLyrics": "", "plainLyrics": "Just plain text"}`,
			wantPlain: "Just plain text",
		},
		{
			name:   "instrumental",
			status: http.StatusOK,
			body:   `{"instrumental": true, "syncedLyrics": "", "plainLyrics": ""}`,
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"code":404,"name":"NotFoundError","message":"Failed to find specified track"}`,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `internal server error`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != userAgent {
					t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient()
			c.apiURL = srv.URL

			result, err := c.Fetch(context.Background(), letItBe)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Synced != tt.wantSynced {
				t.Errorf("Synced = %q, want %q", result.Synced, tt.wantSynced)
			}
			if result.Plain != tt.wantPlain {
				t.Errorf("Plain = %q, want %q", result.Plain, tt.wantPlain)
			}
		})
	}
}

func TestFetchQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"artist_name": "The Beatles",
			"track_name":  "Let It Be",
			"album_name":  "Let It Be",
			"duration":    "243",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient()
	c.apiURL = srv.URL

	c.Fetch(context.Background(), letItBe)
}

func TestFetchUnknownTrack(t *testing.T) {
	c := NewClient()
	c.apiURL = "http://127.0.0.1:1"

	result, err := c.Fetch(context.Background(), metadata.TrackInfo{Title: "Intro"})
	if err != nil || result.Best() != "" {
		t.Errorf("Fetch() = %+v, %v; want empty without a request", result, err)
	}
}

func TestFetchRetriesNetworkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient()
	c.apiURL = "http://" + addr
	c.retryDelay = 10 * time.Millisecond

	if _, err := c.Fetch(context.Background(), letItBe); err == nil {
		t.Error("expected error from closed port")
	}
}

func TestBest(t *testing.T) {
	if got := (Result{Synced: "[00:01.00]a", Plain: "a"}).Best(); got != "[00:01.00]a" {
		t.Errorf("Best() = %q", got)
	}
	if got := (Result{Synced: " ", Plain: "a"}).Best(); got != "a" {
		t.Errorf("Best() = %q", got)
	}
}
