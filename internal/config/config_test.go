package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Input = "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"
		cfg.OutputDir = "/tmp/recordings"
		cfg.SpotifyClientID = "id"
		cfg.SpotifyClientSecret = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name: "playlist only",
			modify: func(c *Config) {
				c.Input = ""
				c.Playlist = "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M"
			},
		},
		{
			name: "follow mode without source",
			modify: func(c *Config) {
				c.Input = ""
				c.Follow = true
			},
		},
		{
			name:    "follow mode with source",
			modify:  func(c *Config) { c.Follow = true },
			wantErr: true,
		},
		{
			name:    "two sources",
			modify:  func(c *Config) { c.Album = "spotify:album:1" },
			wantErr: true,
		},
		{
			name:    "no source",
			modify:  func(c *Config) { c.Input = "" },
			wantErr: true,
		},
		{
			name:    "start index 0",
			modify:  func(c *Config) { c.StartFrom = 0 },
			wantErr: true,
		},
		{
			name:    "invalid format",
			modify:  func(c *Config) { c.Format = "wma" },
			wantErr: true,
		},
		{
			name:   "mp3 format",
			modify: func(c *Config) { c.Format = "mp3" },
		},
		{
			name:    "empty output dir",
			modify:  func(c *Config) { c.OutputDir = "" },
			wantErr: true,
		},
		{
			name:    "zero polling interval",
			modify:  func(c *Config) { c.PollingInterval = 0 },
			wantErr: true,
		},
		{
			name:    "negative preroll",
			modify:  func(c *Config) { c.PrerollMS = -1 },
			wantErr: true,
		},
		{
			name:   "zero gap",
			modify: func(c *Config) { c.GapSeconds = 0 },
		},
		{
			name:    "negative gap",
			modify:  func(c *Config) { c.GapSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "short standby",
			modify:  func(c *Config) { c.StandbySeconds = 5 },
			wantErr: true,
		},
		{
			name:    "missing client id",
			modify:  func(c *Config) { c.SpotifyClientID = "" },
			wantErr: true,
		},
		{
			name:    "missing client secret",
			modify:  func(c *Config) { c.SpotifyClientSecret = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `format: FLAC
output_dir: /tmp/test-recordings
polling_interval_seconds: 0.5
preroll_ms: 250
gap_seconds: 2
skip_existing: false
audio_device: "audio=CABLE Output (VB-Audio Virtual Cable)"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}

	if cfg.Format != "flac" {
		t.Errorf("Format = %q, want %q", cfg.Format, "flac")
	}
	if cfg.OutputDir != "/tmp/test-recordings" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 500ms", cfg.PollInterval())
	}
	if cfg.Preroll() != 250*time.Millisecond {
		t.Errorf("Preroll() = %v, want 250ms", cfg.Preroll())
	}
	if cfg.Gap() != 2*time.Second {
		t.Errorf("Gap() = %v, want 2s", cfg.Gap())
	}
	if cfg.SkipExisting {
		t.Error("SkipExisting should be false")
	}
	if cfg.AudioDevice != "audio=CABLE Output (VB-Audio Virtual Cable)" {
		t.Errorf("AudioDevice = %q", cfg.AudioDevice)
	}
	// Untouched keys keep their defaults.
	if !cfg.RewriteHeaders {
		t.Error("RewriteHeaders default should survive a partial file")
	}
	if cfg.StandbySeconds != 900 {
		t.Errorf("StandbySeconds = %v, want 900", cfg.StandbySeconds)
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	cfg, err := LoadConfigFile("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfigFile() should return defaults for missing file, got error: %v", err)
	}
	if cfg.Format != "flac" {
		t.Errorf("expected default format flac, got %q", cfg.Format)
	}
	if cfg.PrerollMS != 180 {
		t.Errorf("expected default preroll 180, got %d", cfg.PrerollMS)
	}
}

func TestLoadConfigFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("format: [flac"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveConfigFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Input = "not persisted"
	cfg.SpotifyClientID = "abc"
	if err := SaveConfigFile(cfg, path); err != nil {
		t.Fatalf("SaveConfigFile() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.SpotifyClientID != "abc" {
		t.Errorf("SpotifyClientID = %q", loaded.SpotifyClientID)
	}
	if loaded.Input != "" {
		t.Errorf("Input should not be persisted, got %q", loaded.Input)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("AURORA_SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("AURORA_SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("AURORA_AUDIO_DEVICE", "hw:Loopback,1")
	t.Setenv("AURORA_OUTPUT_DIR", "/srv/recordings")

	cfg := DefaultConfig()
	cfg.SpotifyClientID = "file-id"
	cfg.ApplyEnv()

	if cfg.SpotifyClientID != "env-id" {
		t.Errorf("SpotifyClientID = %q", cfg.SpotifyClientID)
	}
	if cfg.SpotifyClientSecret != "env-secret" {
		t.Errorf("SpotifyClientSecret = %q", cfg.SpotifyClientSecret)
	}
	if cfg.AudioDevice != "hw:Loopback,1" {
		t.Errorf("AudioDevice = %q", cfg.AudioDevice)
	}
	if cfg.OutputDir != "/srv/recordings" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
}

func TestFailedLogPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = "/music"
	if got := cfg.FailedLogPath(); got != filepath.Join("/music", "failed_tracks.txt") {
		t.Errorf("FailedLogPath() = %q", got)
	}
	cfg.FailedTracksFile = "/tmp/failed.txt"
	if got := cfg.FailedLogPath(); got != "/tmp/failed.txt" {
		t.Errorf("FailedLogPath() = %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home := homeDir()
	tests := []struct {
		input string
		want  string
	}{
		{"~/Music", filepath.Join(home, "Music")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~notslash", "~notslash"},
	}

	for _, tt := range tests {
		got := ExpandHome(tt.input)
		if got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
