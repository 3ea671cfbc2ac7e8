package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains the program configuration
type Config struct {
	// Run inputs, set from the command line only
	Input     string `yaml:"-"`
	Playlist  string `yaml:"-"`
	Album     string `yaml:"-"`
	StartFrom int    `yaml:"-"`
	Follow    bool   `yaml:"-"`

	Verbose     bool   `yaml:"verbose"`
	DryRun      bool   `yaml:"dry_run"`
	MonitorAddr string `yaml:"monitor_addr"`

	OutputDir             string  `yaml:"output_dir"`
	Format                string  `yaml:"format"`
	PollingInterval       float64 `yaml:"polling_interval_seconds"`
	AudioDevice           string  `yaml:"audio_device"`
	InputFormat           string  `yaml:"input_format"`
	FFmpegPath            string  `yaml:"ffmpeg_path"`
	MinDurationSeconds    int     `yaml:"min_duration_seconds"`
	RecordingBuffer       float64 `yaml:"recording_buffer_seconds"`
	SkipExisting          bool    `yaml:"skip_existing"`
	OrganizeByArtistAlbum bool    `yaml:"organize_by_artist_album"`
	RewriteHeaders        bool    `yaml:"rewrite_headers"`
	PrerollMS             int     `yaml:"preroll_ms"`
	GapSeconds            float64 `yaml:"gap_seconds"`
	StandbySeconds        float64 `yaml:"standby_seconds"`
	MaxCaptureSeconds     float64 `yaml:"max_capture_seconds"`
	CoverMaxSize          int     `yaml:"cover_max_size"`
	EmbedLyrics           bool    `yaml:"embed_lyrics"`
	FailedTracksFile      string  `yaml:"failed_tracks_file"`

	SpotifyClientID     string `yaml:"spotify_client_id"`
	SpotifyClientSecret string `yaml:"spotify_client_secret"`
	SpotifyRedirectURI  string `yaml:"spotify_redirect_uri"`
	SpotifyDevice       string `yaml:"spotify_device"`
	TokenCache          string `yaml:"token_cache"`
}

// SupportedFormats lists the capture output formats.
var SupportedFormats = []string{"flac", "mp3", "wav"}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		StartFrom:             1,
		OutputDir:             filepath.Join(homeDir(), "Music", "Aurora"),
		Format:                "flac",
		PollingInterval:       0.35,
		FFmpegPath:            "ffmpeg",
		MinDurationSeconds:    30,
		RecordingBuffer:       -0.20,
		SkipExisting:          true,
		OrganizeByArtistAlbum: true,
		RewriteHeaders:        true,
		PrerollMS:             180,
		GapSeconds:            5,
		StandbySeconds:        900,
		MaxCaptureSeconds:     3600,
		CoverMaxSize:          1000,
		SpotifyRedirectURI:    "http://127.0.0.1:8888/callback",
		TokenCache:            filepath.Join(homeDir(), ".config", "aurora", "token.json"),
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.OutputDir = ExpandHome(cfg.OutputDir)
	cfg.TokenCache = ExpandHome(cfg.TokenCache)
	cfg.FailedTracksFile = ExpandHome(cfg.FailedTracksFile)
	cfg.Format = strings.ToLower(cfg.Format)

	return cfg, nil
}

// ApplyEnv overlays AURORA_* environment variables on top of file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("AURORA_SPOTIFY_CLIENT_ID"); v != "" {
		c.SpotifyClientID = v
	}
	if v := os.Getenv("AURORA_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.SpotifyClientSecret = v
	}
	if v := os.Getenv("AURORA_AUDIO_DEVICE"); v != "" {
		c.AudioDevice = v
	}
	if v := os.Getenv("AURORA_OUTPUT_DIR"); v != "" {
		c.OutputDir = ExpandHome(v)
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./aurora.yaml",
		"./aurora.yml",
		filepath.Join(home, ".config", "aurora", "config.yaml"),
		filepath.Join(home, ".config", "aurora", "config.yml"),
		filepath.Join(home, ".aurora.yaml"),
		filepath.Join(home, ".aurora.yml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Holds the Spotify client secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "aurora", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "aurora", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// PollInterval is the delay between two playback state reads.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.PollingInterval)
}

// Preroll is the lag between arming the capture and starting playback.
func (c *Config) Preroll() time.Duration {
	return time.Duration(c.PrerollMS) * time.Millisecond
}

// Gap is the pause after a capture stops, before the next track starts.
func (c *Config) Gap() time.Duration {
	return seconds(c.GapSeconds)
}

// Buffer is added to the API duration to get the expected capture length.
func (c *Config) Buffer() time.Duration {
	return seconds(c.RecordingBuffer)
}

func (c *Config) StandbyLength() time.Duration {
	return seconds(c.StandbySeconds)
}

func (c *Config) MaxCapture() time.Duration {
	return seconds(c.MaxCaptureSeconds)
}

func (c *Config) MinDuration() time.Duration {
	return time.Duration(c.MinDurationSeconds) * time.Second
}

// FailedLogPath returns where failed track links are appended.
func (c *Config) FailedLogPath() string {
	if c.FailedTracksFile != "" {
		return c.FailedTracksFile
	}
	return filepath.Join(c.OutputDir, "failed_tracks.txt")
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Sources counts how many input sources were given.
func (c *Config) Sources() int {
	n := 0
	for _, s := range []string{c.Input, c.Playlist, c.Album} {
		if s != "" {
			n++
		}
	}
	return n
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch sources := c.Sources(); {
	case sources > 1:
		return fmt.Errorf("only one of <link>, --playlist and --album can be given")
	case sources == 1 && c.Follow:
		return fmt.Errorf("--follow cannot be combined with a link, --playlist or --album")
	case sources == 0 && !c.Follow:
		return fmt.Errorf("nothing to record: give a track link, a links file, --playlist, --album or --follow")
	}

	if c.StartFrom < 1 {
		return fmt.Errorf("track number must be at least 1, got %d", c.StartFrom)
	}

	isValid := false
	for _, format := range SupportedFormats {
		if c.Format == format {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("unsupported audio format '%s', valid formats: %v", c.Format, SupportedFormats)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if c.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path cannot be empty")
	}
	if c.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval_seconds must be positive, got %.2f", c.PollingInterval)
	}
	if c.PrerollMS < 0 {
		return fmt.Errorf("preroll_ms cannot be negative, got %d", c.PrerollMS)
	}
	if c.GapSeconds < 0 {
		return fmt.Errorf("gap_seconds cannot be negative, got %.2f", c.GapSeconds)
	}
	if c.StandbySeconds < 10 {
		return fmt.Errorf("standby_seconds must be at least 10, got %.0f", c.StandbySeconds)
	}
	if c.MaxCaptureSeconds < 10 {
		return fmt.Errorf("max_capture_seconds must be at least 10, got %.0f", c.MaxCaptureSeconds)
	}
	if c.MinDurationSeconds < 0 {
		return fmt.Errorf("min_duration_seconds cannot be negative, got %d", c.MinDurationSeconds)
	}

	if c.SpotifyClientID == "" {
		return fmt.Errorf("spotify_client_id is required (config file or AURORA_SPOTIFY_CLIENT_ID)")
	}
	if c.SpotifyClientSecret == "" {
		return fmt.Errorf("spotify_client_secret is required (config file or AURORA_SPOTIFY_CLIENT_SECRET)")
	}

	return nil
}
