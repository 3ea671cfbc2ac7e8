package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"aurora/internal/config"
)

// invocation is what the command line asks for.
type invocation struct {
	cfg         config.Config
	configPath  string
	initConfig  bool
	listDevices bool
}

// flagValues mirrors the command-line flags before they are applied.
type flagValues struct {
	configPath string
	initConfig bool

	playlist   string
	album      string
	trackNo    int
	follow     bool
	device     string
	player     string
	ffmpeg     string
	out        string
	format     string
	noRewrite  bool
	intervalMS int
	gap        float64
	dryRun     bool
	verbose    bool
	monitor    string
}

func newFlagSet(v *flagValues, output io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("aurora", pflag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVarP(&v.configPath, "config", "c", "", "Path to config file")
	fs.BoolVar(&v.initConfig, "init-config", false, "Create a default config file and exit")

	fs.StringVar(&v.playlist, "playlist", "", "Spotify playlist link to record in order")
	fs.StringVar(&v.album, "album", "", "Spotify album link to record in order")
	fs.IntVar(&v.trackNo, "track-no", 1, "Start from this track of the list (1-based)")
	fs.BoolVar(&v.follow, "follow", false, "Record whatever is played until interrupted")
	fs.StringVarP(&v.device, "device", "d", "", "Capture device (see 'aurora list-devices')")
	fs.StringVar(&v.player, "player", "", "Spotify Connect device name to play on")
	fs.StringVar(&v.ffmpeg, "ffmpeg", "", "Path to the ffmpeg binary")
	fs.StringVarP(&v.out, "out", "o", "", "Output directory")
	fs.StringVarP(&v.format, "format", "f", "", "Output format: flac, mp3 or wav")
	fs.BoolVar(&v.noRewrite, "no-rewrite", false, "Keep ffmpeg's headers as written during capture")
	fs.IntVar(&v.intervalMS, "interval", 0, "Milliseconds between arming the capture and starting playback")
	fs.Float64Var(&v.gap, "gap", 0, "Seconds to wait between tracks")
	fs.BoolVarP(&v.dryRun, "dry-run", "n", false, "Show what would be recorded without playing anything")
	fs.BoolVarP(&v.verbose, "verbose", "v", false, "Show detailed output")
	fs.StringVar(&v.monitor, "monitor", "", "Serve a live session monitor on this address (e.g. :8090)")

	fs.Usage = func() {
		fmt.Fprint(output, usageHeader, "\n")
		fmt.Fprintln(output, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(output, usageFooter)
	}
	return fs
}

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > environment > config file > defaults
func parseArgs(args []string, output io.Writer) (invocation, error) {
	var v flagValues
	fs := newFlagSet(&v, output)
	if err := fs.Parse(args); err != nil {
		return invocation{}, err
	}

	inv := invocation{configPath: v.configPath, initConfig: v.initConfig}
	if inv.initConfig {
		return inv, nil
	}

	cfg, err := config.LoadConfigFile(v.configPath)
	if err != nil {
		return invocation{}, fmt.Errorf("failed to load config: %w", err)
	}
	if inv.configPath == "" {
		inv.configPath = config.FindConfigFile()
	}
	cfg.ApplyEnv()

	positional := fs.Args()
	if len(positional) > 0 && positional[0] == "list-devices" {
		inv.listDevices = true
		positional = positional[1:]
	}
	switch len(positional) {
	case 0:
	case 1:
		cfg.Input = positional[0]
	default:
		return invocation{}, fmt.Errorf("expected one track link or links file, got %d arguments", len(positional))
	}

	changed := fs.Changed
	cfg.Playlist = v.playlist
	cfg.Album = v.album
	cfg.StartFrom = v.trackNo
	cfg.Follow = v.follow
	if changed("device") {
		cfg.AudioDevice = v.device
	}
	if changed("player") {
		cfg.SpotifyDevice = v.player
	}
	if changed("ffmpeg") {
		cfg.FFmpegPath = v.ffmpeg
	}
	if changed("out") {
		cfg.OutputDir = config.ExpandHome(v.out)
	}
	if changed("format") {
		cfg.Format = strings.ToLower(v.format)
	}
	if v.noRewrite {
		cfg.RewriteHeaders = false
	}
	if changed("interval") {
		cfg.PrerollMS = v.intervalMS
	}
	if changed("gap") {
		cfg.GapSeconds = v.gap
	}
	if v.dryRun {
		cfg.DryRun = true
	}
	if v.verbose {
		cfg.Verbose = true
	}
	if changed("monitor") {
		cfg.MonitorAddr = v.monitor
	}

	inv.cfg = cfg
	return inv, nil
}

// initConfigFile creates a new config file with default values
func initConfigFile(path string, out io.Writer) error {
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Config file already exists at: %s\n", path)
		fmt.Fprintln(out, "Delete it first if you want to recreate it.")
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	if err := config.SaveConfigFile(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Fprintf(out, "Created default config file at: %s\n", path)
	fmt.Fprintln(out, "\nFill in spotify_client_id and spotify_client_secret from your")
	fmt.Fprintln(out, "Spotify developer dashboard, and add the redirect URI")
	fmt.Fprintln(out, "http://127.0.0.1:8888/callback to the app.")
	return nil
}

const usageHeader = `aurora - Record Spotify playback from a loopback audio device

Usage:
  aurora [options] <track link | links.txt>
  aurora [options] --playlist <link>
  aurora [options] --album <link>
  aurora [options] --follow
  aurora list-devices
`

const usageFooter = `
Config file locations (checked in order):
  ./aurora.yaml
  ~/.config/aurora/config.yaml
  ~/.aurora.yaml

Environment:
  AURORA_SPOTIFY_CLIENT_ID, AURORA_SPOTIFY_CLIENT_SECRET,
  AURORA_AUDIO_DEVICE, AURORA_OUTPUT_DIR

Logging:
  Normal mode: progress bar shown, detailed logs saved to:
    ~/.local/share/aurora/logs/
  Verbose mode: all output to stdout, no progress bar

Examples:
  # Preview a playlist
  aurora --dry-run --playlist https://open.spotify.com/playlist/...

  # Record an album from its fifth track, as MP3
  aurora --album https://open.spotify.com/album/... --track-no 5 -f mp3

  # Record everything you play, with a live monitor
  aurora --follow --monitor :8090`
