package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"aurora/internal/capture"
	"aurora/internal/config"
	"aurora/internal/finalize"
	"aurora/internal/logger"
	"aurora/internal/pipeline"
	"aurora/internal/progress"
	"aurora/internal/shutdown"
	"aurora/internal/spotify"
	"aurora/internal/web"
	"aurora/pkg/utils"
)

const version = "1.0.0"

func main() {
	inv, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(2)
	}

	if inv.initConfig {
		if err := initConfigFile(inv.configPath, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg := inv.cfg

	sh := shutdown.New()
	sh.Listen()
	defer sh.Wait()

	log := logger.New(cfg.Verbose)
	defer log.Close()
	sh.AddCleanup(func() {
		log.Warn("Interrupted; finishing the current capture (Ctrl+C again to quit now)")
	})

	if inv.listDevices {
		if err := listDevices(sh.Context(), cfg, os.Stdout); err != nil {
			log.Error("%v", err)
			os.Exit(1)
		}
		return
	}

	setupFileLog(log, cfg.Verbose)
	if inv.configPath != "" {
		log.Debug("Loaded configuration from: %s", inv.configPath)
	}

	fmt.Println(progress.Welcome(version))
	fmt.Println(progress.Notice())

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration error: %v", err)
		os.Exit(1)
	}

	if err := run(sh, cfg, log); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

// setupFileLog keeps a detailed log of every run next to the console output.
func setupFileLog(log *logger.Logger, verbose bool) {
	if verbose {
		return
	}
	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
		return
	}
	logFile := filepath.Join(logDir, fmt.Sprintf("aurora_%s.log", time.Now().Format("2006-01-02_15-04-05")))
	if err := log.SetFileLog(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
		return
	}
	log.Debug("Logging to file: %s", logFile)
}

func run(sh *shutdown.Handler, cfg config.Config, log *logger.Logger) error {
	ctx := sh.Context()

	if !cfg.DryRun {
		log.Debug("Checking dependencies...")
		if err := utils.CheckDependencies(cfg.FFmpegPath); err != nil {
			return fmt.Errorf("dependency check failed: %w", err)
		}
	}

	auth := spotify.NewAuthenticator(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRedirectURI, cfg.TokenCache, log)
	httpClient, err := auth.HTTPClient(ctx)
	if err != nil {
		return fmt.Errorf("spotify authorization failed: %w", err)
	}
	client := spotify.New(httpClient)

	ui := newConsole(os.Stdout, log, cfg.Format, !cfg.Verbose)
	hooks := pipeline.Hooks{
		Recorder: ui.hooks(),
		OnQueued: ui.onQueued,
		OnResult: ui.onResult,
	}

	if cfg.MonitorAddr != "" {
		sessions := web.NewSessionManager()
		srv := web.NewServer(sessions, log)
		log.SetHook(sessions.AddLog)
		defer log.SetHook(nil)

		monitorCtx, stopMonitor := context.WithCancel(ctx)
		defer stopMonitor()
		sh.Go(func(context.Context) {
			if err := srv.Serve(monitorCtx, cfg.MonitorAddr); err != nil {
				log.Warn("Monitor: %v", err)
			}
		})

		hooks.Recorder = chainHooks(hooks.Recorder, sessions.RecorderHooks())
		hooks.OnFinalize = sessions.FinalizeStarted
		hooks.OnResult = func(res finalize.Result) {
			ui.onResult(res)
			sessions.FinalizeResult(res)
		}
	}

	sum, err := pipeline.Run(ctx, cfg, log, client, pipeline.NewCapturer(cfg), hooks)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		log.Info("=== Stopped; captures in flight were finalized ===")
		return nil
	}
	if !cfg.DryRun && sum.Finalized.Saved > 0 {
		log.Info("=== Process completed successfully ===")
	}
	return nil
}

// listDevices prints the capture devices ffmpeg can record from.
func listDevices(ctx context.Context, cfg config.Config, out io.Writer) error {
	devices, err := capture.ListDevices(ctx, cfg.FFmpegPath)
	if len(devices) == 0 {
		return fmt.Errorf("failed to list capture devices: %w", capture.ErrNoAudioDevice)
	}
	if err != nil {
		fmt.Fprintf(out, "Device listing failed (%v); only the platform default is shown.\n\n", err)
	}

	format := cfg.InputFormat
	if format == "" {
		format = capture.DefaultInputFormat()
	}
	fmt.Fprintf(out, "Capture devices (%s):\n", format)
	for i, d := range devices {
		marker := " "
		if d.ID == cfg.AudioDevice || (cfg.AudioDevice == "" && i == 0) {
			marker = "*"
		}
		if d.Name != "" && d.Name != d.ID {
			fmt.Fprintf(out, " %s %s  (%s)\n", marker, d.ID, d.Name)
		} else {
			fmt.Fprintf(out, " %s %s\n", marker, d.ID)
		}
	}
	fmt.Fprintln(out, "\nSet audio_device in the config file or pass --device to choose one.")
	return nil
}
