package capture

import "context"

// platformConfig holds the capture defaults of the running OS.
type platformConfig struct {
	inputFormat   string
	defaultDevice string

	// list enumerates capture devices; nil means enumeration is unsupported.
	list func(ctx context.Context, ffmpegPath string) ([]Device, error)
}

// DefaultInputFormat returns the ffmpeg input format used on this platform.
func DefaultInputFormat() string { return platform.inputFormat }

// DefaultDevice returns the device captured when none is configured.
func DefaultDevice() string { return platform.defaultDevice }
