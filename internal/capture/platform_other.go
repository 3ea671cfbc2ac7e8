//go:build !windows && !darwin && !linux

package capture

var platform = platformConfig{
	inputFormat:   "oss",
	defaultDevice: "/dev/dsp",
}
