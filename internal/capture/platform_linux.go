//go:build linux

package capture

var platform = platformConfig{
	inputFormat:   "alsa",
	defaultDevice: "default",
	list:          listALSA,
}
