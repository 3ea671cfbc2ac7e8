//go:build darwin

package capture

var platform = platformConfig{
	inputFormat:   "avfoundation",
	defaultDevice: ":BlackHole 2ch",
	list:          listAVFoundation,
}
