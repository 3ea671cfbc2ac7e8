//go:build windows

package capture

var platform = platformConfig{
	inputFormat:   "dshow",
	defaultDevice: "audio=CABLE Output (VB-Audio Virtual Cable)",
	list:          listDShow,
}
