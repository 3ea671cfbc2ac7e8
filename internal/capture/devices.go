package capture

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strings"
)

// ErrNoAudioDevice is returned when no capture device is found.
var ErrNoAudioDevice = errors.New("no audio capture device found")

// Device is a capture device as ffmpeg addresses it.
type Device struct {
	ID   string // value for ffmpeg -i
	Name string
}

// ListDevices enumerates capture devices on this platform. The platform
// default device is always listed first.
func ListDevices(ctx context.Context, ffmpegPath string) ([]Device, error) {
	fallback := Device{ID: platform.defaultDevice, Name: "default"}
	if platform.list == nil {
		return []Device{fallback}, nil
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	found, err := platform.list(ctx, ffmpegPath)
	devices := []Device{fallback}
	for _, d := range found {
		if d.ID != fallback.ID {
			devices = append(devices, d)
		} else {
			devices[0].Name = d.Name
		}
	}
	if err != nil && len(found) == 0 {
		return devices, err
	}
	return devices, nil
}

// combinedOutput runs a listing command. ffmpeg exits non-zero after listing,
// so the output is returned even on error.
func combinedOutput(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

func listDShow(ctx context.Context, ffmpegPath string) ([]Device, error) {
	out, err := combinedOutput(ctx, ffmpegPath, "-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	return parseDShow(out), ignoreListExit(out, err)
}

func listAVFoundation(ctx context.Context, ffmpegPath string) ([]Device, error) {
	out, err := combinedOutput(ctx, ffmpegPath, "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
	return parseAVFoundation(out), ignoreListExit(out, err)
}

func listALSA(ctx context.Context, _ string) ([]Device, error) {
	out, err := combinedOutput(ctx, "arecord", "-l")
	if err != nil {
		return nil, err
	}
	return parseARecord(out), nil
}

func ignoreListExit(out string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && out != "" {
		return nil
	}
	return err
}

var (
	dshowQuoted = regexp.MustCompile(`"([^"]+)"\s*(?:\(([^)]*)\))?\s*$`)
	avfIndexed  = regexp.MustCompile(`\]\s*\[(\d+)\]\s*(.+?)\s*$`)
	arecordCard = regexp.MustCompile(`^card (\d+): (\S+) \[(.*?)\], device (\d+): (.*?) \[(.*?)\]`)
)

// parseDShow reads "ffmpeg -list_devices true -f dshow" output. Both the
// sectioned layout of older builds and the "(audio)" suffix of newer ones
// are understood.
func parseDShow(out string) []Device {
	var devices []Device
	section := ""
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		line := s.Text()
		switch {
		case strings.Contains(line, "DirectShow audio devices"):
			section = "audio"
			continue
		case strings.Contains(line, "DirectShow video devices"):
			section = "video"
			continue
		case strings.Contains(line, "Alternative name"):
			continue
		}

		m := dshowQuoted.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		kind := section
		if m[2] != "" {
			kind = m[2]
		}
		if strings.Contains(kind, "audio") {
			devices = append(devices, Device{ID: "audio=" + m[1], Name: m[1]})
		}
	}
	return devices
}

// parseAVFoundation reads "ffmpeg -f avfoundation -list_devices true" output.
func parseAVFoundation(out string) []Device {
	var devices []Device
	audio := false
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		line := s.Text()
		switch {
		case strings.Contains(line, "AVFoundation audio devices"):
			audio = true
			continue
		case strings.Contains(line, "AVFoundation video devices"):
			audio = false
			continue
		}
		if !audio {
			continue
		}
		if m := avfIndexed.FindStringSubmatch(line); m != nil {
			devices = append(devices, Device{ID: ":" + m[2], Name: m[2]})
		}
	}
	return devices
}

// parseARecord reads "arecord -l" output.
func parseARecord(out string) []Device {
	var devices []Device
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		m := arecordCard.FindStringSubmatch(strings.TrimSpace(s.Text()))
		if m == nil {
			continue
		}
		devices = append(devices, Device{
			ID:   "hw:" + m[1] + "," + m[4],
			Name: m[3] + ": " + m[6],
		})
	}
	return devices
}
