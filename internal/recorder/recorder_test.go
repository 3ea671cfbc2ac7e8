package recorder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"aurora/internal/finalize"
	"aurora/internal/library"
	"aurora/internal/logger"
	"aurora/internal/metadata"
	"aurora/internal/spotify"
)

type fakePlayer struct {
	tracks   map[string]metadata.TrackInfo
	step     time.Duration
	startErr map[string]error
	noMeta   map[string]bool
	failFrom int // CurrentPlayback calls from this one on fail

	catalogErr error

	devices     []spotify.Device
	transferred string

	// script, when set, is served by CurrentPlayback in order; onEmpty runs
	// when it runs out.
	script  []*spotify.Playback
	onEmpty func()

	current  string
	progress time.Duration
	calls    int
	started  []string
}

func (p *fakePlayer) CurrentPlayback(ctx context.Context) (*spotify.Playback, error) {
	if p.script != nil || p.onEmpty != nil {
		if len(p.script) == 0 {
			p.onEmpty()
			return nil, ctx.Err()
		}
		next := p.script[0]
		p.script = p.script[1:]
		return next, nil
	}

	p.calls++
	if p.failFrom > 0 && p.calls >= p.failFrom {
		return nil, errors.New("503 from player")
	}
	if p.current == "" || p.noMeta[p.current] {
		return nil, nil
	}
	track := p.tracks[p.current]
	p.progress = min(p.progress+p.step, track.Duration)
	return &spotify.Playback{Track: track, IsPlaying: true, Progress: p.progress}, nil
}

func (p *fakePlayer) StartPlayback(_ context.Context, _ string, uris []string) error {
	id := uris[0][len("spotify:track:"):]
	p.started = append(p.started, id)
	if err := p.startErr[id]; err != nil {
		return err
	}
	p.current = id
	p.progress = 0
	p.calls = 0
	return nil
}

func (p *fakePlayer) Devices(context.Context) ([]spotify.Device, error) {
	return p.devices, nil
}

func (p *fakePlayer) TransferPlayback(_ context.Context, id string, _ bool) error {
	p.transferred = id
	return nil
}

func (p *fakePlayer) Track(_ context.Context, id string) (metadata.TrackInfo, error) {
	if p.catalogErr != nil {
		return metadata.TrackInfo{}, p.catalogErr
	}
	t, ok := p.tracks[id]
	if !ok {
		return metadata.TrackInfo{}, errors.New("404")
	}
	return t, nil
}

type fakeCapture struct {
	path    string
	started time.Time
	running bool
	err     error
	stops   int
}

func (c *fakeCapture) Path() string             { return c.path }
func (c *fakeCapture) StartedAt() time.Time     { return c.started }
func (c *fakeCapture) Running() bool            { return c.running }
func (c *fakeCapture) Err() error               { return c.err }
func (c *fakeCapture) Wait(time.Duration) error { c.running = false; return nil }
func (c *fakeCapture) Stop() error              { c.running = false; c.stops++; return nil }

type fakeCapturer struct {
	now      func() time.Time
	deadErr  error // captures exit at once with this error when set
	captures []*fakeCapture
	limits   []time.Duration
}

func (f *fakeCapturer) Start(path string, maxDuration time.Duration) (Capture, error) {
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("armed"), 0644)
	c := &fakeCapture{path: path, started: f.now(), running: f.deadErr == nil, err: f.deadErr}
	f.captures = append(f.captures, c)
	f.limits = append(f.limits, maxDuration)
	return c, nil
}

type fakeFinalizer struct {
	mu    sync.Mutex
	tasks []finalize.Task
}

func (f *fakeFinalizer) Enqueue(t finalize.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
	return nil
}

type rig struct {
	root      string
	player    *fakePlayer
	capturer  *fakeCapturer
	finalizer *fakeFinalizer
	rec       *Recorder
	clock     time.Time
	slept     []time.Duration
}

func newRig(t *testing.T, player *fakePlayer) *rig {
	t.Helper()
	g := &rig{
		root:      t.TempDir(),
		player:    player,
		finalizer: &fakeFinalizer{},
		clock:     time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC),
	}
	g.capturer = &fakeCapturer{now: func() time.Time { return g.clock }}

	opts := Options{
		Layout:        library.Layout{Root: g.root, Format: "flac", Organize: true},
		SkipExisting:  true,
		PollInterval:  350 * time.Millisecond,
		Preroll:       180 * time.Millisecond,
		Gap:           5 * time.Second,
		Buffer:        -200 * time.Millisecond,
		MaxCapture:    time.Hour,
		StandbyLength: 900 * time.Second,
	}
	failed := library.NewFailedLog(filepath.Join(g.root, "failed_tracks.txt"))
	g.rec = New(player, g.capturer, g.finalizer, opts, logger.Discard(), failed)
	g.rec.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.slept = append(g.slept, d)
		g.clock = g.clock.Add(d)
		return nil
	}
	g.rec.now = func() time.Time { return g.clock }
	n := 0
	g.rec.newID = func() string {
		n++
		return "s" + strconv.Itoa(n)
	}
	return g
}

func (g *rig) failedLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(g.root, "failed_tracks.txt"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	for _, l := range splitLines(string(data)) {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := range s {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

const (
	idOne   = "4uLU6hMCjMI75M1A2tKUQC"
	idTwo   = "3n3Ppam7vgaVa1iaRUc9Lp"
	idThree = "7ouMYWpwJ422jRcDASZB7P"
)

func catalog() map[string]metadata.TrackInfo {
	return map[string]metadata.TrackInfo{
		idOne: {ID: idOne, Title: "One", Artists: []string{"Band"}, Album: "Record", TrackNumber: 1, Duration: 180 * time.Second},
		idTwo: {ID: idTwo, Title: "Two", Artists: []string{"Band"}, Album: "Record", TrackNumber: 2, Duration: 180 * time.Second},
		idThree: {ID: idThree, Title: "Three", Artists: []string{"Band"}, Album: "Record", TrackNumber: 3, Duration: 180 * time.Second},
	}
}

func TestStopReason(t *testing.T) {
	track := metadata.TrackInfo{ID: "aaa", Duration: 180 * time.Second}
	other := metadata.TrackInfo{ID: "bbb", Duration: 180 * time.Second}

	tests := []struct {
		name   string
		p      *spotify.Playback
		want   string
		wantOK bool
	}{
		{"nothing playing", nil, ReasonStopped, true},
		{"paused", &spotify.Playback{Track: track, Progress: time.Second}, ReasonStopped, true},
		{"no track", &spotify.Playback{IsPlaying: true}, ReasonStopped, true},
		{"changed", &spotify.Playback{Track: other, IsPlaying: true}, ReasonChanged, true},
		{"finished", &spotify.Playback{Track: track, IsPlaying: true, Progress: 179850 * time.Millisecond}, ReasonFinished, true},
		{"near end", &spotify.Playback{Track: track, IsPlaying: true, Progress: 179700 * time.Millisecond}, "", false},
		{"playing", &spotify.Playback{Track: track, IsPlaying: true, Progress: time.Minute}, "", false},
		{"unknown duration", &spotify.Playback{Track: metadata.TrackInfo{ID: "aaa"}, IsPlaying: true, Progress: time.Hour}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StopReason(tt.p, "aaa")
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("StopReason() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRecordQueue(t *testing.T) {
	g := newRig(t, &fakePlayer{tracks: catalog(), step: time.Minute})

	stats, err := g.rec.RecordQueue(context.Background(), []string{idOne, idTwo}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats != (Stats{Total: 2, Recorded: 2}) {
		t.Errorf("stats = %+v", stats)
	}

	if len(g.finalizer.tasks) != 2 {
		t.Fatalf("tasks = %d", len(g.finalizer.tasks))
	}
	first := g.finalizer.tasks[0]
	if first.StopReason != ReasonFinished {
		t.Errorf("stop reason = %q", first.StopReason)
	}
	wantFinal := filepath.Join(g.root, "Band", "Record", "01 One.flac")
	if first.FinalPath != wantFinal {
		t.Errorf("final = %q, want %q", first.FinalPath, wantFinal)
	}
	if first.TempPath != filepath.Join(g.root, "__arming__", "arming_s1.flac") {
		t.Errorf("temp = %q", first.TempPath)
	}
	if first.Expected != 179800*time.Millisecond {
		t.Errorf("expected = %v", first.Expected)
	}
	for i, c := range g.capturer.captures {
		if c.stops == 0 {
			t.Errorf("capture %d never stopped", i)
		}
	}

	gaps := 0
	for _, d := range g.slept {
		if d == 5*time.Second {
			gaps++
		}
	}
	if gaps != 1 {
		t.Errorf("gap waited %d times, want 1 (none after the last track)", gaps)
	}
}

func TestRecordQueuePrerollBeforePlayback(t *testing.T) {
	g := newRig(t, &fakePlayer{tracks: catalog(), step: time.Minute})
	g.rec.RecordQueue(context.Background(), []string{idOne}, 1)

	if len(g.slept) < 2 || g.slept[0] != 180*time.Millisecond || g.slept[1] != 250*time.Millisecond {
		t.Errorf("first waits = %v, want preroll then metadata delay", g.slept)
	}
}

func TestRecordQueueStartFrom(t *testing.T) {
	player := &fakePlayer{tracks: catalog(), step: time.Minute}
	g := newRig(t, player)

	stats, err := g.rec.RecordQueue(context.Background(), []string{idOne, idTwo, idThree}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Recorded != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if len(player.started) != 2 || player.started[0] != idTwo {
		t.Errorf("played = %v", player.started)
	}

	if _, err := g.rec.RecordQueue(context.Background(), []string{idOne}, 2); err == nil {
		t.Error("expected error for start index past the end")
	}
	if _, err := g.rec.RecordQueue(context.Background(), nil, 1); err == nil {
		t.Error("expected error for empty queue")
	}
}

func TestRecordQueueSkipsDuplicate(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping duplicate test")
	}

	player := &fakePlayer{tracks: catalog(), step: time.Minute}
	g := newRig(t, player)

	existing := g.rec.opts.Layout.Path(catalog()[idOne])
	os.MkdirAll(filepath.Dir(existing), 0755)
	cmd := exec.Command("ffmpeg", "-f", "lavfi", "-i", "sine=frequency=440:sample_rate=44100", "-t", "10", "-ac", "2", "-acodec", "flac", existing)
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to create test audio file: %v", err)
	}
	if err := metadata.WriteTags(existing, catalog()[idOne]); err != nil {
		t.Fatal(err)
	}
	before, _ := os.Stat(existing)

	var skipped []string
	g.rec.Hooks.OnSkipped = func(_ int, _ metadata.TrackInfo, path string) { skipped = append(skipped, path) }

	stats, err := g.rec.RecordQueue(context.Background(), []string{idOne}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Recorded != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(g.capturer.captures) != 0 {
		t.Error("a capture was started for an already recorded track")
	}
	if len(player.started) != 0 || len(g.finalizer.tasks) != 0 {
		t.Error("duplicate track was played or queued")
	}
	if len(skipped) != 1 || skipped[0] != existing {
		t.Errorf("skipped = %v", skipped)
	}

	entries, _ := os.ReadDir(filepath.Dir(existing))
	if len(entries) != 1 {
		t.Errorf("album dir has %d files, want 1", len(entries))
	}
	after, _ := os.Stat(existing)
	if !after.ModTime().Equal(before.ModTime()) || after.Size() != before.Size() {
		t.Error("existing recording was modified")
	}
}

func TestRecordQueuePlaybackFailure(t *testing.T) {
	player := &fakePlayer{
		tracks:   catalog(),
		step:     time.Minute,
		startErr: map[string]error{idOne: spotify.ErrNoDevice},
	}
	g := newRig(t, player)

	var failed []error
	g.rec.Hooks.OnFailed = func(_ string, _ metadata.TrackInfo, err error) { failed = append(failed, err) }

	stats, err := g.rec.RecordQueue(context.Background(), []string{idOne, idTwo}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 || stats.Recorded != 1 {
		t.Errorf("stats = %+v", stats)
	}

	c := g.capturer.captures[0]
	if c.stops == 0 {
		t.Error("capture of the failed track was not stopped")
	}
	if _, err := os.Stat(c.path); !os.IsNotExist(err) {
		t.Error("arming file of the failed track was not removed")
	}

	lines := g.failedLines(t)
	if len(lines) != 1 || lines[0] != "https://open.spotify.com/track/"+idOne {
		t.Errorf("failed log = %v", lines)
	}
	if len(failed) != 1 || !errors.Is(failed[0], spotify.ErrNoDevice) {
		t.Errorf("failed hook = %v", failed)
	}
	if len(g.finalizer.tasks) != 1 || g.finalizer.tasks[0].Track.ID != idTwo {
		t.Errorf("tasks = %+v", g.finalizer.tasks)
	}
}

func TestRecordQueueCaptureDiesBeforePlayback(t *testing.T) {
	player := &fakePlayer{tracks: catalog(), step: time.Minute}
	g := newRig(t, player)
	g.capturer.deadErr = errors.New("exit status 1: audio=CABLE Output: I/O error")

	var failed []error
	g.rec.Hooks.OnFailed = func(_ string, _ metadata.TrackInfo, err error) { failed = append(failed, err) }

	stats, err := g.rec.RecordQueue(context.Background(), []string{idOne}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 || stats.Recorded != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(player.started) != 0 {
		t.Errorf("playback started with a dead capture: %v", player.started)
	}
	if len(failed) != 1 || !errors.Is(failed[0], g.capturer.deadErr) {
		t.Errorf("failed hook = %v", failed)
	}
	if _, err := os.Stat(g.capturer.captures[0].path); !os.IsNotExist(err) {
		t.Error("arming file was not removed")
	}
	if lines := g.failedLines(t); len(lines) != 1 || lines[0] != "https://open.spotify.com/track/"+idOne {
		t.Errorf("failed log = %v", lines)
	}
	if len(g.finalizer.tasks) != 0 {
		t.Errorf("tasks = %+v", g.finalizer.tasks)
	}
}

func TestRecordQueueNoMetadataAfterStart(t *testing.T) {
	player := &fakePlayer{tracks: catalog(), step: time.Minute, noMeta: map[string]bool{idOne: true}}
	g := newRig(t, player)

	stats, _ := g.rec.RecordQueue(context.Background(), []string{idOne}, 1)
	if stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(g.finalizer.tasks) != 0 {
		t.Error("capture without metadata was queued")
	}
	if len(g.failedLines(t)) != 1 {
		t.Error("failure not logged")
	}
}

func TestRecordQueueUnknownPreview(t *testing.T) {
	player := &fakePlayer{tracks: catalog(), step: time.Minute, catalogErr: errors.New("404")}
	g := newRig(t, player)

	stats, err := g.rec.RecordQueue(context.Background(), []string{idOne}, 1)
	if err != nil || stats.Recorded != 1 {
		t.Fatalf("stats = %+v, err = %v", stats, err)
	}
	// Without a catalog preview the now-playing metadata names the file.
	want := filepath.Join(g.root, "Band", "Record", "01 One.flac")
	if got := g.finalizer.tasks[0].FinalPath; got != want {
		t.Errorf("final = %q, want %q", got, want)
	}
}

func TestMonitorStopsAfterPollErrors(t *testing.T) {
	player := &fakePlayer{tracks: catalog(), step: time.Second, failFrom: 2}
	g := newRig(t, player)

	g.rec.RecordQueue(context.Background(), []string{idOne}, 1)
	if len(g.finalizer.tasks) != 1 || g.finalizer.tasks[0].StopReason != ReasonStopped {
		t.Fatalf("tasks = %+v", g.finalizer.tasks)
	}
	if player.calls != 4 {
		t.Errorf("polls = %d, want metadata read plus %d failed polls", player.calls, maxPollErrors)
	}
}

func TestRecordQueueShutdown(t *testing.T) {
	player := &fakePlayer{tracks: catalog(), step: time.Second}
	g := newRig(t, player)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	polls := 0
	g.rec.Hooks.OnProgress = func(string, time.Duration, time.Duration) {
		polls++
		if polls == 3 {
			cancel()
		}
	}

	stats, err := g.rec.RecordQueue(ctx, []string{idOne, idTwo}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Recorded != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(g.finalizer.tasks) != 1 || g.finalizer.tasks[0].StopReason != ReasonShutdown {
		t.Errorf("tasks = %+v", g.finalizer.tasks)
	}
	if len(player.started) != 1 {
		t.Errorf("played %v after shutdown", player.started)
	}
}

func TestEnsureActiveDevice(t *testing.T) {
	tests := []struct {
		name         string
		devices      []spotify.Device
		preferred    string
		want         string
		wantTransfer string
	}{
		{"none", nil, "", "", ""},
		{"active", []spotify.Device{{ID: "a"}, {ID: "b", IsActive: true}}, "", "b", ""},
		{"first inactive", []spotify.Device{{ID: "a", Name: "Phone"}, {ID: "b", Name: "Desktop"}}, "", "a", "a"},
		{"preferred", []spotify.Device{{ID: "a", Name: "Phone", IsActive: true}, {ID: "b", Name: "DESKTOP-PC"}}, "desktop", "b", "b"},
		{"preferred missing", []spotify.Device{{ID: "a", IsActive: true}}, "kitchen", "a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &fakePlayer{devices: tt.devices}
			g := newRig(t, player)
			g.rec.opts.PreferredDevice = tt.preferred

			if got := g.rec.ensureActiveDevice(context.Background()); got != tt.want {
				t.Errorf("device = %q, want %q", got, tt.want)
			}
			if player.transferred != tt.wantTransfer {
				t.Errorf("transferred = %q, want %q", player.transferred, tt.wantTransfer)
			}
		})
	}
}

func TestFollow(t *testing.T) {
	tracks := catalog()
	x, y := tracks[idOne], tracks[idTwo]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := &fakePlayer{
		script: []*spotify.Playback{
			nil,
			{Track: x, IsPlaying: true, Progress: 100 * time.Millisecond},
			{Track: x, IsPlaying: true, Progress: 30 * time.Second},
			{Track: y, IsPlaying: true, Progress: 50 * time.Millisecond},
			{Track: y, IsPlaying: true, Progress: 2 * time.Second},
			{Track: y, IsPlaying: false, Progress: 2 * time.Second},
			nil,
		},
		onEmpty: cancel,
	}
	g := newRig(t, player)

	if err := g.rec.Follow(ctx); err != nil {
		t.Fatal(err)
	}

	tasks := g.finalizer.tasks
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	if tasks[0].Track.ID != idOne || tasks[0].StopReason != ReasonChanged {
		t.Errorf("first task = %+v", tasks[0])
	}
	if tasks[1].Track.ID != idTwo || tasks[1].StopReason != ReasonStopped {
		t.Errorf("second task = %+v", tasks[1])
	}

	// Standby s1 armed at T0; x was 100ms in at T0+350ms, so it began at
	// T0+250ms. 180ms of lead-in is kept.
	if tasks[0].SkipLeading != 70*time.Millisecond {
		t.Errorf("skip = %v, want 70ms", tasks[0].SkipLeading)
	}
	if tasks[0].TempPath != filepath.Join(g.root, "__standby__", "standby_s1.flac") {
		t.Errorf("temp = %q", tasks[0].TempPath)
	}
	if tasks[0].FinalPath != filepath.Join(g.root, "Band", "Record", "01 One.flac") {
		t.Errorf("final = %q", tasks[0].FinalPath)
	}

	for _, limit := range g.capturer.limits {
		if limit != time.Hour {
			t.Errorf("standby limit = %v, want the capture limit", limit)
		}
	}

	last := g.capturer.captures[len(g.capturer.captures)-1]
	if last.running {
		t.Error("standby capture still running after Follow returned")
	}
	if _, err := os.Stat(last.path); !os.IsNotExist(err) {
		t.Error("unused standby file was not removed")
	}
}

func TestFollowShutdownQueuesCurrent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	x := catalog()[idOne]
	player := &fakePlayer{
		script:  []*spotify.Playback{{Track: x, IsPlaying: true, Progress: time.Second}},
		onEmpty: cancel,
	}
	g := newRig(t, player)

	if err := g.rec.Follow(ctx); err != nil {
		t.Fatal(err)
	}
	if len(g.finalizer.tasks) != 1 || g.finalizer.tasks[0].StopReason != ReasonShutdown {
		t.Errorf("tasks = %+v", g.finalizer.tasks)
	}
}

func TestFollowRearmsExpiredStandby(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := &fakePlayer{script: []*spotify.Playback{nil, nil}, onEmpty: cancel}
	g := newRig(t, player)

	tick := g.rec.sleep
	g.rec.sleep = func(ctx context.Context, d time.Duration) error {
		if len(g.capturer.captures) == 1 {
			// The first standby hits its time limit.
			g.capturer.captures[0].running = false
		}
		return tick(ctx, d)
	}

	if err := g.rec.Follow(ctx); err != nil {
		t.Fatal(err)
	}
	if len(g.capturer.captures) != 2 {
		t.Fatalf("captures = %d, want expired standby replaced", len(g.capturer.captures))
	}
	if _, err := os.Stat(g.capturer.captures[0].path); !os.IsNotExist(err) {
		t.Error("expired standby file not removed")
	}
}

func TestFollowRotatesIdleStandby(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := &fakePlayer{script: []*spotify.Playback{nil, nil}, onEmpty: cancel}
	g := newRig(t, player)

	tick := g.rec.sleep
	g.rec.sleep = func(ctx context.Context, d time.Duration) error {
		if len(g.slept) == 0 {
			g.clock = g.clock.Add(900 * time.Second)
		}
		return tick(ctx, d)
	}

	if err := g.rec.Follow(ctx); err != nil {
		t.Fatal(err)
	}
	if len(g.capturer.captures) != 2 {
		t.Fatalf("captures = %d, want the idle standby rotated", len(g.capturer.captures))
	}
	old := g.capturer.captures[0]
	if old.running || old.stops == 0 {
		t.Error("rotated standby was not stopped")
	}
	if _, err := os.Stat(old.path); !os.IsNotExist(err) {
		t.Error("rotated standby file not removed")
	}
}

func TestFollowAdoptedCaptureRunsFullLength(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	x := catalog()[idOne]
	player := &fakePlayer{
		script: []*spotify.Playback{
			nil,
			{Track: x, IsPlaying: true, Progress: time.Second},
		},
		onEmpty: cancel,
	}
	g := newRig(t, player)

	// Idle for most of the standby window before the track starts.
	tick := g.rec.sleep
	g.rec.sleep = func(ctx context.Context, d time.Duration) error {
		if len(g.slept) == 0 {
			g.clock = g.clock.Add(14 * time.Minute)
		}
		return tick(ctx, d)
	}

	if err := g.rec.Follow(ctx); err != nil {
		t.Fatal(err)
	}
	if len(g.finalizer.tasks) != 1 {
		t.Fatalf("tasks = %+v", g.finalizer.tasks)
	}
	task := g.finalizer.tasks[0]
	if task.TempPath != g.capturer.captures[0].path {
		t.Errorf("adopted %q, want the aged standby", task.TempPath)
	}
	room := g.capturer.limits[0] - task.StoppedAt.Sub(task.StartedAt) + time.Second
	if room < x.Duration {
		t.Errorf("adopted capture has room for %v of a %v track", room, x.Duration)
	}
}

func TestFollowFinishesDeadCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	x := catalog()[idOne]
	player := &fakePlayer{
		script: []*spotify.Playback{
			{Track: x, IsPlaying: true, Progress: 100 * time.Millisecond},
			{Track: x, IsPlaying: true, Progress: 30 * time.Second},
		},
		onEmpty: cancel,
	}
	g := newRig(t, player)

	tick := g.rec.sleep
	g.rec.sleep = func(ctx context.Context, d time.Duration) error {
		if len(g.capturer.captures) >= 2 {
			// The adopted capture's ffmpeg dies mid-track.
			g.capturer.captures[0].running = false
		}
		return tick(ctx, d)
	}

	if err := g.rec.Follow(ctx); err != nil {
		t.Fatal(err)
	}
	tasks := g.finalizer.tasks
	if len(tasks) != 1 || tasks[0].Track.ID != idOne || tasks[0].StopReason != ReasonStopped {
		t.Errorf("tasks = %+v", tasks)
	}
}
