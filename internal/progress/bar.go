package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 40

// Bar shows the playback position of the track being recorded
type Bar struct {
	out       io.Writer
	label     string
	position  time.Duration
	duration  time.Duration
	mu        sync.Mutex
	lastPrint time.Time
	done      bool
	now       func() time.Time
}

// New creates a bar for one track; duration may be zero when unknown
func New(out io.Writer, label string, duration time.Duration) *Bar {
	return &Bar{
		out:      out,
		label:    label,
		duration: duration,
		now:      time.Now,
	}
}

// Update moves the bar to position
func (b *Bar) Update(position, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.position = position
	if duration > 0 {
		b.duration = duration
	}

	// Redraw at most every 500ms
	now := b.now()
	if now.Sub(b.lastPrint) > 500*time.Millisecond {
		fmt.Fprint(b.out, "\r"+b.line()+"   ")
		b.lastPrint = now
	}
}

// Finish draws the final state followed by status
func (b *Bar) Finish(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true
	fmt.Fprintf(b.out, "\r%s  %s\n", b.line(), status)
}

// line renders the bar without the carriage return
func (b *Bar) line() string {
	filled := 0
	percent := ""
	if b.duration > 0 {
		ratio := min(float64(b.position)/float64(b.duration), 1)
		filled = int(float64(barWidth) * ratio)
		percent = fmt.Sprintf(" (%.1f%%)", ratio*100)
	}

	total := "--:--"
	if b.duration > 0 {
		total = FormatClock(b.duration)
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("[%s] %s / %s%s %s",
		bar,
		FormatClock(b.position),
		total,
		percent,
		b.label,
	)
}

// FormatClock formats a track position as m:ss
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
