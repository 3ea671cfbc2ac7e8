package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Banner styles
var (
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87D7FF"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	warnTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFE66D"))

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	welcomeBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#D75FD7")).
			Padding(1, 2)

	noticeBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFE66D")).
			Padding(0, 1)

	recordingBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)
)

// Welcome is printed once at startup.
func Welcome(version string) string {
	body := labelStyle.Render("Aurora Recorder") + "\nVersion: " + version
	return panel(welcomeBox, titleStyle.Render("Welcome"), body)
}

// Notice reminds the user that recording streams may break the service terms.
func Notice() string {
	body := alertStyle.Render("Disclaimer:") + " Recording streams may violate Terms of Service.\n" +
		"Use only for personal/private purposes and comply with local laws."
	return panel(noticeBox, warnTitleStyle.Render("Important Notice"), body)
}

// RecordingStarted announces a capture: what plays, where it goes and how
// long it is expected to run.
func RecordingStarted(name, format, path string, target time.Duration) string {
	lines := []string{
		labelStyle.Render("Start:") + fmt.Sprintf(" %s (%s)", name, strings.ToUpper(format)),
		labelStyle.Render("To:") + " " + path,
	}
	if target > 0 {
		lines = append(lines, labelStyle.Render("Target duration (API±buf):")+fmt.Sprintf(" ~%.1fs", target.Seconds()))
	} else {
		lines = append(lines, labelStyle.Render("Target duration:")+" unknown")
	}
	return panel(recordingBox, titleStyle.Render("Recording Initiated"), strings.Join(lines, "\n"))
}

// panel renders body in a bordered box with title on top.
func panel(box lipgloss.Style, title, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, " "+title, box.Render(body))
}
