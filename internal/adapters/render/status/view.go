package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/lockpad/internal/application"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now        time.Time
	StaleAfter time.Duration
}

const barWidth = 20

func renderView(status application.Status, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Lockpad Peripheral"),
		s.device.Render(deviceTitle(status)),
		stateLine(status, s),
		s.detail.Render(fmt.Sprintf("monitor: %s (threshold %s)", status.Monitor, status.Threshold)),
		keyLine(status, s),
	}

	if isStale(status.CapturedAt, opts) {
		lines = append(lines, s.warning.Render("[stale]"))
	}

	lines = append(lines, s.section.Render(renderSessions(status, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func deviceTitle(status application.Status) string {
	label := strings.TrimSpace(status.DeviceLabel)
	if label == "" {
		return fmt.Sprintf("device %s", status.DeviceID)
	}
	return fmt.Sprintf("%s (%s)", label, status.DeviceID)
}

func stateLine(status application.Status, s styles) string {
	if status.Unlocked {
		return s.unlocked.Render("unlocked")
	}
	return s.locked.Render("locked")
}

func keyLine(status application.Status, s styles) string {
	if status.KeyConfigured {
		return s.detail.Render("key: configured")
	}
	return s.warning.Render("key: missing (responses are the sentinel value)")
}

func renderSessions(status application.Status, s styles) string {
	header := s.header.Render(fmt.Sprintf("sessions: %d", len(status.Sessions)))
	if len(status.Sessions) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, s.empty.Render("No controller sessions."))
	}

	lines := []string{header}
	for _, session := range status.Sessions {
		lines = append(lines, sessionLine(session, status.Threshold, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func sessionLine(session application.SessionStatus, threshold time.Duration, s styles) string {
	percent := 0.0
	if threshold > 0 {
		percent = clampPercent(100 * session.Remaining.Seconds() / threshold.Seconds())
	}

	remainingStyle := lipgloss.NewStyle().Foreground(interpolateColor(percent, 0, 100))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.sessionKey.Render(string(session.ControllerID)),
		" ",
		renderProgressBar(percent, barWidth, s),
		" ",
		remainingStyle.Render(formatRemaining(session.Remaining)),
		" ",
		s.header.Render("(since "+session.FirstSeen.Format("15:04:05")+")"),
	)
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expiring"
	}
	return fmt.Sprintf("%ds left", int(math.Ceil(d.Seconds())))
}

func isStale(capturedAt time.Time, opts RenderOptions) bool {
	if opts.Now.IsZero() || capturedAt.IsZero() || opts.StaleAfter <= 0 {
		return false
	}
	return opts.Now.Sub(capturedAt) > opts.StaleAfter
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	filled = min(max(filled, 0), width)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// interpolateColor maps value onto the 240-255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}
