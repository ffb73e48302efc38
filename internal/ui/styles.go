package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorOK     = 107 // green
	colorWarn   = 179 // yellow
	colorErr    = 167 // red
	colorMuted  = 245 // medium gray
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderOK returns s in green.
func RenderOK(s string) string { return render(colorOK, s) }

// RenderWarn returns s in yellow.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderErr returns s in red.
func RenderErr(s string) string { return render(colorErr, s) }

// RenderStatus colors a task or job status for terminal display. Open and
// pending read as available, claimed as in flight, completed as done.
func RenderStatus(status string) string {
	switch status {
	case "open", "pending":
		return RenderAccent(status)
	case "claimed", "online":
		return RenderWarn(status)
	case "completed":
		return RenderOK(status)
	case "expired", "failed", "offline":
		return RenderErr(status)
	default:
		return status
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
