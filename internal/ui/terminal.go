package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be used on stdout.
// It honors NO_COLOR, CLICOLOR_FORCE, and CLICOLOR before falling back to
// TTY detection.
func ShouldUseColor() bool {
	// https://no-color.org — any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) {
	case "", "0":
	default:
		// Forced on even without a TTY.
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
