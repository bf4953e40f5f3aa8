package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Color definitions for consistent styling across the UI.
var (
	// Events: bold cyan, they are fixed in time
	colorEvent = color.New(color.FgCyan, color.Bold)

	// Tasks: plain
	colorTask = color.New(color.FgWhite)

	// Completed tasks
	colorDone = color.New(color.FgWhite, color.Faint, color.CrossedOut)

	// Assistant answers: yellow to make them pop
	colorAnswer = color.New(color.FgYellow)

	// Headers: bold
	colorHeader = color.New(color.Bold)

	// Success messages
	colorOK = color.New(color.FgGreen)

	// Muted: for secondary information
	colorMuted = color.New(color.FgWhite, color.Faint)
)

// termWidth returns the terminal width, or a default if detection fails.
func termWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // sensible default
	}
	return width
}

// DisableColor disables all color output, including the grid renderer.
func DisableColor() {
	color.NoColor = true
	lipgloss.SetColorProfile(termenv.Ascii)
}

func formatHeader(s string) string {
	return colorHeader.Sprint(s)
}

func formatAnswer(s string) string {
	return colorAnswer.Sprint(s)
}

func formatOK(s string) string {
	return colorOK.Sprint(s)
}

// formatMuted formats text as secondary/muted.
func formatMuted(s string) string {
	return colorMuted.Sprint(s)
}
