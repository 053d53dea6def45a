package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	messageOKColor      = lipgloss.AdaptiveColor{Light: "#009900", Dark: "#00FF00"}
	messageOKStyle      = lipgloss.NewStyle().Foreground(messageOKColor)
	messageWarningColor = lipgloss.AdaptiveColor{Light: "#990000", Dark: "#FF0000"}
	messageWarningStyle = lipgloss.NewStyle().Foreground(messageWarningColor)
)

func show(w io.Writer, mark string, style lipgloss.Style, msg string, args ...any) {
	if HasTTY {
		mark = style.Render(mark)
	}
	fmt.Fprintln(w, mark+" "+fmt.Sprintf(msg, args...))
}

func ShowSuccess(w io.Writer, msg string, args ...any) {
	show(w, "✓", messageOKStyle, msg, args...)
}

func ShowWarning(w io.Writer, msg string, args ...any) {
	show(w, "✕", messageWarningStyle, msg, args...)
}

func ShowError(w io.Writer, msg string, args ...any) {
	show(w, "⚠", messageWarningStyle, msg, args...)
}
