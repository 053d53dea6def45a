package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyleColor = lipgloss.AdaptiveColor{Light: "#071330", Dark: "#F652A0"}
	mutedStyleColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	textStyleColor  = lipgloss.AdaptiveColor{Light: "#36EEE0", Dark: "#00FFFF"}
)

func style(s lipgloss.Style, text string) string {
	if !HasTTY {
		return text
	}
	return s.Render(text)
}

func Title(text string) string {
	return style(lipgloss.NewStyle().Bold(true).Foreground(titleStyleColor), text)
}

func Bold(text string) string {
	return style(lipgloss.NewStyle().Bold(true).Foreground(textStyleColor), text)
}

func Muted(text string) string {
	return style(lipgloss.NewStyle().Foreground(mutedStyleColor), text)
}

// MaxWidth truncates text to width runes, ending in "...".
func MaxWidth(text string, width int) string {
	r := []rune(text)
	if len(r) <= width || width < 4 {
		return text
	}
	return string(r[:width-3]) + "..."
}
