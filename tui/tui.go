// Package tui renders CLI output and prompts. Styling and prompts are skipped
// when stdout is not a terminal.
package tui

import (
	"os"

	"github.com/mattn/go-isatty"
)

var (
	HasTTY = isatty.IsTerminal(os.Stdout.Fd())
)
