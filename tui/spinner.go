package tui

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
)

// ShowSpinner runs action while a spinner is shown. Without a terminal the action just runs.
func ShowSpinner(ctx context.Context, title string, action func()) error {
	if !HasTTY {
		action()
		return nil
	}
	return spinner.New().Context(ctx).Title(title).Action(action).Run()
}
