package tui

import (
	"github.com/charmbracelet/huh"
	"github.com/cockroachdb/errors"
)

var inputTheme = huh.ThemeBase16()

// ErrNoTTY is returned by prompts when there is no terminal to ask on.
var ErrNoTTY = errors.New("tui: no terminal for interactive input")

// Input asks for a line of text. An empty answer returns placeholder.
func Input(title, placeholder string) (string, error) {
	if !HasTTY {
		return "", ErrNoTTY
	}
	var value string
	if err := huh.NewInput().
		Title(title).
		Prompt("> ").
		Placeholder(placeholder).
		Value(&value).
		WithTheme(inputTheme).
		Run(); err != nil {
		return "", err
	}
	if value == "" {
		return placeholder, nil
	}
	return value, nil
}

// Password asks for a secret without echoing it.
func Password(title string) (string, error) {
	if !HasTTY {
		return "", ErrNoTTY
	}
	var value string
	if err := huh.NewInput().
		Title(title).
		Prompt("> ").
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("required")
			}
			return nil
		}).
		Value(&value).
		WithTheme(inputTheme).
		Run(); err != nil {
		return "", err
	}
	return value, nil
}

// Ask asks a yes/no question. Without a terminal it returns def.
func Ask(title string, def bool) (bool, error) {
	if !HasTTY {
		return def, nil
	}
	confirm := def
	if err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&confirm).
		Run(); err != nil {
		return def, err
	}
	return confirm, nil
}
