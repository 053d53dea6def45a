package tui

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func noTTY(t *testing.T) {
	t.Helper()
	orig := HasTTY
	HasTTY = false
	t.Cleanup(func() { HasTTY = orig })
}

func TestTablePlain(t *testing.T) {
	noTTY(t)
	var buf bytes.Buffer
	Table(&buf, []string{"ID", "NAME"}, [][]string{{"1", "Haircut"}, {"2", "Beard trim"}})
	assert.Equal(t, "ID\tNAME\n1\tHaircut\n2\tBeard trim\n", buf.String())
}

func TestMessagesPlain(t *testing.T) {
	noTTY(t)
	var buf bytes.Buffer
	ShowSuccess(&buf, "signed in as %s", "owner")
	ShowError(&buf, "failed")
	assert.Equal(t, "✓ signed in as owner\n⚠ failed\n", buf.String())
}

func TestPromptsWithoutTerminal(t *testing.T) {
	noTTY(t)
	_, err := Password("Password")
	assert.ErrorIs(t, err, ErrNoTTY)
	_, err = Input("Email", "a@b.c")
	assert.ErrorIs(t, err, ErrNoTTY)
	ok, err := Ask("Continue?", true)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestSpinnerRunsAction(t *testing.T) {
	noTTY(t)
	ran := false
	assert.NoError(t, ShowSpinner(context.Background(), "working", func() { ran = true }))
	assert.True(t, ran)
}

func TestText(t *testing.T) {
	noTTY(t)
	assert.Equal(t, "plain", Title("plain"))
	assert.Equal(t, "abcd...", MaxWidth("abcdefghij", 7))
	assert.Equal(t, "short", MaxWidth("short", 7))
}
