package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, ".env")
	content := `
# client settings
WAGTEE_BASE_URL="https://api.wagtee.sa/api"
export WAGTEE_TIMEOUT=45s
WAGTEE_LOG_LEVEL='debug'
NOTE=value with spaces
`
	require.NoError(t, os.WriteFile(fn, []byte(content), 0o600))

	got, err := ParseFile(fn)
	require.NoError(t, err)
	assert.Equal(t, []Var{
		{Key: "WAGTEE_BASE_URL", Val: "https://api.wagtee.sa/api"},
		{Key: "WAGTEE_TIMEOUT", Val: "45s"},
		{Key: "WAGTEE_LOG_LEVEL", Val: "debug"},
		{Key: "NOTE", Val: "value with spaces"},
	}, got)

	t.Run("missing file", func(t *testing.T) {
		got, err := ParseFile(filepath.Join(dir, "nope.env"))
		assert.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestParseInterpolation(t *testing.T) {
	t.Setenv("WAGTEE_TEST_HOST", "example.com")
	tests := []struct {
		name    string
		content string
		key     string
		want    string
	}{
		{"earlier key", "HOST=localhost\nURL=http://${HOST}:8000", "URL", "http://localhost:8000"},
		{"later key", "URL=http://${HOST}/api\nHOST=late", "URL", "http://late/api"},
		{"default", "URL=${MISSING:-fallback}", "URL", "fallback"},
		{"unresolved kept", "URL=${MISSING}", "URL", "${MISSING}"},
		{"process env", "URL=https://${env:WAGTEE_TEST_HOST}", "URL", "https://example.com"},
		{"unterminated", "URL=${HOST", "URL", "${HOST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(Parse([]byte(tt.content)))[tt.key])
		})
	}
}

func TestParseLine(t *testing.T) {
	assert.Equal(t, Var{Key: "A", Val: "b=c"}, ParseLine("A=b=c"))
	assert.Equal(t, Var{Key: "A", Val: ""}, ParseLine("A="))
	assert.Equal(t, Var{Key: "A"}, ParseLine("A"))
	assert.Equal(t, Var{Key: "A", Val: `"`}, ParseLine(`A="`))
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "A=plain", Encode("A", "plain"))
	assert.Equal(t, `A="two words"`, Encode("A", "two words"))
	assert.Equal(t, `A='say "hi"'`, Encode("A", `say "hi"`))
	assert.Equal(t, `A=line1\nline2`, Encode("A", "line1\nline2"))
}

func TestWriteRoundTrip(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "out.env")
	vars := []Var{{Key: "A", Val: "1"}, {Key: "B", Val: "two words"}}
	require.NoError(t, Write(fn, vars))
	got, err := ParseFile(fn)
	require.NoError(t, err)
	assert.Equal(t, vars, got)
}

func TestFlagOrEnv(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("base-url", "", "")

	t.Setenv("WAGTEE_BASE_URL", "env-value")
	assert.Equal(t, "env-value", FlagOrEnv(cmd, "base-url", "WAGTEE_BASE_URL", "default"))

	require.NoError(t, cmd.Flags().Set("base-url", "flag-value"))
	assert.Equal(t, "flag-value", FlagOrEnv(cmd, "base-url", "WAGTEE_BASE_URL", "default"))

	assert.Equal(t, "default", FlagOrEnv(cmd, "unknown", "WAGTEE_UNSET_FOR_TEST", "default"))
}
