// Package env reads dotenv files and resolves cobra flags against WAGTEE_* variables.
package env

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// Prefix is prepended to every environment variable the client reads.
const Prefix = "WAGTEE_"

// Var is one KEY=value assignment.
type Var struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseFile parses a dotenv file. A missing file yields no variables.
func ParseFile(filename string) ([]Var, error) {
	buf, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return []Var{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "env: read %s", filename)
	}
	return Parse(buf), nil
}

// Parse reads KEY=value lines. Blank lines and # comments are skipped, an
// "export " prefix is ignored and values may be single or double quoted.
// ${NAME} and ${NAME:-default} refer to earlier or later keys in the same file;
// ${env:NAME} reads the process environment.
func Parse(buf []byte) []Var {
	vars := []Var{}
	seen := map[string]string{}
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v := ParseLine(strings.TrimPrefix(line, "export "))
		if v.Key == "" {
			continue
		}
		v.Val = expand(v.Val, seen)
		seen[v.Key] = v.Val
		vars = append(vars, v)
	}
	for i := range vars {
		vars[i].Val = expand(vars[i].Val, seen)
	}
	return vars
}

// ParseLine splits KEY=value and removes matching quotes around the value.
func ParseLine(line string) Var {
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return Var{Key: strings.TrimSpace(line)}
	}
	return Var{Key: strings.TrimSpace(key), Val: unquote(strings.TrimSpace(val))}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// expand substitutes ${...} references. Unresolved references without a default are kept verbatim.
func expand(s string, known map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var out strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			out.WriteString(s)
			return out.String()
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			out.WriteString(s)
			return out.String()
		}
		end += start
		out.WriteString(s[:start])
		ref := s[start : end+1]
		name, def, _ := strings.Cut(s[start+2:end], ":-")
		var val string
		if osName, ok := strings.CutPrefix(name, "env:"); ok {
			val = os.Getenv(osName)
		} else {
			val = known[name]
		}
		switch {
		case val != "":
			out.WriteString(val)
		case def != "":
			out.WriteString(def)
		default:
			out.WriteString(ref)
		}
		s = s[end+1:]
	}
}

// Map returns vars as a map; later assignments win.
func Map(vars []Var) map[string]string {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.Key] = v.Val
	}
	return m
}

// Encode formats key and val as a dotenv line, quoting when needed.
func Encode(key, val string) string {
	val = strings.ReplaceAll(val, "\n", `\n`)
	switch {
	case strings.Contains(val, `"`):
		val = "'" + strings.ReplaceAll(val, "'", `\'`) + "'"
	case strings.ContainsAny(val, " #'"):
		val = `"` + val + `"`
	}
	return fmt.Sprintf("%s=%s", key, val)
}

// Write writes vars to filename with mode 0600.
func Write(filename string, vars []Var) error {
	var b strings.Builder
	for _, v := range vars {
		b.WriteString(Encode(v.Key, v.Val))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(filename, []byte(b.String()), 0o600); err != nil {
		return errors.Wrapf(err, "env: write %s", filename)
	}
	return nil
}

// FlagOrEnv returns the flag value when set, then the environment variable, then def.
func FlagOrEnv(cmd *cobra.Command, flagName, envName, def string) string {
	if f := cmd.Flags().Lookup(flagName); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	if val, ok := os.LookupEnv(envName); ok && val != "" {
		return val
	}
	return def
}
