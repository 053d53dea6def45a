// Package string masks secrets before they reach logs or terminals.
package string

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Mask keeps the first half of s and replaces the rest with asterisks.
func Mask(s string) string {
	l := len(s)
	if l == 0 {
		return s
	}
	if l == 1 {
		return "*"
	}
	h := l / 2
	return s[:h] + strings.Repeat("*", l-h)
}

// MaskEmail masks the local part and the first domain label: "us**@exa****.com".
// A value without "@" is masked whole.
func MaskEmail(val string) string {
	local, domain, ok := strings.Cut(val, "@")
	if !ok {
		return Mask(val)
	}
	label, rest, hasDot := strings.Cut(domain, ".")
	if !hasDot {
		return Mask(local) + "@" + Mask(label)
	}
	return Mask(local) + "@" + Mask(label) + "." + rest
}

// MaskURL hides the user info and query values of a URL, such as a redis URL
// carrying a password. Unparseable input is masked whole.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Mask(raw)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for k, v := range q {
			q[k] = []string{Mask(strings.Join(v, ","))}
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

// MaskedString prints masked through fmt and text encoders but keeps its real
// value in JSON, so request bodies carry the secret and logs do not.
type MaskedString string

func (ms MaskedString) String() string {
	return Mask(string(ms))
}

func (ms MaskedString) GoString() string {
	return ms.String()
}

func (ms MaskedString) MarshalText() ([]byte, error) {
	return []byte(ms.String()), nil
}

func (ms MaskedString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(ms))
}
