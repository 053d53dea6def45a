// Package tokens persists the access/refresh credential pair used by the API client.
package tokens

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vmihailenco/msgpack/v5"
)

// Storage key names. The file and redis backends use them as record field names.
const (
	KeyAccess    = "access_token"
	KeyRefresh   = "refresh_token"
	KeyExpiresAt = "token_expires_at"
)

var (
	// ErrNotFound is returned by Load when no credentials are stored.
	ErrNotFound = errors.New("tokens: not found")
	// ErrNoExpiry is returned by ExpiryFromJWT when the token carries no exp claim.
	ErrNoExpiry = errors.New("tokens: token has no expiry")
)

// Pair is the bearer credential pair. ExpiresAt is the access token expiry and may be zero.
type Pair struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

// Empty returns true if neither token is set.
func (p Pair) Empty() bool {
	return p.Access == "" && p.Refresh == ""
}

// Expired returns true if the expiry is known and not after now.
func (p Pair) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Storage is the get/set/clear contract for persisted credentials.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Load returns the stored pair or ErrNotFound.
	Load(ctx context.Context) (Pair, error)
	// Save replaces the stored pair.
	Save(ctx context.Context, pair Pair) error
	// Clear removes every stored token.
	Clear(ctx context.Context) error
}

// Access returns the stored access token or an empty string.
func Access(ctx context.Context, s Storage) string {
	p, err := s.Load(ctx)
	if err != nil {
		return ""
	}
	return p.Access
}

// Refresh returns the stored refresh token or an empty string.
func Refresh(ctx context.Context, s Storage) string {
	p, err := s.Load(ctx)
	if err != nil {
		return ""
	}
	return p.Refresh
}

// ExpiryFromJWT reads the exp claim of a JWT. The signature is not checked.
func ExpiryFromJWT(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &claims); err != nil {
		return time.Time{}, errors.Wrap(err, "tokens: parse jwt")
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// record is the serialized form shared by the file and redis backends.
type record struct {
	Access    string    `msgpack:"access_token"`
	Refresh   string    `msgpack:"refresh_token"`
	ExpiresAt time.Time `msgpack:"token_expires_at"`
}

func encode(p Pair) ([]byte, error) {
	buf, err := msgpack.Marshal(record{Access: p.Access, Refresh: p.Refresh, ExpiresAt: p.ExpiresAt})
	if err != nil {
		return nil, errors.Wrap(err, "tokens: encode")
	}
	return buf, nil
}

func decode(buf []byte) (Pair, error) {
	var r record
	if err := msgpack.Unmarshal(buf, &r); err != nil {
		return Pair{}, errors.Wrap(err, "tokens: decode")
	}
	return Pair{Access: r.Access, Refresh: r.Refresh, ExpiresAt: r.ExpiresAt}, nil
}
