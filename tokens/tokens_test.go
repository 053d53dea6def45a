package tokens

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "42"}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func testStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, Access(ctx, s))

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, s.Save(ctx, Pair{Access: "a1", Refresh: "r1", ExpiresAt: exp}))
	p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", p.Access)
	assert.Equal(t, "r1", p.Refresh)
	assert.True(t, exp.Equal(p.ExpiresAt), "expected %v got %v", exp, p.ExpiresAt)

	require.NoError(t, s.Save(ctx, Pair{Access: "a2", Refresh: "r2"}))
	assert.Equal(t, "a2", Access(ctx, s))
	assert.Equal(t, "r2", Refresh(ctx, s))
	p, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, p.ExpiresAt.IsZero())

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage(t *testing.T) {
	testStorage(t, NewMemory())
}

func TestMemoryStorageSeed(t *testing.T) {
	s := NewMemory(Pair{Access: "a", Refresh: "r"})
	assert.Equal(t, "a", Access(context.Background(), s))
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")
	s, err := NewFile(path)
	require.NoError(t, err)
	testStorage(t, s)

	require.NoError(t, s.Save(context.Background(), Pair{Access: "keep", Refresh: "me"}))
	require.NoError(t, s.Close())

	reopened, err := NewFile(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "me", Refresh(context.Background(), reopened))
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	testStorage(t, NewRedis(client, "test"))
}

func TestRedisStorageKeyExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedis(client, "")
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Pair{Access: "a", Refresh: "r", ExpiresAt: time.Now().Add(time.Minute)}))
	assert.True(t, mr.Exists("credentials"))
	mr.FastForward(25 * time.Hour)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, err := ExpiryFromJWT(signedToken(t, exp))
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	_, err = ExpiryFromJWT(signedToken(t, time.Time{}))
	assert.ErrorIs(t, err, ErrNoExpiry)

	_, err = ExpiryFromJWT("opaque-token")
	assert.Error(t, err)
}

func TestPairExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, Pair{Access: "a"}.Expired(now))
	assert.True(t, Pair{Access: "a", ExpiresAt: now}.Expired(now))
	assert.False(t, Pair{Access: "a", ExpiresAt: now.Add(time.Second)}.Expired(now))
	assert.True(t, Pair{}.Empty())
}
