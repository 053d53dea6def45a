package tokens

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultQueryTimeout bounds each redis round trip.
const DefaultQueryTimeout = 5 * time.Second

// RedisStorage shares one credential pair between processes through redis.
// The caller owns the redis.Client lifecycle.
type RedisStorage struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

var _ Storage = (*RedisStorage)(nil)

// NewRedis returns a Storage keeping the pair under "<prefix>:credentials".
func NewRedis(client *redis.Client, prefix string) *RedisStorage {
	key := "credentials"
	if prefix != "" {
		key = prefix + ":" + key
	}
	return &RedisStorage{client: client, key: key, timeout: DefaultQueryTimeout}
}

func (s *RedisStorage) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

func (s *RedisStorage) Load(ctx context.Context) (Pair, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	buf, err := s.client.Get(qctx, s.key).Bytes()
	if err == redis.Nil {
		return Pair{}, ErrNotFound
	}
	if err != nil {
		return Pair{}, errors.Wrap(err, "tokens: redis get")
	}
	return decode(buf)
}

// Save stores the pair. With a known expiry the key lives one day past it.
func (s *RedisStorage) Save(ctx context.Context, pair Pair) error {
	buf, err := encode(pair)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !pair.ExpiresAt.IsZero() {
		ttl = time.Until(pair.ExpiresAt) + 24*time.Hour
		if ttl <= 0 {
			ttl = time.Hour
		}
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := s.client.Set(qctx, s.key, buf, ttl).Err(); err != nil {
		return errors.Wrap(err, "tokens: redis set")
	}
	return nil
}

func (s *RedisStorage) Clear(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := s.client.Del(qctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "tokens: redis del")
	}
	return nil
}
