package tokens

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	fileBucket = []byte("credentials")
	fileKey    = []byte("default")
)

// FileStorage keeps the credential pair in a bbolt database so CLI sessions survive restarts.
type FileStorage struct {
	db *bolt.DB
}

var _ Storage = (*FileStorage)(nil)

// NewFile opens or creates the token database at path.
func NewFile(path string) (*FileStorage, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "tokens: open %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fileBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "tokens: create bucket")
	}
	return &FileStorage{db: db}, nil
}

func (s *FileStorage) Load(_ context.Context) (Pair, error) {
	var buf []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(fileBucket).Get(fileKey); v != nil {
			buf = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return Pair{}, errors.Wrap(err, "tokens: read")
	}
	if buf == nil {
		return Pair{}, ErrNotFound
	}
	return decode(buf)
}

func (s *FileStorage) Save(_ context.Context, pair Pair) error {
	buf, err := encode(pair)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fileBucket).Put(fileKey, buf)
	})
}

func (s *FileStorage) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fileBucket).Delete(fileKey)
	})
}

// Close closes the underlying database.
func (s *FileStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
