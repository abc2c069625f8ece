package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"evmsend/pkg/models"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketTransfers = []byte("transfers")
	bucketByHash    = []byte("by_hash")

	ErrNotFound = errors.New("transfer not found")
)

// Store is the local journal of confirmed transfers, ordered by send time.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketTransfers, bucketByHash} {
			if _, e := tx.CreateBucketIfNotExists(name); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// key sorts by send time; the hash suffix keeps same-instant records apart.
func key(rec models.TransferRecord) []byte {
	k := make([]byte, 8, 8+len(rec.Hash))
	binary.BigEndian.PutUint64(k, uint64(rec.SentAt.UnixNano()))
	return append(k, rec.Hash...)
}

// Record stores rec. Recording the same hash twice is a no-op.
func (s *Store) Record(ctx context.Context, rec models.TransferRecord) error {
	if rec.Hash == "" {
		return fmt.Errorf("transfer record has no hash")
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	rec.SentAt = rec.SentAt.UTC()
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	hash := []byte(strings.ToLower(rec.Hash))
	return s.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketByHash)
		if idx.Get(hash) != nil {
			return nil
		}
		k := key(rec)
		if err := tx.Bucket(bucketTransfers).Put(k, blob); err != nil {
			return err
		}
		return idx.Put(hash, k)
	})
}

func (s *Store) Get(ctx context.Context, hash string) (*models.TransferRecord, error) {
	var out models.TransferRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		k := tx.Bucket(bucketByHash).Get([]byte(strings.ToLower(hash)))
		if k == nil {
			return ErrNotFound
		}
		v := tx.Bucket(bucketTransfers).Get(k)
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (s *Store) Recent(ctx context.Context, n int) ([]models.TransferRecord, error) {
	var out []models.TransferRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTransfers).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if n > 0 && len(out) >= n {
				return nil
			}
			var rec models.TransferRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
