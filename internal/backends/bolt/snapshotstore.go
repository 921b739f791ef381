// Package bolt stores snapshots in a local bbolt file, the default for a
// single controller.
package bolt

import (
	"context"
	"fmt"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("snapshots")

type SnapshotStore struct {
	db *bolt.DB
}

// Open creates the file and the snapshot bucket when missing.
func Open(path string) (*SnapshotStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) Save(_ context.Context, key string, payload []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), payload)
	})
}

func (s *SnapshotStore) Load(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v == nil {
			return types.ErrNotFound
		}
		// v is only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (s *SnapshotStore) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (s *SnapshotStore) ClearAll(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}
