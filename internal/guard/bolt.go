package guard

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var gatesBucket = []byte("gates")

// BoltStore persists flags in a bbolt file so they survive restarts.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the flag database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open flag store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(gatesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init flag store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) (bool, error) {
	var value bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(gatesBucket).Get([]byte(key))
		value = len(v) == 1 && v[0] == 1
		return nil
	})
	return value, err
}

func (s *BoltStore) Set(key string, value bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		v := []byte{0}
		if value {
			v[0] = 1
		}
		return tx.Bucket(gatesBucket).Put([]byte(key), v)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
