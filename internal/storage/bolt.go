package storage

import (
	"context"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// bucketState holds every kernel blob, one key per logical store entry.
var bucketState = []byte("state")

// Bolt is a bbolt-backed Store. bbolt gives us single-file durability and
// transactional per-key replace, which satisfies the atomicity contract.
type Bolt struct {
	path string

	mu sync.Mutex
	db *bolt.DB
}

// NewBolt creates a Bolt store persisting to the given file path.
func NewBolt(path string) *Bolt {
	return &Bolt{path: path}
}

// Init opens the database and creates the state bucket.
func (b *Bolt) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return nil
	}
	db, err := bolt.Open(b.path, 0600, nil)
	if err != nil {
		return storageErr("init", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	})
	if err != nil {
		db.Close()
		return storageErr("init", err)
	}
	b.db = db
	return nil
}

// Close releases the database file.
func (b *Bolt) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketState).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, storageErr("get", err)
	}
	return value, value != nil, nil
}

func (b *Bolt) Set(ctx context.Context, key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put([]byte(key), value)
	})
	if err != nil {
		return storageErr("set", err)
	}
	return nil
}

func (b *Bolt) Remove(ctx context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Delete([]byte(key))
	})
	if err != nil {
		return storageErr("remove", err)
	}
	return nil
}

func (b *Bolt) Clear(ctx context.Context) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketState); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketState)
		return err
	})
	if err != nil {
		return storageErr("clear", err)
	}
	return nil
}
