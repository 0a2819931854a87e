package storage

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const boltBucket = "localstorage" // key -> raw value

// Bolt is a Storage backed by a bbolt file
type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens (or creates) the bbolt database at path
func NewBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Get returns the value stored under key
func (b *Bolt) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)

	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
		if v != nil {
			// v is only valid inside the transaction
			value = string(v)
			found = true
		}

		return nil
	})

	return value, found, err
}

// Set writes value under key
func (b *Bolt) Set(key, value string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), []byte(value))
	})
}

// SetMany writes all values in a single transaction
func (b *Bolt) SetMany(values map[string]string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		for key, value := range values {
			if err := bucket.Put([]byte(key), []byte(value)); err != nil {
				return fmt.Errorf("failed to put %s: %w", key, err)
			}
		}

		return nil
	})
}

// Remove deletes keys in a single transaction
func (b *Bolt) Remove(keys ...string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}

		return nil
	})
}

// Close closes the database file
func (b *Bolt) Close() error {
	return b.db.Close()
}
