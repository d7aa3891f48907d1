package receipt

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const uploadsBucketName = "uploads"

// BoltStorage implements the Storage interface by keeping uploaded files
// as values in a single BoltDB file
type BoltStorage struct {
	db *bbolt.DB
}

// NewBoltStorage opens (or creates) the BoltDB file at path
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(uploadsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStorage{db: db}, nil
}

// Save stores the file bytes under name
func (b *BoltStorage) Save(name string, data []byte) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(uploadsBucketName)).Put([]byte(name), data)
	})
	if err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get retrieves the file bytes stored under name
func (b *BoltStorage) Get(name string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(uploadsBucketName)).Get([]byte(name))
		if v == nil {
			return ErrFileNotFound
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the file stored under name
func (b *BoltStorage) Delete(name string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(uploadsBucketName))
		if bucket.Get([]byte(name)) == nil {
			return ErrFileNotFound
		}
		return bucket.Delete([]byte(name))
	})
}

// Close closes the database
func (b *BoltStorage) Close() error {
	return b.db.Close()
}
