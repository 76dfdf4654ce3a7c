package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
)

const metadataSuffix = "_meta"

// BBoltStore is a durable key-value store with per-key expiry.
// Values live in one bucket and expiry timestamps in a sibling _meta bucket.
type BBoltStore struct {
	db     *bbolt.DB
	bucket []byte
	meta   []byte
	now    func() time.Time
	logger *logging.Logger
}

// NewBBoltStore opens (or creates) the database file and its buckets
func NewBBoltStore(dbPath, bucket string, logger *logging.Logger) (*BBoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	store := &BBoltStore{
		db:     db,
		bucket: []byte(bucket),
		meta:   []byte(bucket + metadataSuffix),
		now:    time.Now,
		logger: logger,
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(store.bucket); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		if _, err := tx.CreateBucketIfNotExists(store.meta); err != nil {
			return fmt.Errorf("failed to create metadata bucket for %s: %w", bucket, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"path":   dbPath,
		"bucket": bucket,
	}).Debug("BBoltDB initialized")

	return store, nil
}

func (s *BBoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	expired := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		expiresAt := tx.Bucket(s.meta).Get([]byte(key))
		if len(expiresAt) == 8 {
			ts := int64(binary.BigEndian.Uint64(expiresAt))
			if ts != 0 && s.now().UnixNano() >= ts {
				expired = true
				return nil
			}
		}

		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		// only valid for the life of the transaction
		value = make([]byte, len(raw))
		copy(value, raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}

	if expired {
		if err := s.Delete(context.Background(), key); err != nil {
			s.logger.WithError(err).Warnf("failed to delete expired key %s", key)
		}
		return nil, domain.ErrKeyNotFound
	}
	if value == nil {
		return nil, domain.ErrKeyNotFound
	}
	return value, nil
}

func (s *BBoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixNano()
	}
	meta := make([]byte, 8)
	binary.BigEndian.PutUint64(meta, uint64(expiresAt))

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(s.bucket).Put([]byte(key), value); err != nil {
			return fmt.Errorf("failed to put value for key %s: %w", key, err)
		}
		return tx.Bucket(s.meta).Put([]byte(key), meta)
	})
}

func (s *BBoltStore) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, key := range keys {
			if err := tx.Bucket(s.bucket).Delete([]byte(key)); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", key, err)
			}
			if err := tx.Bucket(s.meta).Delete([]byte(key)); err != nil {
				return fmt.Errorf("failed to delete metadata for key %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *BBoltStore) Close() error {
	return s.db.Close()
}
