package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Bolt is a Store backed by a single bbolt file. Each collection is a bucket.
type Bolt struct {
	path   string
	db     *bolt.DB
	logger *zap.Logger
}

var _ Store = (*Bolt)(nil)

// OpenBolt creates the bolt file if it doesn't exist and opens it otherwise.
func OpenBolt(path string, logger *zap.Logger) (*Bolt, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("docstore: create directory for %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("docstore: open bolt file %s: %w", path, err)
	}
	logger.Info("Document store opened", zap.String("driver", "bolt"), zap.String("path", path))
	return &Bolt{path: path, db: db, logger: logger}, nil
}

func (s *Bolt) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	var out json.RawMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Collection))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key.ID))
		if v == nil {
			return ErrNotFound
		}
		// bolt values are only valid inside the transaction.
		out = cloneRaw(v)
		return nil
	})
	return out, err
}

func (s *Bolt) Set(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkObject(doc); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key.Collection))
		if err != nil {
			return err
		}
		return b.Put([]byte(key.ID), doc)
	})
}

func (s *Bolt) Create(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkObject(doc); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key.Collection))
		if err != nil {
			return err
		}
		if b.Get([]byte(key.ID)) != nil {
			return ErrExists
		}
		return b.Put([]byte(key.ID), doc)
	})
}

func (s *Bolt) Update(ctx context.Context, key Key, fields map[string]any) error {
	if err := key.validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Collection))
		if b == nil {
			return ErrNotFound
		}
		existing := b.Get([]byte(key.ID))
		if existing == nil {
			return ErrNotFound
		}
		merged, err := mergeFields(existing, fields)
		if err != nil {
			return err
		}
		return b.Put([]byte(key.ID), merged)
	})
}

func (s *Bolt) Delete(ctx context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Collection))
		if b == nil || b.Get([]byte(key.ID)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key.ID))
	})
}

func (s *Bolt) List(ctx context.Context, collection string) ([]Document, error) {
	var out []Document
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if v == nil {
				return nil
			}
			out = append(out, Document{
				Key:  Key{Collection: collection, ID: string(k)},
				Data: cloneRaw(v),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Bolt) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

func (s *Bolt) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("Document store closed", zap.String("driver", "bolt"), zap.String("path", s.path))
	return s.db.Close()
}
