package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix     = "auctiondesk:"
	redisUpdateRetries = 3
)

// Redis keeps each collection in one hash; the hash field is the document id.
type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

// RedisConfig holds the connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OpenRedis creates a client; the connection is established lazily.
func OpenRedis(cfg RedisConfig) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}))
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func redisHash(collection string) string { return redisKeyPrefix + collection }

func (s *Redis) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	v, err := s.client.HGet(ctx, redisHash(key.Collection), key.ID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Redis) Set(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkObject(doc); err != nil {
		return err
	}
	return s.client.HSet(ctx, redisHash(key.Collection), key.ID, []byte(doc)).Err()
}

func (s *Redis) Create(ctx context.Context, key Key, doc json.RawMessage) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkObject(doc); err != nil {
		return err
	}
	ok, err := s.client.HSetNX(ctx, redisHash(key.Collection), key.ID, []byte(doc)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrExists
	}
	return nil
}

// Update runs an optimistic WATCH/MULTI transaction on the collection hash.
func (s *Redis) Update(ctx context.Context, key Key, fields map[string]any) error {
	if err := key.validate(); err != nil {
		return err
	}
	hash := redisHash(key.Collection)
	txf := func(tx *redis.Tx) error {
		existing, err := tx.HGet(ctx, hash, key.ID).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		merged, err := mergeFields(existing, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hash, key.ID, []byte(merged))
			return nil
		})
		return err
	}
	var err error
	for i := 0; i < redisUpdateRetries; i++ {
		err = s.client.Watch(ctx, txf, hash)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *Redis) Delete(ctx context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	n, err := s.client.HDel(ctx, redisHash(key.Collection), key.ID).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Redis) List(ctx context.Context, collection string) ([]Document, error) {
	all, err := s.client.HGetAll(ctx, redisHash(collection)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(all))
	for id, v := range all {
		out = append(out, Document{Key: Key{Collection: collection, ID: id}, Data: json.RawMessage(v)})
	}
	sortDocuments(out)
	return out, nil
}

func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Redis) Close() error { return s.client.Close() }
