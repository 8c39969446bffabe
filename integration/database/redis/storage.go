package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/evservice/core/clientstore"
)

// Storage implements clientstore.Storage on top of plain Redis strings.
type Storage struct {
	client redis.UniversalClient
	prefix string
}

// StorageOption configures Storage.
type StorageOption func(*Storage)

// WithKeyPrefix namespaces every key with prefix + ":".
func WithKeyPrefix(prefix string) StorageOption {
	return func(s *Storage) {
		if prefix != "" {
			s.prefix = prefix + ":"
		}
	}
}

// NewStorage creates a Redis-backed storage.
func NewStorage(client redis.UniversalClient, opts ...StorageOption) *Storage {
	s := &Storage{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements clientstore.Storage.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", clientstore.ErrEmptyKey
	}
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", clientstore.ErrNotFound
	}
	if err != nil {
		return "", errors.Join(clientstore.ErrReadFailed, err)
	}
	return v, nil
}

// GetMany implements clientstore.Storage with a single MGET.
func (s *Storage) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			return nil, clientstore.ErrEmptyKey
		}
		full = append(full, s.prefix+k)
	}
	out := make(map[string]string, len(keys))
	if len(full) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, errors.Join(clientstore.ErrReadFailed, err)
	}
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// SetMany implements clientstore.Storage. All keys are written in one MULTI/EXEC.
func (s *Storage) SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error {
	for k := range values {
		if k == "" {
			return clientstore.ErrEmptyKey
		}
	}
	if len(values) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, s.prefix+k, v, max(ttl, 0))
		}
		return nil
	})
	if err != nil {
		return errors.Join(clientstore.ErrWriteFailed, err)
	}
	return nil
}

// maxUpdateRetries bounds optimistic retries when a watched key changes.
const maxUpdateRetries = 10

// Update implements clientstore.Storage with WATCH/MULTI/EXEC, retrying when
// another writer touches the key in between.
func (s *Storage) Update(ctx context.Context, key string, ttl time.Duration, fn clientstore.UpdateFunc) error {
	if key == "" {
		return clientstore.ErrEmptyKey
	}
	full := s.prefix + key

	var fnErr error
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, full).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			found = false
		} else if err != nil {
			return err
		}

		next, err := fn(cur, found)
		if err != nil {
			fnErr = err
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, next, max(ttl, 0))
			return nil
		})
		return err
	}

	for range maxUpdateRetries {
		fnErr = nil
		err := s.client.Watch(ctx, txf, full)
		switch {
		case err == nil:
			return nil
		case fnErr != nil:
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return errors.Join(clientstore.ErrWriteFailed, err)
		}
	}
	return errors.Join(clientstore.ErrWriteFailed, redis.TxFailedErr)
}

// Delete implements clientstore.Storage.
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			full = append(full, s.prefix+k)
		}
	}
	if len(full) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return errors.Join(clientstore.ErrWriteFailed, err)
	}
	return nil
}
