package clientstore

import (
	"context"
	"time"
)

// Namespaced prefixes every key before delegating to the underlying storage.
// The portal uses it to isolate browser clients that share one backend.
type Namespaced struct {
	base   Storage
	prefix string
}

// Namespace wraps base so that every key becomes prefix + ":" + key.
func Namespace(base Storage, prefix string) *Namespaced {
	return &Namespaced{base: base, prefix: prefix + ":"}
}

func (n *Namespaced) key(k string) string {
	return n.prefix + k
}

// Get implements Storage.
func (n *Namespaced) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	return n.base.Get(ctx, n.key(key))
}

// GetMany implements Storage.
func (n *Namespaced) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			return nil, ErrEmptyKey
		}
		prefixed = append(prefixed, n.key(k))
	}
	values, err := n.base.GetMany(ctx, prefixed...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for _, k := range keys {
		if v, ok := values[n.key(k)]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// SetMany implements Storage.
func (n *Namespaced) SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error {
	prefixed := make(map[string]string, len(values))
	for k, v := range values {
		if k == "" {
			return ErrEmptyKey
		}
		prefixed[n.key(k)] = v
	}
	return n.base.SetMany(ctx, prefixed, ttl)
}

// Update implements Storage.
func (n *Namespaced) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	if key == "" {
		return ErrEmptyKey
	}
	return n.base.Update(ctx, n.key(key), ttl, fn)
}

// Delete implements Storage.
func (n *Namespaced) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		prefixed = append(prefixed, n.key(k))
	}
	if len(prefixed) == 0 {
		return nil
	}
	return n.base.Delete(ctx, prefixed...)
}
