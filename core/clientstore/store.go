// Package clientstore provides the key/value storage that backs per-browser client state.
//
// Two scopes are used by the portal: a durable scope that survives across visits
// (auth_token, user_data, bookingHistory) and a short-lived scope whose entries
// carry a TTL (pendingBooking, paymentSuccess). Both scopes implement Storage.
package clientstore

import (
	"context"
	"time"
)

// Well-known keys shared by every storage scope.
const (
	KeyAuthToken      = "auth_token"
	KeyUserData       = "user_data"
	KeyPendingBooking = "pendingBooking"
	KeyPaymentSuccess = "paymentSuccess"
	KeyBookingHistory = "bookingHistory"
)

// Storage is a minimal key/value contract.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// GetMany reads the keys from one consistent snapshot: a concurrent
	// SetMany is observed entirely or not at all. Absent or expired keys are
	// left out of the result.
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	// SetMany writes every pair atomically: readers observe either all of the
	// new values or none of them. A zero ttl means no expiration.
	SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Update atomically replaces key with the value returned by fn, which
	// receives the current value and whether it was present. An error from fn
	// aborts the write and is returned as is. fn may run more than once.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
}

// UpdateFunc computes the next value of a key from its current one.
type UpdateFunc func(current string, found bool) (string, error)

// Set is a convenience wrapper around SetMany for a single key.
func Set(ctx context.Context, s Storage, key, value string, ttl time.Duration) error {
	return s.SetMany(ctx, map[string]string{key: value}, ttl)
}

// Take reads a key and deletes it. The delete only happens after a successful read.
func Take(ctx context.Context, s Storage, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if err := s.Delete(ctx, key); err != nil {
		return "", err
	}
	return v, nil
}
