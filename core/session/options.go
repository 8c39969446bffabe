package session

import (
	"log/slog"
	"time"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLogoutTimeout bounds the best-effort backend logout call (default 5s).
func WithLogoutTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.logoutTimeout = d
		}
	}
}

// WithoutExpiryCheck disables rejecting persisted JWTs whose exp has passed.
func WithoutExpiryCheck() Option {
	return func(s *Store) { s.checkExpiry = false }
}

// WithClock overrides time.Now, used by the expiry check.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Observer receives session lifecycle events; used for metrics.
type Observer interface {
	ObserveLogin(result string)
	ObserveLogout()
	ObserveHydration(result string)
}

// WithObserver reports lifecycle events to o.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}
