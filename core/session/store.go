package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/authapi"
	"github.com/dmitrymomot/evservice/core/clientstore"
	"github.com/dmitrymomot/evservice/core/logger"
)

// Store owns the session. It is safe for concurrent use.
type Store struct {
	durable clientstore.Storage
	gateway Gateway

	logger        *slog.Logger
	logoutTimeout time.Duration
	checkExpiry   bool
	now           func() time.Time
	observer      Observer

	hydration *Hydration
	readOnce  sync.Once
	restored  bool

	// writeMu serialises persist+swap so memory and storage converge on the
	// same pair when logins and logouts race.
	writeMu sync.Mutex

	mu      sync.RWMutex
	current Session
}

// NewStore creates a store over durable storage. Memory starts empty and the
// hydration signal unset.
func NewStore(durable clientstore.Storage, gateway Gateway, opts ...Option) *Store {
	s := &Store{
		durable:       durable,
		gateway:       gateway,
		logger:        logger.Discard(),
		logoutTimeout: 5 * time.Second,
		checkExpiry:   true,
		now:           time.Now,
		hydration:     NewHydration(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate reads durable storage once and adopts a well-formed pair. It reports
// whether a session was restored. The hydration signal is set regardless of
// outcome; later calls return the first result without touching memory.
func (s *Store) Hydrate(ctx context.Context) bool {
	s.readOnce.Do(func() {
		defer s.hydration.Set()

		sess, err := s.readDurable(ctx)
		result := "restored"
		switch {
		case err == nil:
			s.restored = true
		case errors.Is(err, clientstore.ErrNotFound):
			result = "empty"
		case errors.Is(err, ErrCorruptRecord), errors.Is(err, ErrTokenExpired):
			result = "discarded"
			s.logger.WarnContext(ctx, "discarding persisted session",
				logger.Component("session"), logger.Error(err))
		default:
			result = "error"
			s.logger.ErrorContext(ctx, "failed to read persisted session",
				logger.Component("session"), logger.Error(err))
		}
		if s.observer != nil {
			s.observer.ObserveHydration(result)
		}

		s.mu.Lock()
		s.current = sess
		s.mu.Unlock()
	})
	return s.restored
}

// IsHydrated reports whether Hydrate has completed.
func (s *Store) IsHydrated() bool {
	return s.hydration.IsSet()
}

// Hydrated returns a channel closed once Hydrate has completed.
func (s *Store) Hydrated() <-chan struct{} {
	return s.hydration.Done()
}

// WaitHydrated blocks until Hydrate has completed or ctx is done.
func (s *Store) WaitHydrated(ctx context.Context) error {
	return s.hydration.Wait(ctx)
}

// IsAuthenticated reads memory only.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsAuthenticated()
}

// Current returns a copy of the in-memory session and whether it is authenticated.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.IsAuthenticated()
}

// Login authenticates via the gateway and writes the pair through before
// updating memory. On any failure the previous state is left as it was.
func (s *Store) Login(ctx context.Context, creds account.Credentials) (account.Identity, error) {
	identity, token, err := s.gateway.Login(ctx, creds)
	if err != nil {
		s.logger.InfoContext(ctx, "login rejected",
			logger.Component("session"), logger.Error(err))
		s.observeLogin(loginResult(err))
		return account.Identity{}, err
	}

	next := Session{Identity: identity, Token: token}
	if !next.IsAuthenticated() {
		s.observeLogin("server")
		return account.Identity{}, ErrIncomplete
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.persist(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist session",
			logger.Component("session"), logger.Error(err))
		s.observeLogin("persist")
		return account.Identity{}, err
	}
	s.swap(next)
	s.observeLogin("ok")

	s.logger.InfoContext(ctx, "login succeeded",
		logger.Component("session"), logger.UserID(identity.ID), logger.Role(identity.Role.String()))
	return identity, nil
}

// Logout clears memory and durable storage, then notifies the backend on a
// best-effort basis. It is safe to call when already logged out.
func (s *Store) Logout(ctx context.Context) {
	token := s.clear(ctx)
	if s.observer != nil {
		s.observer.ObserveLogout()
	}
	if token == "" || s.gateway == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logoutTimeout)
	defer cancel()
	if err := s.gateway.Logout(notifyCtx, token); err != nil {
		s.logger.DebugContext(ctx, "backend logout failed",
			logger.Component("session"), logger.Error(err))
	}
}

// Refresh re-reads the profile from the backend. A rejected token logs the
// user out locally; network and server errors leave the session unchanged.
func (s *Store) Refresh(ctx context.Context) (account.Identity, error) {
	started, ok := s.Current()
	if !ok {
		return account.Identity{}, ErrNotAuthenticated
	}

	identity, err := s.gateway.Me(ctx, started.Token)
	if errors.Is(err, authapi.ErrInvalidCredentials) {
		s.logger.InfoContext(ctx, "session token rejected, logging out",
			logger.Component("session"), logger.UserID(started.Identity.ID))
		s.clear(ctx)
		return account.Identity{}, err
	}
	if err != nil {
		return account.Identity{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if cur, _ := s.Current(); cur.Token != started.Token {
		return account.Identity{}, ErrSessionChanged
	}

	next := Session{Identity: identity, Token: started.Token}
	if !next.IsAuthenticated() {
		return account.Identity{}, ErrIncomplete
	}
	if err := s.persist(ctx, next); err != nil {
		return account.Identity{}, err
	}
	s.swap(next)
	return identity, nil
}

func (s *Store) observeLogin(result string) {
	if s.observer != nil {
		s.observer.ObserveLogin(result)
	}
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, authapi.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, authapi.ErrNetwork):
		return "network"
	default:
		return "server"
	}
}

func (s *Store) swap(next Session) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

// clear empties memory and storage and returns the token that was dropped.
func (s *Store) clear(ctx context.Context) string {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	token := s.current.Token
	s.current = Session{}
	s.mu.Unlock()

	s.purge(ctx)
	return token
}

func (s *Store) purge(ctx context.Context) {
	err := s.durable.Delete(context.WithoutCancel(ctx), credentialKeys...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clear persisted session",
			logger.Component("session"), logger.Error(err))
	}
}

func (s *Store) persist(ctx context.Context, sess Session) error {
	userData, err := json.Marshal(sess.Identity)
	if err != nil {
		return errors.Join(ErrPersist, err)
	}
	err = s.durable.SetMany(ctx, map[string]string{
		clientstore.KeyAuthToken: sess.Token,
		clientstore.KeyUserData:  string(userData),
	}, 0)
	if err != nil {
		return errors.Join(ErrPersist, err)
	}
	return nil
}

var credentialKeys = []string{clientstore.KeyAuthToken, clientstore.KeyUserData}

// readDurable loads the pair from one snapshot. A pair that has to be
// discarded is only purged if storage still holds exactly what was read;
// if another writer replaced it in between, the replacement is decoded
// instead and nothing is deleted.
func (s *Store) readDurable(ctx context.Context) (Session, error) {
	seen, err := s.durable.GetMany(ctx, credentialKeys...)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.decode(seen)
	if !discardable(err) {
		return sess, err
	}

	current, readErr := s.durable.GetMany(ctx, credentialKeys...)
	if readErr != nil {
		return Session{}, readErr
	}
	if !maps.Equal(seen, current) {
		return s.decode(current)
	}
	s.purge(ctx)
	return Session{}, err
}

func discardable(err error) bool {
	return errors.Is(err, ErrCorruptRecord) || errors.Is(err, ErrTokenExpired)
}

func (s *Store) decode(values map[string]string) (Session, error) {
	token, hasToken := values[clientstore.KeyAuthToken]
	userData, hasUser := values[clientstore.KeyUserData]

	switch {
	case !hasToken && !hasUser:
		return Session{}, clientstore.ErrNotFound
	case !hasToken || !hasUser:
		return Session{}, fmt.Errorf("%w: only one of %s/%s present",
			ErrCorruptRecord, clientstore.KeyAuthToken, clientstore.KeyUserData)
	}

	var identity account.Identity
	if err := json.Unmarshal([]byte(userData), &identity); err != nil {
		return Session{}, errors.Join(ErrCorruptRecord, err)
	}

	sess := Session{Identity: identity, Token: token}
	if !sess.IsAuthenticated() {
		return Session{}, fmt.Errorf("%w: incomplete identity or empty token", ErrCorruptRecord)
	}

	if s.checkExpiry && s.tokenExpired(token) {
		return Session{}, ErrTokenExpired
	}
	return sess, nil
}

// tokenExpired inspects JWT tokens without verifying them; the signature is
// the backend's concern. Opaque tokens never expire client-side.
func (s *Store) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.now().Before(exp.Time)
}
