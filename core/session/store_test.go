package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/authapi"
	"github.com/dmitrymomot/evservice/core/clientstore"
	"github.com/dmitrymomot/evservice/core/session"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Login(ctx context.Context, creds account.Credentials) (account.Identity, string, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(account.Identity), args.String(1), args.Error(2)
}

func (m *MockGateway) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockGateway) Me(ctx context.Context, token string) (account.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(account.Identity), args.Error(1)
}

// failingStorage rejects writes and delegates everything else.
type failingStorage struct {
	clientstore.Storage
}

func (failingStorage) SetMany(context.Context, map[string]string, time.Duration) error {
	return clientstore.ErrWriteFailed
}

var alice = account.Identity{
	ID:       "42",
	FullName: "Alice Nguyen",
	Email:    "a@x.com",
	Role:     account.RoleCustomer,
}

func seed(t *testing.T, store clientstore.Storage, token string, identity account.Identity) {
	t.Helper()
	raw, err := json.Marshal(identity)
	require.NoError(t, err)
	require.NoError(t, store.SetMany(context.Background(), map[string]string{
		clientstore.KeyAuthToken: token,
		clientstore.KeyUserData:  string(raw),
	}, 0))
}

func assertNoCredentials(t *testing.T, store clientstore.Storage) {
	t.Helper()
	for _, key := range []string{clientstore.KeyAuthToken, clientstore.KeyUserData} {
		_, err := store.Get(context.Background(), key)
		assert.ErrorIs(t, err, clientstore.ErrNotFound, key)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestStore_LoginLogout(t *testing.T) {
	t.Parallel()

	t.Run("login writes through and logout clears everything", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		gw := &MockGateway{}
		creds := account.Credentials{Username: "a@x.com", Password: "correct-horse"}
		gw.On("Login", mock.Anything, creds).Return(alice, "tok-1", nil).Once()
		gw.On("Logout", mock.Anything, "tok-1").Return(nil).Once()

		s := session.NewStore(durable, gw)
		s.Hydrate(ctx)

		identity, err := s.Login(ctx, creds)
		require.NoError(t, err)
		assert.Equal(t, alice, identity)
		assert.True(t, s.IsAuthenticated())

		token, err := durable.Get(ctx, clientstore.KeyAuthToken)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)

		s.Logout(ctx)
		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
		gw.AssertExpectations(t)
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		gw := &MockGateway{}

		s := session.NewStore(durable, gw)
		s.Hydrate(ctx)
		s.Logout(ctx)
		s.Logout(ctx)

		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
		gw.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})

	t.Run("backend logout failure still clears local state", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, "tok-1", alice)
		gw := &MockGateway{}
		gw.On("Logout", mock.Anything, "tok-1").Return(authapi.ErrNetwork).Once()

		s := session.NewStore(durable, gw)
		require.True(t, s.Hydrate(ctx))
		s.Logout(ctx)

		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
		gw.AssertExpectations(t)
	})

	t.Run("invalid credentials leave session unchanged", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		gw := &MockGateway{}
		creds := account.Credentials{Username: "a@x.com", Password: "short"}
		rejected := &authapi.Error{Kind: authapi.ErrInvalidCredentials, Op: "login", Status: 401, Message: "Invalid email or password"}
		gw.On("Login", mock.Anything, creds).Return(account.Identity{}, "", rejected).Once()

		s := session.NewStore(durable, gw)
		s.Hydrate(ctx)

		_, err := s.Login(ctx, creds)
		require.Error(t, err)
		assert.ErrorIs(t, err, authapi.ErrInvalidCredentials)
		assert.Equal(t, "Invalid email or password", authapi.Message(err))
		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
	})

	t.Run("failed login keeps the previous session", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, "tok-1", alice)
		gw := &MockGateway{}
		gw.On("Login", mock.Anything, mock.Anything).Return(account.Identity{}, "", authapi.ErrServer).Once()

		s := session.NewStore(durable, gw)
		require.True(t, s.Hydrate(ctx))

		_, err := s.Login(ctx, account.Credentials{Username: "b@x.com", Password: "pw"})
		assert.ErrorIs(t, err, authapi.ErrServer)

		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, "tok-1", cur.Token)
		assert.Equal(t, alice, cur.Identity)
	})

	t.Run("persist failure keeps the previous session", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		gw := &MockGateway{}
		gw.On("Login", mock.Anything, mock.Anything).Return(alice, "tok-2", nil).Once()

		s := session.NewStore(failingStorage{clientstore.NewMemory()}, gw)
		s.Hydrate(ctx)

		_, err := s.Login(ctx, account.Credentials{Username: "a@x.com", Password: "pw"})
		assert.ErrorIs(t, err, session.ErrPersist)
		assert.ErrorIs(t, err, clientstore.ErrWriteFailed)
		assert.False(t, s.IsAuthenticated())
	})

	t.Run("incomplete gateway response is rejected", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		gw := &MockGateway{}
		gw.On("Login", mock.Anything, mock.Anything).Return(alice, "", nil).Once()

		s := session.NewStore(durable, gw)
		s.Hydrate(ctx)

		_, err := s.Login(ctx, account.Credentials{Username: "a@x.com", Password: "pw"})
		assert.ErrorIs(t, err, session.ErrIncomplete)
		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
	})
}

func TestStore_Hydrate(t *testing.T) {
	t.Parallel()

	t.Run("empty storage sets the signal and stays logged out", func(t *testing.T) {
		t.Parallel()
		s := session.NewStore(clientstore.NewMemory(), &MockGateway{})
		assert.False(t, s.IsHydrated())

		assert.False(t, s.Hydrate(context.Background()))
		assert.True(t, s.IsHydrated())
		assert.False(t, s.IsAuthenticated())

		select {
		case <-s.Hydrated():
		default:
			t.Fatal("hydrated channel must be closed")
		}
	})

	t.Run("round trip across a fresh store", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		gw := &MockGateway{}
		gw.On("Login", mock.Anything, mock.Anything).Return(alice, "tok-1", nil).Once()

		first := session.NewStore(durable, gw)
		first.Hydrate(ctx)
		_, err := first.Login(ctx, account.Credentials{Username: "a@x.com", Password: "pw"})
		require.NoError(t, err)

		reloaded := session.NewStore(durable, gw)
		require.True(t, reloaded.Hydrate(ctx))

		cur, ok := reloaded.Current()
		require.True(t, ok)
		assert.Equal(t, alice, cur.Identity)
		assert.Equal(t, "tok-1", cur.Token)
	})

	t.Run("second call does not change outcome", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, "tok-1", alice)

		s := session.NewStore(durable, &MockGateway{})
		require.True(t, s.Hydrate(ctx))

		require.NoError(t, durable.Delete(ctx, clientstore.KeyAuthToken, clientstore.KeyUserData))
		assert.True(t, s.Hydrate(ctx))
		assert.True(t, s.IsHydrated())
		assert.True(t, s.IsAuthenticated())
	})

	t.Run("second call does not undo a login", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		gw := &MockGateway{}
		gw.On("Login", mock.Anything, mock.Anything).Return(alice, "tok-1", nil).Once()

		s := session.NewStore(clientstore.NewMemory(), gw)
		assert.False(t, s.Hydrate(ctx))
		_, err := s.Login(ctx, account.Credentials{Username: "a@x.com", Password: "pw"})
		require.NoError(t, err)

		assert.False(t, s.Hydrate(ctx))
		assert.True(t, s.IsAuthenticated())
	})

	t.Run("half-written pair is purged", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		require.NoError(t, clientstore.Set(ctx, durable, clientstore.KeyAuthToken, "tok-1", 0))

		s := session.NewStore(durable, &MockGateway{})
		assert.False(t, s.Hydrate(ctx))
		assert.True(t, s.IsHydrated())
		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
	})

	t.Run("corrupt user data is purged", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		require.NoError(t, durable.SetMany(ctx, map[string]string{
			clientstore.KeyAuthToken: "tok-1",
			clientstore.KeyUserData:  "{not json",
		}, 0))

		s := session.NewStore(durable, &MockGateway{})
		assert.False(t, s.Hydrate(ctx))
		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
	})

	t.Run("identity without role is purged", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, "tok-1", account.Identity{ID: "42", Email: "a@x.com"})

		s := session.NewStore(durable, &MockGateway{})
		assert.False(t, s.Hydrate(ctx))
		assertNoCredentials(t, durable)
	})

	t.Run("expired jwt is treated as absent", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, signedToken(t, time.Now().Add(-time.Minute)), alice)

		s := session.NewStore(durable, &MockGateway{})
		assert.False(t, s.Hydrate(ctx))
		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
	})

	t.Run("valid jwt is adopted", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, signedToken(t, time.Now().Add(time.Hour)), alice)

		s := session.NewStore(durable, &MockGateway{})
		assert.True(t, s.Hydrate(ctx))
	})

	t.Run("expiry check honours the clock and can be disabled", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		token := signedToken(t, exp)

		late := clientstore.NewMemory()
		seed(t, late, token, alice)
		s := session.NewStore(late, &MockGateway{}, session.WithClock(func() time.Time { return exp.Add(time.Second) }))
		assert.False(t, s.Hydrate(ctx))

		unchecked := clientstore.NewMemory()
		seed(t, unchecked, token, alice)
		s = session.NewStore(unchecked, &MockGateway{},
			session.WithClock(func() time.Time { return exp.Add(time.Second) }),
			session.WithoutExpiryCheck(),
		)
		assert.True(t, s.Hydrate(ctx))
	})

	t.Run("waiters are released by hydrate", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := session.NewStore(clientstore.NewMemory(), &MockGateway{})

		var wg sync.WaitGroup
		errs := make(chan error, 3)
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				waitCtx, cancel := context.WithTimeout(ctx, time.Second)
				defer cancel()
				errs <- s.WaitHydrated(waitCtx)
			}()
		}

		s.Hydrate(ctx)
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("wait honours context", func(t *testing.T) {
		t.Parallel()
		s := session.NewStore(clientstore.NewMemory(), &MockGateway{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, s.WaitHydrated(ctx), context.Canceled)
	})
}

func TestStore_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("not authenticated", func(t *testing.T) {
		t.Parallel()
		s := session.NewStore(clientstore.NewMemory(), &MockGateway{})
		s.Hydrate(context.Background())

		_, err := s.Refresh(context.Background())
		assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	})

	t.Run("updates identity and writes through", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, "tok-1", alice)
		updated := alice
		updated.FullName = "Alice N."
		gw := &MockGateway{}
		gw.On("Me", mock.Anything, "tok-1").Return(updated, nil).Once()

		s := session.NewStore(durable, gw)
		require.True(t, s.Hydrate(ctx))

		identity, err := s.Refresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Alice N.", identity.FullName)

		reloaded := session.NewStore(durable, gw)
		require.True(t, reloaded.Hydrate(ctx))
		cur, _ := reloaded.Current()
		assert.Equal(t, "Alice N.", cur.Identity.FullName)
	})

	t.Run("rejected token logs out locally", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, "tok-1", alice)
		gw := &MockGateway{}
		gw.On("Me", mock.Anything, "tok-1").Return(account.Identity{}, &authapi.Error{Kind: authapi.ErrInvalidCredentials, Op: "me", Status: 401}).Once()

		s := session.NewStore(durable, gw)
		require.True(t, s.Hydrate(ctx))

		_, err := s.Refresh(ctx)
		assert.ErrorIs(t, err, authapi.ErrInvalidCredentials)
		assert.False(t, s.IsAuthenticated())
		assertNoCredentials(t, durable)
	})

	t.Run("network failure keeps the session", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		durable := clientstore.NewMemory()
		seed(t, durable, "tok-1", alice)
		gw := &MockGateway{}
		gw.On("Me", mock.Anything, "tok-1").Return(account.Identity{}, errors.Join(authapi.ErrNetwork, context.DeadlineExceeded)).Once()

		s := session.NewStore(durable, gw)
		require.True(t, s.Hydrate(ctx))

		_, err := s.Refresh(ctx)
		assert.ErrorIs(t, err, authapi.ErrNetwork)
		assert.True(t, s.IsAuthenticated())
	})
}

// afterFirstRead runs hook once, right after the first GetMany snapshot is taken.
type afterFirstRead struct {
	clientstore.Storage
	once sync.Once
	hook func()
}

func (a *afterFirstRead) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	values, err := a.Storage.GetMany(ctx, keys...)
	a.once.Do(a.hook)
	return values, err
}

func TestStore_HydrateRacingLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		seed     func(t *testing.T, durable clientstore.Storage)
		restored bool
	}{
		{
			name:     "empty storage",
			seed:     func(*testing.T, clientstore.Storage) {},
			restored: false,
		},
		{
			name: "leftover half pair",
			seed: func(t *testing.T, durable clientstore.Storage) {
				require.NoError(t, clientstore.Set(context.Background(), durable, clientstore.KeyUserData, `{"id":"9"}`, 0))
			},
			restored: true,
		},
		{
			name: "expired token",
			seed: func(t *testing.T, durable clientstore.Storage) {
				seed(t, durable, signedToken(t, time.Now().Add(-time.Hour)), alice)
			},
			restored: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			durable := clientstore.NewMemory()
			tt.seed(t, durable)

			gw := &MockGateway{}
			gw.On("Login", mock.Anything, mock.Anything).Return(alice, "tok-new", nil).Once()
			other := session.NewStore(durable, gw)

			racing := session.NewStore(&afterFirstRead{
				Storage: durable,
				hook: func() {
					_, err := other.Login(ctx, account.Credentials{Username: "a@x.com", Password: "pw"})
					require.NoError(t, err)
				},
			}, &MockGateway{})

			assert.Equal(t, tt.restored, racing.Hydrate(ctx))
			assert.True(t, other.IsAuthenticated())

			token, err := durable.Get(ctx, clientstore.KeyAuthToken)
			require.NoError(t, err, "login written during hydrate must survive")
			assert.Equal(t, "tok-new", token)

			fresh := session.NewStore(durable, &MockGateway{})
			require.True(t, fresh.Hydrate(ctx))
			cur, _ := fresh.Current()
			assert.Equal(t, alice, cur.Identity)
		})
	}
}

func TestStore_ConcurrentLoginLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	durable := clientstore.NewMemory()
	gw := &MockGateway{}
	gw.On("Login", mock.Anything, mock.Anything).Return(alice, "tok-1", nil)
	gw.On("Logout", mock.Anything, mock.Anything).Return(nil)

	s := session.NewStore(durable, gw)
	s.Hydrate(ctx)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.Login(ctx, account.Credentials{Username: "a@x.com", Password: "pw"})
				return
			}
			s.Logout(ctx)
		}()
	}
	wg.Wait()

	// Memory and storage must agree after the dust settles.
	_, tokenErr := durable.Get(ctx, clientstore.KeyAuthToken)
	_, userErr := durable.Get(ctx, clientstore.KeyUserData)
	if s.IsAuthenticated() {
		assert.NoError(t, tokenErr)
		assert.NoError(t, userErr)
	} else {
		assert.ErrorIs(t, tokenErr, clientstore.ErrNotFound)
		assert.ErrorIs(t, userErr, clientstore.ErrNotFound)
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ObserveLogin(result string)     { r.add("login:" + result) }
func (r *eventRecorder) ObserveLogout()                 { r.add("logout") }
func (r *eventRecorder) ObserveHydration(result string) { r.add("hydrate:" + result) }

func TestStore_Observer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	durable := clientstore.NewMemory()
	require.NoError(t, clientstore.Set(ctx, durable, clientstore.KeyUserData, `{"id":"1","role":"admin"}`, 0))

	gw := &MockGateway{}
	gw.On("Login", mock.Anything, account.Credentials{Username: "a@x.com", Password: "short"}).
		Return(account.Identity{}, "", &authapi.Error{Kind: authapi.ErrInvalidCredentials, Op: "login"}).Once()
	gw.On("Login", mock.Anything, account.Credentials{Username: "a@x.com", Password: "long-enough"}).
		Return(alice, "tok-1", nil).Once()
	gw.On("Logout", mock.Anything, "tok-1").Return(nil).Once()

	rec := &eventRecorder{}
	s := session.NewStore(durable, gw, session.WithObserver(rec), session.WithLogoutTimeout(time.Second))
	s.Hydrate(ctx)
	_, _ = s.Login(ctx, account.Credentials{Username: "a@x.com", Password: "short"})
	_, err := s.Login(ctx, account.Credentials{Username: "a@x.com", Password: "long-enough"})
	require.NoError(t, err)
	s.Logout(ctx)

	assert.Equal(t, []string{
		"hydrate:discarded",
		"login:invalid_credentials",
		"login:ok",
		"logout",
	}, rec.events)
	gw.AssertExpectations(t)
}
