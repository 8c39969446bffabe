package authapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/authapi"
)

func newBackend(t *testing.T, h http.HandlerFunc) *authapi.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return authapi.New(srv.URL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Login(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("flat response", func(t *testing.T) {
		t.Parallel()
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/login", r.URL.Path)
			var creds account.Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "a@x.com", creds.Username)
			writeJSON(w, http.StatusOK, map[string]any{
				"token": "tok-1",
				"user":  map[string]any{"id": 7, "fullName": "An", "email": "a@x.com", "role": "customer"},
			})
		})

		identity, token, err := c.Login(ctx, account.Credentials{Username: "a@x.com", Password: "secret-pass"})
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
		assert.Equal(t, "7", identity.ID)
		assert.Equal(t, account.RoleCustomer, identity.Role)
	})

	t.Run("data envelope", func(t *testing.T) {
		t.Parallel()
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"data": map[string]any{
					"accessToken": "tok-2",
					"user":        map[string]any{"id": "s-1", "role": "STAFF"},
				},
			})
		})

		identity, token, err := c.Login(ctx, account.Credentials{Username: "s", Password: "p"})
		require.NoError(t, err)
		assert.Equal(t, "tok-2", token)
		assert.Equal(t, account.RoleStaff, identity.Role)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		t.Parallel()
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Wrong email or password"})
		})

		_, _, err := c.Login(ctx, account.Credentials{Username: "a@x.com", Password: "short"})
		require.Error(t, err)
		assert.ErrorIs(t, err, authapi.ErrInvalidCredentials)
		assert.Equal(t, "Wrong email or password", authapi.Message(err))
	})

	t.Run("success false in 200", func(t *testing.T) {
		t.Parallel()
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Account locked"})
		})

		_, _, err := c.Login(ctx, account.Credentials{Username: "a", Password: "b"})
		assert.ErrorIs(t, err, authapi.ErrInvalidCredentials)
		assert.Equal(t, "Account locked", authapi.Message(err))
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, _, err := c.Login(ctx, account.Credentials{Username: "a", Password: "b"})
		assert.ErrorIs(t, err, authapi.ErrServer)
	})

	t.Run("incomplete success payload", func(t *testing.T) {
		t.Parallel()
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"token": "tok"})
		})

		_, _, err := c.Login(ctx, account.Credentials{Username: "a", Password: "b"})
		assert.ErrorIs(t, err, authapi.ErrServer)
	})

	t.Run("validation happens before network", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

		_, _, err := c.Login(ctx, account.Credentials{Username: "a@x.com"})
		assert.ErrorIs(t, err, authapi.ErrInvalidCredentials)
		assert.Equal(t, "password is required", authapi.Message(err))
		assert.Zero(t, calls.Load())
	})
}

func TestClient_Login_Network(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	c := authapi.New(srv.URL)
	srv.Close()

	_, _, err := c.Login(context.Background(), account.Credentials{Username: "a", Password: "b"})
	assert.ErrorIs(t, err, authapi.ErrNetwork)
	assert.Contains(t, authapi.Message(err), "Cannot reach")
}

func TestClient_LogoutAndMe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "expired"})
			return
		}
		switch r.URL.Path {
		case "/auth/logout":
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusOK)
		case "/auth/me":
			writeJSON(w, http.StatusOK, map[string]any{
				"data": map[string]any{"id": "u-1", "fullName": "Refreshed", "role": "technician"},
			})
		}
	})

	require.NoError(t, c.Logout(ctx, "good"))

	identity, err := c.Me(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "Refreshed", identity.FullName)
	assert.Equal(t, account.RoleTechnician, identity.Role)

	_, err = c.Me(ctx, "stale")
	assert.ErrorIs(t, err, authapi.ErrInvalidCredentials)
}

func TestClient_PasswordFlows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var seen bodyRecorder
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		seen.store(r.URL.Path, body)

		switch r.URL.Path {
		case "/auth/password/verify-otp":
			if body["otpCode"] != "123456" {
				writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "OTP is invalid"})
				return
			}
		case "/auth/password/verify-token":
			valid := r.URL.Query().Get("token") == "reset-ok"
			writeJSON(w, http.StatusOK, map[string]any{"valid": valid})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "ok"})
	})

	msg, err := c.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "ok", msg)

	_, err = c.VerifyOTP(ctx, "a@x.com", "000000")
	assert.ErrorIs(t, err, authapi.ErrInvalidCredentials)
	assert.Equal(t, "OTP is invalid", authapi.Message(err))

	_, err = c.VerifyOTP(ctx, "a@x.com", "123456")
	require.NoError(t, err)

	_, err = c.ResetPassword(ctx, "a@x.com", "123456", "n3w-pass")
	require.NoError(t, err)
	assert.Equal(t, "n3w-pass", seen.load("/auth/password/reset")["newPassword"])

	_, err = c.ResendVerification(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", seen.load("/auth/email/resend-verification")["email"])

	require.NoError(t, c.VerifyResetToken(ctx, "reset-ok"))
	assert.ErrorIs(t, c.VerifyResetToken(ctx, "nope"), authapi.ErrInvalidCredentials)
	assert.ErrorIs(t, c.VerifyResetToken(ctx, " "), authapi.ErrInvalidCredentials)

	_, err = c.ForgotPassword(ctx, "not-an-email")
	assert.ErrorIs(t, err, authapi.ErrInvalidCredentials)
	assert.Equal(t, "email must be a valid email address", authapi.Message(err))
}
