package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/evservice/core/backend"
)

func TestClient_Do(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/echo":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "a=1&b=2", r.URL.RawQuery)
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			_ = json.NewEncoder(w).Encode(map[string]string{"got": in["x"]})
		case "/api/fail":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"bad password"}`))
		case "/api/garbage":
			_, _ = w.Write([]byte(`<html>`))
		}
	}))
	t.Cleanup(srv.Close)

	c := backend.New(srv.URL + "/api/")
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		var out map[string]string
		err := c.Do(ctx, backend.Request{
			Method: http.MethodPost, Path: "/echo", RawQuery: "a=1&b=2",
			Token: "tok", Body: map[string]string{"x": "y"},
		}, &out)
		require.NoError(t, err)
		assert.Equal(t, "y", out["got"])
	})

	t.Run("status error carries message", func(t *testing.T) {
		t.Parallel()
		err := c.Do(ctx, backend.Request{Method: http.MethodGet, Path: "/fail"}, nil)
		var se *backend.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusUnauthorized, se.Status)
		assert.Equal(t, "bad password", se.Message)
	})

	t.Run("decode error", func(t *testing.T) {
		t.Parallel()
		var out map[string]any
		err := c.Do(ctx, backend.Request{Method: http.MethodGet, Path: "/garbage"}, &out)
		assert.ErrorIs(t, err, backend.ErrDecode)
	})
}

func TestClient_Transport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := backend.New(url).Do(context.Background(), backend.Request{Method: http.MethodGet, Path: "/x"}, nil)
	assert.ErrorIs(t, err, backend.ErrTransport)
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"success":true,"data":{"user":{"id":"1"}}}`)
	assert.JSONEq(t, `{"id":"1"}`, string(backend.Unwrap(raw, "data", "user")))

	flat := json.RawMessage(`{"id":"2"}`)
	assert.JSONEq(t, `{"id":"2"}`, string(backend.Unwrap(flat, "data", "user")))
}
