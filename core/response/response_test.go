package response_test

import (
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/evservice/core/response"
)

func TestRedirect(t *testing.T) {
	t.Parallel()

	t.Run("plain request", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/admin", nil)
		w := httptest.NewRecorder()

		require.NoError(t, response.Redirect("/login?redirect=%2Fadmin")(w, r))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login?redirect=%2Fadmin", w.Header().Get("Location"))
	})

	t.Run("see other after post", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodPost, "/login", nil)
		w := httptest.NewRecorder()

		require.NoError(t, response.RedirectSeeOther("/customer")(w, r))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/customer", w.Header().Get("Location"))
	})

	t.Run("htmx request", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodPost, "/login", nil)
		r.Header.Set(response.HeaderHXRequest, "true")
		w := httptest.NewRecorder()

		require.NoError(t, response.RedirectSeeOther("/customer")(w, r))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "/customer", w.Header().Get(response.HeaderHXLocation))
		assert.Empty(t, w.Header().Get("Location"))
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/payment/vnpay-return", nil)
	w := httptest.NewRecorder()

	err := response.Refresh("/customer/bookings", 2500*time.Millisecond, response.Text("done", http.StatusOK))(w, r)
	require.NoError(t, err)
	assert.Equal(t, "3; url=/customer/bookings", w.Header().Get(response.HeaderRefresh))
	assert.Equal(t, "done", w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, response.Refresh("/", 0, nil)(w, r))
	assert.Equal(t, "0; url=/", w.Header().Get(response.HeaderRefresh))
}

func TestTemplate(t *testing.T) {
	t.Parallel()

	tmpl := template.Must(template.New("").Parse(
		`{{define "page"}}<p>{{.}}</p>{{end}}{{define "broken"}}{{.Missing.Field}}{{end}}`))

	t.Run("renders escaped output", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		require.NoError(t, response.Template(tmpl, "page", "<b>hi</b>")(w, httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<p>&lt;b&gt;hi&lt;/b&gt;</p>", w.Body.String())
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	})

	t.Run("custom status", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		require.NoError(t, response.TemplateWithStatus(tmpl, "page", "x", http.StatusUnauthorized)(w, httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("error writes nothing", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		err := response.Template(tmpl, "broken", "string has no fields")(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Error(t, err)
		assert.Empty(t, w.Body.String())
	})

	t.Run("nil template", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		assert.Error(t, response.Template(nil, "page", nil)(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	})
}

type statusErr struct{}

func (statusErr) Error() string   { return "teapot" }
func (statusErr) StatusCode() int { return http.StatusTeapot }

func TestAsHTTPError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, response.AsHTTPError(response.ErrNotFound).Status)
	assert.Equal(t, http.StatusTeapot, response.AsHTTPError(statusErr{}).Status)

	internal := response.AsHTTPError(errors.New("db password is hunter2"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, "Internal Server Error", internal.Message)

	wrapped := response.NewHTTPError(http.StatusBadGateway, "Backend unavailable", errors.New("dial tcp"))
	assert.Equal(t, "Backend unavailable: dial tcp", wrapped.Error())
	assert.Equal(t, http.StatusBadGateway, response.AsHTTPError(wrapped).StatusCode())
}

func TestText(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	require.NoError(t, response.Text("ok", 0)(w, httptest.NewRequest(http.MethodGet, "/healthz", nil)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
