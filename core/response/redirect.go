package response

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrymomot/evservice/core/handler"
)

const (
	HeaderHXRequest  = "HX-Request"
	HeaderHXLocation = "HX-Location"
	HeaderRefresh    = "Refresh"
)

// IsHTMX reports whether r was issued by htmx.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get(HeaderHXRequest) == "true"
}

// Redirect replaces the current location with url (302). htmx requests get
// HX-Location with 200 so the client navigates instead of swapping.
func Redirect(url string) handler.Response {
	return redirect(url, http.StatusFound)
}

// RedirectSeeOther is Redirect with 303, used after form posts.
func RedirectSeeOther(url string) handler.Response {
	return redirect(url, http.StatusSeeOther)
}

func redirect(url string, status int) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		if IsHTMX(r) {
			w.Header().Set(HeaderHXLocation, url)
			w.WriteHeader(http.StatusOK)
			return nil
		}
		http.Redirect(w, r, url, status)
		return nil
	}
}

// Refresh renders next and asks the browser to navigate to url after delay.
// Sub-second delays round up to one second.
func Refresh(url string, delay time.Duration, next handler.Response) handler.Response {
	secs := int((delay + time.Second - 1) / time.Second)
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set(HeaderRefresh, fmt.Sprintf("%d; url=%s", secs, url))
		if next == nil {
			w.WriteHeader(http.StatusOK)
			return nil
		}
		return next(w, r)
	}
}
