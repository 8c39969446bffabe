package portal

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/response"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageHome      = "home.html"
	pageLogin     = "login.html"
	pageRegister  = "register.html"
	pagePassword  = "password.html"
	pageDashboard = "dashboard.html"
	pageBookings  = "bookings.html"
	pagePayment   = "payment.html"
)

// pages maps a page file to its template set. Each set is the layout plus
// one page, so every page can define its own "content".
type pages map[string]*template.Template

func parsePages() (pages, error) {
	p := make(pages)
	for _, name := range []string{pageHome, pageLogin, pageRegister, pagePassword, pageDashboard, pageBookings, pagePayment} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, err
		}
		p[name] = t
	}
	return p, nil
}

// view is the data every page template receives.
type view struct {
	Title  string
	User   *account.Identity
	Notice string
	Error  string
	Form   map[string]string
	Data   any
}

func (p pages) render(name string, status int, v view) handler.Response {
	if v.Form == nil {
		v.Form = map[string]string{}
	}
	return response.TemplateWithStatus(p[name], "layout", v, status)
}

// formValues copies the named fields of a parsed form for re-display.
func formValues(r *http.Request, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = r.PostFormValue(n)
	}
	return out
}
