package response

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/dmitrymomot/evservice/core/handler"
)

var errNilTemplate = errors.New("response: nil template")

// Template renders the named template with 200.
func Template(tmpl *template.Template, name string, data any) handler.Response {
	return TemplateWithStatus(tmpl, name, data, http.StatusOK)
}

// TemplateWithStatus renders the named template into a buffer first, so a
// template error never leaves a half-written page.
func TemplateWithStatus(tmpl *template.Template, name string, data any, status int) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		if tmpl == nil {
			return errNilTemplate
		}
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
			return err
		}
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, err := buf.WriteTo(w)
		return err
	}
}
