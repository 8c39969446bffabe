// Package response builds handler.Response values for the portal: redirects
// that understand HTMX, buffered html/template pages, delayed navigation and
// errors that carry an HTTP status.
package response
