// Package cookie sets and reads HMAC-signed cookies.
//
// The portal keeps a single signed cookie per browser holding the client id
// that namespaces its server-side storage. Secrets are comma separated in
// COOKIE_SECRETS; the first signs, all of them verify, so a secret can be
// rotated without logging every browser out.
package cookie
