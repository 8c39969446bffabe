package session

import (
	"context"

	"github.com/dmitrymomot/evservice/core/account"
)

// Session is the in-memory authentication state.
type Session struct {
	Identity account.Identity
	Token    string
}

// IsAuthenticated is true iff both halves of the pair are present.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.Identity.Valid()
}

// Gateway is the backend contract the store relies on.
type Gateway interface {
	Login(ctx context.Context, creds account.Credentials) (account.Identity, string, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (account.Identity, error)
}
