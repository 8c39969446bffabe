package guard

import (
	"net/url"
	"strings"

	"github.com/dmitrymomot/evservice/core/account"
)

var landings = map[account.Role]string{
	account.RoleAdmin:      "/admin",
	account.RoleStaff:      "/staff",
	account.RoleTechnician: "/technician",
	account.RoleCustomer:   "/customer",
}

// Landing returns the default page for a role, "/" for unknown roles.
func Landing(role account.Role) string {
	if p, ok := landings[role]; ok {
		return p
	}
	return "/"
}

// SafeRedirect returns target when it is a local absolute path, otherwise
// fallback. Scheme-relative ("//host"), backslash and absolute URLs are refused.
func SafeRedirect(target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") {
		return fallback
	}
	if strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\r\n\t") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return target
}
