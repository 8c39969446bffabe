// Package account holds the user-facing identity types shared by the auth
// gateway, the session store and the route guard.
package account

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Role selects which dashboard section a user may enter.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleStaff      Role = "staff"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Roles lists every known role.
var Roles = []Role{RoleCustomer, RoleStaff, RoleTechnician, RoleAdmin}

// ParseRole normalises a backend role string ("ADMIN", " Staff ") to a Role.
// Unknown values are kept lowercased so they fail Known rather than alias a real role.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether r is one of Roles.
func (r Role) Known() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Identity is the authenticated user profile as returned by the backend.
type Identity struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role"`
}

// Valid reports whether the identity carries enough to route the user.
func (i Identity) Valid() bool {
	return i.ID != "" && i.Role != ""
}

// DisplayName prefers the full name and falls back to the email.
func (i Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	return i.Email
}

// UnmarshalJSON accepts numeric or string ids and a few field aliases seen
// across backend versions (name, phoneNumber, userId).
func (i *Identity) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID          json.RawMessage `json:"id"`
		UserID      json.RawMessage `json:"userId"`
		FullName    string          `json:"fullName"`
		Name        string          `json:"name"`
		Email       string          `json:"email"`
		Phone       string          `json:"phone"`
		PhoneNumber string          `json:"phoneNumber"`
		Role        string          `json:"role"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := rawID(aux.ID)
	if err != nil {
		return err
	}
	if id == "" {
		if id, err = rawID(aux.UserID); err != nil {
			return err
		}
	}

	*i = Identity{
		ID:       id,
		FullName: firstNonEmpty(aux.FullName, aux.Name),
		Email:    aux.Email,
		Phone:    firstNonEmpty(aux.Phone, aux.PhoneNumber),
		Role:     ParseRole(aux.Role),
	}
	return nil
}

func rawID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Credentials are the login form values.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
