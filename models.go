package security

// NotYetLoggedIn is the sentinel payload returned to anonymous callers of
// the who-am-i endpoint. Anonymity is a normal outcome, not an error.
const NotYetLoggedIn = "not_yet_logged_in"

// User is the identity resolved for a single request. The authoritative
// copy lives in the IdentityStore; this view is never written back.
type User struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Roles    []string       `json:"roles,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HasRole reports whether the user carries the given role claim.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// StoredUser is a configuration-time identity record for the reference
// in-memory store. Exactly one of the hash schemes should be populated:
// PasswordHash+Salt for the salted SHA-512 digest scheme, or BcryptHash.
type StoredUser struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Roles        []string `json:"roles"`
	PasswordHash string   `json:"password"`
	Salt         string   `json:"salt"`
	BcryptHash   string   `json:"bcrypt_hash,omitempty"`
}

// View returns the request-facing User for a stored record.
func (s StoredUser) View() *User {
	name := s.Name
	if name == "" {
		name = s.ID
	}
	roles := make([]string, len(s.Roles))
	copy(roles, s.Roles)
	return &User{
		ID:    s.ID,
		Name:  name,
		Roles: roles,
	}
}
