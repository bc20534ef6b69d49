package security

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"

	"github.com/goliatone/go-router"
	"golang.org/x/crypto/bcrypt"
)

// MemoryStoreName selects the reference in-memory backend.
const MemoryStoreName = "memory"

// PasswordFieldName is the backend specific field carrying the secret for
// Authenticate.
const PasswordFieldName = "password"

func init() {
	RegisterStore(MemoryStoreName, func(cfg Config) (IdentityStore, error) {
		store := NewMemoryStore(cfg.GetUsers())
		store.apiKeyHeader = cfg.GetAPIKeyHeader()
		return store, nil
	})
}

// MemoryStore is the reference IdentityStore: a list of users loaded once
// from configuration at startup and read-only afterwards, so concurrent
// request resolution needs no locking.
type MemoryStore struct {
	users        []StoredUser
	apiKeyHeader string
	logger       Logger
}

// NewMemoryStore creates a store over the given configuration records.
func NewMemoryStore(users []StoredUser) *MemoryStore {
	records := make([]StoredUser, len(users))
	copy(records, users)
	return &MemoryStore{
		users:        records,
		apiKeyHeader: DefaultAPIKeyHeader,
		logger:       defLogger{},
	}
}

// WithLogger replaces the store logger.
func (s *MemoryStore) WithLogger(logger Logger) *MemoryStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// ResolveFromRequest inspects raw request headers for an inline credential:
// HTTP Basic or the raw API-key header, both carrying "identifier:secret".
// Missing or malformed headers resolve to (nil, nil), and verification
// routes through the same Authenticate path as the login endpoint.
func (s *MemoryStore) ResolveFromRequest(ctx context.Context, req RequestMetadata) (*User, error) {
	cred, ok := basicCredentialFromHeader(req.Header(router.HeaderAuthorization))
	if !ok {
		cred, ok = splitCredential(req.Header(s.apiKeyHeader))
	}
	if !ok {
		return nil, nil
	}

	user, err := s.Authenticate(ctx, cred.Identifier, map[string]string{
		PasswordFieldName: cred.Secret,
	})
	if err != nil {
		if IsAuthError(err) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

// Authenticate matches identifier and password against the loaded records.
// Unknown identifier and wrong password share one failure mode.
func (s *MemoryStore) Authenticate(ctx context.Context, identifier string, fields map[string]string) (*User, error) {
	password, ok := fields[PasswordFieldName]
	if !ok {
		return nil, ErrInvalidCredentials
	}

	for _, record := range s.users {
		if record.ID != identifier {
			continue
		}
		if verifyStoredPassword(record, password) {
			return record.View(), nil
		}
		break
	}

	return nil, ErrInvalidCredentials
}

// Invalidate is a no-op: the reference store keeps no server side session
// state.
func (s *MemoryStore) Invalidate(ctx context.Context, user *User) error {
	return nil
}

var _ IdentityStore = (*MemoryStore)(nil)

// HashUserPassword computes the salted digest stored for reference users.
func HashUserPassword(password, salt string) string {
	sum := sha512.Sum512([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// verifyStoredPassword recomputes the salted hash and compares digests in
// constant time. Records provisioned with a bcrypt hash verify through
// bcrypt instead.
func verifyStoredPassword(record StoredUser, password string) bool {
	if record.BcryptHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(record.BcryptHash), []byte(password)) == nil
	}

	if record.PasswordHash == "" {
		return false
	}

	given := HashUserPassword(password, record.Salt)
	return subtle.ConstantTimeCompare([]byte(given), []byte(record.PasswordHash)) == 1
}

// basicCredentialFromHeader parses an Authorization header of the form
// "Basic base64(identifier:secret)" outside a router context, for stores
// working from raw headers.
func basicCredentialFromHeader(raw string) (*Credential, bool) {
	if raw == "" {
		return nil, false
	}

	const prefix = "Basic "
	if len(raw) <= len(prefix) || raw[:len(prefix)] != prefix {
		return nil, false
	}

	return decodeBasicPayload(raw[len(prefix):])
}
