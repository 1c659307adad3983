// Package auth holds the authorization gate and admin credential check.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/pulselabs/pulse-gateway/internal/domain"
	"github.com/pulselabs/pulse-gateway/internal/session"
)

// Gate validates an existing session before privileged operations proceed.
// It performs no side effects; callers audit denials.
type Gate struct {
	sessions session.Store
}

// NewGate creates an authorization gate over the given session store.
func NewGate(sessions session.Store) *Gate {
	return &Gate{sessions: sessions}
}

// RequireAdmin returns the current session when it exists and carries the
// admin role, or a typed deny error otherwise. "Not authorized" is a normal
// outcome here, expressed as a value, never a panic.
func (g *Gate) RequireAdmin(r *http.Request) (*session.Session, *domain.APIError) {
	sess, err := g.sessions.Current(r)
	if err != nil {
		return nil, domain.ErrServer("session lookup failed")
	}
	if sess == nil || sess.Role != session.RoleAdmin {
		return nil, domain.ErrPermission("admin session required")
	}
	return sess, nil
}

// Verifier checks the admin login key against its configured SHA-256 digest.
type Verifier struct {
	adminKeyHash string
}

// NewVerifier creates a credential verifier. The hash is the hex SHA-256
// digest of the admin key; the key itself is never part of configuration.
func NewVerifier(adminKeyHash string) *Verifier {
	return &Verifier{adminKeyHash: adminKeyHash}
}

// VerifyAdminKey reports whether the provided key matches the configured
// digest, in constant time to prevent timing attacks.
func (v *Verifier) VerifyAdminKey(key string) bool {
	if v.adminKeyHash == "" {
		return false
	}
	hash := HashKey(key)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(v.adminKeyHash)) == 1
}

// HashKey creates the SHA-256 hex digest of a key for storage.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
