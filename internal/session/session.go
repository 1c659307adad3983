// Package session reads and writes the admin session. The gateway treats a
// session as read-only data; the only writes are issuing and clearing the
// cookie at login and logout.
package session

import "net/http"

// RoleAdmin is the role required for privileged routes.
const RoleAdmin = "admin"

// Session is the authenticated caller's identity.
type Session struct {
	UserID string
	Role   string
}

// Store is the external session collaborator. Current returns (nil, nil)
// when no valid session exists; absence is an expected outcome, not an error.
type Store interface {
	Current(r *http.Request) (*Session, error)
	Issue(w http.ResponseWriter, s *Session) error
	Clear(w http.ResponseWriter)
}
