package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie written at login.
const CookieName = "pulse_session"

// claims is the JWT payload carried by the session cookie.
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// CookieStore keeps the session in a signed HS256 JWT cookie, so the gateway
// holds no server-side session state.
type CookieStore struct {
	secret []byte
	ttl    time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewCookieStore creates a cookie-backed session store.
func NewCookieStore(secret string, ttl time.Duration) *CookieStore {
	return &CookieStore{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Current implements Store. A missing, malformed, or expired cookie yields
// (nil, nil): no session, not a failure.
func (s *CookieStore) Current(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	var c claims
	token, err := jwt.ParseWithClaims(cookie.Value, &c, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, nil
	}

	return &Session{UserID: c.UserID, Role: c.Role}, nil
}

// Issue implements Store.
func (s *CookieStore) Issue(w http.ResponseWriter, sess *Session) error {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pulse-gateway",
		},
		UserID: sess.UserID,
		Role:   sess.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear implements Store.
func (s *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
