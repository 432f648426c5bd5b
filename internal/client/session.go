package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/intranet/internal/auth"
)

// ErrSessionExpired is returned before any request once the token has expired.
var ErrSessionExpired = errors.New("session expired, sign in again")

// Session carries the caller's bearer token. It is created explicitly from
// credential storage (flag, env) and passed to the Client.
type Session struct {
	token  string
	claims *auth.Claims
	now    func() time.Time
}

// NewSession parses the token's claims without verifying them.
func NewSession(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("no access token configured")
	}
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	return &Session{token: token, claims: claims, now: time.Now}, nil
}

// Actor is the display name recorded on history entries.
func (s *Session) Actor() string {
	if s.claims.Name != "" {
		return s.claims.Name
	}
	return s.claims.Subject
}

// Subject is the token's subject identifier.
func (s *Session) Subject() string {
	return s.claims.Subject
}

// ExpiresAt is the zero time when the token does not expire.
func (s *Session) ExpiresAt() time.Time {
	if s.claims.ExpiresAt == nil {
		return time.Time{}
	}
	return s.claims.ExpiresAt.Time
}

// Expired reports whether the token's exp has passed.
func (s *Session) Expired() bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !s.now().Before(exp)
}

// Authorization returns the Authorization header value.
func (s *Session) Authorization() (string, error) {
	if s.Expired() {
		return "", ErrSessionExpired
	}
	return "Bearer " + s.token, nil
}
