package signin

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/zento"
)

// SessionClaims are the claims carried by the session cookie
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Session is the authenticated session decoded from the cookie
type Session struct {
	UserID    string `json:"id"`
	UserEmail string `json:"email,omitempty"`
}

var _ zento.AuthSession = (*Session)(nil)

func (s *Session) IdentityID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}

func (s *Session) Email() string {
	if s == nil {
		return ""
	}
	return s.UserEmail
}

func sessionFromClaims(claims *SessionClaims) *Session {
	return &Session{
		UserID:    claims.Subject,
		UserEmail: claims.Email,
	}
}
