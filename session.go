package gamerhub

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the credential bundle issued by the platform on authentication.
// The zero value is an unauthenticated session; a session with a non-empty
// Token is authenticated until ExpiresAt.
type Session struct {
	Token            string            `json:"token" yaml:"token"`
	RefreshToken     string            `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	UserID           string            `json:"user_id" yaml:"user_id"`
	Username         string            `json:"username" yaml:"username"`
	CreatedAt        time.Time         `json:"created_at" yaml:"created_at"`
	ExpiresAt        time.Time         `json:"expires_at" yaml:"expires_at"`
	RefreshExpiresAt time.Time         `json:"refresh_expires_at,omitempty" yaml:"refresh_expires_at,omitempty"`
	Vars             map[string]string `json:"vars,omitempty" yaml:"vars,omitempty"`
}

// Authenticated reports whether the session carries a token.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// Expired reports whether the access token has expired at the given time.
func (s *Session) Expired(now time.Time) bool {
	if !s.Authenticated() {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// sessionClaims are the claims the platform embeds in its session tokens.
type sessionClaims struct {
	UserID   string            `json:"uid"`
	Username string            `json:"usn"`
	Vars     map[string]string `json:"vrs,omitempty"`
	jwt.RegisteredClaims
}

// SessionFromTokens builds a Session from the token pair returned by an
// authenticate call. Claims are decoded without signature verification: the
// signing secret never leaves the platform, and the client only needs the
// user id, username, vars and expiry embedded in the token.
func SessionFromTokens(token, refreshToken string) (*Session, error) {
	claims, err := decodeSessionClaims(token)
	if err != nil {
		return nil, fmt.Errorf("decoding session token: %w", err)
	}

	session := &Session{
		Token:        token,
		RefreshToken: refreshToken,
		UserID:       claims.UserID,
		Username:     claims.Username,
		CreatedAt:    time.Now(),
		Vars:         claims.Vars,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		session.CreatedAt = claims.IssuedAt.Time
	}

	if refreshToken != "" {
		refreshClaims, err := decodeSessionClaims(refreshToken)
		if err != nil {
			return nil, fmt.Errorf("decoding refresh token: %w", err)
		}
		if refreshClaims.ExpiresAt != nil {
			session.RefreshExpiresAt = refreshClaims.ExpiresAt.Time
		}
	}

	return session, nil
}

func decodeSessionClaims(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
