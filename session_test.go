package gamerhub_test

import (
	"testing"
	"time"

	gamerhub "github.com/gamerhub/gamerhub-go"
	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, userID, username string, vars map[string]string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"uid": userID,
		"usn": username,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	if vars != nil {
		claims["vrs"] = vars
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return token
}

func TestSessionFromTokens(t *testing.T) {
	token := mintToken(t, "user-1", "alice", map[string]string{"tier": "gold"}, time.Hour)
	refresh := mintToken(t, "user-1", "alice", nil, 24*time.Hour)

	session, err := gamerhub.SessionFromTokens(token, refresh)
	if err != nil {
		t.Fatalf("building session: %v", err)
	}

	if session.UserID != "user-1" {
		t.Errorf("user id = %q, want %q", session.UserID, "user-1")
	}
	if session.Username != "alice" {
		t.Errorf("username = %q, want %q", session.Username, "alice")
	}
	if session.Vars["tier"] != "gold" {
		t.Errorf("vars = %v, want tier=gold", session.Vars)
	}
	if session.ExpiresAt.IsZero() || time.Until(session.ExpiresAt) > time.Hour {
		t.Errorf("expires at = %v, want roughly an hour out", session.ExpiresAt)
	}
	if session.RefreshExpiresAt.Before(session.ExpiresAt) {
		t.Error("refresh expiry should outlive the access token expiry")
	}
	if !session.Authenticated() {
		t.Error("session with token should be authenticated")
	}
}

func TestSessionFromTokensRejectsGarbage(t *testing.T) {
	if _, err := gamerhub.SessionFromTokens("not-a-jwt", ""); err == nil {
		t.Fatal("expected an error for a malformed token")
	}
}

func TestSessionExpired(t *testing.T) {
	token := mintToken(t, "user-2", "bob", nil, time.Minute)
	session, err := gamerhub.SessionFromTokens(token, "")
	if err != nil {
		t.Fatalf("building session: %v", err)
	}

	now := time.Now()
	if session.Expired(now) {
		t.Error("fresh session reported expired")
	}
	if !session.Expired(now.Add(2 * time.Minute)) {
		t.Error("session past its expiry reported valid")
	}

	var nilSession *gamerhub.Session
	if nilSession.Authenticated() {
		t.Error("nil session reported authenticated")
	}
	if !nilSession.Expired(now) {
		t.Error("nil session reported unexpired")
	}
}
