package gamerhub_test

import (
	"context"
	"errors"
	"testing"

	gamerhub "github.com/gamerhub/gamerhub-go"
)

func TestAuthenticateDeviceRoundtrip(t *testing.T) {
	_, client, sessions := newTestClient(t)

	session := authenticate(t, client, "device-1", "alice")
	if session.Token == "" {
		t.Fatal("session token is empty")
	}
	if session.Username != "alice" {
		t.Errorf("username = %q, want %q", session.Username, "alice")
	}
	if session.ExpiresAt.IsZero() {
		t.Error("session expiry was not decoded from the token")
	}

	restored, err := sessions.Restore()
	if err != nil {
		t.Fatalf("restoring session: %v", err)
	}
	if restored == nil {
		t.Fatal("no session was persisted")
	}
	if restored.UserID != session.UserID {
		t.Errorf("persisted user id = %q, want %q", restored.UserID, session.UserID)
	}
	if restored.Token != session.Token {
		t.Error("persisted token differs from returned session")
	}
}

func TestAuthenticateDeviceSameDeviceSameUser(t *testing.T) {
	_, client, _ := newTestClient(t)

	first := authenticate(t, client, "device-stable", "bob")
	second := authenticate(t, client, "device-stable", "")

	if first.UserID != second.UserID {
		t.Errorf("same device produced different users: %q vs %q", first.UserID, second.UserID)
	}
}

func TestAuthenticateDeviceUnknownWithoutCreate(t *testing.T) {
	_, client, sessions := newTestClient(t)

	_, err := client.AuthenticateDevice(context.Background(), "never-seen", false, "")
	if !errors.Is(err, gamerhub.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}

	if restored, _ := sessions.Restore(); restored != nil {
		t.Error("failed authentication must not persist a session")
	}
}

func TestAuthenticateEmail(t *testing.T) {
	_, client, _ := newTestClient(t)
	ctx := context.Background()

	session, err := client.AuthenticateEmail(ctx, "carol@example.com", "hunter2", true)
	if err != nil {
		t.Fatalf("authenticating email: %v", err)
	}
	if session.Username != "carol" {
		t.Errorf("username = %q, want %q", session.Username, "carol")
	}

	// Wrong password on an existing account is rejected.
	if _, err := client.AuthenticateEmail(ctx, "carol@example.com", "wrong", true); !errors.Is(err, gamerhub.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	_, client, sessions := newTestClient(t)
	authenticate(t, client, "device-logout", "dave")

	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if client.Session().Authenticated() {
		t.Error("client still holds a session after logout")
	}
	if restored, _ := sessions.Restore(); restored != nil {
		t.Error("persisted session survived logout")
	}
}

func TestLogoutClearsSessionWhenServerFails(t *testing.T) {
	server, client, sessions := newTestClient(t)
	authenticate(t, client, "device-logout-fail", "erin")

	server.SetFailLogout(true)

	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("logout must not fail when the revoke call fails: %v", err)
	}
	if client.Session().Authenticated() {
		t.Error("client still holds a session after failed server logout")
	}
	if restored, _ := sessions.Restore(); restored != nil {
		t.Error("persisted session survived failed server logout")
	}
}

func TestRevokedSessionSurfacesAsExpired(t *testing.T) {
	server, client, sessions := newTestClient(t)
	ctx := context.Background()
	authenticate(t, client, "device-revoked", "frank")

	// Revoke server-side, then hand the same token to a fresh client so
	// the next account call hits the 401 path.
	session := client.Session()
	if err := client.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	sessions.Persist(session)
	client2, err := gamerhub.NewClient(server.ClientConfig(), sessions, testLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	_, err = client2.GetAccount(ctx)
	if !errors.Is(err, gamerhub.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if client2.Session().Authenticated() {
		t.Error("expired session was not cleared from the client")
	}
	if restored, _ := sessions.Restore(); restored != nil {
		t.Error("expired session was not cleared from the store")
	}
}
