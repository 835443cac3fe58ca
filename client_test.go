package gamerhub_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	gamerhub "github.com/gamerhub/gamerhub-go"
	"github.com/gamerhub/gamerhub-go/gamerhubtest"
	"github.com/gamerhub/gamerhub-go/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient starts a fake platform and a client wired to it with an
// in-memory session store.
func newTestClient(t *testing.T) (*gamerhubtest.Server, *gamerhub.Client, *store.Memory) {
	t.Helper()

	server, err := gamerhubtest.NewServer(testLogger())
	if err != nil {
		t.Fatalf("starting fake platform: %v", err)
	}
	t.Cleanup(server.Close)

	sessions := store.NewMemory()
	client, err := gamerhub.NewClient(server.ClientConfig(), sessions, testLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return server, client, sessions
}

// authenticate signs the client in with a fresh device identity.
func authenticate(t *testing.T, client *gamerhub.Client, deviceID, username string) *gamerhub.Session {
	t.Helper()
	session, err := client.AuthenticateDevice(context.Background(), deviceID, true, username)
	if err != nil {
		t.Fatalf("authenticating device %q: %v", deviceID, err)
	}
	return session
}

func TestClientRestoresPersistedSession(t *testing.T) {
	server, client, sessions := newTestClient(t)

	want := authenticate(t, client, "device-restore", "restorer")

	// A second client sharing the store comes up already authenticated.
	restored, err := gamerhub.NewClient(server.ClientConfig(), sessions, testLogger())
	if err != nil {
		t.Fatalf("creating second client: %v", err)
	}

	got := restored.Session()
	if !got.Authenticated() {
		t.Fatal("expected restored client to be authenticated")
	}
	if got.UserID != want.UserID {
		t.Errorf("restored user id = %q, want %q", got.UserID, want.UserID)
	}
	if got.Token == "" {
		t.Error("restored session has empty token")
	}
}
