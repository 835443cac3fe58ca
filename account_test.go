package gamerhub_test

import (
	"context"
	"errors"
	"testing"

	gamerhub "github.com/gamerhub/gamerhub-go"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestGetAccountDefaultsWithoutStatsRecord(t *testing.T) {
	_, client, _ := newTestClient(t)
	authenticate(t, client, "device-acct-1", "grace")

	player, err := client.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("get account: %v", err)
	}

	if player.Username != "grace" {
		t.Errorf("username = %q, want %q", player.Username, "grace")
	}
	if player.Elo != gamerhub.DefaultElo {
		t.Errorf("elo = %d, want %d", player.Elo, gamerhub.DefaultElo)
	}
	if player.KDRatio != gamerhub.DefaultKDRatio {
		t.Errorf("kd ratio = %v, want %v", player.KDRatio, gamerhub.DefaultKDRatio)
	}
	if player.Wins != gamerhub.DefaultWins {
		t.Errorf("wins = %d, want %d", player.Wins, gamerhub.DefaultWins)
	}
}

func TestGetAccountRequiresSession(t *testing.T) {
	_, client, _ := newTestClient(t)

	_, err := client.GetAccount(context.Background())
	if !errors.Is(err, gamerhub.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestUpdateAccountStatsMergeNotOverwrite(t *testing.T) {
	_, client, _ := newTestClient(t)
	ctx := context.Background()
	authenticate(t, client, "device-acct-2", "heidi")

	// Establish a full stats record first.
	err := client.UpdateAccount(ctx, gamerhub.AccountUpdate{
		Elo:     intPtr(1700),
		KDRatio: floatPtr(1.4),
		Wins:    intPtr(25),
	})
	if err != nil {
		t.Fatalf("seeding stats: %v", err)
	}

	// A partial update touches only elo.
	if err := client.UpdateAccount(ctx, gamerhub.AccountUpdate{Elo: intPtr(1900)}); err != nil {
		t.Fatalf("partial update: %v", err)
	}

	player, err := client.GetAccount(ctx)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if player.Elo != 1900 {
		t.Errorf("elo = %d, want 1900", player.Elo)
	}
	if player.KDRatio != 1.4 {
		t.Errorf("kd ratio = %v, want 1.4 (merge must not drop it)", player.KDRatio)
	}
	if player.Wins != 25 {
		t.Errorf("wins = %d, want 25 (merge must not drop it)", player.Wins)
	}
}

func TestUpdateAccountIdentityFields(t *testing.T) {
	_, client, _ := newTestClient(t)
	ctx := context.Background()
	authenticate(t, client, "device-acct-3", "ivan")

	err := client.UpdateAccount(ctx, gamerhub.AccountUpdate{
		DisplayName: strPtr("Ivan the Great"),
		Location:    strPtr("Oslo"),
		Timezone:    strPtr("Europe/Oslo"),
	})
	if err != nil {
		t.Fatalf("update account: %v", err)
	}

	player, err := client.GetAccount(ctx)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if player.DisplayName != "Ivan the Great" {
		t.Errorf("display name = %q, want %q", player.DisplayName, "Ivan the Great")
	}
	if player.Location != "Oslo" {
		t.Errorf("location = %q, want %q", player.Location, "Oslo")
	}
	// Identity update must not disturb stats defaults.
	if player.Elo != gamerhub.DefaultElo {
		t.Errorf("elo = %d, want default %d", player.Elo, gamerhub.DefaultElo)
	}
}

func TestUpdateAccountRequiresSession(t *testing.T) {
	_, client, _ := newTestClient(t)

	err := client.UpdateAccount(context.Background(), gamerhub.AccountUpdate{Elo: intPtr(1600)})
	if !errors.Is(err, gamerhub.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}
