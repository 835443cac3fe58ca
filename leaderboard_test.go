package gamerhub_test

import (
	"context"
	"fmt"
	"testing"
)

func TestListLeaderboardRecords(t *testing.T) {
	server, client, _ := newTestClient(t)
	ctx := context.Background()
	authenticate(t, client, "device-lb", "judy")

	// 40 players, highest score first once ranked.
	for i := 0; i < 40; i++ {
		ownerID := fmt.Sprintf("p%02d", i)
		username := fmt.Sprintf("Player%02d", i)
		if err := server.SeedLeaderboardRecord("global_elo", ownerID, username, int64(2200-i*10)); err != nil {
			t.Fatalf("seeding record: %v", err)
		}
	}

	page, err := client.ListLeaderboardRecords(ctx, "global_elo", 15, "")
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}

	if len(page.Records) != 15 {
		t.Fatalf("got %d records, want 15", len(page.Records))
	}
	for i, record := range page.Records {
		if record.Rank != int64(i+1) {
			t.Errorf("record %d: rank = %d, want %d", i, record.Rank, i+1)
		}
	}
	if page.Records[0].Score != 2200 {
		t.Errorf("top score = %d, want 2200", page.Records[0].Score)
	}
	for i := 1; i < len(page.Records); i++ {
		if page.Records[i].Score > page.Records[i-1].Score {
			t.Errorf("records not in descending score order at index %d", i)
		}
	}
	if page.NextCursor == "" {
		t.Fatal("expected a continuation cursor with 40 seeded records")
	}

	// Continue from the cursor: ranks pick up at offset + 1.
	next, err := client.ListLeaderboardRecords(ctx, "global_elo", 15, page.NextCursor)
	if err != nil {
		t.Fatalf("listing next page: %v", err)
	}
	if len(next.Records) != 15 {
		t.Fatalf("got %d records on second page, want 15", len(next.Records))
	}
	for i, record := range next.Records {
		if record.Rank != int64(15+i+1) {
			t.Errorf("second page record %d: rank = %d, want %d", i, record.Rank, 15+i+1)
		}
	}

	// Third page drains the listing.
	last, err := client.ListLeaderboardRecords(ctx, "global_elo", 15, next.NextCursor)
	if err != nil {
		t.Fatalf("listing last page: %v", err)
	}
	if len(last.Records) != 10 {
		t.Fatalf("got %d records on last page, want 10", len(last.Records))
	}
	if last.NextCursor != "" {
		t.Errorf("exhausted listing still returned cursor %q", last.NextCursor)
	}
}

func TestListLeaderboardRecordsEmptyBoard(t *testing.T) {
	_, client, _ := newTestClient(t)
	authenticate(t, client, "device-lb-empty", "kim")

	page, err := client.ListLeaderboardRecords(context.Background(), "nobody_played", 15, "")
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(page.Records) != 0 {
		t.Errorf("got %d records from an empty board", len(page.Records))
	}
	if page.NextCursor != "" {
		t.Errorf("empty board returned cursor %q", page.NextCursor)
	}
}

func TestListLeaderboardRecordsCarriesUsernames(t *testing.T) {
	server, client, _ := newTestClient(t)
	authenticate(t, client, "device-lb-names", "lee")

	if err := server.SeedLeaderboardRecord("weekly", "u1", "TopFragger", 900); err != nil {
		t.Fatalf("seeding record: %v", err)
	}

	page, err := client.ListLeaderboardRecords(context.Background(), "weekly", 5, "")
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(page.Records))
	}
	if page.Records[0].Username != "TopFragger" {
		t.Errorf("username = %q, want %q", page.Records[0].Username, "TopFragger")
	}
	if page.Records[0].OwnerID != "u1" {
		t.Errorf("owner id = %q, want %q", page.Records[0].OwnerID, "u1")
	}
}
