package gamerhub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// LeaderboardEntry represents a single ranked record. Rank is assigned by
// the ranking service; the client never recomputes it.
type LeaderboardEntry struct {
	Rank        int64          `json:"rank"`
	OwnerID     string         `json:"owner_id"`
	Username    string         `json:"username,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Score       int64          `json:"score"`
	NumScore    int            `json:"num_score,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// LeaderboardPage is one page of records plus the continuation cursor for
// the next page. An empty cursor means the listing is exhausted.
type LeaderboardPage struct {
	Records    []LeaderboardEntry `json:"records"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// ListLeaderboardRecords returns at most limit ranked records. The cursor is
// an opaque continuation token from a previous page and must be passed back
// unmodified; an empty cursor starts from the top rank.
func (c *Client) ListLeaderboardRecords(ctx context.Context, leaderboardID string, limit int, cursor string) (*LeaderboardPage, error) {
	if leaderboardID == "" {
		return nil, fmt.Errorf("leaderboard id is required")
	}
	if limit <= 0 {
		limit = 15
	}

	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var page LeaderboardPage
	path := "/v2/leaderboard/" + url.PathEscape(leaderboardID) + "/records"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
