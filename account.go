package gamerhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Stats defaults applied when a player has no stats record yet.
const (
	DefaultElo     = 1500
	DefaultKDRatio = 1.0
	DefaultWins    = 0
)

const (
	statsCollection = "player_stats"
	statsKey        = "stats"
)

// Player is the merged profile view: identity fields from the account
// service plus game stats from the per-user stats record.
type Player struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Elo         int            `json:"elo"`
	KDRatio     float64        `json:"kd_ratio"`
	Wins        int            `json:"wins"`
	LangTag     string         `json:"lang_tag,omitempty"`
	Location    string         `json:"location,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreateTime  time.Time      `json:"create_time,omitempty"`
	UpdateTime  time.Time      `json:"update_time,omitempty"`
}

// AccountUpdate is a partial profile update. Nil fields are left untouched.
// Identity fields go to the account service in one call; stats fields are
// merged into the per-user stats record.
type AccountUpdate struct {
	Username    *string
	DisplayName *string
	AvatarURL   *string
	LangTag     *string
	Location    *string
	Timezone    *string

	Elo     *int
	KDRatio *float64
	Wins    *int
}

// apiUser is the identity service's user representation
type apiUser struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	LangTag     string    `json:"lang_tag,omitempty"`
	Location    string    `json:"location,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	CreateTime  time.Time `json:"create_time,omitempty"`
	UpdateTime  time.Time `json:"update_time,omitempty"`
}

type apiAccount struct {
	User  apiUser `json:"user"`
	Email string  `json:"email,omitempty"`
}

// playerStats is the shape of the per-user stats record value
type playerStats struct {
	Elo     *int     `json:"elo,omitempty"`
	KDRatio *float64 `json:"kdRatio,omitempty"`
	Wins    *int     `json:"wins,omitempty"`
}

// GetAccount fetches the identity fields for the current user and merges in
// the per-user stats record. A missing or unreadable stats record is not an
// error: defaults are used instead.
func (c *Client) GetAccount(ctx context.Context) (*Player, error) {
	var account apiAccount
	if err := c.do(ctx, http.MethodGet, "/v2/account", nil, nil, &account); err != nil {
		return nil, err
	}

	user := account.User
	player := &Player{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Elo:         DefaultElo,
		KDRatio:     DefaultKDRatio,
		Wins:        DefaultWins,
		LangTag:     user.LangTag,
		Location:    user.Location,
		Timezone:    user.Timezone,
		CreateTime:  user.CreateTime,
		UpdateTime:  user.UpdateTime,
	}
	if player.DisplayName == "" {
		player.DisplayName = user.Username
	}
	if user.Metadata != "" {
		if err := json.Unmarshal([]byte(user.Metadata), &player.Metadata); err != nil {
			c.logger.Warn("failed to parse account metadata", "error", err)
		}
	}

	stats, err := c.readStats(ctx, user.ID)
	if err != nil {
		c.logger.Warn("no player stats record, using defaults", "user_id", user.ID, "error", err)
		return player, nil
	}
	if stats != nil {
		if stats.Elo != nil {
			player.Elo = *stats.Elo
		}
		if stats.KDRatio != nil {
			player.KDRatio = *stats.KDRatio
		}
		if stats.Wins != nil {
			player.Wins = *stats.Wins
		}
	}

	return player, nil
}

// UpdateAccount applies a partial profile update. Identity fields, if any
// are set, are sent in a single account update call. Stats fields are
// read-modify-write merged into the stats record so unrelated stats survive.
func (c *Client) UpdateAccount(ctx context.Context, update AccountUpdate) error {
	session := c.Session()
	if !session.Authenticated() {
		return ErrNotAuthenticated
	}

	identity := map[string]string{}
	setIfPresent := func(field string, v *string) {
		if v != nil {
			identity[field] = *v
		}
	}
	setIfPresent("username", update.Username)
	setIfPresent("display_name", update.DisplayName)
	setIfPresent("avatar_url", update.AvatarURL)
	setIfPresent("lang_tag", update.LangTag)
	setIfPresent("location", update.Location)
	setIfPresent("timezone", update.Timezone)

	if len(identity) > 0 {
		if err := c.do(ctx, http.MethodPut, "/v2/account", nil, identity, nil); err != nil {
			return fmt.Errorf("updating account: %w", err)
		}
	}

	if update.Elo == nil && update.KDRatio == nil && update.Wins == nil {
		return nil
	}

	// Merge into the existing record rather than overwriting it. The
	// record value is kept as a generic map so fields this client does not
	// know about survive the rewrite.
	merged := map[string]any{}
	if raw, err := c.readStorageObject(ctx, statsCollection, statsKey, session.UserID); err == nil && raw != "" {
		if err := json.Unmarshal([]byte(raw), &merged); err != nil {
			c.logger.Warn("existing stats record is not valid JSON, starting fresh", "error", err)
			merged = map[string]any{}
		}
	}
	if update.Elo != nil {
		merged["elo"] = *update.Elo
	}
	if update.KDRatio != nil {
		merged["kdRatio"] = *update.KDRatio
	}
	if update.Wins != nil {
		merged["wins"] = *update.Wins
	}

	value, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding stats record: %w", err)
	}
	if err := c.writeStorageObject(ctx, statsCollection, statsKey, string(value), PermissionOwnerRead, PermissionOwnerWrite); err != nil {
		return fmt.Errorf("writing stats record: %w", err)
	}

	return nil
}

func (c *Client) readStats(ctx context.Context, userID string) (*playerStats, error) {
	raw, err := c.readStorageObject(ctx, statsCollection, statsKey, userID)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var stats playerStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("parsing stats record: %w", err)
	}
	return &stats, nil
}
