package gamerhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Lobby models a joinable pre-game grouping, backed by the platform's group
// primitive. PlayerCount changes only through join/leave calls against the
// platform, never by local recomputation.
type Lobby struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	IsPublic    bool   `json:"is_public"`
	Game        string `json:"game"`
	HostID      string `json:"host_id,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
}

// LobbyDetails is a lobby plus its current member profiles.
type LobbyDetails struct {
	Lobby
	Players []Player `json:"players"`
}

// LobbyFilter narrows a lobby listing. Zero-value fields are ignored.
type LobbyFilter struct {
	Game       string
	PublicOnly bool
}

// apiGroup is the grouping service's representation
type apiGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatorID   string `json:"creator_id"`
	Open        bool   `json:"open"`
	MaxCount    int    `json:"max_count"`
	EdgeCount   int    `json:"edge_count"`
	Metadata    string `json:"metadata,omitempty"`
}

type groupMetadata struct {
	Game string `json:"game,omitempty"`
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Open        bool   `json:"open"`
	MaxCount    int    `json:"max_count"`
	Metadata    string `json:"metadata,omitempty"`
}

type listGroupsResponse struct {
	Groups []apiGroup `json:"groups"`
}

type groupMembersResponse struct {
	Users []apiUser `json:"users"`
}

// CreateLobby creates a lobby backed by a new group. The creating user
// becomes the host and counts as the first member.
func (c *Client) CreateLobby(ctx context.Context, name, game string, isPublic bool, maxPlayers int) (*Lobby, error) {
	if name == "" || game == "" {
		return nil, fmt.Errorf("lobby name and game are required")
	}
	if maxPlayers <= 0 {
		return nil, fmt.Errorf("max players must be positive")
	}

	metadata, err := json.Marshal(groupMetadata{Game: game})
	if err != nil {
		return nil, fmt.Errorf("encoding lobby metadata: %w", err)
	}

	req := createGroupRequest{
		Name:        name,
		Description: "Lobby for " + game,
		Open:        isPublic,
		MaxCount:    maxPlayers,
		Metadata:    string(metadata),
	}

	var group apiGroup
	if err := c.do(ctx, http.MethodPost, "/v2/group", nil, req, &group); err != nil {
		return nil, fmt.Errorf("creating lobby: %w", err)
	}

	lobby := lobbyFromGroup(group)
	c.logger.Info("created lobby", "lobby_id", lobby.ID, "name", lobby.Name, "game", lobby.Game)
	return &lobby, nil
}

// ListLobbies returns lobbies matching the filter, or all lobbies when the
// filter is nil.
func (c *Client) ListLobbies(ctx context.Context, filter *LobbyFilter) ([]Lobby, error) {
	query := url.Values{}
	if filter != nil {
		if filter.Game != "" {
			query.Set("game", filter.Game)
		}
		if filter.PublicOnly {
			query.Set("open", strconv.FormatBool(true))
		}
	}

	var resp listGroupsResponse
	if err := c.do(ctx, http.MethodGet, "/v2/group", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing lobbies: %w", err)
	}

	lobbies := make([]Lobby, len(resp.Groups))
	for i, group := range resp.Groups {
		lobbies[i] = lobbyFromGroup(group)
	}
	return lobbies, nil
}

// JoinLobby adds the current user to a lobby.
func (c *Client) JoinLobby(ctx context.Context, lobbyID string) error {
	if lobbyID == "" {
		return fmt.Errorf("lobby id is required")
	}
	path := "/v2/group/" + url.PathEscape(lobbyID) + "/join"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, nil); err != nil {
		return fmt.Errorf("joining lobby: %w", err)
	}
	return nil
}

// GetLobbyDetails returns a lobby along with its current members.
func (c *Client) GetLobbyDetails(ctx context.Context, lobbyID string) (*LobbyDetails, error) {
	if lobbyID == "" {
		return nil, fmt.Errorf("lobby id is required")
	}

	var group apiGroup
	path := "/v2/group/" + url.PathEscape(lobbyID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &group); err != nil {
		return nil, err
	}

	var members groupMembersResponse
	if err := c.do(ctx, http.MethodGet, path+"/members", nil, nil, &members); err != nil {
		return nil, err
	}

	details := &LobbyDetails{Lobby: lobbyFromGroup(group)}
	details.Players = make([]Player, len(members.Users))
	for i, user := range members.Users {
		details.Players[i] = Player{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
			Elo:         DefaultElo,
			KDRatio:     DefaultKDRatio,
			Wins:        DefaultWins,
		}
	}
	return details, nil
}

func lobbyFromGroup(group apiGroup) Lobby {
	lobby := Lobby{
		ID:          group.ID,
		Name:        group.Name,
		PlayerCount: group.EdgeCount,
		MaxPlayers:  group.MaxCount,
		IsPublic:    group.Open,
		HostID:      group.CreatorID,
		GroupID:     group.ID,
	}
	if group.Metadata != "" {
		var meta groupMetadata
		if err := json.Unmarshal([]byte(group.Metadata), &meta); err == nil {
			lobby.Game = meta.Game
		}
	}
	return lobby
}
