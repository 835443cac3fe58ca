// Package gamerhubtest provides an in-process fake of the GamerHub platform
// for tests and local development. It implements the API surface the SDK
// touches: authentication, accounts, per-user storage, leaderboard records
// ranked on a real redis sorted set (embedded via miniredis), group-backed
// lobbies and the realtime channel transport.
package gamerhubtest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	gamerhub "github.com/gamerhub/gamerhub-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	serverKey       = "testkey"
	sessionTTL      = time.Hour
	refreshTTL      = 24 * time.Hour
	defaultPageSize = 15
)

type user struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	LangTag     string
	Location    string
	Timezone    string
	Email       string
	Password    string
	CreateTime  time.Time
	UpdateTime  time.Time
}

type storedObject struct {
	Collection      string
	Key             string
	UserID          string
	Value           string
	Version         string
	PermissionRead  int
	PermissionWrite int
}

type group struct {
	ID          string
	Name        string
	Description string
	CreatorID   string
	Open        bool
	MaxCount    int
	Metadata    string
	CreateTime  time.Time
}

// Server is a fake GamerHub platform listening on a local port.
type Server struct {
	httpServer *httptest.Server
	mini       *miniredis.Miniredis
	rdb        *redis.Client
	signingKey []byte
	logger     *slog.Logger
	hub        *hub

	mu            sync.Mutex
	users         map[string]*user
	usersByDevice map[string]string
	usersByEmail  map[string]string
	storage       map[string]*storedObject
	groups        map[string]*group
	members       map[string]map[string]bool
	revoked       map[string]bool
	failLogout    bool
}

// NewServer starts a fake platform on a random local port.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mini, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("starting embedded redis: %w", err)
	}

	s := &Server{
		mini:          mini,
		rdb:           redis.NewClient(&redis.Options{Addr: mini.Addr()}),
		signingKey:    []byte(uuid.NewString()),
		logger:        logger,
		users:         make(map[string]*user),
		usersByDevice: make(map[string]string),
		usersByEmail:  make(map[string]string),
		storage:       make(map[string]*storedObject),
		groups:        make(map[string]*group),
		members:       make(map[string]map[string]bool),
		revoked:       make(map[string]bool),
	}
	s.hub = newHub(s, logger)
	s.httpServer = httptest.NewServer(s.router())
	return s, nil
}

// Close shuts the fake platform down.
func (s *Server) Close() {
	s.httpServer.Close()
	s.rdb.Close()
	s.mini.Close()
}

// URL returns the base URL of the fake platform.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// ClientConfig returns an SDK configuration pointed at this server.
func (s *Server) ClientConfig() *gamerhub.Config {
	u, _ := url.Parse(s.httpServer.URL)
	port, _ := strconv.Atoi(u.Port())
	return &gamerhub.Config{
		ServerKey: serverKey,
		Host:      u.Hostname(),
		Port:      port,
		Timeout:   5 * time.Second,
	}
}

// SetFailLogout makes the logout endpoint return a server error, for
// testing that clients still clear their local session.
func (s *Server) SetFailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// SeedLeaderboardRecord inserts a ranked record directly into the embedded
// redis sorted set backing a leaderboard.
func (s *Server) SeedLeaderboardRecord(leaderboardID, ownerID, username string, score int64) error {
	ctx := context.Background()
	if err := s.rdb.ZAdd(ctx, leaderboardKey(leaderboardID), redis.Z{
		Score:  float64(score),
		Member: ownerID,
	}).Err(); err != nil {
		return fmt.Errorf("seeding score: %w", err)
	}
	if err := s.rdb.HSet(ctx, playerInfoKey(ownerID), "username", username).Err(); err != nil {
		return fmt.Errorf("seeding player info: %w", err)
	}
	return nil
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)

	r.Route("/v2", func(r chi.Router) {
		r.Post("/account/authenticate/device", s.handleAuthenticateDevice)
		r.Post("/account/authenticate/email", s.handleAuthenticateEmail)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/session/logout", s.handleLogout)

			r.Get("/account", s.handleGetAccount)
			r.Put("/account", s.handleUpdateAccount)

			r.Post("/storage/read", s.handleStorageRead)
			r.Put("/storage", s.handleStorageWrite)

			r.Get("/leaderboard/{leaderboardID}/records", s.handleLeaderboardRecords)

			r.Route("/group", func(r chi.Router) {
				r.Post("/", s.handleCreateGroup)
				r.Get("/", s.handleListGroups)
				r.Get("/{groupID}", s.handleGetGroup)
				r.Post("/{groupID}/join", s.handleJoinGroup)
				r.Get("/{groupID}/members", s.handleGroupMembers)
			})
		})
	})

	return r
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error JSON response
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"error": msg, "code": status})
}

type tokenClaims struct {
	UserID   string            `json:"uid"`
	Username string            `json:"usn"`
	Vars     map[string]string `json:"vrs,omitempty"`
	jwt.RegisteredClaims
}

func (s *Server) mintToken(u *user, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID:   u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *Server) parseToken(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Method)
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

type sessionKeyType struct{}

var sessionKey = sessionKeyType{}

type sessionContext struct {
	user  *user
	token string
}

func contextWithUser(ctx context.Context, u *user, token string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionContext{user: u, token: token})
}

func userFromContext(ctx context.Context) (*user, string) {
	sc, _ := ctx.Value(sessionKey).(sessionContext)
	return sc.user, sc.token
}

// requireSession verifies the bearer token on platform API calls.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.parseToken(raw)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		s.mu.Lock()
		revoked := s.revoked[raw]
		u := s.users[claims.UserID]
		s.mu.Unlock()
		if revoked || u == nil {
			s.writeError(w, http.StatusUnauthorized, "session revoked")
			return
		}

		ctx := contextWithUser(r.Context(), u, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleAuthenticateDevice(w http.ResponseWriter, r *http.Request) {
	if !s.checkServerKey(w, r) {
		return
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		s.writeError(w, http.StatusBadRequest, "device id is required")
		return
	}

	create := r.URL.Query().Get("create") == "true"
	username := r.URL.Query().Get("username")

	s.mu.Lock()
	userID, ok := s.usersByDevice[body.ID]
	var u *user
	if ok {
		u = s.users[userID]
	} else {
		if !create {
			s.mu.Unlock()
			s.writeError(w, http.StatusUnauthorized, "unknown device id")
			return
		}
		u = s.newUserLocked(username)
		s.usersByDevice[body.ID] = u.ID
	}
	s.mu.Unlock()

	s.respondWithSession(w, u)
}

func (s *Server) handleAuthenticateEmail(w http.ResponseWriter, r *http.Request) {
	if !s.checkServerKey(w, r) {
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		s.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	create := r.URL.Query().Get("create") == "true"

	s.mu.Lock()
	userID, ok := s.usersByEmail[body.Email]
	var u *user
	if ok {
		u = s.users[userID]
		if u.Password != body.Password {
			s.mu.Unlock()
			s.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
	} else {
		if !create {
			s.mu.Unlock()
			s.writeError(w, http.StatusUnauthorized, "unknown account")
			return
		}
		name := body.Email[:strings.IndexByte(body.Email+"@", '@')]
		u = s.newUserLocked(name)
		u.Email = body.Email
		u.Password = body.Password
		s.usersByEmail[body.Email] = u.ID
	}
	s.mu.Unlock()

	s.respondWithSession(w, u)
}

func (s *Server) newUserLocked(username string) *user {
	id := uuid.NewString()
	if username == "" {
		username = "user-" + id[:8]
	}
	u := &user{
		ID:         id,
		Username:   username,
		CreateTime: time.Now(),
		UpdateTime: time.Now(),
	}
	s.users[id] = u
	return u
}

func (s *Server) respondWithSession(w http.ResponseWriter, u *user) {
	token, err := s.mintToken(u, sessionTTL)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "minting token")
		return
	}
	refresh, err := s.mintToken(u, refreshTTL)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "minting refresh token")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"token":         token,
		"refresh_token": refresh,
	})
}

func (s *Server) checkServerKey(w http.ResponseWriter, r *http.Request) bool {
	key, _, ok := r.BasicAuth()
	if !ok || key != serverKey {
		s.writeError(w, http.StatusUnauthorized, "invalid server key")
		return false
	}
	return true
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.failLogout
	s.mu.Unlock()
	if fail {
		s.writeError(w, http.StatusInternalServerError, "logout unavailable")
		return
	}

	var body struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	_, bearer := userFromContext(r.Context())

	s.mu.Lock()
	s.revoked[bearer] = true
	if body.Token != "" {
		s.revoked[body.Token] = true
	}
	if body.RefreshToken != "" {
		s.revoked[body.RefreshToken] = true
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func userJSON(u *user) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"avatar_url":   u.AvatarURL,
		"lang_tag":     u.LangTag,
		"location":     u.Location,
		"timezone":     u.Timezone,
		"create_time":  u.CreateTime,
		"update_time":  u.UpdateTime,
	}
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	s.mu.Lock()
	payload := map[string]any{"user": userJSON(u), "email": u.Email}
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	if v, ok := body["username"]; ok && v != "" {
		u.Username = v
	}
	if v, ok := body["display_name"]; ok {
		u.DisplayName = v
	}
	if v, ok := body["avatar_url"]; ok {
		u.AvatarURL = v
	}
	if v, ok := body["lang_tag"]; ok {
		u.LangTag = v
	}
	if v, ok := body["location"]; ok {
		u.Location = v
	}
	if v, ok := body["timezone"]; ok {
		u.Timezone = v
	}
	u.UpdateTime = time.Now()
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func storageMapKey(collection, key, userID string) string {
	return collection + "/" + key + "/" + userID
}

func (s *Server) handleStorageRead(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())

	var body struct {
		ObjectIDs []struct {
			Collection string `json:"collection"`
			Key        string `json:"key"`
			UserID     string `json:"user_id"`
		} `json:"object_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	objects := []map[string]any{}
	s.mu.Lock()
	for _, id := range body.ObjectIDs {
		owner := id.UserID
		if owner == "" {
			owner = u.ID
		}
		obj, ok := s.storage[storageMapKey(id.Collection, id.Key, owner)]
		if !ok {
			continue
		}
		// Owner-read records are hidden from everyone but their owner.
		if obj.UserID != u.ID && obj.PermissionRead != gamerhub.PermissionPublic {
			continue
		}
		objects = append(objects, map[string]any{
			"collection":       obj.Collection,
			"key":              obj.Key,
			"user_id":          obj.UserID,
			"value":            obj.Value,
			"version":          obj.Version,
			"permission_read":  obj.PermissionRead,
			"permission_write": obj.PermissionWrite,
		})
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{"objects": objects})
}

func (s *Server) handleStorageWrite(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())

	var body struct {
		Objects []struct {
			Collection      string `json:"collection"`
			Key             string `json:"key"`
			Value           string `json:"value"`
			PermissionRead  int    `json:"permission_read"`
			PermissionWrite int    `json:"permission_write"`
		} `json:"objects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	for _, obj := range body.Objects {
		key := storageMapKey(obj.Collection, obj.Key, u.ID)
		if existing, ok := s.storage[key]; ok && existing.PermissionWrite == gamerhub.PermissionNoWrite {
			s.mu.Unlock()
			s.writeError(w, http.StatusBadRequest, "record is not writable")
			return
		}
		s.storage[key] = &storedObject{
			Collection:      obj.Collection,
			Key:             obj.Key,
			UserID:          u.ID,
			Value:           obj.Value,
			Version:         uuid.NewString(),
			PermissionRead:  obj.PermissionRead,
			PermissionWrite: obj.PermissionWrite,
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func leaderboardKey(leaderboardID string) string {
	return fmt.Sprintf("leaderboard:%s:records", leaderboardID)
}

func playerInfoKey(playerID string) string {
	return fmt.Sprintf("player:%s:info", playerID)
}

func (s *Server) handleLeaderboardRecords(w http.ResponseWriter, r *http.Request) {
	leaderboardID := chi.URLParam(r, "leaderboardID")

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	offset := 0
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		n, err := decodeCursor(cursor)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		offset = n
	}

	ctx := r.Context()
	key := leaderboardKey(leaderboardID)

	total, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "reading leaderboard")
		return
	}

	results, err := s.rdb.ZRevRangeWithScores(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "reading leaderboard")
		return
	}

	records := make([]map[string]any, len(results))
	for i, result := range results {
		ownerID := result.Member.(string)
		username, _ := s.rdb.HGet(ctx, playerInfoKey(ownerID), "username").Result()
		records[i] = map[string]any{
			"rank":     int64(offset + i + 1),
			"owner_id": ownerID,
			"username": username,
			"score":    int64(result.Score),
		}
	}

	nextCursor := ""
	if int64(offset+len(results)) < total {
		nextCursor = encodeCursor(offset + len(results))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"records":     records,
		"next_cursor": nextCursor,
	})
}

func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	data, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

func (s *Server) groupJSON(g *group) map[string]any {
	return map[string]any{
		"id":          g.ID,
		"name":        g.Name,
		"description": g.Description,
		"creator_id":  g.CreatorID,
		"open":        g.Open,
		"max_count":   g.MaxCount,
		"edge_count":  len(s.members[g.ID]),
		"metadata":    g.Metadata,
		"create_time": g.CreateTime,
	}
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Open        bool   `json:"open"`
		MaxCount    int    `json:"max_count"`
		Metadata    string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		s.writeError(w, http.StatusBadRequest, "group name is required")
		return
	}

	g := &group{
		ID:          uuid.NewString(),
		Name:        body.Name,
		Description: body.Description,
		CreatorID:   u.ID,
		Open:        body.Open,
		MaxCount:    body.MaxCount,
		Metadata:    body.Metadata,
		CreateTime:  time.Now(),
	}

	s.mu.Lock()
	s.groups[g.ID] = g
	s.members[g.ID] = map[string]bool{u.ID: true}
	payload := s.groupJSON(g)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	game := r.URL.Query().Get("game")
	openOnly := r.URL.Query().Get("open") == "true"

	s.mu.Lock()
	groups := []map[string]any{}
	for _, g := range s.groups {
		if openOnly && !g.Open {
			continue
		}
		if game != "" {
			var meta struct {
				Game string `json:"game"`
			}
			json.Unmarshal([]byte(g.Metadata), &meta)
			if meta.Game != game {
				continue
			}
		}
		groups = append(groups, s.groupJSON(g))
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	s.mu.Lock()
	g, ok := s.groups[groupID]
	var payload map[string]any
	if ok {
		payload = s.groupJSON(g)
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "group not found")
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	groupID := chi.URLParam(r, "groupID")

	s.mu.Lock()
	g, ok := s.groups[groupID]
	if !ok {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if g.MaxCount > 0 && len(s.members[groupID]) >= g.MaxCount && !s.members[groupID][u.ID] {
		s.mu.Unlock()
		s.writeError(w, http.StatusBadRequest, "group is full")
		return
	}
	s.members[groupID][u.ID] = true
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	s.mu.Lock()
	memberIDs, ok := s.members[groupID]
	users := []map[string]any{}
	if ok {
		for id := range memberIDs {
			if u := s.users[id]; u != nil {
				users = append(users, userJSON(u))
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "group not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
