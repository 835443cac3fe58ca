package gamerhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
)

// SessionStore persists the authenticated session across restarts. After
// every Persist or Clear the stored state matches what was passed in; there
// are no partial writes.
type SessionStore interface {
	// Restore returns the persisted session, or nil if none is stored.
	Restore() (*Session, error)
	// Persist overwrites the stored session entirely.
	Persist(session *Session) error
	// Clear removes the stored session; a subsequent Restore returns nil.
	Clear() error
}

// Client talks to the GamerHub platform API. All platform calls go through a
// single Client which owns the current session and, lazily, one shared
// realtime socket.
type Client struct {
	config     *Config
	store      SessionStore
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.RWMutex
	session *Session

	socketOnce sync.Once
	socket     *Socket
}

// NewClient creates a platform client and restores any persisted session
// from the store.
func NewClient(cfg *Config, store SessionStore, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config:     cfg,
		store:      store,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}

	if store != nil {
		session, err := store.Restore()
		if err != nil {
			return nil, fmt.Errorf("restoring session: %w", err)
		}
		if session.Authenticated() {
			c.session = session
			logger.Info("restored session", "user_id", session.UserID, "username", session.Username)
		}
	}

	return c, nil
}

// Session returns the current session, or nil if unauthenticated.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Socket returns the shared realtime socket for this client. The connection
// itself is not dialed until the first channel join.
func (c *Client) Socket() *Socket {
	c.socketOnce.Do(func() {
		c.socket = newSocket(c)
	})
	return c.socket
}

// setSession replaces the in-memory session and persists it.
func (c *Client) setSession(session *Session) error {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Persist(session); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// clearSession drops the in-memory session and the persisted copy.
func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear persisted session", "error", err)
	}
}

// apiError is the error body returned by the platform
type apiError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"error"`
}

// do performs a platform API call with the session bearer token. A 401
// response invalidates the local session: the store is cleared and
// ErrSessionExpired is returned.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	session := c.Session()
	if !session.Authenticated() {
		return ErrNotAuthenticated
	}

	resp, err := c.send(ctx, method, path, query, body, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+session.Token)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp.Body)
		c.logger.Warn("session rejected by server, clearing local session", "user_id", session.UserID)
		c.clearSession()
		return ErrSessionExpired
	}
	return c.decodeResponse(resp, path, out)
}

// doServerKey performs a platform API call authenticated with the server key
// rather than a session, as the authenticate endpoints require.
func (c *Client) doServerKey(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body, func(req *http.Request) {
		req.SetBasicAuth(c.config.ServerKey, "")
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decodeResponse(resp, path, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, auth func(*http.Request)) (*http.Response, error) {
	u := c.config.BaseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) decodeResponse(resp *http.Response, path string, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := readAPIError(resp)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %s: %w", path, apiErr, ErrNotFound)
		}
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, apiErr)
	}

	if out == nil {
		drain(resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return string(data)
}

func drain(r io.Reader) {
	io.Copy(io.Discard, io.LimitReader(r, 4096))
}
