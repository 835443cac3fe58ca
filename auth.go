package gamerhub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// authResponse is the token pair returned by the authenticate endpoints
type authResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// AuthenticateDevice exchanges a device id for a session. When create is
// true an account is registered on first sight of the device id, optionally
// with the given username hint. The session is persisted before returning.
func (c *Client) AuthenticateDevice(ctx context.Context, deviceID string, create bool, username string) (*Session, error) {
	query := url.Values{"create": {strconv.FormatBool(create)}}
	if username != "" {
		query.Set("username", username)
	}

	body := map[string]string{"id": deviceID}
	return c.authenticate(ctx, "/v2/account/authenticate/device", query, body)
}

// AuthenticateEmail exchanges an email/password pair for a session. The
// session is persisted before returning.
func (c *Client) AuthenticateEmail(ctx context.Context, email, password string, create bool) (*Session, error) {
	query := url.Values{"create": {strconv.FormatBool(create)}}
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/v2/account/authenticate/email", query, body)
}

func (c *Client) authenticate(ctx context.Context, path string, query url.Values, body any) (*Session, error) {
	var resp authResponse
	if err := c.doServerKey(ctx, http.MethodPost, path, query, body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	session, err := SessionFromTokens(resp.Token, resp.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if err := c.setSession(session); err != nil {
		return nil, err
	}

	c.logger.Info("authenticated", "user_id", session.UserID, "username", session.Username)
	return session, nil
}

// Logout revokes the session server-side and clears the local session. The
// local session is cleared even when the revoke call fails: logout never
// leaves a locally-valid session behind.
func (c *Client) Logout(ctx context.Context) error {
	session := c.Session()
	if !session.Authenticated() {
		c.clearSession()
		return nil
	}

	defer c.clearSession()

	body := map[string]string{
		"token":         session.Token,
		"refresh_token": session.RefreshToken,
	}
	if err := c.do(ctx, http.MethodPost, "/v2/session/logout", nil, body, nil); err != nil {
		c.logger.Warn("server-side logout failed, local session cleared anyway", "error", err)
		return nil
	}

	c.logger.Info("logged out", "user_id", session.UserID)
	return nil
}
