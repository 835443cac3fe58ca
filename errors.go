package gamerhub

import "errors"

// Client errors
var (
	ErrNotAuthenticated = errors.New("no active session")
	ErrSessionExpired   = errors.New("session expired or rejected by the server")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotConnected     = errors.New("no live realtime connection")
	ErrNotFound         = errors.New("not found")
	ErrInvalidMatchData = errors.New("match data must be a valid JSON document")
)

// IsAuthError checks if an error is an authentication type error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrAuthFailed)
}
