package schema

import "errors"

var (
	// ErrSessionNotFound indicates no session is registered for a connection.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed indicates the session output path is gone.
	ErrSessionClosed = errors.New("session closed")
	// ErrInviteNotConfigured indicates the invite service has no credentials.
	ErrInviteNotConfigured = errors.New("invite service not configured")
	// ErrInvalidConfig indicates a configuration value failed validation.
	ErrInvalidConfig = errors.New("invalid config")
)
