package device

import "errors"

// Sentinel errors for poller lifecycle and access.
var (
	ErrAlreadyInitialized = errors.New("device: already initialized")
	ErrNotInitialized     = errors.New("device: not initialized")
	ErrAlreadyRunning     = errors.New("device: poll loop already running")
	ErrInvalidBodyIndex   = errors.New("device: invalid body index")
	ErrNoInstance         = errors.New("device: no instance factory")
)
