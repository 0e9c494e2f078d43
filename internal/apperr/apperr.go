package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors of the service. Handlers map them to HTTP codes,
// everything below the transport layer speaks in these.
var (
	ErrAuthentication = errors.New("could not validate credentials")
	ErrAuthorization  = errors.New("insufficient privilege")
	ErrConflict       = errors.New("already exists")
	ErrNotFound       = errors.New("not found")
)

// Token failures are authentication failures, but the two kinds are kept
// apart so callers can word the response without comparing strings.
var (
	ErrTokenExpired   = fmt.Errorf("token expired: %w", ErrAuthentication)
	ErrTokenMalformed = fmt.Errorf("token malformed: %w", ErrAuthentication)
)
