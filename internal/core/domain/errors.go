package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated covers missing, malformed, expired or unverifiable
// credentials. Everything that should make the client sign in again wraps it,
// except ErrSessionInvalidated which is rendered identically at the edge.
var ErrUnauthenticated = errors.New("unauthenticated")

var (
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", ErrUnauthenticated)
	ErrUnknownSession    = fmt.Errorf("%w: unknown session", ErrUnauthenticated)
)

// ErrSessionInvalidated means the token was well formed but its secret is no
// longer the account's live one: the account signed in elsewhere or out.
var ErrSessionInvalidated = errors.New("session invalidated: elsewhere login or logout")

var ErrForbidden = errors.New("access forbidden")

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// ErrBroadcastUnavailable is returned when presence events are emitted before
// the realtime transport has been attached. It is a bootstrap ordering bug.
var ErrBroadcastUnavailable = errors.New("presence broadcaster not initialized")

// Forbidden returns an ErrForbidden carrying a human readable reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}
