package ports

import (
	"context"
	"time"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

// PresenceTransport delivers realtime frames to open connections. Calls must
// not block on slow peers.
type PresenceTransport interface {
	Broadcast(event string, payload any)
	SendTo(connID, event string, payload any) error
	Close(connID string)
}

// PresenceStore is the write-through target for the liveness hints.
type PresenceStore interface {
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
}

// PresenceNotifier is how administrative actions reach the live roster.
type PresenceNotifier interface {
	SessionRevoked(ctx context.Context, userID string) error
	AccountDeleted(ctx context.Context, userID string) error
	AdminRightsChanged(ctx context.Context, userID string, isAdmin bool) error
}

// PresenceSnapshot is a point-in-time view of the live roster.
type PresenceSnapshot struct {
	Online      []string          `json:"online"`
	Activities  []domain.Activity `json:"activities"`
	Connections int               `json:"connections"`
}

// PresenceService is the realtime side of the presence registry.
type PresenceService interface {
	PresenceNotifier
	Connect(ctx context.Context, connID string) error
	Announce(ctx context.Context, connID, userID string) error
	Activity(ctx context.Context, userID, label string) error
	Disconnect(ctx context.Context, connID string) error
	Snapshot(ctx context.Context) (*PresenceSnapshot, error)
}

// Executor runs tasks one at a time on a single scheduling context.
type Executor interface {
	Do(ctx context.Context, name string, fn func(ctx context.Context) error) error
}
