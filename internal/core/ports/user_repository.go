package ports

import (
	"context"
	"time"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

// UserRepository is the credential store. Every method is a single write or
// read against the persisted user record.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)

	// UpsertSession creates the record for ident if absent, refreshes its
	// profile fields and replaces the session secret digest, all in one
	// atomic write. The returned user reflects the state after the write.
	UpsertSession(ctx context.Context, ident *domain.ExternalIdentity, secretDigest string, now time.Time) (*domain.User, error)

	// ClearSession nulls the session secret and marks the user offline.
	// Returns domain.ErrUserNotFound when no record matches.
	ClearSession(ctx context.Context, id string) error

	// ClearSessionIf clears the session only while the stored digest still
	// equals secretDigest. It reports whether a record was changed.
	ClearSessionIf(ctx context.Context, id, secretDigest string) (bool, error)

	SetAdmin(ctx context.Context, id string, isAdmin bool) (*domain.User, error)
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
	Delete(ctx context.Context, id string) error
}
