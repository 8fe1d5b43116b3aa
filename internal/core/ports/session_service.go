package ports

import (
	"context"
	"time"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

// IdentityVerifier checks a third-party identity assertion.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*domain.ExternalIdentity, error)
}

// ReplayGuard remembers identity assertions that were already exchanged.
type ReplayGuard interface {
	// Claim records key for ttl and reports whether it was unseen.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// SessionService issues, validates and ends sessions.
type SessionService interface {
	Login(ctx context.Context, credential string) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	Validate(ctx context.Context, token string) (*domain.Identity, error)
}
