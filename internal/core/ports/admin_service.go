package ports

import (
	"context"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

// AdminService is the administrative revocation surface. Every method
// requires actor to be an administrator.
type AdminService interface {
	ListUsers(ctx context.Context, actor *domain.Identity) ([]*domain.User, error)
	ForceLogout(ctx context.Context, actor *domain.Identity, targetID string) error
	DeleteUser(ctx context.Context, actor *domain.Identity, targetID string) error
	GrantAdmin(ctx context.Context, actor *domain.Identity, targetID string) (*domain.User, error)
	RevokeAdmin(ctx context.Context, actor *domain.Identity, targetID string) (*domain.User, error)
}
