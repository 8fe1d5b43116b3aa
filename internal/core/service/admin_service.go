package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
	"github.com/dhammastream/backoffice/internal/pkg/metrics"
)

// AdminService implements the administrative revocation path. Each operation
// commits its write to the credential store before notifying the live roster,
// so the authentication path sees the change no later than any peer does.
type AdminService struct {
	users    ports.UserRepository
	presence ports.PresenceNotifier
	log      zerolog.Logger
}

var _ ports.AdminService = (*AdminService)(nil)

func NewAdminService(users ports.UserRepository, presence ports.PresenceNotifier, log zerolog.Logger) *AdminService {
	return &AdminService{users: users, presence: presence, log: log}
}

// ListUsers returns every persisted account.
func (s *AdminService) ListUsers(ctx context.Context, actor *domain.Identity) ([]*domain.User, error) {
	if err := domain.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// ForceLogout voids the target's session. Their next request fails with
// domain.ErrSessionInvalidated whatever the state of their realtime link.
func (s *AdminService) ForceLogout(ctx context.Context, actor *domain.Identity, targetID string) error {
	if err := domain.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.users.ClearSession(ctx, targetID); err != nil {
		return fmt.Errorf("force logout: %w", err)
	}
	metrics.RevocationsTotal.WithLabelValues("force_logout").Inc()
	s.log.Info().Str("actor_id", actor.UserID).Str("target_id", targetID).Msg("session revoked by admin")

	return s.presence.SessionRevoked(ctx, targetID)
}

// DeleteUser destroys the target account. Administrators cannot delete
// themselves.
func (s *AdminService) DeleteUser(ctx context.Context, actor *domain.Identity, targetID string) error {
	if err := domain.RequireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == targetID {
		return domain.Forbidden("cannot delete your own account")
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	metrics.RevocationsTotal.WithLabelValues("delete").Inc()
	s.log.Info().Str("actor_id", actor.UserID).Str("target_id", targetID).Msg("account deleted by admin")

	return s.presence.AccountDeleted(ctx, targetID)
}

// GrantAdmin gives the target administrative rights, effective on their next
// request.
func (s *AdminService) GrantAdmin(ctx context.Context, actor *domain.Identity, targetID string) (*domain.User, error) {
	return s.setAdmin(ctx, actor, targetID, true)
}

// RevokeAdmin removes the target's administrative rights, effective on their
// next request.
func (s *AdminService) RevokeAdmin(ctx context.Context, actor *domain.Identity, targetID string) (*domain.User, error) {
	return s.setAdmin(ctx, actor, targetID, false)
}

func (s *AdminService) setAdmin(ctx context.Context, actor *domain.Identity, targetID string, isAdmin bool) (*domain.User, error) {
	if err := domain.RequireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.SetAdmin(ctx, targetID, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("set admin: %w", err)
	}
	s.log.Info().Str("actor_id", actor.UserID).Str("target_id", targetID).Bool("is_admin", isAdmin).Msg("admin rights updated")

	if err := s.presence.AdminRightsChanged(ctx, targetID, isAdmin); err != nil {
		return nil, err
	}
	return user, nil
}
