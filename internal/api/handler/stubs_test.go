package handler

import (
	"context"

	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
)

type stubSessionService struct {
	loginFn    func(ctx context.Context, credential string) (*ports.LoginResult, error)
	logoutFn   func(ctx context.Context, token string) error
	validateFn func(ctx context.Context, token string) (*domain.Identity, error)
}

func (s *stubSessionService) Login(ctx context.Context, credential string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, credential)
}

func (s *stubSessionService) Logout(ctx context.Context, token string) error {
	return s.logoutFn(ctx, token)
}

func (s *stubSessionService) Validate(ctx context.Context, token string) (*domain.Identity, error) {
	return s.validateFn(ctx, token)
}

type stubAdminService struct {
	calls []string
	err   error
	user  *domain.User
	users []*domain.User
}

func (s *stubAdminService) ListUsers(_ context.Context, actor *domain.Identity) ([]*domain.User, error) {
	s.calls = append(s.calls, "list:"+actor.UserID)
	return s.users, s.err
}

func (s *stubAdminService) ForceLogout(_ context.Context, actor *domain.Identity, targetID string) error {
	s.calls = append(s.calls, "revoke:"+actor.UserID+":"+targetID)
	return s.err
}

func (s *stubAdminService) DeleteUser(_ context.Context, actor *domain.Identity, targetID string) error {
	s.calls = append(s.calls, "delete:"+actor.UserID+":"+targetID)
	return s.err
}

func (s *stubAdminService) GrantAdmin(_ context.Context, actor *domain.Identity, targetID string) (*domain.User, error) {
	s.calls = append(s.calls, "grant:"+actor.UserID+":"+targetID)
	return s.user, s.err
}

func (s *stubAdminService) RevokeAdmin(_ context.Context, actor *domain.Identity, targetID string) (*domain.User, error) {
	s.calls = append(s.calls, "ungrant:"+actor.UserID+":"+targetID)
	return s.user, s.err
}

type stubPresence struct {
	ports.PresenceService
	snapshot *ports.PresenceSnapshot
}

func (s *stubPresence) Snapshot(context.Context) (*ports.PresenceSnapshot, error) {
	return s.snapshot, nil
}
