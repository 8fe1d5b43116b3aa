package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub repository
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	byGoogle map[string]string
	seq      int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users:    make(map[string]*domain.User),
		byGoogle: make(map[string]string),
	}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.SessionSecret != nil {
		s := *u.SessionSecret
		clone.SessionSecret = &s
	}
	return &clone
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubUserRepo) UpsertSession(_ context.Context, ident *domain.ExternalIdentity, secretDigest string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byGoogle[ident.Subject]
	if !ok {
		r.seq++
		id = fmt.Sprintf("user-%d", r.seq)
		r.byGoogle[ident.Subject] = id
		r.users[id] = &domain.User{ID: id, GoogleID: ident.Subject, CreatedAt: now}
	}
	u := r.users[id]
	u.DisplayName = ident.Name
	u.Email = ident.Email
	u.AvatarURL = ident.Picture
	d := secretDigest
	u.SessionSecret = &d
	u.UpdatedAt = now
	return cloneUser(u), nil
}

func (r *stubUserRepo) ClearSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.SessionSecret = nil
	u.IsOnline = false
	return nil
}

func (r *stubUserRepo) ClearSessionIf(_ context.Context, id, secretDigest string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.SessionSecret == nil || *u.SessionSecret != secretDigest {
		return false, nil
	}
	u.SessionSecret = nil
	u.IsOnline = false
	return true, nil
}

func (r *stubUserRepo) SetAdmin(_ context.Context, id string, isAdmin bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.IsAdmin = isAdmin
	return cloneUser(u), nil
}

func (r *stubUserRepo) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsOnline = online
	u.LastActiveAt = at
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byGoogle, u.GoogleID)
	delete(r.users, id)
	return nil
}

// ---------------------------------------------------------------------------
// Identity, replay guard and presence stubs
// ---------------------------------------------------------------------------

// stubVerifier accepts credentials of the form "google:<subject>[:<nonce>]".
type stubVerifier struct {
	err error
}

func (v *stubVerifier) Verify(_ context.Context, credential string) (*domain.ExternalIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	parts := strings.Split(credential, ":")
	if len(parts) < 2 || parts[0] != "google" || parts[1] == "" {
		return nil, fmt.Errorf("bad credential")
	}
	subject := parts[1]
	return &domain.ExternalIdentity{
		Subject:   subject,
		Email:     subject + "@example.org",
		Name:      "Test " + subject,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

type stubGuard struct {
	seen map[string]bool
	err  error
}

func (g *stubGuard) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen == nil {
		g.seen = make(map[string]bool)
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

type stubNotifier struct {
	revoked []string
	deleted []string
	rights  []domain.AdminRights
	err     error
}

func (n *stubNotifier) SessionRevoked(_ context.Context, userID string) error {
	n.revoked = append(n.revoked, userID)
	return n.err
}

func (n *stubNotifier) AccountDeleted(_ context.Context, userID string) error {
	n.deleted = append(n.deleted, userID)
	return n.err
}

func (n *stubNotifier) AdminRightsChanged(_ context.Context, userID string, isAdmin bool) error {
	n.rights = append(n.rights, domain.AdminRights{UserID: userID, IsAdmin: isAdmin})
	return n.err
}
