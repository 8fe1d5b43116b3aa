package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
	"github.com/dhammastream/backoffice/internal/pkg/metrics"
)

// minReplayWindow bounds how long a consumed assertion is remembered when its
// own expiry is already close or missing.
const minReplayWindow = time.Minute

// SessionService implements login, logout and per-request validation under
// the single-active-session policy: every login rotates the account's secret,
// which voids every token minted before it.
type SessionService struct {
	users    ports.UserRepository
	verifier ports.IdentityVerifier
	guard    ports.ReplayGuard
	tokens   *TokenIssuer
	presence ports.PresenceNotifier
	log      zerolog.Logger
	now      func() time.Time
}

var _ ports.SessionService = (*SessionService)(nil)

func NewSessionService(
	users ports.UserRepository,
	verifier ports.IdentityVerifier,
	guard ports.ReplayGuard,
	tokens *TokenIssuer,
	presence ports.PresenceNotifier,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		users:    users,
		verifier: verifier,
		guard:    guard,
		tokens:   tokens,
		presence: presence,
		log:      log,
		now:      time.Now,
	}
}

// Login exchanges a third-party identity assertion for a session token.
func (s *SessionService) Login(ctx context.Context, credential string) (*ports.LoginResult, error) {
	if credential == "" {
		metrics.LoginsTotal.WithLabelValues("invalid_credential").Inc()
		return nil, domain.ErrInvalidCredential
	}

	ident, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("invalid_credential").Inc()
		s.log.Debug().Err(err).Msg("identity assertion rejected")
		return nil, domain.ErrInvalidCredential
	}

	// 1. Replay check. Best effort: a guard outage must not block sign-in.
	ttl := ident.ExpiresAt.Sub(s.now())
	if ttl < minReplayWindow {
		ttl = minReplayWindow
	}
	fresh, err := s.guard.Claim(ctx, digest(credential), ttl)
	if err != nil {
		s.log.Warn().Err(err).Str("subject", ident.Subject).Msg("replay guard unavailable, continuing")
	} else if !fresh {
		metrics.LoginsTotal.WithLabelValues("replayed").Inc()
		return nil, fmt.Errorf("%w: credential already used", domain.ErrInvalidCredential)
	}

	// 2. Rotate the secret. This single write is the invalidation point for
	//    every token previously issued to the account.
	secret, err := newSecret()
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	user, err := s.users.UpsertSession(ctx, ident, digest(secret), s.now().UTC())
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	// 3. Mint the token.
	token, expiresAt, err := s.tokens.Issue(user, secret)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("user_id", user.ID).Bool("is_admin", user.IsAdmin).Msg("session issued")

	return &ports.LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout ends the caller's session and closes the account's realtime
// connections. It only clears the stored secret while it still belongs to
// token, so a replaced device cannot sign out its successor. It is idempotent
// and succeeds for missing or stale tokens.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.ParseIgnoringExpiry(token)
	if err != nil {
		return nil
	}

	cleared, err := s.users.ClearSessionIf(ctx, claims.Subject, digest(claims.SessionSecret))
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if !cleared {
		return nil
	}
	metrics.RevocationsTotal.WithLabelValues("logout").Inc()
	s.log.Info().Str("user_id", claims.Subject).Msg("session ended")

	// Eviction is best effort once the secret is cleared.
	if err := s.presence.SessionRevoked(ctx, claims.Subject); err != nil {
		s.log.Warn().Err(err).Str("user_id", claims.Subject).Msg("evict connections after logout")
	}
	return nil
}

// Validate authenticates a bearer token against the live user record. The
// returned admin flag is read from the record, never from the token.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		metrics.SessionValidationsTotal.WithLabelValues("unauthenticated").Inc()
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.SessionValidationsTotal.WithLabelValues("unauthenticated").Inc()
			return nil, domain.ErrUnknownSession
		}
		metrics.SessionValidationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("validate session: %w", err)
	}

	if !secretMatches(claims.SessionSecret, user.SessionSecret) {
		metrics.SessionValidationsTotal.WithLabelValues("invalidated").Inc()
		return nil, domain.ErrSessionInvalidated
	}

	metrics.SessionValidationsTotal.WithLabelValues("ok").Inc()
	return &domain.Identity{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin}, nil
}
