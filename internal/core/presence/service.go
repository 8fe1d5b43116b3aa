// Package presence keeps the live roster of who is connected and what they
// are doing, and fans changes out to every open realtime connection.
//
// All registry mutations run on one executor, so the registry itself needs no
// locking. The roster is a best-effort mirror: authentication never reads it.
// State lives in this process only; running more than one server process
// would need the registry moved to a shared store.
package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
	"github.com/dhammastream/backoffice/internal/pkg/metrics"
)

const persistTimeout = 3 * time.Second

// Service is the process-wide presence state. Construct one at bootstrap and
// pass it to both the REST and realtime handlers.
type Service struct {
	registry    *Registry
	broadcaster Broadcaster
	store       ports.PresenceStore
	exec        ports.Executor
	log         zerolog.Logger
	now         func() time.Time
}

var _ ports.PresenceService = (*Service)(nil)

// NewService returns a Service whose broadcaster is not yet attached; call
// Attach once the realtime transport exists.
func NewService(store ports.PresenceStore, exec ports.Executor, log zerolog.Logger) *Service {
	return &Service{
		registry: NewRegistry(),
		store:    store,
		exec:     exec,
		log:      log,
		now:      time.Now,
	}
}

// Attach initializes the broadcaster with the realtime transport.
func (s *Service) Attach(t ports.PresenceTransport) error {
	return s.broadcaster.Init(t)
}

// Connect registers a connection that has not announced its identity yet.
func (s *Service) Connect(ctx context.Context, connID string) error {
	return s.exec.Do(ctx, "presence.connect", func(context.Context) error {
		s.registry.Connect(connID, s.now())
		s.observe()
		return nil
	})
}

// Announce binds connID to userID, marks the account online and sends the
// newcomer a roster and activity snapshot.
func (s *Service) Announce(ctx context.Context, connID, userID string) error {
	return s.exec.Do(ctx, "presence.announce", func(ctx context.Context) error {
		now := s.now()
		first, left := s.registry.Announce(connID, userID, now)
		s.observe()
		if left != "" {
			s.persist(ctx, left, false, now)
			if err := s.broadcaster.Broadcast(domain.EventPeerOffline, left); err != nil {
				return err
			}
		}
		s.persist(ctx, userID, true, now)

		if first {
			if err := s.broadcaster.Broadcast(domain.EventPeerOnline, userID); err != nil {
				return err
			}
		}
		if err := s.broadcaster.SendTo(connID, domain.EventRosterSnapshot, s.registry.Online()); err != nil {
			return err
		}
		return s.broadcaster.SendTo(connID, domain.EventActivitySnapshot, s.registry.Activities())
	})
}

// Activity updates what userID is doing and tells every peer.
func (s *Service) Activity(ctx context.Context, userID, label string) error {
	return s.exec.Do(ctx, "presence.activity", func(context.Context) error {
		if !s.registry.SetActivity(userID, label) {
			s.log.Debug().Str("user_id", userID).Msg("activity for offline user ignored")
			return nil
		}
		return s.broadcaster.Broadcast(domain.EventActivityChanged, domain.Activity{UserID: userID, Activity: label})
	})
}

// Disconnect forgets connID; when it was the account's last connection the
// account goes offline.
func (s *Service) Disconnect(ctx context.Context, connID string) error {
	return s.exec.Do(ctx, "presence.disconnect", func(ctx context.Context) error {
		userID, last := s.registry.Disconnect(connID)
		s.observe()
		if !last {
			return nil
		}
		s.persist(ctx, userID, false, s.now())
		return s.broadcaster.Broadcast(domain.EventPeerOffline, userID)
	})
}

// SessionRevoked closes every connection of userID. Each close comes back as
// a Disconnect from the transport.
func (s *Service) SessionRevoked(ctx context.Context, userID string) error {
	return s.exec.Do(ctx, "presence.revoke", func(context.Context) error {
		return s.evict(userID)
	})
}

// AccountDeleted tells every peer to drop userID and closes its connections.
func (s *Service) AccountDeleted(ctx context.Context, userID string) error {
	return s.exec.Do(ctx, "presence.deleted", func(context.Context) error {
		if err := s.broadcaster.Broadcast(domain.EventAccountDeleted, userID); err != nil {
			return err
		}
		return s.evict(userID)
	})
}

// AdminRightsChanged tells every peer about a flipped admin flag.
func (s *Service) AdminRightsChanged(ctx context.Context, userID string, isAdmin bool) error {
	return s.exec.Do(ctx, "presence.admin", func(context.Context) error {
		return s.broadcaster.Broadcast(domain.EventAdminRightsChanged, domain.AdminRights{UserID: userID, IsAdmin: isAdmin})
	})
}

// Snapshot returns the current roster.
func (s *Service) Snapshot(ctx context.Context) (*ports.PresenceSnapshot, error) {
	var snap *ports.PresenceSnapshot
	err := s.exec.Do(ctx, "presence.snapshot", func(context.Context) error {
		snap = &ports.PresenceSnapshot{
			Online:      s.registry.Online(),
			Activities:  s.registry.Activities(),
			Connections: s.registry.Len(),
		}
		return nil
	})
	return snap, err
}

func (s *Service) evict(userID string) error {
	for _, connID := range s.registry.ConnectionsOf(userID) {
		if err := s.broadcaster.Close(connID); err != nil {
			return err
		}
	}
	return nil
}

// persist writes the liveness hint through to the store. Failures are logged
// and never fail the connection.
func (s *Service) persist(ctx context.Context, userID string, online bool, at time.Time) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.store.SetPresence(ctx, userID, online, at); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Bool("online", online).Msg("failed to persist presence")
	}
}

func (s *Service) observe() {
	metrics.PresenceConnections.Set(float64(s.registry.Len()))
	metrics.PresenceOnlineUsers.Set(float64(len(s.registry.refs)))
}
