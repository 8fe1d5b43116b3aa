package presence

import (
	"errors"
	"sync"

	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
	"github.com/dhammastream/backoffice/internal/pkg/metrics"
)

// ErrBroadcasterInitialized is returned by a second Init.
var ErrBroadcasterInitialized = errors.New("presence broadcaster already initialized")

// Broadcaster fans presence events out over the realtime transport. It must
// be initialized exactly once; every call before that fails with
// domain.ErrBroadcastUnavailable.
type Broadcaster struct {
	mu        sync.RWMutex
	transport ports.PresenceTransport
}

// Init attaches the transport.
func (b *Broadcaster) Init(t ports.PresenceTransport) error {
	if t == nil {
		return errors.New("presence broadcaster: nil transport")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport != nil {
		return ErrBroadcasterInitialized
	}
	b.transport = t
	return nil
}

func (b *Broadcaster) get() (ports.PresenceTransport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.transport == nil {
		return nil, domain.ErrBroadcastUnavailable
	}
	return b.transport, nil
}

// Broadcast sends event to every open connection.
func (b *Broadcaster) Broadcast(event string, payload any) error {
	t, err := b.get()
	if err != nil {
		return err
	}
	t.Broadcast(event, payload)
	metrics.PresenceBroadcastsTotal.WithLabelValues(event).Inc()
	return nil
}

// SendTo sends event to a single connection.
func (b *Broadcaster) SendTo(connID, event string, payload any) error {
	t, err := b.get()
	if err != nil {
		return err
	}
	return t.SendTo(connID, event, payload)
}

// Close asks the transport to drop connID.
func (b *Broadcaster) Close(connID string) error {
	t, err := b.get()
	if err != nil {
		return err
	}
	t.Close(connID)
	return nil
}
