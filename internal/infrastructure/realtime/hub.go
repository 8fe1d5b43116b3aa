// Package realtime carries presence frames over websockets. The Hub is the
// process-wide set of open connections and implements the presence
// transport; it never blocks on a slow peer.
package realtime

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dhammastream/backoffice/internal/core/ports"
	"github.com/dhammastream/backoffice/internal/pkg/metrics"
)

type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	opts  Options
	log   zerolog.Logger
}

var _ ports.PresenceTransport = (*Hub)(nil)

func NewHub(opts Options, log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*Conn),
		opts:  opts.withDefaults(),
		log:   log,
	}
}

// Register wraps ws, starts its writer and makes it reachable by id.
func (h *Hub) Register(id, userID string, ws *websocket.Conn) *Conn {
	c := newConn(id, userID, ws, h.opts, h.log)
	go c.writeLoop()

	h.mu.Lock()
	if prev, ok := h.conns[id]; ok {
		prev.Close()
	}
	h.conns[id] = c
	h.mu.Unlock()
	return c
}

// Unregister removes c and closes it. A newer connection registered under the
// same id is left alone.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if cur, ok := h.conns[c.id]; ok && cur == c {
		delete(h.conns, c.id)
	}
	h.mu.Unlock()
	c.Close()
}

// Broadcast sends one frame to every open connection. Peers whose buffer is
// full miss the frame.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		if err := c.enqueue(data); errors.Is(err, ErrSendBufferFull) {
			metrics.PresenceDroppedTotal.Inc()
			c.log.Warn().Str("event", event).Msg("send buffer full, frame dropped")
		}
	}
}

// SendTo sends one frame to a single connection.
func (h *Hub) SendTo(connID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}

	err := c.Send(event, payload)
	if errors.Is(err, ErrSendBufferFull) {
		metrics.PresenceDroppedTotal.Inc()
		c.log.Warn().Str("event", event).Msg("send buffer full, frame dropped")
		return nil
	}
	if errors.Is(err, ErrConnectionClosed) {
		return nil
	}
	return err
}

// Close ends a connection. Its read loop then exits and reports the
// disconnect; Close itself never calls back into presence.
func (h *Hub) Close(connID string) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if ok {
		c.Close()
	}
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.Close()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
