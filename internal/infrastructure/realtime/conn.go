package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encode(event string, payload any) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Data: payload})
}

// Conn wraps one websocket. Writes go through a single writer goroutine;
// reads happen on the goroutine that calls ReadLoop.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	opts   Options
	log    zerolog.Logger

	closeOnce sync.Once
}

func newConn(id, userID string, ws *websocket.Conn, opts Options, log zerolog.Logger) *Conn {
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
		opts:   opts,
		log:    log.With().Str("conn_id", id).Str("user_id", userID).Logger(),
	}
}

func (c *Conn) ID() string { return c.id }

// UserID is the account the handshake was authenticated as.
func (c *Conn) UserID() string { return c.userID }

// Done is closed once the connection is shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// enqueue hands data to the writer without blocking.
func (c *Conn) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Send encodes and enqueues a single frame.
func (c *Conn) Send(event string, payload any) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait),
			)
			return
		}
	}
}

// ReadLoop reads frames until the peer goes away, the heartbeat lapses or the
// connection is closed. Malformed frames are skipped.
func (c *Conn) ReadLoop(handle func(Frame)) error {
	c.ws.SetReadLimit(maxFrameSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		return err
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed() {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil
			}
			return err
		}
		// Any traffic from the peer proves it is alive.
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			c.log.Debug().Msg("malformed frame skipped")
			continue
		}
		handle(f)
	}
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close shuts the connection down. The writer sends a close frame and
// releases the socket, which also ends ReadLoop. Safe to call more than once
// and from any goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
