package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
	"github.com/dhammastream/backoffice/internal/infrastructure/realtime"
)

const (
	handshakeTimeout = 10 * time.Second
	cleanupTimeout   = 5 * time.Second
)

// RealtimeHandler upgrades authenticated requests to websockets and feeds
// their frames to the presence service.
type RealtimeHandler struct {
	hub       *realtime.Hub
	presence  ports.PresenceService
	validator echo.Validator
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

// NewRealtimeHandler builds the handler. An empty allowedOrigins accepts only
// same-host origins.
func NewRealtimeHandler(hub *realtime.Hub, presence ports.PresenceService, allowedOrigins []string, log zerolog.Logger) *RealtimeHandler {
	h := &RealtimeHandler{
		hub:       hub,
		presence:  presence,
		validator: NewValidator(),
		log:       log,
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: handshakeTimeout,
		CheckOrigin:      originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

type activityUpdate struct {
	UserID   string `json:"userId"   validate:"required"`
	Activity string `json:"activity" validate:"required,max=64"`
}

// Serve runs one websocket for the lifetime of the connection.
//
// @Summary      Realtime presence channel
// @Tags         realtime
// @Success      101
// @Failure      401  {object}  map[string]string
// @Security     BearerAuth
// @Router       /ws [get]
func (h *RealtimeHandler) Serve(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	connID := uuid.NewString()
	conn := h.hub.Register(connID, id.UserID, ws)
	log := h.log.With().Str("conn_id", connID).Str("user_id", id.UserID).Logger()

	ctx := context.WithoutCancel(c.Request().Context())
	if err := h.presence.Connect(ctx, connID); err != nil {
		log.Error().Err(err).Msg("presence connect failed")
		h.hub.Unregister(conn)
		return nil
	}
	log.Debug().Msg("realtime connection opened")

	defer func() {
		h.hub.Unregister(conn)
		cctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
		defer cancel()
		if err := h.presence.Disconnect(cctx, connID); err != nil {
			log.Warn().Err(err).Msg("presence disconnect failed")
		}
		log.Debug().Msg("realtime connection closed")
	}()

	if err := conn.ReadLoop(func(f realtime.Frame) { h.dispatch(ctx, log, conn, f) }); err != nil {
		log.Debug().Err(err).Msg("read loop ended")
	}
	return nil
}

// dispatch applies one inbound frame. Frames claiming to speak for another
// account are dropped.
func (h *RealtimeHandler) dispatch(ctx context.Context, log zerolog.Logger, conn *realtime.Conn, f realtime.Frame) {
	switch f.Event {
	case domain.EventIdentityAnnounce:
		var userID string
		if err := json.Unmarshal(f.Data, &userID); err != nil || userID == "" {
			log.Debug().Msg("malformed identity announce")
			return
		}
		if userID != conn.UserID() {
			log.Warn().Str("claimed_user_id", userID).Msg("announce for another account ignored")
			return
		}
		if err := h.presence.Announce(ctx, conn.ID(), userID); err != nil {
			log.Error().Err(err).Msg("presence announce failed")
		}

	case domain.EventActivityUpdate:
		var upd activityUpdate
		if err := json.Unmarshal(f.Data, &upd); err != nil {
			log.Debug().Msg("malformed activity update")
			return
		}
		if err := h.validator.Validate(&upd); err != nil {
			log.Debug().Err(err).Msg("invalid activity update")
			return
		}
		if upd.UserID != conn.UserID() {
			log.Warn().Str("claimed_user_id", upd.UserID).Msg("activity for another account ignored")
			return
		}
		if err := h.presence.Activity(ctx, upd.UserID, upd.Activity); err != nil {
			log.Error().Err(err).Msg("presence activity failed")
		}

	default:
		log.Debug().Str("event", f.Event).Msg("unknown event ignored")
	}
}
