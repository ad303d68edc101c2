package transport

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/auth"
	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/presence"
	"github.com/azizhankaya/thiscrow/internal/v1/room"
	"github.com/azizhankaya/thiscrow/internal/v1/store"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// Hub owns the process-lifetime collaborators a Control Session needs:
// the Presence Registry, the Room Registry, the relational store, and
// the channel-membership bookkeeping used by JoinChannel/ExitChannel.
type Hub struct {
	presence   *presence.Registry
	rooms      *room.Registry
	store      *store.Store
	membership *membership

	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewHub wires a Hub from its collaborators and the configured list of
// origins permitted to open the control channel.
func NewHub(pres *presence.Registry, rooms *room.Registry, st *store.Store, allowedOrigins []string) *Hub {
	h := &Hub{
		presence:       pres,
		rooms:          rooms,
		store:          st,
		membership:     newMembership(),
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		WriteBufferPool: &sync.Pool{New: func() any { return make([]byte, 4096) }},
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.allowedOrigins {
		a, err := url.Parse(strings.TrimSpace(allowed))
		if err != nil {
			continue
		}
		if a.Scheme == u.Scheme && a.Host == u.Host {
			return true
		}
	}
	return false
}

// ServeWs is the /ws upgrade entry point. The Auth Gate middleware has
// already attached a Principal to the request context by this point.
func (h *Hub) ServeWs(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	session := newSession(h, conn, principal.UserID, principal.Username)

	h.presence.Insert(principal.UserID, &types.User{
		Username: principal.Username,
		State:    types.StateOnline,
		Handle:   session,
	})

	logging.Info(c.Request.Context(), "control session opened", zap.String("user_id", principal.UserID.String()))

	go session.writePump()
	go session.readPump(context.Background())
}

// disconnect runs the Control Session teardown: remove the user from the
// Presence Registry and clean up every Voice Room the user had joined or
// attached to. The user's rooms come from two places that don't
// necessarily agree: the channel-membership table (populated by
// JoinChannel/ExitChannel) and the Room Registry's own reverse index
// (populated by /rtc/attach, which a client can call without ever
// sending JoinChannel for that room). Both are cleaned up here so a
// PeerSlot never outlives the control session that attached it.
func (h *Hub) disconnect(s *Session) {
	h.presence.Remove(s.userID)

	seen := make(map[uuid.UUID]struct{})
	for _, roomID := range h.membership.removeUser(s.userID) {
		seen[roomID] = struct{}{}
		room.Cleanup(h.rooms, roomID, s.userID)
	}
	for _, roomID := range h.rooms.RoomsForUser(s.userID) {
		if _, ok := seen[roomID]; ok {
			continue
		}
		room.Cleanup(h.rooms, roomID, s.userID)
	}

	logging.Info(context.Background(), "control session closed", zap.String("user_id", s.userID.String()))
}
