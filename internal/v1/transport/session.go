// Package transport implements the Control Session: the persistent
// WebSocket-backed text channel established at /ws, classifying inbound
// frames into Message, Event, or signalling envelopes and dispatching
// outbound traffic to other live sessions.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// wsConnection is the subset of *websocket.Conn the Session depends on,
// narrowed so tests can substitute an in-memory fake.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
}

type outboundFrame struct {
	msgType int
	data    []byte
}

// Session is one connected user's Control Session: one per live
// WebSocket, implementing types.ControlHandle so the presence/room
// packages can address it without importing transport.
type Session struct {
	hub      *Hub
	conn     wsConnection
	send     chan outboundFrame
	userID   uuid.UUID
	username string
}

func newSession(hub *Hub, conn wsConnection, userID uuid.UUID, username string) *Session {
	return &Session{
		hub:      hub,
		conn:     conn,
		send:     make(chan outboundFrame, sendBuffer),
		userID:   userID,
		username: username,
	}
}

// UserID satisfies types.ControlHandle.
func (s *Session) UserID() uuid.UUID { return s.userID }

// Send marshals payload to JSON and enqueues it as a text frame. A full
// send buffer drops the frame rather than block the caller — the sender
// is presumed slow or gone, and the caller (another user's Control
// Session or a Relay Task) must not stall on it.
func (s *Session) Send(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error(context.Background(), "failed to encode outbound frame", zap.Error(err))
		return
	}
	select {
	case s.send <- outboundFrame{msgType: websocket.TextMessage, data: data}:
	default:
		logging.Warn(context.Background(), "dropping outbound frame: send buffer full", zap.String("user_id", s.userID.String()))
	}
}

// SendPong answers a WebSocket ping with the same application data,
// serialized through the same outbound queue as every other write since
// gorilla/websocket forbids concurrent writers on one connection.
func (s *Session) SendPong(data []byte) {
	select {
	case s.send <- outboundFrame{msgType: websocket.PongMessage, data: data}:
	default:
	}
}

// readPump reads frames until the connection closes or errors, dispatching
// each text frame and relying on the ping handler for keepalive.
func (s *Session) readPump(ctx context.Context) {
	defer func() {
		s.hub.disconnect(s)
		s.conn.Close()
	}()

	s.conn.SetPingHandler(func(appData string) error {
		s.SendPong([]byte(appData))
		return nil
	})
	s.conn.SetPongHandler(func(string) error { return nil })

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			logging.Info(ctx, "control session closed", zap.String("user_id", s.userID.String()), zap.Error(err))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.hub.handleFrame(ctx, s, data)
	}
}

// writePump flushes queued frames to the connection, one writer per
// connection as gorilla/websocket requires.
func (s *Session) writePump() {
	defer s.conn.Close()

	for frame := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(frame.msgType, frame.data); err != nil {
			return
		}
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
