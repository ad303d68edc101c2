package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
	"github.com/azizhankaya/thiscrow/internal/v1/room"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// driftTolerance is how far a client-supplied message time may deviate
// from server-now before it is clamped (invariant 2).
const driftTolerance = 10 * time.Second

// groupFanOut bounds in-flight concurrency when dispatching a Group
// message to its members (spec: 10-50 in flight).
const groupFanOut = 32

var errBadFrame = errors.New("transport: malformed control-channel frame")

// frameEnvelope peeks at the discriminating fields of an inbound text
// frame without committing to a shape.
type frameEnvelope struct {
	Type  string           `json:"type"`
	Event *json.RawMessage `json:"event"`
}

type inboundMessage struct {
	To    uuid.UUID          `json:"to"`
	Data  any                `json:"data"`
	Time  time.Time          `json:"time"`
	Class types.MessageClass `json:"type"`
}

// handleFrame classifies and routes one inbound text frame.
func (h *Hub) handleFrame(ctx context.Context, s *Session, data []byte) {
	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.Send(types.NewErrorFrame(errBadFrame))
		return
	}

	switch {
	case env.Event != nil:
		var evt types.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			s.Send(types.NewErrorFrame(errBadFrame))
			return
		}
		h.handleEvent(ctx, s, evt)

	case env.Type == string(types.ClassDirect), env.Type == string(types.ClassGroup), env.Type == string(types.ClassInfo):
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Send(types.NewErrorFrame(errBadFrame))
			return
		}
		h.handleMessage(ctx, s, msg)

	case env.Type == string(types.ClassServer):
		metrics.MessagesDispatched.WithLabelValues("server", "rejected").Inc()
		s.Send(types.NewErrorFrame(errors.New("server messages cannot originate from a client")))

	case env.Type == "offer" || env.Type == "answer":
		var sig types.SignalEnvelope
		if err := json.Unmarshal(data, &sig); err != nil {
			s.Send(types.NewErrorFrame(errBadFrame))
			return
		}
		h.handleSignal(ctx, s, sig)

	default:
		s.Send(types.NewErrorFrame(errBadFrame))
	}
}

// handleMessage runs the Message handling algorithm: overwrite from,
// clamp time, authorize by class, persist, dispatch.
func (h *Hub) handleMessage(ctx context.Context, s *Session, in inboundMessage) {
	msg := types.Message{
		ID:    uuid.New(),
		From:  s.userID,
		To:    in.To,
		Data:  in.Data,
		Time:  in.Time,
		Class: in.Class,
	}

	now := time.Now().UTC()
	if msg.Time.IsZero() || absDuration(now.Sub(msg.Time)) > driftTolerance {
		msg.Time = now
	}

	authorized, err := h.authorize(msg)
	if err != nil {
		logging.Error(ctx, "authorization check failed", zap.Error(err))
		metrics.MessagesDispatched.WithLabelValues(string(msg.Class), "error").Inc()
		s.Send(types.NewErrorFrame(err))
		return
	}
	if !authorized {
		metrics.MessagesDispatched.WithLabelValues(string(msg.Class), "unauthorized").Inc()
		logging.Info(ctx, "dropped unauthorized message", zap.String("from", msg.From.String()), zap.String("class", string(msg.Class)))
		return
	}

	if msg.Class == types.ClassDirect || msg.Class == types.ClassGroup {
		if err := h.store.SaveMessage(msg); err != nil {
			logging.Error(ctx, "failed to persist message", zap.Error(err))
			metrics.MessagesDispatched.WithLabelValues(string(msg.Class), "persist_error").Inc()
			s.Send(types.NewErrorFrame(errors.New("failed to persist message")))
			return
		}
	}

	h.dispatchMessage(ctx, msg)
	metrics.MessagesDispatched.WithLabelValues(string(msg.Class), "dispatched").Inc()
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// authorize implements the per-class authorization rules. Server is
// never authorized here; callers reject it before reaching this point.
func (h *Hub) authorize(msg types.Message) (bool, error) {
	switch msg.Class {
	case types.ClassDirect, types.ClassInfo:
		return h.store.AreFriends(msg.From, msg.To)
	case types.ClassGroup:
		return h.store.InGroup(msg.From, msg.To)
	default:
		return false, nil
	}
}

// dispatchMessage delivers msg to its recipients via the Presence
// Registry, bounding Group fan-out concurrency.
func (h *Hub) dispatchMessage(ctx context.Context, msg types.Message) {
	switch msg.Class {
	case types.ClassDirect, types.ClassInfo:
		if user, ok := h.presence.Get(msg.To); ok {
			user.Handle.Send(msg)
		}

	case types.ClassGroup:
		members, err := h.store.GetGroupUsers(msg.To)
		if err != nil {
			logging.Error(ctx, "failed to resolve group members", zap.Error(err))
			return
		}

		sem := make(chan struct{}, groupFanOut)
		var wg sync.WaitGroup
		for _, member := range members {
			user, ok := h.presence.Get(member)
			if !ok {
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(handle types.ControlHandle) {
				defer wg.Done()
				defer func() { <-sem }()
				handle.Send(msg)
			}(user.Handle)
		}
		wg.Wait()
	}
}

// handleSignal routes an inbound offer/answer envelope to the Voice
// Room/SFU using ChatID as the room_id.
func (h *Hub) handleSignal(ctx context.Context, s *Session, sig types.SignalEnvelope) {
	switch sig.Type {
	case "offer":
		answer, err := room.ProcessOffer(h.rooms, sig.ChatID, s.userID, sig.SDP)
		if err != nil {
			s.Send(types.NewErrorFrame(err))
			return
		}
		s.Send(types.SignalEnvelope{Type: "answer", SDP: answer})

	case "answer":
		if err := room.ProcessAnswer(h.rooms, sig.ChatID, s.userID, sig.SDP); err != nil {
			s.Send(types.NewErrorFrame(err))
		}
	}
}
