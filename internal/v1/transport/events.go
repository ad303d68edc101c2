package transport

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	k8sset "k8s.io/utils/set"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// handleEvent dispatches one inbound Event to its kind-specific handler
// (the Event Handler table, §4.4).
func (h *Hub) handleEvent(ctx context.Context, s *Session, evt types.Event) {
	switch {
	case evt.Event.ChangeState != nil:
		h.onChangeState(ctx, s, *evt.Event.ChangeState)
		metrics.EventsHandled.WithLabelValues(string(types.EventChangeState)).Inc()

	case evt.Event.JoinChannel != nil:
		h.onJoinChannel(ctx, s, *evt.Event.JoinChannel)
		metrics.EventsHandled.WithLabelValues(string(types.EventJoinChannel)).Inc()

	case evt.Event.ExitChannel != nil:
		h.onExitChannel(ctx, s, *evt.Event.ExitChannel)
		metrics.EventsHandled.WithLabelValues(string(types.EventExitChannel)).Inc()

	case evt.Event.FriendReq != nil:
		h.onFriendReq(ctx, s, *evt.Event.FriendReq)
		metrics.EventsHandled.WithLabelValues(string(types.EventFriendReq)).Inc()

	case evt.Event.JoinReq != nil:
		// Reserved; no handler assigned.
		metrics.EventsHandled.WithLabelValues(string(types.EventJoinReq)).Inc()

	default:
		s.Send(types.NewErrorFrame(errBadFrame))
	}
}

// onChangeState writes the sender's presence state and notifies every
// present friend.
func (h *Hub) onChangeState(ctx context.Context, s *Session, state types.PresenceState) {
	if !h.presence.SetState(s.userID, state) {
		return
	}

	friends, err := h.store.GetFriends(s.userID)
	if err != nil {
		logging.Error(ctx, "failed to load friends for presence broadcast", zap.Error(err))
		return
	}

	ids := make([]string, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID.String())
	}
	friendSet := k8sset.New(ids...)

	h.presence.Range(func(id uuid.UUID, user *types.User) bool {
		if friendSet.Has(id.String()) {
			user.Handle.Send(types.Message{
				From:  s.userID,
				Class: types.ClassServer,
				Data: types.ServerEventData{
					Event: "changed_state",
					State: string(state),
				},
			})
		}
		return true
	})
}

// onJoinChannel records channel membership bookkeeping only; the
// peer-connection itself is created by attach (§4.5).
func (h *Hub) onJoinChannel(ctx context.Context, s *Session, payload types.JoinChannelPayload) {
	h.membership.join(payload.RoomID, s.userID)

	for _, member := range h.membership.members(payload.RoomID) {
		if user, ok := h.presence.Get(member); ok {
			user.Handle.Send(types.Message{
				From:  s.userID,
				Class: types.ClassServer,
				Data: types.ServerEventData{
					Event: "join_channel",
				},
			})
		}
	}
}

// onExitChannel removes the sender from channel membership bookkeeping
// and notifies the members that remain. The payload carries no room_id
// (the source is silent on which room), so exit applies to every room
// the sender currently has joined.
func (h *Hub) onExitChannel(ctx context.Context, s *Session, _ types.ExitChannelPayload) {
	for _, roomID := range h.membership.removeUser(s.userID) {
		for _, member := range h.membership.members(roomID) {
			if user, ok := h.presence.Get(member); ok {
				user.Handle.Send(types.Message{
					From:  s.userID,
					Class: types.ClassServer,
					Data: types.ServerEventData{
						Event: "exit_channel",
					},
				})
			}
		}
	}
}

// onFriendReq delivers an Info message to other describing the outcome
// of the store's add_friend transaction.
func (h *Hub) onFriendReq(ctx context.Context, s *Session, other uuid.UUID) {
	outcome, err := h.store.AddFriend(s.userID, other)
	if err != nil {
		logging.Error(ctx, "add_friend failed", zap.Error(err))
		s.Send(types.NewErrorFrame(errors.New("failed to process friend request")))
		return
	}

	if user, ok := h.presence.Get(other); ok {
		user.Handle.Send(types.Message{
			From:  s.userID,
			Class: types.ClassInfo,
			Data: types.ServerEventData{
				Event: string(outcome),
			},
		})
	}
}
