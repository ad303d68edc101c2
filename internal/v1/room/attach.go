package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// Attach is the /rtc/attach/{room_id} entry point. If the user already
// holds a PeerSlot in this room, cleanup runs first and the call fails
// with ErrConflict so the client reconnects cleanly; otherwise a new
// peer-connection is constructed and its PeerSlot stored.
func Attach(ctx context.Context, reg *Registry, roomID, userID uuid.UUID, handle types.ControlHandle) (*PeerSlot, error) {
	rm := reg.getOrCreate(roomID)

	if _, exists := rm.get(userID); exists {
		Cleanup(reg, roomID, userID)
		return nil, ErrConflict
	}

	pc, err := reg.api.NewPeerConnection(reg.configuration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	slot := newPeerSlot(userID, handle, pc)

	// The peer-connection outlives the HTTP request that created it: its
	// callbacks fire whenever ICE/RTP events occur, long after ctx (the
	// /rtc/attach request context) has been canceled. They run against
	// reg.baseCtx, the process-lifetime context, instead.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			logging.Info(reg.baseCtx, "ice gathering complete", zap.String("room_id", roomID.String()), zap.String("user_id", userID.String()))
			return
		}
		handle.Send(types.SignalEnvelope{Type: "ice-candidate", Data: c.ToJSON()})
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		go relayTask(reg.baseCtx, reg, roomID, userID, remote)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			Cleanup(reg, roomID, userID)
		}
	})

	rm.mu.Lock()
	rm.slots[userID] = slot
	rm.mu.Unlock()
	reg.addMembership(userID, roomID)

	metrics.RoomMembers.WithLabelValues(roomID.String()).Inc()
	logging.Info(ctx, "peer slot attached", zap.String("room_id", roomID.String()), zap.String("user_id", userID.String()))

	return slot, nil
}
