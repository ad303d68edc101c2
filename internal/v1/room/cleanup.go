package room

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
)

// Cleanup removes user's PeerSlot from roomID and, if the room becomes
// empty, removes the room from the Room Registry. Calling it for an
// already-absent user/room is a no-op (invariant 8).
func Cleanup(reg *Registry, roomID, userID uuid.UUID) {
	rm, ok := reg.get(roomID)
	if !ok {
		return
	}

	rm.mu.Lock()
	slot, ok := rm.slots[userID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.slots, userID)
	rm.mu.Unlock()

	slot.close()
	reg.removeMembership(userID, roomID)
	metrics.RoomMembers.WithLabelValues(roomID.String()).Dec()
	logging.Info(reg.baseCtx, "peer slot removed", zap.String("room_id", roomID.String()), zap.String("user_id", userID.String()))

	reg.removeIfEmpty(roomID)
}
