// Package room implements the Voice Room / SFU: one lazily-created room per
// room_id, each holding one PeerSlot per attached user, relaying RTP
// between them without decoding.
package room

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
)

var (
	ErrConflict   = errors.New("room: user already attached")
	ErrNotFound   = errors.New("room: not found")
	ErrBadRequest = errors.New("room: malformed request")
	ErrInternal   = errors.New("room: internal failure")
)

// Settings configures the WebRTC API shared by every PeerSlot's
// peer-connection: a restricted network-type set chosen at startup keeps
// the SFU off TURN relays and IPv6 surprises in this deployment.
type Settings struct {
	ICEServers   []webrtc.ICEServer
	NetworkTypes []webrtc.NetworkType
}

// DefaultSettings returns the startup configuration: a public STUN server
// and UDP/IPv4-only candidates.
func DefaultSettings() Settings {
	return Settings{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		NetworkTypes: []webrtc.NetworkType{webrtc.NetworkTypeUDP4},
	}
}

// Registry is the Room Registry: a concurrent map from room_id to Room,
// created lazily on first attach and removed once empty.
type Registry struct {
	rooms    *xsync.Map[uuid.UUID, *Room]
	settings Settings
	api      *webrtc.API
	baseCtx  context.Context

	// byUser is the reverse index (user_id -> set of room_id) kept
	// alongside rooms. JoinChannel/ExitChannel bookkeeping lives in
	// transport's own membership table and only tracks rooms a user
	// announced; a PeerSlot can exist here without ever going through
	// JoinChannel, so disconnect cleanup walks this index directly
	// instead of relying on that table.
	byUserMu sync.Mutex
	byUser   map[uuid.UUID]map[uuid.UUID]struct{}
}

// NewRegistry builds a Room Registry and the shared WebRTC API instance
// used to construct every PeerSlot's peer-connection. ctx is the
// process-lifetime context, not a per-request one: it outlives any single
// /rtc/attach call and is what Attach hands to callbacks (OnTrack,
// OnICECandidate) that keep running long after the HTTP handler that
// created the PeerSlot has returned.
func NewRegistry(ctx context.Context, settings Settings) *Registry {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		panic(err)
	}

	se := webrtc.SettingEngine{}
	if len(settings.NetworkTypes) > 0 {
		se.SetNetworkTypes(settings.NetworkTypes)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se))

	return &Registry{
		rooms:    xsync.NewMap[uuid.UUID, *Room](),
		settings: settings,
		api:      api,
		baseCtx:  ctx,
		byUser:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (r *Registry) configuration() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers:         r.settings.ICEServers,
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
}

// getOrCreate returns the room for id, creating and registering an empty
// one if absent.
func (r *Registry) getOrCreate(id uuid.UUID) *Room {
	room, loaded := r.rooms.LoadOrStore(id, newRoom(id))
	if !loaded {
		metrics.ActiveRooms.Inc()
		logging.Info(r.baseCtx, "voice room created", zap.String("room_id", id.String()))
	}
	return room
}

func (r *Registry) get(id uuid.UUID) (*Room, bool) {
	return r.rooms.Load(id)
}

// removeIfEmpty deletes the room from the registry once its last slot is
// gone (invariant 6: no zero-member room stays registered).
func (r *Registry) removeIfEmpty(id uuid.UUID) {
	room, ok := r.rooms.Load(id)
	if !ok {
		return
	}
	if room.memberCount() == 0 {
		r.rooms.Delete(id)
		metrics.ActiveRooms.Dec()
		metrics.RoomMembers.DeleteLabelValues(id.String())
		logging.Info(r.baseCtx, "voice room removed", zap.String("room_id", id.String()))
	}
}

// addMembership records that userID now holds a PeerSlot in roomID.
func (r *Registry) addMembership(userID, roomID uuid.UUID) {
	r.byUserMu.Lock()
	defer r.byUserMu.Unlock()
	rooms, ok := r.byUser[userID]
	if !ok {
		rooms = make(map[uuid.UUID]struct{})
		r.byUser[userID] = rooms
	}
	rooms[roomID] = struct{}{}
}

// removeMembership drops roomID from userID's reverse-index entry,
// removing the entry entirely once it is empty.
func (r *Registry) removeMembership(userID, roomID uuid.UUID) {
	r.byUserMu.Lock()
	defer r.byUserMu.Unlock()
	rooms, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(r.byUser, userID)
	}
}

// RoomsForUser returns every room_id in which user currently holds a
// PeerSlot. Used by the control channel's disconnect path to clean up
// Voice Room membership that was never routed through JoinChannel
// bookkeeping (a PeerSlot is created by Attach independently of
// JoinChannel, so a user who never sent JoinChannel for a room they
// attached to would otherwise be invisible to disconnect cleanup).
func (r *Registry) RoomsForUser(userID uuid.UUID) []uuid.UUID {
	r.byUserMu.Lock()
	defer r.byUserMu.Unlock()
	rooms, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(rooms))
	for id := range rooms {
		out = append(out, id)
	}
	return out
}

// Room is one conference room: a user_id -> PeerSlot map plus the mutex
// that serializes membership changes.
type Room struct {
	id    uuid.UUID
	mu    sync.RWMutex
	slots map[uuid.UUID]*PeerSlot
}

func newRoom(id uuid.UUID) *Room {
	return &Room{id: id, slots: make(map[uuid.UUID]*PeerSlot)}
}

func (rm *Room) memberCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.slots)
}

func (rm *Room) get(userID uuid.UUID) (*PeerSlot, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	slot, ok := rm.slots[userID]
	return slot, ok
}

// snapshotOthers returns every PeerSlot except the given source, used by
// the Relay Task to fan out a newly published track.
func (rm *Room) snapshotOthers(source uuid.UUID) []*PeerSlot {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*PeerSlot, 0, len(rm.slots))
	for id, slot := range rm.slots {
		if id == source {
			continue
		}
		out = append(out, slot)
	}
	return out
}
