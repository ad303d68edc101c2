package transport

import (
	"sync"

	"github.com/google/uuid"
)

// membership is the Voice Room membership bookkeeping used by
// JoinChannel/ExitChannel: distinct from the room package's PeerSlot map,
// since entering a channel only records intent while attach is what
// actually constructs a peer-connection.
type membership struct {
	mu     sync.RWMutex
	byRoom map[uuid.UUID]map[uuid.UUID]struct{}
	byUser map[uuid.UUID]map[uuid.UUID]struct{}
}

func newMembership() *membership {
	return &membership{
		byRoom: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		byUser: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (m *membership) join(room, user uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byRoom[room] == nil {
		m.byRoom[room] = make(map[uuid.UUID]struct{})
	}
	m.byRoom[room][user] = struct{}{}

	if m.byUser[user] == nil {
		m.byUser[user] = make(map[uuid.UUID]struct{})
	}
	m.byUser[user][room] = struct{}{}
}

func (m *membership) exit(room, user uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(room, user)
}

func (m *membership) removeLocked(room, user uuid.UUID) {
	if members, ok := m.byRoom[room]; ok {
		delete(members, user)
		if len(members) == 0 {
			delete(m.byRoom, room)
		}
	}
	if rooms, ok := m.byUser[user]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(m.byUser, user)
		}
	}
}

// members returns the users currently recorded as joined to room.
func (m *membership) members(room uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(m.byRoom[room]))
	for id := range m.byRoom[room] {
		out = append(out, id)
	}
	return out
}

// removeUser drops user from every room it had joined, returning the
// rooms it was removed from so the caller can clean up voice state and
// notify remaining members.
func (m *membership) removeUser(user uuid.UUID) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := m.byUser[user]
	out := make([]uuid.UUID, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
	}
	for _, room := range out {
		m.removeLocked(room, user)
	}
	return out
}
