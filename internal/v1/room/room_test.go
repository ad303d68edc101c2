package room

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

type stubHandle struct {
	id  uuid.UUID
	mu  sync.Mutex
	out []any
}

func newStubHandle(id uuid.UUID) *stubHandle { return &stubHandle{id: id} }

func (h *stubHandle) Send(payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = append(h.out, payload)
}
func (h *stubHandle) SendPong(data []byte) {}
func (h *stubHandle) UserID() uuid.UUID     { return h.id }

func (h *stubHandle) frames() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]any, len(h.out))
	copy(out, h.out)
	return out
}

func TestAttachCreatesPeerSlot(t *testing.T) {
	reg := NewRegistry(t.Context(), DefaultSettings())
	roomID := uuid.New()
	userID := uuid.New()
	handle := newStubHandle(userID)

	slot, err := Attach(context.Background(), reg, roomID, userID, handle)
	require.NoError(t, err)
	require.NotNil(t, slot)
	defer Cleanup(reg, roomID, userID)

	rm, ok := reg.get(roomID)
	require.True(t, ok)
	assert.Equal(t, 1, rm.memberCount())
}

func TestAttachConflictRunsCleanupAndFails(t *testing.T) {
	reg := NewRegistry(t.Context(), DefaultSettings())
	roomID := uuid.New()
	userID := uuid.New()
	handle := newStubHandle(userID)

	_, err := Attach(context.Background(), reg, roomID, userID, handle)
	require.NoError(t, err)

	_, err = Attach(context.Background(), reg, roomID, userID, handle)
	assert.ErrorIs(t, err, ErrConflict)

	// The conflict path's cleanup empties the room, so it is deregistered.
	rm, ok := reg.get(roomID)
	assert.False(t, ok, "emptied room must be removed from the registry")
	assert.Nil(t, rm)
}

func TestCleanupIsIdempotent(t *testing.T) {
	reg := NewRegistry(t.Context(), DefaultSettings())
	roomID := uuid.New()
	userID := uuid.New()
	handle := newStubHandle(userID)

	_, err := Attach(context.Background(), reg, roomID, userID, handle)
	require.NoError(t, err)

	Cleanup(reg, roomID, userID)
	Cleanup(reg, roomID, userID)

	_, ok := reg.get(roomID)
	assert.False(t, ok, "empty room must be removed from the registry")
}

func TestCleanupOfAbsentUserIsNoop(t *testing.T) {
	reg := NewRegistry(t.Context(), DefaultSettings())
	roomID := uuid.New()
	Cleanup(reg, roomID, uuid.New())
}

func TestRoomRemovedOnlyAfterLastMemberLeaves(t *testing.T) {
	reg := NewRegistry(t.Context(), DefaultSettings())
	roomID := uuid.New()
	userA, userB := uuid.New(), uuid.New()

	_, err := Attach(context.Background(), reg, roomID, userA, newStubHandle(userA))
	require.NoError(t, err)
	_, err = Attach(context.Background(), reg, roomID, userB, newStubHandle(userB))
	require.NoError(t, err)

	Cleanup(reg, roomID, userA)
	_, ok := reg.get(roomID)
	assert.True(t, ok, "room with one remaining member must stay registered")

	Cleanup(reg, roomID, userB)
	_, ok = reg.get(roomID)
	assert.False(t, ok)
}

func TestProcessICECandidateAgainstUnknownRoom(t *testing.T) {
	reg := NewRegistry(t.Context(), DefaultSettings())
	err := ProcessICECandidate(reg, uuid.New(), uuid.New(), types.CandidateBody{Candidate: "candidate:1 1 UDP 1 0.0.0.0 1 typ host"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessOfferAgainstUnknownRoom(t *testing.T) {
	reg := NewRegistry(t.Context(), DefaultSettings())
	_, err := ProcessOffer(reg, uuid.New(), uuid.New(), "v=0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentAttachCleanupIsSafe(t *testing.T) {
	reg := NewRegistry(t.Context(), DefaultSettings())
	roomID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := uuid.New()
			handle := newStubHandle(userID)
			if _, err := Attach(context.Background(), reg, roomID, userID, handle); err == nil {
				Cleanup(reg, roomID, userID)
			}
		}()
	}
	wg.Wait()

	_, ok := reg.get(roomID)
	assert.False(t, ok, "room must be empty and deregistered once every attacher has cleaned up")
}
