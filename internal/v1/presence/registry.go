// Package presence holds the Presence Registry: the process-wide mapping
// from user identity to the live, connected User record. It is the
// authoritative answer to "who is online".
package presence

import (
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// Registry is a concurrent map from user_id to the user's live state. It
// provides per-key mutual exclusion: a reader or writer of one key never
// blocks an operation on another key.
type Registry struct {
	users *xsync.Map[uuid.UUID, *types.User]
}

// NewRegistry builds an empty Presence Registry.
func NewRegistry() *Registry {
	return &Registry{users: xsync.NewMap[uuid.UUID, *types.User]()}
}

// Insert records the given user as live, overwriting any prior entry for
// the same id. A second control-channel upgrade for an already-live user
// supersedes the first; callers are responsible for closing the
// superseded handle before calling Insert.
func (r *Registry) Insert(id uuid.UUID, user *types.User) {
	_, existed := r.users.LoadAndStore(id, user)
	if !existed {
		metrics.IncConnection()
	}
}

// Remove drops the user's live entry, if present.
func (r *Registry) Remove(id uuid.UUID) {
	if _, existed := r.users.LoadAndDelete(id); existed {
		metrics.DecConnection()
	}
}

// Get returns the live User for id, or ok=false if the user is not
// currently connected.
func (r *Registry) Get(id uuid.UUID) (*types.User, bool) {
	return r.users.Load(id)
}

// SetState mutates the presence state of a live user in place. Returns
// false if the user is not currently connected.
func (r *Registry) SetState(id uuid.UUID, state types.PresenceState) bool {
	user, ok := r.users.Load(id)
	if !ok {
		return false
	}
	user.State = state
	return true
}

// Range iterates every live user. fn returning false stops iteration
// early, matching xsync.Map.Range's contract.
func (r *Registry) Range(fn func(id uuid.UUID, user *types.User) bool) {
	r.users.Range(func(id uuid.UUID, user *types.User) bool {
		return fn(id, user)
	})
}

// Len reports the current number of live users.
func (r *Registry) Len() int {
	return r.users.Size()
}
