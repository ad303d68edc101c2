package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azizhankaya/thiscrow/internal/v1/store"
)

// newTestStore opens the in-memory store for one test. Every call uses the
// same shared-cache DSN, so all tests see one database; tests keep their
// usernames and emails unique to avoid unique-constraint collisions.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	return s
}
