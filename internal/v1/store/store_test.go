package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	return s
}

func TestRegisterAndConflict(t *testing.T) {
	s := newTestStore(t)

	account, err := s.Register("alice", "Alice", "alice@example.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)

	_, err = s.Register("alice", "Alice Two", "alice2@example.com", "hash2")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetUserByUsernameAndID(t *testing.T) {
	s := newTestStore(t)
	created, err := s.Register("bob", "Bob", "bob@example.com", "hash")
	require.NoError(t, err)

	byName, err := s.GetUserByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byID, err := s.GetUser(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", byID.Username)

	_, err = s.GetUser(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUsersLikePrefix(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register("carol1", "Carol One", "carol1@example.com", "h")
	require.NoError(t, err)
	_, err = s.Register("carol2", "Carol Two", "carol2@example.com", "h")
	require.NoError(t, err)
	_, err = s.Register("dave", "Dave", "dave@example.com", "h")
	require.NoError(t, err)

	results, err := s.GetUsersLike("carol")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestAddFriendRequestThenPromotion(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Register("friend-a", "A", "a@example.com", "h")
	require.NoError(t, err)
	b, err := s.Register("friend-b", "B", "b@example.com", "h")
	require.NoError(t, err)

	outcome, err := s.AddFriend(a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRequest, outcome)

	are, err := s.AreFriends(a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, are)

	outcome, err = s.AddFriend(b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, outcome)

	are, err = s.AreFriends(a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, are)

	friends, err := s.GetFriends(a.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, b.ID, friends[0].ID)

	var count int64
	s.db.Model(&FriendRequest{}).Count(&count)
	assert.Zero(t, count)
}

func TestGroupMembership(t *testing.T) {
	s := newTestStore(t)
	user, err := s.Register("member", "Member", "member@example.com", "h")
	require.NoError(t, err)

	group := Group{ID: uuid.New(), Name: "test-group", CreatedBy: user.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.db.Create(&group).Error)
	require.NoError(t, s.db.Create(&GroupMember{GroupID: group.ID, UserID: user.ID}).Error)

	in, err := s.InGroup(user.ID, group.ID)
	require.NoError(t, err)
	assert.True(t, in)

	groups, err := s.GetGroups(user.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "test-group", groups[0].Name)

	users, err := s.GetGroupUsers(group.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{user.ID}, users)
}

func TestSaveAndGetMessages(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Register("sender", "Sender", "sender@example.com", "h")
	require.NoError(t, err)
	b, err := s.Register("recipient", "Recipient", "recipient@example.com", "h")
	require.NoError(t, err)

	msg := types.Message{
		ID:    uuid.New(),
		From:  a.ID,
		To:    b.ID,
		Data:  map[string]any{"t": "hi"},
		Time:  time.Now().UTC().Add(-time.Minute),
		Class: types.ClassDirect,
	}
	require.NoError(t, s.SaveMessage(msg))

	messages, err := s.GetMessages(a.ID, b.ID, 50, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, a.ID, messages[0].From)
	assert.Equal(t, b.ID, messages[0].To)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(t.Context()))
}
