package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceStateConstants(t *testing.T) {
	assert.Equal(t, PresenceState("online"), StateOnline)
	assert.Equal(t, PresenceState("idle"), StateIdle)
	assert.Equal(t, PresenceState("dnd"), StateDnd)
	assert.Equal(t, PresenceState("ghost"), StateGhost)
	assert.Equal(t, PresenceState("offline"), StateOffline)
}

func TestMessageClassConstants(t *testing.T) {
	assert.Equal(t, MessageClass("direct"), ClassDirect)
	assert.Equal(t, MessageClass("group"), ClassGroup)
	assert.Equal(t, MessageClass("server"), ClassServer)
	assert.Equal(t, MessageClass("info"), ClassInfo)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := Message{
		ID:    uuid.New(),
		From:  uuid.New(),
		To:    uuid.New(),
		Data:  "hello",
		Time:  time.Now().UTC().Truncate(time.Second),
		Class: ClassDirect,
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, msg.From, decoded.From)
	assert.Equal(t, msg.To, decoded.To)
	assert.Equal(t, msg.Class, decoded.Class)
	assert.True(t, msg.Time.Equal(decoded.Time))
}

func TestEventPayloadJoinChannel(t *testing.T) {
	roomID := uuid.New()
	payload := EventPayload{
		Kind:        EventJoinChannel,
		JoinChannel: &JoinChannelPayload{RoomID: roomID, Direct: true},
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded EventPayload
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.NotNil(t, decoded.JoinChannel)
	assert.Equal(t, roomID, decoded.JoinChannel.RoomID)
	assert.True(t, decoded.JoinChannel.Direct)
	assert.Nil(t, decoded.ExitChannel)
	assert.Nil(t, decoded.ChangeState)
}

func TestEventPayloadChangeState(t *testing.T) {
	state := StateDnd
	payload := EventPayload{Kind: EventChangeState, ChangeState: &state}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded EventPayload
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.NotNil(t, decoded.ChangeState)
	assert.Equal(t, StateDnd, *decoded.ChangeState)
}

func TestEventPayloadFriendReq(t *testing.T) {
	target := uuid.New()
	payload := EventPayload{Kind: EventFriendReq, FriendReq: &target}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded EventPayload
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.NotNil(t, decoded.FriendReq)
	assert.Equal(t, target, *decoded.FriendReq)
}

func TestNewErrorFrame(t *testing.T) {
	frame := NewErrorFrame(errors.New("boom"))
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "boom", frame.Error)
}

func TestServerEventData(t *testing.T) {
	data := ServerEventData{Event: "presence_changed", State: "idle"}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"presence_changed","state":"idle"}`, string(raw))
}

type stubHandle struct{ id uuid.UUID }

func (s stubHandle) Send(payload any)     {}
func (s stubHandle) SendPong(data []byte) {}
func (s stubHandle) UserID() uuid.UUID    { return s.id }

func TestUserHoldsControlHandle(t *testing.T) {
	id := uuid.New()
	u := User{Username: "alice", State: StateOnline, Handle: stubHandle{id: id}}

	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, StateOnline, u.State)
	assert.Equal(t, id, u.Handle.UserID())
}

func TestCandidateBodyJSON(t *testing.T) {
	mid := "0"
	var line uint16 = 0
	body := CandidateBody{Candidate: "candidate:1 1 UDP 1 0.0.0.0 1 typ host", SDPMid: &mid, SDPMLineIndex: &line}

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	var decoded CandidateBody
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.SDPMid)
	assert.Equal(t, mid, *decoded.SDPMid)
}
