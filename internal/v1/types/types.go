// Package types defines the domain model shared across the presence,
// transport, and room packages. Keeping these types dependency-free avoids
// import cycles between the packages that produce and consume them.
package types

import (
	"time"

	"github.com/google/uuid"
)

// PresenceState is the set of states a connected user can advertise.
type PresenceState string

const (
	StateOnline  PresenceState = "online"
	StateIdle    PresenceState = "idle"
	StateDnd     PresenceState = "dnd"
	StateGhost   PresenceState = "ghost"
	StateOffline PresenceState = "offline"
)

// MessageClass tags a Message with its authorization, persistence, and
// dispatch rules.
type MessageClass string

const (
	ClassDirect MessageClass = "direct"
	ClassGroup  MessageClass = "group"
	ClassServer MessageClass = "server"
	ClassInfo   MessageClass = "info"
)

// Principal is the claim set attached to an admitted request after token
// verification. Immutable within a request.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Expiry   int64
}

// Message is the wire and persistence shape for chat traffic. From is
// always overwritten to the sender's id before dispatch; Time is clamped
// to server-now when the client-supplied value deviates by more than ±10s.
type Message struct {
	ID    uuid.UUID    `json:"id"`
	From  uuid.UUID    `json:"from"`
	To    uuid.UUID    `json:"to,omitempty"`
	Data  any          `json:"data"`
	Time  time.Time    `json:"time"`
	Class MessageClass `json:"type"`
}

// EventKind tags the variant carried by an Event envelope.
type EventKind string

const (
	EventJoinChannel EventKind = "JoinChannel"
	EventExitChannel EventKind = "ExitChannel"
	EventChangeState EventKind = "ChangeState"
	EventFriendReq   EventKind = "FriendReq"
	EventJoinReq     EventKind = "JoinReq"
)

// JoinChannelPayload is the body of a JoinChannel event.
type JoinChannelPayload struct {
	RoomID uuid.UUID `json:"room_id"`
	Direct bool      `json:"direct"`
}

// ExitChannelPayload is the body of an ExitChannel event.
type ExitChannelPayload struct {
	Direct bool `json:"direct"`
}

// EventPayload is the tagged-union body of an Event. Exactly one variant
// pointer is populated; the wire key names the variant. Kind is not part
// of the JSON encoding and is left empty by decoding.
type EventPayload struct {
	Kind EventKind `json:"-"`

	JoinChannel *JoinChannelPayload `json:"JoinChannel,omitempty"`
	ExitChannel *ExitChannelPayload `json:"ExitChannel,omitempty"`
	ChangeState *PresenceState      `json:"ChangeState,omitempty"`
	FriendReq   *uuid.UUID          `json:"FriendReq,omitempty"`
	JoinReq     *uuid.UUID          `json:"JoinReq,omitempty"`
}

// Event is an inbound control-channel envelope distinct from Message.
type Event struct {
	Time  time.Time    `json:"time"`
	Event EventPayload `json:"event"`
}

// ControlHandle is the opaque sink a live User is reachable through. It is
// implemented by the transport package's per-connection session and
// referenced here so the presence/room packages never import transport.
type ControlHandle interface {
	Send(payload any)
	SendPong(data []byte)
	UserID() uuid.UUID
}

// User is the Presence Registry's live record for a connected principal.
// Created on control-channel upgrade, mutated only by that user's Control
// Session, removed on close.
type User struct {
	Username string
	State    PresenceState
	Handle   ControlHandle
}

// SignalEnvelope is the shape of offer/answer/ice-candidate frames
// exchanged over the control channel. The /rtc/candidate endpoint takes a
// CandidateBody instead.
type SignalEnvelope struct {
	Type   string    `json:"type"`
	SDP    string    `json:"sdp,omitempty"`
	Data   any       `json:"data,omitempty"`
	ChatID uuid.UUID `json:"chat_id,omitempty"`
}

// CandidateBody is the decoded shape of an inbound ICE candidate frame.
type CandidateBody struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment"`
}

// ErrorFrame is the outbound shape for a failed operation reported back
// over the control channel.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewErrorFrame wraps a Go error in the wire error envelope.
func NewErrorFrame(err error) ErrorFrame {
	return ErrorFrame{Type: "error", Error: err.Error()}
}

// ServerEventData is the payload of an outbound Server-class message
// summarizing a presence or channel change to interested peers.
type ServerEventData struct {
	Event string `json:"event"`
	State string `json:"state,omitempty"`
}
