package room

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// ProcessOffer applies a client-side offer to the user's PeerSlot and
// returns the answer SDP to send back.
func ProcessOffer(reg *Registry, roomID, userID uuid.UUID, sdp string) (string, error) {
	rm, ok := reg.get(roomID)
	if !ok {
		return "", ErrNotFound
	}
	slot, ok := rm.get(userID)
	if !ok {
		return "", ErrConflict
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}

	slot.signalMu.Lock()
	defer slot.signalMu.Unlock()

	if err := slot.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	answer, err := slot.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if err := slot.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return answer.SDP, nil
}

// ProcessAnswer applies a client-side answer to the user's PeerSlot,
// completing either the initial negotiation or a server-initiated
// renegotiation.
func ProcessAnswer(reg *Registry, roomID, userID uuid.UUID, sdp string) error {
	rm, ok := reg.get(roomID)
	if !ok {
		return ErrNotFound
	}
	slot, ok := rm.get(userID)
	if !ok {
		return ErrConflict
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}

	slot.signalMu.Lock()
	defer slot.signalMu.Unlock()

	if err := slot.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// ProcessICECandidate adds an ICE candidate supplied by the client to the
// user's PeerSlot.
func ProcessICECandidate(reg *Registry, roomID, userID uuid.UUID, body types.CandidateBody) error {
	rm, ok := reg.get(roomID)
	if !ok {
		return ErrNotFound
	}
	slot, ok := rm.get(userID)
	if !ok {
		return ErrNotFound
	}

	init := webrtc.ICECandidateInit{
		Candidate:        body.Candidate,
		SDPMid:           body.SDPMid,
		SDPMLineIndex:    body.SDPMLineIndex,
		UsernameFragment: body.UsernameFragment,
	}
	if err := slot.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}
