package room

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/azizhankaya/thiscrow/internal/v1/types"
)

// PeerSlot is a room-local object owning exactly one peer-connection for
// one user. outbound holds the static-RTP tracks this slot is currently
// receiving from Relay Tasks publishing on behalf of other members, keyed
// by trackKey(incoming track id, source, target) so a Relay Task can find
// its own sender.
type PeerSlot struct {
	userID uuid.UUID
	handle types.ControlHandle
	pc     *webrtc.PeerConnection

	// signalMu serializes create_offer/set_local_description pairs on pc
	// so concurrent Relay Tasks renegotiating the same target don't glare.
	signalMu sync.Mutex

	mu       sync.Mutex
	outbound map[string]*webrtc.RTPSender
}

func newPeerSlot(userID uuid.UUID, handle types.ControlHandle, pc *webrtc.PeerConnection) *PeerSlot {
	return &PeerSlot{
		userID:   userID,
		handle:   handle,
		pc:       pc,
		outbound: make(map[string]*webrtc.RTPSender),
	}
}

func (p *PeerSlot) addOutbound(key string, sender *webrtc.RTPSender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outbound[key] = sender
}

func (p *PeerSlot) removeOutbound(key string) (*webrtc.RTPSender, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sender, ok := p.outbound[key]
	if ok {
		delete(p.outbound, key)
	}
	return sender, ok
}

// renegotiate creates a fresh offer on this slot's peer-connection and
// pushes it to the owning user's control handle as a server-initiated
// renegotiation announcement. Callers must not hold signalMu.
func (p *PeerSlot) renegotiate() error {
	p.signalMu.Lock()
	defer p.signalMu.Unlock()

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return err
	}

	p.handle.Send(types.SignalEnvelope{Type: "offer", SDP: offer.SDP})
	return nil
}

func (p *PeerSlot) close() error {
	return p.pc.Close()
}
