package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/metrics"
)

// relayFanOut bounds the number of concurrent outbound RTP writes per
// pump iteration (spec: approximately 5 in flight).
const relayFanOut = 5

// relayTask reads RTP from one inbound audio track and writes copies to
// every other PeerSlot in the room, renegotiating each target's
// peer-connection once up front to carry the new track.
func relayTask(ctx context.Context, reg *Registry, roomID, source uuid.UUID, incoming *webrtc.TrackRemote) {
	rm, ok := reg.get(roomID)
	if !ok {
		return
	}

	outbound := subscribeTargets(ctx, rm, roomID, source, incoming)
	if len(outbound) == 0 {
		logging.Info(ctx, "relay task started with no targets",
			zap.String("room_id", roomID.String()), zap.String("source", source.String()))
	}

	var mu sync.Mutex
	sem := make(chan struct{}, relayFanOut)
	var seq sequenceTracker

	for {
		select {
		case <-ctx.Done():
			Cleanup(reg, roomID, source)
			return
		default:
		}

		pkt, _, err := incoming.ReadRTP()
		if err != nil {
			metrics.RelayRTPPackets.WithLabelValues("read_error").Inc()
			logging.Info(ctx, "relay inbound track ended",
				zap.String("room_id", roomID.String()), zap.String("source", source.String()), zap.Error(err))
			Cleanup(reg, roomID, source)
			return
		}

		if seq.observe(pkt) {
			metrics.RelayRTPPackets.WithLabelValues("sequence_gap").Inc()
		}

		mu.Lock()
		snapshot := make(map[uuid.UUID]*webrtc.TrackLocalStaticRTP, len(outbound))
		for id, local := range outbound {
			snapshot[id] = local
		}
		mu.Unlock()

		var wg sync.WaitGroup
		var removalsMu sync.Mutex
		var removals []uuid.UUID

		for targetID, local := range snapshot {
			wg.Add(1)
			sem <- struct{}{}
			go func(targetID uuid.UUID, local *webrtc.TrackLocalStaticRTP) {
				defer wg.Done()
				defer func() { <-sem }()

				if werr := local.WriteRTP(pkt); werr != nil {
					reason := "write_error"
					if errors.Is(werr, io.ErrClosedPipe) {
						reason = "closed_pipe"
					} else {
						logging.Error(ctx, "relay write failed",
							zap.String("room_id", roomID.String()), zap.String("target", targetID.String()), zap.Error(werr))
					}
					metrics.RelayTargetsRemoved.WithLabelValues(reason).Inc()
					removalsMu.Lock()
					removals = append(removals, targetID)
					removalsMu.Unlock()
					return
				}
				metrics.RelayRTPPackets.WithLabelValues("forwarded").Inc()
			}(targetID, local)
		}
		wg.Wait()

		if len(removals) > 0 {
			mu.Lock()
			for _, id := range removals {
				delete(outbound, id)
			}
			mu.Unlock()
			for _, id := range removals {
				Cleanup(reg, roomID, id)
			}
		}
	}
}

// subscribeTargets snapshots current room membership, adds an outbound
// track to every target's peer-connection, and renegotiates each target
// once to carry it. Targets whose renegotiation fails have their track
// removed and are skipped.
func subscribeTargets(ctx context.Context, rm *Room, roomID, source uuid.UUID, incoming *webrtc.TrackRemote) map[uuid.UUID]*webrtc.TrackLocalStaticRTP {
	outbound := make(map[uuid.UUID]*webrtc.TrackLocalStaticRTP)

	for _, target := range rm.snapshotOthers(source) {
		local, err := webrtc.NewTrackLocalStaticRTP(
			incoming.Codec().RTPCodecCapability,
			incoming.ID(),
			incoming.StreamID(),
		)
		if err != nil {
			logging.Error(ctx, "failed to create outbound track",
				zap.String("room_id", roomID.String()), zap.String("target", target.userID.String()), zap.Error(err))
			continue
		}

		sender, err := target.pc.AddTrack(local)
		if err != nil {
			logging.Error(ctx, "failed to add outbound track",
				zap.String("room_id", roomID.String()), zap.String("target", target.userID.String()), zap.Error(err))
			continue
		}
		go drainRTCP(sender)

		key := trackKey(incoming.ID(), source, target.userID)
		target.addOutbound(key, sender)

		if err := target.renegotiate(); err != nil {
			logging.Info(ctx, "target unreachable for renegotiation, dropping track",
				zap.String("room_id", roomID.String()), zap.String("target", target.userID.String()), zap.Error(err))
			target.removeOutbound(key)
			target.pc.RemoveTrack(sender)
			continue
		}
		metrics.RenegotiationsSent.Inc()

		outbound[target.userID] = local
	}

	return outbound
}

func trackKey(incomingID string, source, target uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", incomingID, source, target)
}

// sequenceTracker flags non-consecutive RTP sequence numbers on an
// inbound track, surfaced as a metric rather than acted on: the relay
// forwards packets as they arrive and leaves jitter-buffer concealment
// to each receiving client.
type sequenceTracker struct {
	last uint16
	have bool
}

// observe reports whether pkt's sequence number skipped ahead of the
// previous packet seen on this track.
func (t *sequenceTracker) observe(pkt *rtp.Packet) bool {
	gapped := t.have && pkt.SequenceNumber != t.last+1
	t.last = pkt.SequenceNumber
	t.have = true
	return gapped
}

// drainRTCP discards RTCP feedback (PLI/NACK) on an RTP sender; the read
// loop must run or the sender's internal buffer blocks future writes.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
