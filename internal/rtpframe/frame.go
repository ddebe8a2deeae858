// Package rtpframe groups RTP packets sharing a media timestamp into a
// frame, detects completeness via the marker bit and sequence contiguity,
// and reconstitutes the frame's payload.
package rtpframe

import (
	"sort"

	"github.com/pion/rtp"
)

// FrameType identifies the media payload carried by a frame, used to select
// a payload-stripping Strategy.
type FrameType int

const (
	Other FrameType = iota
	H264
	VP8
	Audio
)

// Strategy adapts payload extraction to a specific media type, e.g.
// stripping a VP8 payload descriptor before concatenation. RawStrategy,
// used for every frame type other than VP8, returns payloads unmodified.
type Strategy interface {
	ExtractPayload(packet *rtp.Packet) []byte
}

// RawStrategy concatenates packet payloads with no stripping. It is the
// base contract's default.
type RawStrategy struct{}

// ExtractPayload implements Strategy.
func (RawStrategy) ExtractPayload(packet *rtp.Packet) []byte {
	return packet.Payload
}

// VP8Strategy strips the one-byte VP8 payload descriptor (RFC 7741 §4.2)
// that precedes the VP8 bitstream in every RTP packet of a VP8 frame. It
// does not handle the extended/picture-ID descriptor variants; those would
// need a richer adapter.
type VP8Strategy struct{}

// ExtractPayload implements Strategy.
func (VP8Strategy) ExtractPayload(packet *rtp.Packet) []byte {
	if len(packet.Payload) < 1 {
		return packet.Payload
	}
	return packet.Payload[1:]
}

// Frame aggregates the RTP packets belonging to one media sample, all
// sharing the same RTP timestamp. Frame is not safe for concurrent use;
// callers that hand packets to a Frame from multiple goroutines must
// serialize access themselves (see Manager for a keyed, lock-protected
// multiplexer).
type Frame struct {
	Timestamp        uint32
	FrameType        FrameType
	HasBeenProcessed bool
	hasMarker        bool
	packets          []*rtp.Packet
	strategy         Strategy
}

// New creates an empty frame for the given timestamp and media type. The
// frame has no packets until AddPacket is called; per the data model, a
// Frame is only constructed on the arrival of its first packet, so callers
// should call New and AddPacket together.
func New(timestamp uint32, frameType FrameType) *Frame {
	return &Frame{
		Timestamp: timestamp,
		FrameType: frameType,
		strategy:  strategyFor(frameType),
	}
}

func strategyFor(frameType FrameType) Strategy {
	if frameType == VP8 {
		return VP8Strategy{}
	}
	return RawStrategy{}
}

// AddPacket appends p to the frame. It does not validate that p.Timestamp
// matches the frame's timestamp; callers (the Manager) are responsible for
// keying packets to the correct frame.
func (f *Frame) AddPacket(p *rtp.Packet) {
	f.packets = append(f.packets, p)
	if p.Header.Marker {
		f.hasMarker = true
	}
}

// Count returns the number of packets currently held.
func (f *Frame) Count() int {
	return len(f.packets)
}

// HasMarker reports whether any added packet carried the marker bit.
func (f *Frame) HasMarker() bool {
	return f.hasMarker
}

// seqGreater reports whether b comes strictly after a in 16-bit modular
// sequence order: b > a iff (b-a) mod 2^16 is in (0, 2^15). This follows
// the spec's recommended wrap-aware ordering rather than a raw numeric
// comparison, which breaks across a sequence-number wrap.
func seqGreater(a, b uint16) bool {
	diff := b - a
	return diff != 0 && diff < 1<<15
}

func (f *Frame) sortedPackets() []*rtp.Packet {
	sorted := make([]*rtp.Packet, len(f.packets))
	copy(sorted, f.packets)
	sort.Slice(sorted, func(i, j int) bool {
		si, sj := sorted[i].Header.SequenceNumber, sorted[j].Header.SequenceNumber
		if si == sj {
			return false
		}
		return seqGreater(si, sj)
	})
	return sorted
}

// StartSequence returns the minimum sequence number currently held, under
// 16-bit modular ordering. Returns 0 for an empty frame.
func (f *Frame) StartSequence() uint16 {
	if len(f.packets) == 0 {
		return 0
	}
	return f.sortedPackets()[0].Header.SequenceNumber
}

// EndSequence returns the maximum sequence number currently held, under
// 16-bit modular ordering. Returns 0 for an empty frame.
func (f *Frame) EndSequence() uint16 {
	if len(f.packets) == 0 {
		return 0
	}
	sorted := f.sortedPackets()
	return sorted[len(sorted)-1].Header.SequenceNumber
}

// IsComplete reports whether the frame carries the marker bit and its
// packets form a contiguous sequence-number run with no gaps. Duplicate
// sequence numbers (retransmits) fail the adjacency check and so are never
// reported complete.
func (f *Frame) IsComplete() bool {
	if !f.hasMarker || len(f.packets) == 0 {
		return false
	}
	sorted := f.sortedPackets()
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].Header.SequenceNumber
		cur := sorted[i].Header.SequenceNumber
		if cur-prev != 1 {
			return false
		}
	}
	return true
}

// Payload returns the concatenation of all packet payloads in ascending
// sequence order, run through the frame's strategy (raw concatenation by
// default, descriptor-stripping for media types like VP8).
func (f *Frame) Payload() []byte {
	sorted := f.sortedPackets()
	var out []byte
	for _, p := range sorted {
		out = append(out, f.strategy.ExtractPayload(p)...)
	}
	return out
}
