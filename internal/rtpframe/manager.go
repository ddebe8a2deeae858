package rtpframe

import (
	"sync"

	"github.com/pion/rtp"
)

// Manager keys arriving RTP packets by timestamp, routing each to its
// Frame and reporting when a frame becomes complete so a consumer can
// extract its payload. It is the entry point the media path calls into;
// Frame itself assumes single-threaded access.
type Manager struct {
	mu        sync.Mutex
	frameType FrameType
	frames    map[uint32]*Frame
}

// NewManager creates a Manager that builds frames of the given media type.
func NewManager(frameType FrameType) *Manager {
	return &Manager{
		frameType: frameType,
		frames:    make(map[uint32]*Frame),
	}
}

// AddPacket routes p to the frame for its timestamp, creating one on first
// arrival. It returns the frame and whether that frame is now complete.
func (m *Manager) AddPacket(p *rtp.Packet) (*Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := p.Header.Timestamp
	f, ok := m.frames[ts]
	if !ok {
		f = New(ts, m.frameType)
		m.frames[ts] = f
	}
	f.AddPacket(p)
	return f, f.IsComplete()
}

// Evict removes and returns the frame for a timestamp, if any. Consumers
// call this once they have finished with a completed frame, or a timeout
// policy calls it to drop a frame that never completed.
func (m *Manager) Evict(timestamp uint32) (*Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.frames[timestamp]
	if ok {
		delete(m.frames, timestamp)
	}
	return f, ok
}

// Pending reports how many frames are currently held awaiting completion
// or eviction.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}
