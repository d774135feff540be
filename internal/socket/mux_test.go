package socket

import (
	"sync"

	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

// fakeMux is a Multiplexer test double: Execute runs inline, WriteFrame and
// OnStreamClosed just record what happened.
type fakeMux struct {
	mu            sync.Mutex
	frames        []framing.Frame
	closedStreams []uint32
}

func (m *fakeMux) WriteFrame(fr framing.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, fr)
}

func (m *fakeMux) OnStreamClosed(streamID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closedStreams = append(m.closedStreams, streamID)
}

func (m *fakeMux) Execute(fn func()) {
	fn()
}

func (m *fakeMux) last() framing.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

func (m *fakeMux) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func (m *fakeMux) wasClosed(streamID uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.closedStreams {
		if id == streamID {
			return true
		}
	}
	return false
}

// fakeResponseCallback is a ResponseCallback test double.
type fakeResponseCallback struct {
	responses []payload.Payload
	errs      []error
}

func (c *fakeResponseCallback) OnResponse(p payload.Payload) { c.responses = append(c.responses, p) }
func (c *fakeResponseCallback) OnError(err error)            { c.errs = append(c.errs, err) }

// fakeStreamCallback is a StreamCallback test double.
type fakeStreamCallback struct {
	nexts      []payload.Payload
	completed  bool
	errs       []error
}

func (c *fakeStreamCallback) OnNext(p payload.Payload) { c.nexts = append(c.nexts, p) }
func (c *fakeStreamCallback) OnComplete()              { c.completed = true }
func (c *fakeStreamCallback) OnError(err error)        { c.errs = append(c.errs, err) }

// fakeStreamSource is a StreamSource test double used by channel responder tests.
type fakeStreamSource struct {
	nexts     []payload.Payload
	completed bool
	errs      []error
}

func (s *fakeStreamSource) Next(p payload.Payload) { s.nexts = append(s.nexts, p) }
func (s *fakeStreamSource) Complete()              { s.completed = true }
func (s *fakeStreamSource) Error(err error)        { s.errs = append(s.errs, err) }
