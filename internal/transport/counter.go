package transport

import "go.uber.org/atomic"

// Counter tracks resumable bytes written/read on a Conn, the raw material
// statistics export would report. It is safe for concurrent use since
// reads/writes may be reported from a different goroutine than the
// connection's executor.
type Counter struct {
	writeBytes atomic.Uint64
	readBytes  atomic.Uint64
}

// NewCounter creates a zeroed Counter.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) incrWriteBytes(n int) {
	c.writeBytes.Add(uint64(n))
}

func (c *Counter) incrReadBytes(n int) {
	c.readBytes.Add(uint64(n))
}

// WriteBytes returns the total resumable bytes written so far.
func (c *Counter) WriteBytes() uint64 {
	return c.writeBytes.Load()
}

// ReadBytes returns the total resumable bytes read so far.
func (c *Counter) ReadBytes() uint64 {
	return c.readBytes.Load()
}
