package socket

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrStreamIDsExhausted is returned once the 31-bit stream id space wraps
// around; wraparound is treated as an error rather than silently reused.
var ErrStreamIDsExhausted = errors.New("socket: stream id space exhausted")

const maxStreamID = uint32(0x7FFFFFFF)

// StreamIDs hands out monotonically increasing stream ids of the correct
// parity for a role. cur always holds the next id to be allocated.
type StreamIDs struct {
	cur atomic.Uint32
}

// ClientStreamIDs creates a generator yielding 1, 3, 5, ... (clients
// allocate odd ids).
func ClientStreamIDs() *StreamIDs {
	s := &StreamIDs{}
	s.cur.Store(1)
	return s
}

// ServerStreamIDs creates a generator yielding 2, 4, 6, ... (servers
// allocate even ids).
func ServerStreamIDs() *StreamIDs {
	s := &StreamIDs{}
	s.cur.Store(2)
	return s
}

// Next allocates the next stream id, or ErrStreamIDsExhausted once the
// 31-bit space would wrap.
func (s *StreamIDs) Next() (uint32, error) {
	for {
		id := s.cur.Load()
		if id == 0 || id > maxStreamID {
			return 0, ErrStreamIDsExhausted
		}
		next := id + 2
		if s.cur.CAS(id, next) {
			return id, nil
		}
	}
}
