// Package resume implements an append-only log of outbound resumable frame
// bytes keyed by absolute position, with a low/high water mark and inbound
// position tracking, used to support warm RESUME.
package resume

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// entry is one cached outbound frame, tagged with the absolute byte offset
// (within the outbound resumable stream) at which it starts.
type entry struct {
	position uint64
	frame    []byte
}

// ErrPositionEvicted is returned by ReplayFrom when the requested position
// has already been trimmed from the cache.
var ErrPositionEvicted = errors.New("resume: requested position no longer retained")

// Manager is an append-only ring of outbound frames with absolute positions,
// plus the last-received inbound position. It is owned exclusively by one
// connection and mutated only on that connection's single executor; it
// performs no internal locking, except for the last-received counter, which
// is atomic for cross-goroutine reads by callers like statistics export.
type Manager struct {
	entries []entry
	low     uint64
	high    uint64

	lastReceivedPosition atomic.Uint64
}

// NewManager creates an empty resume cache starting at position 0.
func NewManager() *Manager {
	return &Manager{}
}

// Append records an outbound resumable frame's encoded bytes and returns the
// absolute position it was assigned (the position of its first byte).
func (m *Manager) Append(frame []byte) uint64 {
	pos := m.high
	m.entries = append(m.entries, entry{position: pos, frame: frame})
	m.high += uint64(len(frame))
	return pos
}

// MarkReceived advances the last-received inbound position by n bytes, for
// every resumable frame actually decoded off the wire.
func (m *Manager) MarkReceived(n int) {
	m.lastReceivedPosition.Add(uint64(n))
}

// LastReceivedPosition returns the absolute count of resumable bytes
// received so far.
func (m *Manager) LastReceivedPosition() uint64 {
	return m.lastReceivedPosition.Load()
}

// Low returns the lowest position still retained.
func (m *Manager) Low() uint64 {
	return m.low
}

// High returns the position just past the last cached byte (the next
// position that will be assigned).
func (m *Manager) High() uint64 {
	return m.high
}

// IsPositionAvailable reports whether p still falls within [Low, High].
func (m *Manager) IsPositionAvailable(p uint64) bool {
	return p >= m.low && p <= m.high
}

// ReplayFrom returns, in order, the raw bytes of every cached frame whose
// bytes extend past from (a frame that starts before from and ends after it
// is included). It is the caller's job to write them back out
// in order, exactly once.
func (m *Manager) ReplayFrom(from uint64) ([][]byte, error) {
	if !m.IsPositionAvailable(from) {
		return nil, ErrPositionEvicted
	}
	var out [][]byte
	for _, e := range m.entries {
		upperBound := e.position + uint64(len(e.frame))
		if upperBound <= from {
			continue
		}
		out = append(out, e.frame)
	}
	return out, nil
}

// Trim drops every cached entry whose upper bound is <= ackedUpTo, advancing
// the low water mark. Called when the peer acknowledges it has durably
// received up to that position.
func (m *Manager) Trim(ackedUpTo uint64) {
	i := 0
	for ; i < len(m.entries); i++ {
		upperBound := m.entries[i].position + uint64(len(m.entries[i].frame))
		if upperBound > ackedUpTo {
			break
		}
	}
	if i == 0 {
		return
	}
	m.entries = m.entries[i:]
	if ackedUpTo > m.low {
		m.low = ackedUpTo
	}
}
