package session

import (
	"container/heap"
	"sync"
)

// Manager stores parked sessions keyed by resume token and ordered by
// deadline for cheap "clean the dead ones first" sweeps, driven by the
// server's periodic session-clean loop.
type Manager struct {
	mu    sync.Mutex
	queue sessionHeap
	byTok map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{byTok: make(map[string]*Session)}
}

// Push parks s, keyed by its token and ordered by its deadline.
func (m *Manager) Push(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTok[string(s.Token())] = s
	heap.Push(&m.queue, s)
}

// Pop removes and returns the session with the nearest deadline.
func (m *Manager) Pop() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queue.Len() == 0 {
		return nil
	}
	s := heap.Pop(&m.queue).(*Session)
	delete(m.byTok, string(s.Token()))
	return s
}

// Load looks up a parked session by token, removing it from the manager if
// found (resume either succeeds and reclaims it, or fails and the caller
// discards it).
func (m *Manager) Load(token []byte) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byTok[string(token)]
	if !ok {
		return nil, false
	}
	delete(m.byTok, string(token))
	m.queue.remove(s)
	return s, true
}

// Len returns the number of parked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// sessionHeap is a minimal container/heap.Interface ordered by deadline,
// with an O(n) remove used only on the (rare) resume-reclaim path.
type sessionHeap []*Session

func (h sessionHeap) Len() int            { return len(h) }
func (h sessionHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h sessionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sessionHeap) Push(x interface{}) { *h = append(*h, x.(*Session)) }
func (h *sessionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h *sessionHeap) remove(target *Session) {
	for i, s := range *h {
		if s == target {
			heap.Remove(h, i)
			return
		}
	}
}
