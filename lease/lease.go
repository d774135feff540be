// Package lease implements the optional LEASE feature: a permit budget the
// receiving side grants the sending side, refreshed periodically. This
// package enforces permits globally across the connection rather than per
// interaction type: a single global budget is the simpler, safer default,
// and a caller wanting per-type budgets can compose several Leases.
package lease

import "time"

// Lease is one granted permit budget: numberOfRequests permits, valid for
// timeToLive.
type Lease struct {
	TimeToLive      time.Duration
	NumberOfRequests uint32
}

// Leases is a source of successive Lease grants, polled by the side that
// grants permits to its peer (e.g. a server limiting concurrent client
// requests). Implementations decide their own refresh cadence; the
// connection machine only asks "give me the next lease to send" when it
// decides to emit one.
type Leases interface {
	// Next returns the channel on which successive leases are published.
	// Closing the returned channel stops the feature.
	Next() <-chan Lease
}

// simpleLeases grants a fixed lease on a fixed interval, the common case.
type simpleLeases struct {
	ch chan Lease
}

// NewSimple creates a Leases that republishes the same (ttl, n) lease every
// interval, until stop is closed.
func NewSimple(ttl time.Duration, n uint32, interval time.Duration, stop <-chan struct{}) Leases {
	ch := make(chan Lease)
	go func() {
		defer close(ch)
		t := time.NewTicker(interval)
		defer t.Stop()
		select {
		case ch <- Lease{TimeToLive: ttl, NumberOfRequests: n}:
		case <-stop:
			return
		}
		for {
			select {
			case <-t.C:
				select {
				case ch <- Lease{TimeToLive: ttl, NumberOfRequests: n}:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return &simpleLeases{ch: ch}
}

func (s *simpleLeases) Next() <-chan Lease {
	return s.ch
}

// Budget tracks remaining permits granted by a peer's LEASE frames, enforced
// globally across the connection (see package doc).
type Budget struct {
	remaining uint32
	expiresAt time.Time
}

// Grant installs a newly received lease, replacing whatever budget remained.
func (b *Budget) Grant(l Lease) {
	b.remaining = l.NumberOfRequests
	b.expiresAt = time.Now().Add(l.TimeToLive)
}

// Allow reports whether a new request may be sent under the current budget,
// consuming one permit if so.
func (b *Budget) Allow() bool {
	if b.remaining == 0 || time.Now().After(b.expiresAt) {
		return false
	}
	b.remaining--
	return true
}
