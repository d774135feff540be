package socket

import (
	"context"

	"github.com/flowmux/rsocket/internal/transport"
	"github.com/flowmux/rsocket/lease"
)

// ServerSocket is the server-side RSocket: a Duplex plus the bookkeeping the
// top-level server needs around accept/resume (a responder installed after
// construction, once the acceptor callback has run, and the Transport it's
// currently bound to).
type ServerSocket struct {
	*Duplex
}

// NewServerDuplexRSocket creates the server-side Duplex, without yet fixing
// a responder or resume token; the caller installs those once its acceptor
// callback runs.
func NewServerDuplexRSocket(fragment int, leases lease.Leases) *ServerSocket {
	return &ServerSocket{Duplex: NewDuplex(RoleServer, nil, fragment, leases)}
}

// SetResponder installs the application's RequestHandler.
func (s *ServerSocket) SetResponder(responder RequestHandler) {
	s.Duplex.handler = responder
}

// SetTransport binds (or rebinds, on resume) the live transport.
func (s *ServerSocket) SetTransport(tp *transport.Transport) {
	if s.Duplex.tp == nil {
		s.Duplex.Bind(tp)
		return
	}
	s.Duplex.Reconnect(tp)
}

// EnableToken turns this socket into a resumable one, keyed by token.
func (s *ServerSocket) EnableToken(token []byte) {
	s.Duplex.EnableResume(token)
}

// Start runs the bound transport's read-dispatch loop.
func (s *ServerSocket) Start(ctx context.Context) error {
	return s.Duplex.Start(ctx)
}
