// Package session implements the server-side bookkeeping behind a
// disconnected resumable socket: when a resumable server socket loses its
// transport, it is parked here under its resume token for a bounded
// duration, waiting for a RESUME to reclaim it.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PausedSocket is the minimal surface a parked socket must expose to the
// session manager. internal/socket's ServerSocket satisfies this.
type PausedSocket interface {
	// Close tears down the socket and any streams it still owns.
	Close() error
	// IsClosed reports whether the socket has already torn itself down
	// (e.g. because its max lifetime elapsed while parked).
	IsClosed() bool
}

// Session is one parked, disconnected resumable server socket.
type Session struct {
	id       string
	deadline time.Time
	token    []byte
	socket   PausedSocket
}

// NewSession parks socket under token until deadline.
func NewSession(deadline time.Time, token []byte, socket PausedSocket) *Session {
	return &Session{
		id:       uuid.New().String(),
		deadline: deadline,
		token:    token,
		socket:   socket,
	}
}

// Socket returns the parked socket.
func (s *Session) Socket() PausedSocket {
	return s.socket
}

// Token returns the resume token this session is keyed by.
func (s *Session) Token() []byte {
	return s.token
}

// Deadline returns when this session expires if not resumed.
func (s *Session) Deadline() time.Time {
	return s.deadline
}

// IsDead reports whether the session's deadline has passed or its socket has
// already closed itself.
func (s *Session) IsDead() bool {
	return time.Now().After(s.deadline) || s.socket.IsClosed()
}

// Close tears down the parked socket.
func (s *Session) Close() error {
	return s.socket.Close()
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{id=%s, deadline=%s}", s.id, s.deadline.Format(time.RFC3339))
}
