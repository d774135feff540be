// Package socket implements the per-stream state machine variants and the
// connection-level multiplexer: the demux table, fragmentation hookup,
// resume bookkeeping, and the four interaction-type state machines.
package socket

import (
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

// Role fixes whether a connection allocates odd (Client) or even (Server)
// stream ids.
type Role int

// Roles.
const (
	RoleClient Role = iota
	RoleServer
)

// Signal is a terminal stream signal.
type Signal int

// Terminal signals a StreamStateMachine can receive or report.
const (
	SignalComplete Signal = iota
	SignalApplicationError
	SignalCancel
	SignalConnectionError
	SignalStreamError
	SignalInvalid
)

func (s Signal) String() string {
	switch s {
	case SignalComplete:
		return "complete"
	case SignalApplicationError:
		return "application-error"
	case SignalCancel:
		return "cancel"
	case SignalConnectionError:
		return "connection-error"
	case SignalStreamError:
		return "stream-error"
	case SignalInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// StreamStateMachine is the per-stream base contract: a sink and source of
// frames for one of the four interaction types.
type StreamStateMachine interface {
	// OnFrame handles one inbound frame routed to this stream by the
	// multiplexer. Frame types outside what this stream type expects are
	// ignored rather than erroring, matching real-world tolerance of
	// reordered REQUEST_N/CANCEL races.
	OnFrame(fr framing.Frame)
	// Close tears the stream down with the given terminal signal and
	// notifies the multiplexer via OnStreamClosed exactly once.
	Close(sig Signal, cause error)
}

// Multiplexer is the weak, lookup-only back-reference a stream state machine
// holds to its owning connection, avoiding a reference cycle. It only
// exposes what a stream machine needs: writing a frame out and announcing
// its own terminal close.
type Multiplexer interface {
	// WriteFrame hands fr to the connection's outbound writer contract:
	// queued while Disconnected/Resuming, otherwise serialized and sent
	// immediately.
	WriteFrame(fr framing.Frame)
	// OnStreamClosed is called exactly once by a stream machine on its own
	// terminal transition, so the multiplexer can drop its demux entry.
	OnStreamClosed(streamID uint32)
	// Execute runs fn against the connection's state, dropping it silently
	// if the connection is gone. Duplex runs fn inline on the calling
	// goroutine; it does not move work from other goroutines onto a
	// separate executor.
	Execute(fn func())
}

// ResponseSink is how a REQUEST_RESPONSE responder reports its one result.
type ResponseSink interface {
	Success(p payload.Payload)
	Error(err error)
}

// StreamSink is how a REQUEST_STREAM/REQUEST_CHANNEL responder emits zero or
// more values and a terminal signal to its peer.
type StreamSink interface {
	Next(p payload.Payload)
	Complete()
	Error(err error)
}

// StreamSource is how a REQUEST_CHANNEL responder observes values arriving
// from the requester on the same stream.
type StreamSource interface {
	Next(p payload.Payload)
	Complete()
	Error(err error)
}

// RequestHandler is the user-provided request responder: accept an initial
// payload (and, for streams/channels, the requester's initial demand) and
// drive the corresponding sink.
//
// RequestChannel is given a StreamSink for emitting values back to the
// requester, and must return a StreamSource that will receive the
// requester's own subsequent values on the same (bidirectional) stream.
type RequestHandler interface {
	FireAndForget(p payload.Payload)
	RequestResponse(p payload.Payload, sink ResponseSink)
	RequestStream(p payload.Payload, initialN uint32, sink StreamSink)
	RequestChannel(p payload.Payload, initialN uint32, sink StreamSink) StreamSource
	MetadataPush(metadata []byte)
}
