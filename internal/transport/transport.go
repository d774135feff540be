// Package transport implements the socket-level duplex byte transport
// collaborator, plus the concrete TCP/QUIC/WebSocket Conn implementations
// the URI parser selects between.
package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/logger"
)

type (
	// FrameHandler is invoked with each frame dispatched off the wire.
	FrameHandler = func(frame framing.Frame) (err error)
	// ServerTransportAcceptor is invoked once per accepted connection.
	ServerTransportAcceptor = func(ctx context.Context, tp *Transport)
)

var errTransportClosed = errors.New("transport closed")

// Conn is the ordered, reliable byte-framed duplex channel a transport runs
// over: it delivers complete decoded frames upward and accepts complete
// frames downward, with no partial writes exposed.
type Conn interface {
	Read() (framing.Frame, error)
	// ReadRaw reads one complete framed buffer (header+body, no length
	// prefix) without decoding it, so the very first frame of a connection
	// can be probed for its proposed protocol version before a fixed-version
	// decode commits to it.
	ReadRaw() ([]byte, error)
	Write(frame framing.Frame) error
	Flush() error
	Close() error
	SetDeadline(deadline time.Time) error
	SetCounter(c *Counter)
}

// ServerTransport is server-side RSocket transport: it owns a listener and
// hands each accepted Conn to an acceptor as a *Transport.
type ServerTransport interface {
	io.Closer
	Accept(acceptor ServerTransportAcceptor)
	Listen(ctx context.Context, notifier chan<- struct{}) error
}

// Transport is the per-connection wrapper around a Conn, dispatching each
// decoded inbound frame to the handler registered for its type. It is the
// seam a connection reads from and writes through.
type Transport struct {
	conn        Conn
	maxLifetime time.Duration
	once        sync.Once
	serializer  *framing.Serializer

	hSetup           FrameHandler
	hResume          FrameHandler
	hLease           FrameHandler
	hResumeOK        FrameHandler
	hFireAndForget   FrameHandler
	hMetadataPush    FrameHandler
	hRequestResponse FrameHandler
	hRequestStream   FrameHandler
	hRequestChannel  FrameHandler
	hPayload         FrameHandler
	hRequestN        FrameHandler
	hError           FrameHandler
	hError0          FrameHandler
	hCancel          FrameHandler
	hKeepalive       FrameHandler
}

func newTransportClient(c Conn) *Transport {
	return &Transport{
		conn:        c,
		maxLifetime: common.DefaultKeepaliveMaxLifetime,
		serializer:  framing.NewSerializer(framing.Version{}),
	}
}

// SetCounter installs byte counters for statistics export, exposed here only
// as the seam a caller may wire up.
func (p *Transport) SetCounter(c *Counter) {
	p.conn.SetCounter(c)
}

// Connection returns the underlying Conn, e.g. so a caller can swap it
// during reconnect by constructing a fresh *Transport instead.
func (p *Transport) Connection() Conn {
	return p.conn
}

// SetLifetime sets the read deadline applied after each dispatched frame.
func (p *Transport) SetLifetime(lifetime time.Duration) {
	if lifetime < 1 {
		return
	}
	p.maxLifetime = lifetime
}

// Send writes one frame, optionally flushing the underlying writer.
func (p *Transport) Send(frame framing.Frame, flush bool) (err error) {
	defer func() {
		if err == nil {
			frame.Done()
		}
	}()
	if p == nil || p.conn == nil {
		return errTransportClosed
	}
	if err = p.conn.Write(frame); err != nil {
		return
	}
	if !flush {
		return
	}
	return p.conn.Flush()
}

// Flush flushes any buffered writes.
func (p *Transport) Flush() error {
	if p == nil || p.conn == nil {
		return errTransportClosed
	}
	return p.conn.Flush()
}

// Close closes the underlying Conn exactly once.
func (p *Transport) Close() (err error) {
	p.once.Do(func() {
		err = p.conn.Close()
	})
	return
}

// ReadFirst reads the first inbound frame, used for SETUP/RESUME detection.
// Before decoding it, the raw bytes are probed for the protocol version the
// peer proposes; a version whose major component this module doesn't speak
// is rejected before the handshake ever completes.
func (p *Transport) ReadFirst(ctx context.Context) (frame framing.Frame, err error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	raw, err := p.conn.ReadRaw()
	if err != nil {
		_ = p.Close()
		return nil, errors.Wrap(err, "read first frame failed")
	}

	if v, ok := p.serializer.ProbeFirst(raw); ok && v.Major != framing.DefaultVersion.Major {
		_ = p.Close()
		return nil, errors.Errorf("rsocket: unsupported protocol version %s", v)
	}

	frame, err = framing.DecodeFrom(raw)
	if err != nil {
		_ = p.Close()
		return nil, errors.Wrap(err, "read first frame failed")
	}
	return frame, nil
}

// Start runs the read-dispatch loop until ctx is canceled or the Conn
// terminates.
func (p *Transport) Start(ctx context.Context) (err error) {
	defer func() { _ = p.Close() }()
L:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			f, rerr := p.conn.Read()
			if rerr != nil {
				err = rerr
				break L
			}
			if derr := p.DispatchFrame(ctx, f); derr != nil {
				err = derr
				break L
			}
		}
	}
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read and dispatch frame failed")
	}
	return nil
}

// HandleSetup registers the SETUP handler.
func (p *Transport) HandleSetup(h FrameHandler) { p.hSetup = h }

// HandleResume registers the RESUME handler.
func (p *Transport) HandleResume(h FrameHandler) { p.hResume = h }

// HandleLease registers the LEASE handler.
func (p *Transport) HandleLease(h FrameHandler) { p.hLease = h }

// HandleResumeOK registers the RESUME_OK handler.
func (p *Transport) HandleResumeOK(h FrameHandler) { p.hResumeOK = h }

// HandleFNF registers the REQUEST_FNF handler.
func (p *Transport) HandleFNF(h FrameHandler) { p.hFireAndForget = h }

// HandleMetadataPush registers the METADATA_PUSH handler.
func (p *Transport) HandleMetadataPush(h FrameHandler) { p.hMetadataPush = h }

// HandleRequestResponse registers the REQUEST_RESPONSE handler.
func (p *Transport) HandleRequestResponse(h FrameHandler) { p.hRequestResponse = h }

// HandleRequestStream registers the REQUEST_STREAM handler.
func (p *Transport) HandleRequestStream(h FrameHandler) { p.hRequestStream = h }

// HandleRequestChannel registers the REQUEST_CHANNEL handler.
func (p *Transport) HandleRequestChannel(h FrameHandler) { p.hRequestChannel = h }

// HandlePayload registers the PAYLOAD handler.
func (p *Transport) HandlePayload(h FrameHandler) { p.hPayload = h }

// HandleRequestN registers the REQUEST_N handler.
func (p *Transport) HandleRequestN(h FrameHandler) { p.hRequestN = h }

// HandleError registers the stream-level ERROR handler.
func (p *Transport) HandleError(h FrameHandler) { p.hError = h }

// HandleDisaster registers the handler for a connection-level (streamId==0)
// ERROR frame.
func (p *Transport) HandleDisaster(h FrameHandler) { p.hError0 = h }

// HandleCancel registers the CANCEL handler.
func (p *Transport) HandleCancel(h FrameHandler) { p.hCancel = h }

// HandleKeepalive registers the KEEPALIVE handler.
func (p *Transport) HandleKeepalive(h FrameHandler) { p.hKeepalive = h }

// DispatchFrame routes one decoded frame to its registered handler.
func (p *Transport) DispatchFrame(_ context.Context, frame framing.Frame) (err error) {
	header := frame.Header()
	t := header.Type()
	sid := header.StreamID()

	var handler FrameHandler
	switch t {
	case framing.FrameTypeSetup:
		handler = p.hSetup
	case framing.FrameTypeResume:
		handler = p.hResume
	case framing.FrameTypeResumeOK:
		handler = p.hResumeOK
	case framing.FrameTypeRequestFNF:
		handler = p.hFireAndForget
	case framing.FrameTypeMetadataPush:
		if sid != 0 {
			logger.Warnf("rsocket: omit MetadataPush with non-zero stream id %d\n", sid)
			return nil
		}
		handler = p.hMetadataPush
	case framing.FrameTypeRequestResponse:
		handler = p.hRequestResponse
	case framing.FrameTypeRequestStream:
		handler = p.hRequestStream
	case framing.FrameTypeRequestChannel:
		handler = p.hRequestChannel
	case framing.FrameTypePayload:
		handler = p.hPayload
	case framing.FrameTypeRequestN:
		handler = p.hRequestN
	case framing.FrameTypeError:
		if sid == 0 {
			if p.hError0 != nil {
				return p.hError0(frame)
			}
			return nil
		}
		handler = p.hError
	case framing.FrameTypeCancel:
		handler = p.hCancel
	case framing.FrameTypeKeepalive:
		handler = p.hKeepalive
	case framing.FrameTypeLease:
		handler = p.hLease
	}

	deadline := time.Now().Add(p.maxLifetime)
	if err = p.conn.SetDeadline(deadline); err != nil {
		return err
	}

	if handler == nil {
		return errors.Errorf("missing frame handler: type=%s", t)
	}
	if err = handler(frame); err != nil {
		return errors.Wrap(err, "exec frame handler failed")
	}
	return nil
}
