package socket

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/fragmentation"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/internal/resume"
	"github.com/flowmux/rsocket/internal/transport"
	"github.com/flowmux/rsocket/lease"
	"github.com/flowmux/rsocket/logger"
	"github.com/flowmux/rsocket/payload"
)

// connState is the coarse connection-level state: Disconnected/Connecting/
// Connected/Resuming/Closed.
type connState int32

const (
	stateConnecting connState = iota
	stateConnected
	stateDisconnected
	stateResuming
	stateClosed
)

var errStreamIDCollision = errors.New("socket: stream id already in use")

// Duplex is the connection-level multiplexer: it owns the demux table of
// active streams, the fragment-reassembly table for inbound fragmented
// requests, the optional resume cache, and the keepalive timers, and routes
// every inbound frame to the right destination. Its entry points run on the
// calling goroutine: Execute runs fn inline, and work produced on other
// goroutines is marshaled onto the connection's own path by the caller.
type Duplex struct {
	mu sync.Mutex

	role     Role
	ids      *StreamIDs
	handler  RequestHandler
	fragment int
	leases   lease.Leases

	state atomic.Int32

	tp *transport.Transport

	streams   map[uint32]StreamStateMachine
	fragments map[uint32]*fragmentation.Accumulator

	resumable  bool
	resumeMgr  *resume.Manager
	resumeTok  []byte

	keepaliveInterval time.Duration
	maxLifetime       time.Duration
	keepaliveTimer    *time.Timer
	lifetimeTimer     *time.Timer

	pending []framing.Frame

	closeOnce sync.Once
	closed    chan struct{}
}

// NewDuplex creates a ConnectionStateMachine for the given role. handler may
// be nil for a requester-only (client) socket that never accepts inbound
// requests.
func NewDuplex(role Role, handler RequestHandler, fragment int, leases lease.Leases) *Duplex {
	var ids *StreamIDs
	switch role {
	case RoleClient:
		ids = ClientStreamIDs()
	default:
		ids = ServerStreamIDs()
	}
	d := &Duplex{
		role:              role,
		ids:               ids,
		handler:           handler,
		fragment:          fragment,
		leases:            leases,
		streams:           make(map[uint32]StreamStateMachine),
		fragments:         make(map[uint32]*fragmentation.Accumulator),
		keepaliveInterval: common.DefaultKeepaliveInterval,
		maxLifetime:       common.DefaultKeepaliveMaxLifetime,
		closed:            make(chan struct{}),
	}
	d.state.Store(int32(stateConnecting))
	return d
}

// EnableResume turns on warm-RESUME bookkeeping: every resumable outbound
// frame is cached, and MarkReceived tracks inbound position.
func (d *Duplex) EnableResume(token []byte) {
	d.resumable = true
	d.resumeTok = token
	d.resumeMgr = resume.NewManager()
}

// Token returns the resume token this socket was set up with, if resumable.
func (d *Duplex) Token() ([]byte, bool) {
	if !d.resumable {
		return nil, false
	}
	return d.resumeTok, true
}

// LastReceivedPosition returns the absolute count of resumable bytes
// received so far, used to build an outbound RESUME_OK/KEEPALIVE position.
func (d *Duplex) LastReceivedPosition() uint64 {
	if !d.resumable {
		return 0
	}
	return d.resumeMgr.LastReceivedPosition()
}

// FirstAvailablePosition returns the lowest position still retained in the
// outbound resume cache, the value a reconnecting client reports as its own
// first-available-position so the peer knows how far back it can replay.
func (d *Duplex) FirstAvailablePosition() uint64 {
	if !d.resumable {
		return 0
	}
	return d.resumeMgr.Low()
}

// IsPositionAvailable reports whether pos still falls within the outbound
// resume cache, used to validate an incoming RESUME request before it is
// accepted.
func (d *Duplex) IsPositionAvailable(pos uint64) bool {
	if !d.resumable {
		return false
	}
	return d.resumeMgr.IsPositionAvailable(pos)
}

// ReplayFrom resends, directly over tp, every outbound resumable frame
// cached at or after pos, catching a reconnecting peer up to the live
// stream after a RESUME is accepted.
func (d *Duplex) ReplayFrom(pos uint64, tp *transport.Transport) error {
	if !d.resumable {
		return nil
	}
	raws, err := d.resumeMgr.ReplayFrom(pos)
	if err != nil {
		return err
	}
	for _, raw := range raws {
		fr, derr := framing.DecodeFrom(raw)
		if derr != nil {
			return derr
		}
		if serr := tp.Send(fr, true); serr != nil {
			return serr
		}
	}
	return nil
}

// SetKeepalive overrides the default keepalive interval / max lifetime,
// normally taken from the peer's SETUP.
func (d *Duplex) SetKeepalive(interval, maxLifetime time.Duration) {
	d.keepaliveInterval = interval
	d.maxLifetime = maxLifetime
}

// Bind attaches tp as the live transport and wires every frame-type handler
// into this Duplex's routing table. Any frames queued while disconnected
// are flushed immediately.
func (d *Duplex) Bind(tp *transport.Transport) {
	d.mu.Lock()
	d.tp = tp
	d.mu.Unlock()

	tp.HandleKeepalive(func(fr framing.Frame) error { d.handleKeepalive(fr.(*framing.FrameKeepalive)); return nil })
	tp.HandleDisaster(func(fr framing.Frame) error { d.handleConnectionError(fr.(*framing.FrameError)); return nil })
	tp.HandleMetadataPush(func(fr framing.Frame) error { d.handleMetadataPush(fr.(*framing.FrameMetadataPush)); return nil })
	tp.HandleLease(func(fr framing.Frame) error { return nil })
	tp.HandleResume(func(fr framing.Frame) error { return nil })
	tp.HandleResumeOK(func(fr framing.Frame) error { return nil })
	tp.HandleFNF(func(fr framing.Frame) error { d.handleFNF(fr.(*framing.FrameRequestFNF)); return nil })
	tp.HandleRequestResponse(func(fr framing.Frame) error { d.handleRequestResponse(fr.(*framing.FrameRequestResponse)); return nil })
	tp.HandleRequestStream(func(fr framing.Frame) error { d.handleRequestStream(fr.(*framing.FrameRequestStream)); return nil })
	tp.HandleRequestChannel(func(fr framing.Frame) error { d.handleRequestChannel(fr.(*framing.FrameRequestChannel)); return nil })
	tp.HandlePayload(func(fr framing.Frame) error {
		p := fr.(*framing.FramePayload)
		if d.continueFragment(p) {
			return nil
		}
		d.routeToStream(fr)
		return nil
	})
	tp.HandleRequestN(func(fr framing.Frame) error { d.routeToStream(fr); return nil })
	tp.HandleCancel(func(fr framing.Frame) error { d.routeToStream(fr); return nil })
	tp.HandleError(func(fr framing.Frame) error { d.routeToStream(fr); return nil })

	d.state.Store(int32(stateConnected))
	d.sendPendingFrames()
	d.armKeepalive()
}

// Reconnect atomically swaps in a freshly accepted transport after a RESUME,
// replacing any prior transport outright.
func (d *Duplex) Reconnect(tp *transport.Transport) {
	d.mu.Lock()
	old := d.tp
	d.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	d.Bind(tp)
}

// IsClosed reports whether this socket has already torn itself down.
func (d *Duplex) IsClosed() bool {
	return connState(d.state.Load()) == stateClosed
}

// Pause transitions a resumable server socket to Disconnected, parking it
// for a later RESUME without tearing down its streams.
func (d *Duplex) Pause() {
	if d.IsClosed() {
		return
	}
	d.state.Store(int32(stateDisconnected))
	d.disarmKeepalive()
	d.mu.Lock()
	d.tp = nil
	d.mu.Unlock()
}

// writeFrame is the shared outbound contract: queued while
// Disconnected/Resuming, cached for resume if resumable, otherwise
// serialized and sent immediately.
func (d *Duplex) writeFrame(fr framing.Frame) {
	st := connState(d.state.Load())
	if st == stateClosed {
		return
	}
	if st == stateDisconnected || st == stateResuming {
		d.pending = append(d.pending, fr)
		return
	}
	d.mu.Lock()
	tp := d.tp
	d.mu.Unlock()
	if tp == nil {
		d.pending = append(d.pending, fr)
		return
	}
	if d.resumable && fr.IsResumable() {
		if raw, err := (&framing.Serializer{}).EncodeToBytes(fr); err == nil {
			d.resumeMgr.Append(raw)
		}
	}
	if err := tp.Send(fr, true); err != nil {
		logger.Warnf("rsocket: write frame failed: %s\n", err.Error())
	}
}

func (d *Duplex) sendPendingFrames() {
	pending := d.pending
	d.pending = nil
	for _, fr := range pending {
		d.writeFrame(fr)
	}
}

// WriteFrame implements Multiplexer.
func (d *Duplex) WriteFrame(fr framing.Frame) {
	d.writeFrame(fr)
}

// OnStreamClosed implements Multiplexer.
func (d *Duplex) OnStreamClosed(streamID uint32) {
	d.mu.Lock()
	delete(d.streams, streamID)
	d.mu.Unlock()
}

// Execute implements Multiplexer: it runs fn inline, since every entry point
// into Duplex already arrives on the connection's own goroutine (the
// transport's read loop, or a caller that accepted the single-threaded
// contract). Frames produced by application code on other goroutines must
// already be marshaled onto this path by the caller.
func (d *Duplex) Execute(fn func()) {
	if d.IsClosed() {
		return
	}
	fn()
}

func (d *Duplex) routeToStream(fr framing.Frame) {
	d.mu.Lock()
	sm, ok := d.streams[fr.Header().StreamID()]
	d.mu.Unlock()
	if !ok {
		return
	}
	if d.resumable && fr.IsResumable() {
		d.resumeMgr.MarkReceived(fr.Len())
	}
	sm.OnFrame(fr)
}

func (d *Duplex) handleKeepalive(fr *framing.FrameKeepalive) {
	d.resetLifetimeTimer()
	if fr.Respond() {
		var pos uint64
		if d.resumable {
			pos = d.resumeMgr.LastReceivedPosition()
		}
		d.writeFrame(framing.NewFrameKeepalive(false, pos, nil))
	}
}

func (d *Duplex) handleConnectionError(fr *framing.FrameError) {
	logger.Errorf("rsocket: connection error from peer: %s\n", fr.Error())
	d.closeWithError(fr.ToError())
}

func (d *Duplex) handleMetadataPush(fr *framing.FrameMetadataPush) {
	if d.handler != nil {
		d.handler.MetadataPush(fr.Metadata())
	}
}

func (d *Duplex) handleFNF(fr *framing.FrameRequestFNF) {
	if fr.Header().Flag().Check(framing.FlagFollows) {
		d.beginFragment(fr.Header().StreamID(), framing.FrameTypeRequestFNF, fr, 0, false)
		return
	}
	if d.handler != nil {
		d.handler.FireAndForget(fr.ToPayload())
	}
}

func (d *Duplex) handleRequestResponse(fr *framing.FrameRequestResponse) {
	sid := fr.Header().StreamID()
	if fr.Header().Flag().Check(framing.FlagFollows) {
		d.beginFragment(sid, framing.FrameTypeRequestResponse, fr, 0, false)
		return
	}
	if err := d.addStream(sid); err != nil {
		d.closeWithConnectionError(err)
		return
	}
	sm := newResponderRequestResponse(sid, d)
	d.mu.Lock()
	d.streams[sid] = sm
	d.mu.Unlock()
	if d.handler != nil {
		d.handler.RequestResponse(fr.ToPayload(), sm)
	}
}

func (d *Duplex) handleRequestStream(fr *framing.FrameRequestStream) {
	sid := fr.Header().StreamID()
	if fr.Header().Flag().Check(framing.FlagFollows) {
		d.beginFragment(sid, framing.FrameTypeRequestStream, fr, fr.InitialRequestN(), false)
		return
	}
	if err := d.addStream(sid); err != nil {
		d.closeWithConnectionError(err)
		return
	}
	sm := newResponderRequestStream(sid, d, fr.InitialRequestN())
	d.mu.Lock()
	d.streams[sid] = sm
	d.mu.Unlock()
	if d.handler != nil {
		d.handler.RequestStream(fr.ToPayload(), fr.InitialRequestN(), sm)
	}
}

func (d *Duplex) handleRequestChannel(fr *framing.FrameRequestChannel) {
	sid := fr.Header().StreamID()
	if fr.Header().Flag().Check(framing.FlagFollows) {
		d.beginFragment(sid, framing.FrameTypeRequestChannel, fr, fr.InitialRequestN(), fr.Complete())
		return
	}
	if err := d.addStream(sid); err != nil {
		d.closeWithConnectionError(err)
		return
	}
	sm := newResponderRequestChannel(sid, d, fr.InitialRequestN())
	d.mu.Lock()
	d.streams[sid] = sm
	d.mu.Unlock()
	if d.handler != nil {
		source := d.handler.RequestChannel(fr.ToPayload(), fr.InitialRequestN(), sm)
		sm.bindSource(source)
	}
	if fr.Complete() {
		sm.OnFrame(framing.NewFramePayload(sid, nil, nil, false, true))
	}
}

// beginFragment starts (or, for a PAYLOAD fragment, continues) reassembly
// of an inbound fragmented request. A fragment-accumulator entry is
// mutually exclusive with a real demux entry for the same id.
func (d *Duplex) beginFragment(streamID uint32, typ framing.FrameType, fr framing.Frame, initialN uint32, complete bool) {
	d.mu.Lock()
	_, exists := d.fragments[streamID]
	d.mu.Unlock()
	if exists {
		d.rejectStream(streamID, errStreamIDCollision)
		return
	}
	acc := fragmentation.NewAccumulator(streamID, d.fragment)
	var md []byte
	var hasMeta bool
	var data []byte
	switch f := fr.(type) {
	case *framing.FrameRequestResponse:
		md, hasMeta = f.Metadata()
		data = f.Data()
	case *framing.FrameRequestFNF:
		p := f.ToPayload()
		md, hasMeta = p.Metadata()
		data = p.Data()
	case *framing.FrameRequestStream:
		p := f.ToPayload()
		md, hasMeta = p.Metadata()
		data = p.Data()
	case *framing.FrameRequestChannel:
		p := f.ToPayload()
		md, hasMeta = p.Metadata()
		data = p.Data()
	}
	if err := acc.AppendFirst(typ, md, hasMeta, data, initialN, complete); err != nil {
		d.rejectStream(streamID, err)
		return
	}
	d.mu.Lock()
	d.fragments[streamID] = acc
	d.mu.Unlock()
}

func splitMD(f interface{ Metadata() ([]byte, bool) }) ([]byte, bool) {
	return f.Metadata()
}

func (d *Duplex) continueFragment(fr *framing.FramePayload) bool {
	sid := fr.Header().StreamID()
	d.mu.Lock()
	acc, ok := d.fragments[sid]
	d.mu.Unlock()
	if !ok {
		return false
	}
	md, hasMeta := fr.Metadata()
	if err := acc.AppendFollowing(md, hasMeta, fr.Data()); err != nil {
		d.mu.Lock()
		delete(d.fragments, sid)
		d.mu.Unlock()
		d.rejectStream(sid, err)
		return true
	}
	if fr.Header().Flag().Check(framing.FlagFollows) {
		return true
	}
	d.mu.Lock()
	delete(d.fragments, sid)
	d.mu.Unlock()
	final, err := acc.Finalize()
	if err != nil {
		d.rejectStream(sid, err)
		return true
	}
	switch ff := final.(type) {
	case *framing.FrameRequestResponse:
		d.handleRequestResponse(ff)
	case *framing.FrameRequestFNF:
		d.handleFNF(ff)
	case *framing.FrameRequestStream:
		d.handleRequestStream(ff)
	case *framing.FrameRequestChannel:
		d.handleRequestChannel(ff)
	}
	return true
}

func (d *Duplex) addStream(streamID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.streams[streamID]; ok {
		return errStreamIDCollision
	}
	if _, ok := d.fragments[streamID]; ok {
		return errStreamIDCollision
	}
	return nil
}

func (d *Duplex) rejectStream(streamID uint32, err error) {
	d.writeFrame(framing.NewFrameError(streamID, common.ErrorCodeRejected, []byte(err.Error())))
}

// closeWithConnectionError notifies the peer of a connection-level failure
// with a stream-id-0 ERROR frame, then tears the whole connection down: a
// stream id collision is a protocol violation, not a per-stream condition,
// so every open stream is signaled and the connection closes rather than
// staying up with just the offending request rejected.
func (d *Duplex) closeWithConnectionError(cause error) {
	d.writeFrame(framing.NewFrameError(0, common.ErrorCodeConnectionError, []byte(cause.Error())))
	d.closeWithError(cause)
}

// SetResponder installs (or replaces) the RequestHandler that answers the
// peer's inbound requests.
func (d *Duplex) SetResponder(handler RequestHandler) {
	d.handler = handler
}

// NextStreamID allocates the next outbound stream id for a requester-side
// operation.
func (d *Duplex) NextStreamID() (uint32, error) {
	return d.ids.Next()
}

// RegisterRequesterStream installs a requester-side stream machine under a
// freshly allocated id.
func (d *Duplex) RegisterRequesterStream(streamID uint32, sm StreamStateMachine) {
	d.mu.Lock()
	d.streams[streamID] = sm
	d.mu.Unlock()
}

func (d *Duplex) armKeepalive() {
	if d.keepaliveTimer != nil {
		d.keepaliveTimer.Stop()
	}
	d.keepaliveTimer = time.AfterFunc(d.keepaliveInterval, d.sendKeepalive)
	d.resetLifetimeTimer()
}

func (d *Duplex) disarmKeepalive() {
	if d.keepaliveTimer != nil {
		d.keepaliveTimer.Stop()
	}
	if d.lifetimeTimer != nil {
		d.lifetimeTimer.Stop()
	}
}

func (d *Duplex) resetLifetimeTimer() {
	if d.lifetimeTimer != nil {
		d.lifetimeTimer.Stop()
	}
	d.lifetimeTimer = time.AfterFunc(d.maxLifetime, func() {
		if d.resumable {
			// A resumable peer gone quiet past its max lifetime may still come
			// back with a RESUME; park the streams and cache instead of
			// discarding them.
			d.Pause()
			return
		}
		d.closeWithError(errors.New("rsocket: keepalive max lifetime exceeded"))
	})
}

func (d *Duplex) sendKeepalive() {
	if d.IsClosed() {
		return
	}
	var pos uint64
	if d.resumable {
		pos = d.resumeMgr.LastReceivedPosition()
	}
	d.writeFrame(framing.NewFrameKeepalive(true, pos, nil))
	d.keepaliveTimer = time.AfterFunc(d.keepaliveInterval, d.sendKeepalive)
}

// FireAndForget sends a REQUEST_FNF, splitting across FOLLOWS fragments if
// it exceeds the configured MTU.
func (d *Duplex) FireAndForget(p payload.Payload) {
	sid, err := d.ids.Next()
	if err != nil {
		logger.Errorf("rsocket: %s\n", err.Error())
		return
	}
	md, _ := p.Metadata()
	frames := fragmentation.SplitPayload(sid, md, p.Data(), d.fragment, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		return framing.NewFrameRequestFNF(sid, chunkData, chunkMeta, follows)
	})
	for _, fr := range frames {
		d.writeFrame(fr)
	}
}

// RequestResponse issues an outbound REQUEST_RESPONSE and registers cb to
// receive its single terminal outcome. It returns a handle the caller may
// use to Cancel before the response arrives.
func (d *Duplex) RequestResponse(p payload.Payload, cb ResponseCallback) (*requesterRequestResponse, error) {
	sid, err := d.ids.Next()
	if err != nil {
		return nil, err
	}
	sm := newRequesterRequestResponse(sid, d, cb)
	d.RegisterRequesterStream(sid, sm)
	md, _ := p.Metadata()
	frames := fragmentation.SplitPayload(sid, md, p.Data(), d.fragment, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		return framing.NewFrameRequestResponse(sid, chunkData, chunkMeta, follows)
	})
	for _, fr := range frames {
		d.writeFrame(fr)
	}
	return sm, nil
}

// RequestStream issues an outbound REQUEST_STREAM with the given initial
// demand and registers cb to receive inbound values.
func (d *Duplex) RequestStream(p payload.Payload, initialN uint32, cb StreamCallback) (*requesterRequestStream, error) {
	sid, err := d.ids.Next()
	if err != nil {
		return nil, err
	}
	sm := newRequesterRequestStream(sid, d, cb)
	d.RegisterRequesterStream(sid, sm)
	md, _ := p.Metadata()
	first := true
	frames := fragmentation.SplitPayload(sid, md, p.Data(), d.fragment, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		if first {
			first = false
			return framing.NewFrameRequestStream(sid, initialN, chunkData, chunkMeta, follows)
		}
		return framing.NewFramePayloadFragment(sid, chunkData, chunkMeta, false, false, follows)
	})
	for _, fr := range frames {
		d.writeFrame(fr)
	}
	return sm, nil
}

// RequestChannel issues an outbound REQUEST_CHANNEL with the given initial
// demand and registers cb to receive inbound values; the returned handle is
// also the sink the caller uses to emit its own outbound values.
func (d *Duplex) RequestChannel(p payload.Payload, initialN uint32, cb StreamCallback) (*requesterRequestChannel, error) {
	sid, err := d.ids.Next()
	if err != nil {
		return nil, err
	}
	sm := newRequesterRequestChannel(sid, d, cb)
	d.RegisterRequesterStream(sid, sm)
	md, _ := p.Metadata()
	first := true
	frames := fragmentation.SplitPayload(sid, md, p.Data(), d.fragment, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		if first {
			first = false
			return framing.NewFrameRequestChannel(sid, initialN, chunkData, chunkMeta, false, follows)
		}
		return framing.NewFramePayloadFragment(sid, chunkData, chunkMeta, false, false, follows)
	})
	for _, fr := range frames {
		d.writeFrame(fr)
	}
	return sm, nil
}

// MetadataPush sends a connection-level METADATA_PUSH.
func (d *Duplex) MetadataPush(metadata []byte) {
	d.writeFrame(framing.NewFrameMetadataPush(metadata))
}

// sendKeepaliveNow lets a caller force an immediate keepalive.
func (d *Duplex) sendKeepaliveNow() {
	d.sendKeepalive()
}

func (d *Duplex) closeWithError(cause error) {
	d.mu.Lock()
	streams := make([]StreamStateMachine, 0, len(d.streams))
	for _, sm := range d.streams {
		streams = append(streams, sm)
	}
	d.streams = make(map[uint32]StreamStateMachine)
	d.mu.Unlock()
	for _, sm := range streams {
		sm.Close(SignalConnectionError, cause)
	}
	d.Close()
}

// Close tears the connection down exactly once, disarming timers, closing
// the live transport, and failing every still-open stream.
func (d *Duplex) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.state.Store(int32(stateClosed))
		d.disarmKeepalive()
		d.mu.Lock()
		tp := d.tp
		d.tp = nil
		streams := make([]StreamStateMachine, 0, len(d.streams))
		for _, sm := range d.streams {
			streams = append(streams, sm)
		}
		d.streams = make(map[uint32]StreamStateMachine)
		d.mu.Unlock()
		for _, sm := range streams {
			sm.Close(SignalConnectionError, errors.New("socket: connection closed"))
		}
		if tp != nil {
			err = tp.Close()
		}
		close(d.closed)
	})
	return err
}

// Done returns a channel closed once this connection has fully torn down.
func (d *Duplex) Done() <-chan struct{} {
	return d.closed
}

// Start runs until ctx is canceled or the underlying transport terminates;
// callers typically run it in its own goroutine after Bind.
func (d *Duplex) Start(ctx context.Context) error {
	d.mu.Lock()
	tp := d.tp
	d.mu.Unlock()
	if tp == nil {
		return errors.New("socket: no transport bound")
	}
	err := tp.Start(ctx)
	d.Close()
	return err
}
