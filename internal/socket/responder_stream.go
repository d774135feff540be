package socket

import (
	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
	"go.uber.org/atomic"
)

// responderRequestStream is the responder-side REQUEST_STREAM state machine:
// it calls the local handler once with the requester's initial demand, then
// relays every REQUEST_N the requester sends afterward as additional demand,
// and CANCEL as an early terminal signal.
type responderRequestStream struct {
	streamID  uint32
	mux       Multiplexer
	requested atomic.Uint32
	closed    atomic.Bool
}

func newResponderRequestStream(streamID uint32, mux Multiplexer, initialN uint32) *responderRequestStream {
	r := &responderRequestStream{streamID: streamID, mux: mux}
	r.requested.Store(initialN)
	return r
}

// OnFrame handles REQUEST_N (additional demand) and CANCEL.
func (r *responderRequestStream) OnFrame(fr framing.Frame) {
	switch fr.Header().Type() {
	case framing.FrameTypeRequestN:
		r.requested.Add(fr.(*framing.FrameRequestN).N())
	case framing.FrameTypeCancel:
		r.Close(SignalCancel, nil)
	}
}

func (r *responderRequestStream) Close(sig Signal, _ error) {
	if !r.closed.CAS(false, true) {
		return
	}
	r.mux.OnStreamClosed(r.streamID)
}

// Next implements StreamSink. A responder handler is expected to respect
// demand on its own; Next here only guards against emission after close.
func (r *responderRequestStream) Next(p payload.Payload) {
	r.mux.Execute(func() {
		if r.closed.Load() {
			return
		}
		r.mux.WriteFrame(framing.NewFramePayloadFromPayload(r.streamID, p, true, false))
	})
}

func (r *responderRequestStream) Complete() {
	r.mux.Execute(func() {
		if !r.closed.CAS(false, true) {
			return
		}
		r.mux.WriteFrame(framing.NewFramePayload(r.streamID, nil, nil, false, true))
		r.mux.OnStreamClosed(r.streamID)
	})
}

func (r *responderRequestStream) Error(err error) {
	r.mux.Execute(func() {
		if !r.closed.CAS(false, true) {
			return
		}
		r.mux.WriteFrame(framing.NewFrameError(r.streamID, common.ErrorCodeApplicationError, []byte(err.Error())))
		r.mux.OnStreamClosed(r.streamID)
	})
}

// Requested reports the currently outstanding demand granted by the peer.
func (r *responderRequestStream) Requested() uint32 {
	return r.requested.Load()
}
