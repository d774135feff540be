package socket

import (
	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
	"go.uber.org/atomic"
)

// responderRequestChannel is the responder-side REQUEST_CHANNEL state
// machine. A channel is bidirectional on a single stream id: the responder
// both emits values via StreamSink (like a stream) and receives the
// requester's own inbound values, handed to the StreamSource the local
// handler returned.
//
// Reverse-direction flow control (the responder's demand for the
// requester's inbound values) is simplified to auto-refill-by-one: every
// inbound value immediately grants one more REQUEST_N back to the
// requester, rather than exposing an explicit RequestN method on
// StreamSource. This keeps parity with the initial-N the requester already
// granted without needing the handler to manage two independent demand
// counters.
type responderRequestChannel struct {
	streamID    uint32
	mux         Multiplexer
	source      StreamSource
	requested   atomic.Uint32
	closed      atomic.Bool
	peerSentCmp atomic.Bool
	selfSentCmp atomic.Bool
}

func newResponderRequestChannel(streamID uint32, mux Multiplexer, initialN uint32) *responderRequestChannel {
	r := &responderRequestChannel{streamID: streamID, mux: mux}
	r.requested.Store(initialN)
	return r
}

// bindSource attaches the StreamSource the handler returned once it has run.
func (r *responderRequestChannel) bindSource(source StreamSource) {
	r.source = source
}

// OnFrame handles PAYLOAD (inbound channel values from the requester),
// REQUEST_N (additional outbound demand), and CANCEL.
func (r *responderRequestChannel) OnFrame(fr framing.Frame) {
	switch f := fr.(type) {
	case *framing.FramePayload:
		if r.source == nil {
			return
		}
		if f.Next() {
			r.source.Next(f.ToPayload())
			r.mux.WriteFrame(framing.NewFrameRequestN(r.streamID, 1))
		}
		if f.Complete() {
			r.peerSentCmp.Store(true)
			r.source.Complete()
			if r.selfSentCmp.Load() && r.closed.CAS(false, true) {
				r.mux.OnStreamClosed(r.streamID)
			}
		}
	case *framing.FrameRequestN:
		r.requested.Add(f.N())
	case *framing.FrameCancel:
		r.Close(SignalCancel, nil)
	}
}

func (r *responderRequestChannel) Close(sig Signal, cause error) {
	if !r.closed.CAS(false, true) {
		return
	}
	if r.source != nil {
		switch sig {
		case SignalCancel:
			r.source.Error(errCanceled)
		case SignalApplicationError, SignalConnectionError, SignalStreamError:
			r.source.Error(cause)
		default:
			r.source.Complete()
		}
	}
	r.mux.OnStreamClosed(r.streamID)
}

// Next implements StreamSink, emitting one outbound channel value.
func (r *responderRequestChannel) Next(p payload.Payload) {
	r.mux.Execute(func() {
		if r.closed.Load() {
			return
		}
		r.mux.WriteFrame(framing.NewFramePayloadFromPayload(r.streamID, p, true, false))
	})
}

func (r *responderRequestChannel) Complete() {
	r.mux.Execute(func() {
		if r.closed.Load() {
			return
		}
		r.mux.WriteFrame(framing.NewFramePayload(r.streamID, nil, nil, false, true))
		r.selfSentCmp.Store(true)
		if r.peerSentCmp.Load() {
			r.closed.Store(true)
			r.mux.OnStreamClosed(r.streamID)
		}
	})
}

func (r *responderRequestChannel) Error(err error) {
	r.mux.Execute(func() {
		if !r.closed.CAS(false, true) {
			return
		}
		r.mux.WriteFrame(framing.NewFrameError(r.streamID, common.ErrorCodeApplicationError, []byte(err.Error())))
		r.mux.OnStreamClosed(r.streamID)
	})
}

// Requested reports the currently outstanding demand granted by the peer.
func (r *responderRequestChannel) Requested() uint32 {
	return r.requested.Load()
}
