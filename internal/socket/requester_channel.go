package socket

import (
	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
	"go.uber.org/atomic"
)

// requesterRequestChannel is the requester-side REQUEST_CHANNEL state
// machine. It both emits the local application's outbound values (having
// opened the stream with REQUEST_CHANNEL itself) and relays inbound values
// from the responder to cb, mirroring the same auto-refill-by-one reverse
// flow control policy the responder side uses.
type requesterRequestChannel struct {
	streamID    uint32
	mux         Multiplexer
	cb          StreamCallback
	closed      atomic.Bool
	selfSentCmp atomic.Bool
	peerSentCmp atomic.Bool
}

func newRequesterRequestChannel(streamID uint32, mux Multiplexer, cb StreamCallback) *requesterRequestChannel {
	return &requesterRequestChannel{streamID: streamID, mux: mux, cb: cb}
}

func (r *requesterRequestChannel) OnFrame(fr framing.Frame) {
	switch f := fr.(type) {
	case *framing.FramePayload:
		if f.Next() {
			r.cb.OnNext(f.ToPayload())
			r.mux.WriteFrame(framing.NewFrameRequestN(r.streamID, 1))
		}
		if f.Complete() {
			r.peerSentCmp.Store(true)
			r.cb.OnComplete()
			if r.selfSentCmp.Load() {
				r.closeNow()
			}
		}
	case *framing.FrameError:
		err := f.ToError()
		r.cb.OnError(err)
		r.closeNow()
	}
}

func (r *requesterRequestChannel) Close(sig Signal, _ error) {
	r.closeNow()
}

func (r *requesterRequestChannel) closeNow() {
	if !r.closed.CAS(false, true) {
		return
	}
	r.mux.OnStreamClosed(r.streamID)
}

// Next emits one outbound channel value.
func (r *requesterRequestChannel) Next(p payload.Payload) {
	r.mux.Execute(func() {
		if r.closed.Load() {
			return
		}
		r.mux.WriteFrame(framing.NewFramePayloadFromPayload(r.streamID, p, true, false))
	})
}

// Complete signals the local side's outbound values are exhausted.
func (r *requesterRequestChannel) Complete() {
	r.mux.Execute(func() {
		if r.closed.Load() {
			return
		}
		r.mux.WriteFrame(framing.NewFramePayload(r.streamID, nil, nil, false, true))
		r.selfSentCmp.Store(true)
		if r.peerSentCmp.Load() {
			r.closeNow()
		}
	})
}

// Error aborts the stream with an application error.
func (r *requesterRequestChannel) Error(err error) {
	r.mux.Execute(func() {
		if r.closed.Load() {
			return
		}
		r.mux.WriteFrame(framing.NewFrameError(r.streamID, common.ErrorCodeApplicationError, []byte(err.Error())))
		r.closeNow()
	})
}

// Cancel withdraws interest in the channel entirely.
func (r *requesterRequestChannel) Cancel() {
	r.mux.Execute(func() {
		if r.closed.Load() {
			return
		}
		r.mux.WriteFrame(framing.NewFrameCancel(r.streamID))
		r.closeNow()
	})
}
