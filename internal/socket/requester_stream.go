package socket

import (
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

// StreamCallback receives the inbound values of an outbound REQUEST_STREAM
// or the requester-half of an outbound REQUEST_CHANNEL.
type StreamCallback interface {
	OnNext(p payload.Payload)
	OnComplete()
	OnError(err error)
}

// requesterRequestStream is the requester-side REQUEST_STREAM state machine.
// Per-stream flow control is the caller's job: RequestN only forwards the
// peer-visible REQUEST_N frame, it does not itself track outstanding demand.
type requesterRequestStream struct {
	streamID uint32
	mux      Multiplexer
	cb       StreamCallback
	closed   bool
}

func newRequesterRequestStream(streamID uint32, mux Multiplexer, cb StreamCallback) *requesterRequestStream {
	return &requesterRequestStream{streamID: streamID, mux: mux, cb: cb}
}

func (r *requesterRequestStream) OnFrame(fr framing.Frame) {
	switch f := fr.(type) {
	case *framing.FramePayload:
		if f.Next() {
			r.cb.OnNext(f.ToPayload())
		}
		if f.Complete() {
			r.Close(SignalComplete, nil)
			r.cb.OnComplete()
		}
	case *framing.FrameError:
		err := f.ToError()
		r.Close(SignalApplicationError, err)
		r.cb.OnError(err)
	}
}

func (r *requesterRequestStream) Close(sig Signal, _ error) {
	if r.closed {
		return
	}
	r.closed = true
	r.mux.OnStreamClosed(r.streamID)
}

// RequestN grants the responder n further values.
func (r *requesterRequestStream) RequestN(n uint32) {
	r.mux.Execute(func() {
		if r.closed || n == 0 {
			return
		}
		r.mux.WriteFrame(framing.NewFrameRequestN(r.streamID, n))
	})
}

// Cancel withdraws interest in the stream.
func (r *requesterRequestStream) Cancel() {
	r.mux.Execute(func() {
		if r.closed {
			return
		}
		r.mux.WriteFrame(framing.NewFrameCancel(r.streamID))
		r.Close(SignalCancel, nil)
	})
}
