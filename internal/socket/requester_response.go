package socket

import (
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

// ResponseCallback receives the single terminal outcome of an outbound
// REQUEST_RESPONSE.
type ResponseCallback interface {
	OnResponse(p payload.Payload)
	OnError(err error)
}

// requesterRequestResponse is the requester-side REQUEST_RESPONSE state
// machine: it owns no demand bookkeeping, only the wait for the one
// PAYLOAD-with-COMPLETE or ERROR that terminates the stream.
type requesterRequestResponse struct {
	streamID uint32
	mux      Multiplexer
	cb       ResponseCallback
	closed   bool
}

func newRequesterRequestResponse(streamID uint32, mux Multiplexer, cb ResponseCallback) *requesterRequestResponse {
	return &requesterRequestResponse{streamID: streamID, mux: mux, cb: cb}
}

func (r *requesterRequestResponse) OnFrame(fr framing.Frame) {
	switch f := fr.(type) {
	case *framing.FramePayload:
		if f.Complete() {
			r.Close(SignalComplete, nil)
			r.cb.OnResponse(f.ToPayload())
		}
	case *framing.FrameError:
		err := f.ToError()
		r.Close(SignalApplicationError, err)
		r.cb.OnError(err)
	}
}

func (r *requesterRequestResponse) Close(sig Signal, _ error) {
	if r.closed {
		return
	}
	r.closed = true
	r.mux.OnStreamClosed(r.streamID)
}

// Cancel lets the caller withdraw interest before a response arrives.
func (r *requesterRequestResponse) Cancel() {
	r.mux.Execute(func() {
		if r.closed {
			return
		}
		r.mux.WriteFrame(framing.NewFrameCancel(r.streamID))
		r.Close(SignalCancel, nil)
	})
}
