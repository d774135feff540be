package socket

import (
	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

// responderRequestResponse is the responder-side REQUEST_RESPONSE state
// machine: it calls the local handler once and relays its single result (or
// error) back as a PAYLOAD-with-COMPLETE or ERROR frame.
type responderRequestResponse struct {
	streamID uint32
	mux      Multiplexer
	closed   bool
}

func newResponderRequestResponse(streamID uint32, mux Multiplexer) *responderRequestResponse {
	return &responderRequestResponse{streamID: streamID, mux: mux}
}

// OnFrame handles CANCEL (the only frame a requester may still send before
// the response arrives); other frame types are protocol noise for this
// stream type and are ignored.
func (r *responderRequestResponse) OnFrame(fr framing.Frame) {
	if fr.Header().Type() == framing.FrameTypeCancel {
		r.Close(SignalCancel, nil)
	}
}

func (r *responderRequestResponse) Close(sig Signal, _ error) {
	if r.closed {
		return
	}
	r.closed = true
	r.mux.OnStreamClosed(r.streamID)
}

// Success implements ResponseSink.
func (r *responderRequestResponse) Success(p payload.Payload) {
	r.mux.Execute(func() {
		if r.closed {
			return
		}
		r.mux.WriteFrame(framing.NewFramePayloadFromPayload(r.streamID, p, true, true))
		r.Close(SignalComplete, nil)
	})
}

// Error implements ResponseSink.
func (r *responderRequestResponse) Error(err error) {
	r.mux.Execute(func() {
		if r.closed {
			return
		}
		r.mux.WriteFrame(framing.NewFrameError(r.streamID, common.ErrorCodeApplicationError, []byte(err.Error())))
		r.Close(SignalApplicationError, err)
	})
}
