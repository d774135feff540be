package rsocket

import (
	reactor "github.com/jjeffcaii/reactor-go"

	"github.com/flowmux/rsocket/internal/socket"
	"github.com/flowmux/rsocket/payload"
	"github.com/flowmux/rsocket/rx"
)

// RSocket is the application-facing contract for all four interaction
// patterns, symmetric between a requester-only client socket and a
// requester+responder duplex socket.
type RSocket interface {
	// FireAndForget sends p with no expectation of a response.
	FireAndForget(p payload.Payload)
	// RequestResponse sends p and returns a Mono resolving to the single
	// response (or error).
	RequestResponse(p payload.Payload) rx.Mono
	// RequestStream sends p and returns a Flux of the responder's values.
	RequestStream(p payload.Payload) rx.Flux
	// RequestChannel sends the values published on in and returns a Flux of
	// the responder's own values on the same bidirectional stream.
	RequestChannel(in rx.Flux) rx.Flux
	// MetadataPush sends a connection-level metadata frame with no response.
	MetadataPush(metadata payload.Payload)
}

// ServerAcceptor is invoked once per accepted connection with the peer's
// SETUP and a requester-only RSocket bound to that connection, and must
// return the RequestHandler that answers the peer's requests. The responder
// contract (socket.RequestHandler) is deliberately a separate, sink-based
// interface from RSocket's Mono/Flux-returning one: a responder doesn't
// choose when to produce a result the way a requester chooses when to ask
// for one, so it is given a sink to push into rather than asked to return a
// reactive type a caller would have to subscribe to itself. NewAbstractSocket
// bridges application-authored Mono/Flux handler functions into that sink
// contract.
type ServerAcceptor func(setup SetupPayload, sendingSocket RSocket) (socket.RequestHandler, error)

// SetupPayload exposes the negotiated parameters and payload of a SETUP
// frame to an Acceptor, without leaking the framing package's wire types.
type SetupPayload interface {
	payload.Payload
	DataMimeType() string
	MetadataMimeType() string
}

// requesterRSocket adapts a *socket.Duplex to the public RSocket interface,
// bridging this module's plain callback-based stream machines to the
// reactive Mono/Flux types application code consumes.
type requesterRSocket struct {
	du *socket.Duplex
}

func newRequesterRSocket(du *socket.Duplex) RSocket {
	return &requesterRSocket{du: du}
}

func (r *requesterRSocket) FireAndForget(p payload.Payload) {
	r.du.FireAndForget(p)
}

type monoCallback struct {
	sink reactor.Sink
}

func (c *monoCallback) OnResponse(p payload.Payload) { c.sink.Success(p) }
func (c *monoCallback) OnError(err error)            { c.sink.Error(err) }

func (r *requesterRSocket) RequestResponse(p payload.Payload) rx.Mono {
	return rx.NewMono(func(ctx reactor.Context, sink reactor.Sink) {
		if _, err := r.du.RequestResponse(p, &monoCallback{sink: sink}); err != nil {
			sink.Error(err)
		}
	})
}

type fluxCallback struct {
	sink reactor.Sink
}

func (c *fluxCallback) OnNext(p payload.Payload) { c.sink.Next(p) }
func (c *fluxCallback) OnComplete()              { c.sink.Complete() }
func (c *fluxCallback) OnError(err error)         { c.sink.Error(err) }

func (r *requesterRSocket) RequestStream(p payload.Payload) rx.Flux {
	return rx.NewFlux(func(ctx reactor.Context, sink reactor.Sink) {
		if _, err := r.du.RequestStream(p, 0, &fluxCallback{sink: sink}); err != nil {
			sink.Error(err)
		}
	})
}

// outboundChannel is the subset of *socket.Duplex's RequestChannel handle
// this adapter drives; named here so the subscriber closure below doesn't
// need to spell the unexported concrete type.
type outboundChannel interface {
	Next(p payload.Payload)
	Complete()
	Error(err error)
}

// RequestChannel bridges the requester's outbound Flux to a REQUEST_CHANNEL
// stream: the first value published on in becomes the REQUEST_CHANNEL
// frame's own payload (the wire protocol carries it inline, not as a
// separate PAYLOAD), and every value after that is sent as a PAYLOAD frame
// against the channel handle opened by the first.
func (r *requesterRSocket) RequestChannel(in rx.Flux) rx.Flux {
	return rx.NewFlux(func(ctx reactor.Context, sink reactor.Sink) {
		var bound outboundChannel
		first := true
		in.Subscribe(ctx, reactor.NewSubscriber(
			reactor.OnNext(func(ctx reactor.Context, s reactor.Subscription, p payload.Payload) error {
				if first {
					first = false
					c, err := r.du.RequestChannel(p, 0, &fluxCallback{sink: sink})
					if err != nil {
						sink.Error(err)
						return err
					}
					bound = c
					return nil
				}
				bound.Next(p)
				return nil
			}),
			reactor.OnComplete(func() {
				if bound != nil {
					bound.Complete()
				}
			}),
			reactor.OnError(func(e error) {
				if bound != nil {
					bound.Error(e)
				} else {
					sink.Error(e)
				}
			}),
		))
	})
}

func (r *requesterRSocket) MetadataPush(metadata payload.Payload) {
	r.du.MetadataPush(metadata.Data())
}
