package rsocket

import (
	"context"

	reactor "github.com/jjeffcaii/reactor-go"
	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/socket"
	"github.com/flowmux/rsocket/payload"
	"github.com/flowmux/rsocket/rx"
)

// OptAbstractSocket configures one interaction type of an AbstractSocket.
// An unconfigured request-response, stream or channel interaction responds
// with errNotImplemented; an unconfigured fire-and-forget or metadata push is
// dropped.
type OptAbstractSocket func(*abstractSocket)

var errNotImplemented = errors.New("rsocket: handler not implemented")

// RequestResponseHandler configures the REQUEST_RESPONSE handler of an
// AbstractSocket.
func RequestResponseHandler(fn func(p payload.Payload) rx.Mono) OptAbstractSocket {
	return func(s *abstractSocket) { s.requestResponse = fn }
}

// RequestStreamHandler configures the REQUEST_STREAM handler.
func RequestStreamHandler(fn func(p payload.Payload) rx.Flux) OptAbstractSocket {
	return func(s *abstractSocket) { s.requestStream = fn }
}

// RequestChannelHandler configures the REQUEST_CHANNEL handler. It receives
// a Flux of the requester's inbound values and returns a Flux of this side's
// own outbound values.
func RequestChannelHandler(fn func(in rx.Flux) rx.Flux) OptAbstractSocket {
	return func(s *abstractSocket) { s.requestChannel = fn }
}

// FireAndForgetHandler configures the REQUEST_FNF handler.
func FireAndForgetHandler(fn func(p payload.Payload)) OptAbstractSocket {
	return func(s *abstractSocket) { s.fireAndForget = fn }
}

// MetadataPushHandler configures the METADATA_PUSH handler.
func MetadataPushHandler(fn func(metadata []byte)) OptAbstractSocket {
	return func(s *abstractSocket) { s.metadataPush = fn }
}

// NewAbstractSocket builds a socket.RequestHandler from the given per-
// interaction-type handlers, the common shape a ServerAcceptor returns.
func NewAbstractSocket(opts ...OptAbstractSocket) socket.RequestHandler {
	s := &abstractSocket{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// abstractSocket implements socket.RequestHandler by bridging this module's
// plain sink contracts to the rx.Mono/rx.Flux handler functions application
// code supplies. It is a responder only and does not implement RSocket.
type abstractSocket struct {
	requestResponse func(p payload.Payload) rx.Mono
	requestStream   func(p payload.Payload) rx.Flux
	requestChannel  func(in rx.Flux) rx.Flux
	fireAndForget   func(p payload.Payload)
	metadataPush    func(metadata []byte)
}

func (s *abstractSocket) FireAndForget(p payload.Payload) {
	if s.fireAndForget != nil {
		s.fireAndForget(p)
	}
}

func (s *abstractSocket) RequestResponse(p payload.Payload, sink socket.ResponseSink) {
	if s.requestResponse == nil {
		sink.Error(errNotImplemented)
		return
	}
	s.requestResponse(p).SubscribeOn(reactor.ElasticScheduler()).Subscribe(context.Background(), reactor.NewSubscriber(
		reactor.OnNext(func(ctx reactor.Context, sub reactor.Subscription, v payload.Payload) error {
			sink.Success(v)
			return nil
		}),
		reactor.OnError(func(err error) {
			sink.Error(err)
		}),
	))
}

func (s *abstractSocket) RequestStream(p payload.Payload, initialN uint32, sink socket.StreamSink) {
	if s.requestStream == nil {
		sink.Error(errNotImplemented)
		return
	}
	s.requestStream(p).SubscribeOn(reactor.ElasticScheduler()).Subscribe(context.Background(), reactor.NewSubscriber(
		reactor.OnNext(func(ctx reactor.Context, sub reactor.Subscription, v payload.Payload) error {
			sink.Next(v)
			return nil
		}),
		reactor.OnComplete(func() { sink.Complete() }),
		reactor.OnError(func(err error) { sink.Error(err) }),
	))
}

func (s *abstractSocket) RequestChannel(p payload.Payload, initialN uint32, sink socket.StreamSink) socket.StreamSource {
	src := &channelSource{values: make(chan payload.Payload, 16), done: make(chan struct{})}
	if s.requestChannel == nil {
		sink.Error(errNotImplemented)
		return src
	}
	in := rx.NewFlux(func(ctx reactor.Context, fsink reactor.Sink) {
		fsink.Next(p)
		go src.pipeInto(fsink)
	})
	s.requestChannel(in).SubscribeOn(reactor.ElasticScheduler()).Subscribe(context.Background(), reactor.NewSubscriber(
		reactor.OnNext(func(ctx reactor.Context, sub reactor.Subscription, v payload.Payload) error {
			sink.Next(v)
			return nil
		}),
		reactor.OnComplete(func() { sink.Complete() }),
		reactor.OnError(func(err error) { sink.Error(err) }),
	))
	return src
}

func (s *abstractSocket) MetadataPush(metadata []byte) {
	if s.metadataPush != nil {
		s.metadataPush(metadata)
	}
}

// channelSource adapts the plain StreamSource contract a responder's
// REQUEST_CHANNEL machine calls into a Flux so requestChannel's handler
// function can consume the requester's inbound values reactively.
type channelSource struct {
	values chan payload.Payload
	done   chan struct{}
	once   bool
}

func (c *channelSource) Next(p payload.Payload) {
	select {
	case c.values <- p:
	case <-c.done:
	}
}

func (c *channelSource) Complete() {
	if !c.once {
		c.once = true
		close(c.values)
	}
}

func (c *channelSource) Error(err error) {
	c.Complete()
}

func (c *channelSource) pipeInto(sink reactor.Sink) {
	defer close(c.done)
	for v := range c.values {
		sink.Next(v)
	}
	sink.Complete()
}
