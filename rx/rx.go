// Package rx re-exports the reactive-stream primitives requester/responder
// implementations are built against, backed by jjeffcaii/reactor-go.
// RequestResponse returns a Mono; RequestStream and RequestChannel return a
// Flux.
package rx

import (
	reactor "github.com/jjeffcaii/reactor-go"

	"github.com/flowmux/rsocket/payload"
)

// Mono is a reactive stream of at most one payload.Payload.
type Mono = reactor.Mono

// Flux is a reactive stream of zero or more payload.Payload values.
type Flux = reactor.Flux

// Subscription lets a subscriber request(n) from, or cancel, a Flux/Mono.
type Subscription = reactor.Subscription

// Subscriber is the sink a requester installs to observe a responder's Mono
// or Flux: OnNext for each payload, terminal OnComplete/OnError exactly once.
type Subscriber = reactor.Subscriber

// JustMono creates a Mono that emits a single payload then completes.
func JustMono(p payload.Payload) Mono {
	return reactor.JustMono(p)
}

// ErrMono creates a Mono that immediately errors.
func ErrMono(err error) Mono {
	return reactor.NewMono(func(ctx reactor.Context, sink reactor.Sink) {
		sink.Error(err)
	})
}

// NewMono creates a Mono from a generator function invoked on subscription.
func NewMono(gen func(ctx reactor.Context, sink reactor.Sink)) Mono {
	return reactor.NewMono(gen)
}

// NewFlux creates a Flux from a generator function invoked on subscription.
func NewFlux(gen func(ctx reactor.Context, sink reactor.Sink)) Flux {
	return reactor.NewFlux(gen)
}
