package rsocket

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/fragmentation"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/internal/socket"
	"github.com/flowmux/rsocket/internal/transport"
	"github.com/flowmux/rsocket/payload"
)

type (
	// OpClientResume configures resume behavior for a client.
	OpClientResume func(o *clientResumeOptions)
	// ClientBuilder builds a client connection to an RSocket server.
	ClientBuilder interface {
		// Fragment sets the fragmentation MTU; 0 disables fragmentation.
		Fragment(mtu int) ClientBuilder
		// KeepAlive sets the keepalive interval and max lifetime this client
		// proposes in its SETUP.
		KeepAlive(tickPeriod, ackTimeout time.Duration) ClientBuilder
		// DataMimeType sets the SETUP's declared data MIME type.
		DataMimeType(mime string) ClientBuilder
		// MetadataMimeType sets the SETUP's declared metadata MIME type.
		MetadataMimeType(mime string) ClientBuilder
		// SetupPayload sets the SETUP frame's own payload.
		SetupPayload(setup payload.Payload) ClientBuilder
		// Resume enables warm RESUME for this client.
		Resume(opts ...OpClientResume) ClientBuilder
		// Acceptor registers the RequestHandler that answers requests the
		// server initiates on this connection.
		Acceptor(acceptor func(socket RSocket) socket.RequestHandler) ClientTransportBuilder
		// OnClose registers a callback invoked once the connection closes.
		OnClose(fn func(error)) ClientBuilder
		// Transport specifies the transport URI directly, skipping the
		// fluent ClientTransportBuilder step.
		Transport(transport string) ClientStarter
	}

	// ClientTransportBuilder selects a transport for a client with an
	// acceptor already registered.
	ClientTransportBuilder interface {
		Transport(transport string) ClientStarter
	}

	// ClientStarter starts a configured client connection.
	ClientStarter interface {
		Start(ctx context.Context) (RSocket, error)
		StartTLS(ctx context.Context, c *tls.Config) (RSocket, error)
	}
)

type clientResumeOptions struct {
	enable bool
	token  []byte
}

// WithClientResumeToken fixes the resume token a client presents, instead of
// generating a fresh random one.
func WithClientResumeToken(token []byte) OpClientResume {
	return func(o *clientResumeOptions) { o.token = token }
}

type client struct {
	fragment         int
	keepaliveTick    time.Duration
	keepaliveTimeout time.Duration
	dataMime         string
	metaMime         string
	setup            payload.Payload
	resumeOpts       clientResumeOptions
	acceptorFn       func(socket RSocket) socket.RequestHandler
	addr             string
	onClose          []func(error)

	mu sync.Mutex
	du *socket.Duplex
}

// Connect begins building a client connection to an RSocket server.
func Connect() ClientBuilder {
	return &client{
		fragment:         fragmentation.MaxFragment,
		keepaliveTick:    common.DefaultKeepaliveInterval,
		keepaliveTimeout: common.DefaultKeepaliveMaxLifetime,
		dataMime:         common.DefaultMimeType,
		metaMime:         common.DefaultMimeType,
	}
}

func (c *client) Fragment(mtu int) ClientBuilder {
	c.fragment = mtu
	return c
}

func (c *client) KeepAlive(tickPeriod, ackTimeout time.Duration) ClientBuilder {
	c.keepaliveTick = tickPeriod
	c.keepaliveTimeout = ackTimeout
	return c
}

func (c *client) DataMimeType(mime string) ClientBuilder {
	c.dataMime = mime
	return c
}

func (c *client) MetadataMimeType(mime string) ClientBuilder {
	c.metaMime = mime
	return c
}

func (c *client) SetupPayload(setup payload.Payload) ClientBuilder {
	c.setup = setup
	return c
}

func (c *client) Resume(opts ...OpClientResume) ClientBuilder {
	c.resumeOpts.enable = true
	for _, o := range opts {
		o(&c.resumeOpts)
	}
	return c
}

func (c *client) OnClose(fn func(error)) ClientBuilder {
	if fn != nil {
		c.onClose = append(c.onClose, fn)
	}
	return c
}

func (c *client) Acceptor(acceptor func(socket RSocket) socket.RequestHandler) ClientTransportBuilder {
	c.acceptorFn = acceptor
	return c
}

func (c *client) Transport(addr string) ClientStarter {
	c.addr = addr
	return c
}

func (c *client) Start(ctx context.Context) (RSocket, error) {
	return c.start(ctx, nil)
}

func (c *client) StartTLS(ctx context.Context, tc *tls.Config) (RSocket, error) {
	return c.start(ctx, tc)
}

func (c *client) start(ctx context.Context, tc *tls.Config) (RSocket, error) {
	if err := fragmentation.IsValidFragment(c.fragment); err != nil {
		return nil, err
	}
	u, err := transport.ParseURI(c.addr)
	if err != nil {
		return nil, err
	}
	tp, err := u.MakeClientTransport(tc, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	resuming := c.resumeOpts.enable && c.du != nil
	c.mu.Unlock()

	if resuming {
		return c.resume(ctx, tp)
	}
	return c.handshake(ctx, tp)
}

// handshake performs the initial SETUP handshake for a brand new connection,
// the only path that runs before a Duplex exists for this client.
func (c *client) handshake(ctx context.Context, tp *transport.Transport) (RSocket, error) {
	token := c.resumeOpts.token
	if c.resumeOpts.enable && token == nil {
		token = newRandomToken()
	}

	du := socket.NewDuplex(socket.RoleClient, nil, c.fragment, nil)
	rs := newRequesterRSocket(du)
	if c.acceptorFn != nil {
		du.SetResponder(c.acceptorFn(rs))
	}

	if c.resumeOpts.enable {
		du.EnableResume(token)
	}
	du.SetKeepalive(c.keepaliveTick, c.keepaliveTimeout)

	setupPayload := c.setup
	if setupPayload == nil {
		setupPayload = payload.New(nil, nil)
	}
	md, _ := setupPayload.Metadata()
	setupInfo := framing.SetupInfo{
		Major:               framing.DefaultVersion.Major,
		Minor:               framing.DefaultVersion.Minor,
		KeepaliveIntervalMs: uint32(c.keepaliveTick / time.Millisecond),
		MaxLifetimeMs:       uint32(c.keepaliveTimeout / time.Millisecond),
		Token:               token,
		MetadataMimeType:    c.metaMime,
		DataMimeType:         c.dataMime,
		Data:                setupPayload.Data(),
		Metadata:            md,
	}

	du.Bind(tp)
	du.WriteFrame(framing.NewFrameSetup(setupInfo))

	c.mu.Lock()
	c.du = du
	c.mu.Unlock()

	c.runLoop(ctx, du)
	return rs, nil
}

// resume reconnects an existing resumable Duplex over a freshly dialed
// transport, sending RESUME instead of SETUP and replaying onto the same
// streams rather than starting a new session.
func (c *client) resume(ctx context.Context, tp *transport.Transport) (RSocket, error) {
	du := c.du
	token, _ := du.Token()

	fr := framing.NewFrameResume(
		framing.DefaultVersion.Major,
		framing.DefaultVersion.Minor,
		token,
		du.LastReceivedPosition(),
		du.FirstAvailablePosition(),
	)
	if err := tp.Send(fr, true); err != nil {
		_ = tp.Close()
		return nil, errors.Wrap(err, "send resume failed")
	}

	first, err := tp.ReadFirst(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read resume response failed")
	}

	switch f := first.(type) {
	case *framing.FrameResumeOK:
		du.Reconnect(tp)
	case *framing.FrameError:
		_ = tp.Close()
		_ = du.Close()
		c.mu.Lock()
		c.du = nil
		c.mu.Unlock()
		return nil, errors.Errorf("rsocket: resume rejected: %s", string(f.ErrorData()))
	default:
		_ = tp.Close()
		_ = du.Close()
		c.mu.Lock()
		c.du = nil
		c.mu.Unlock()
		return nil, errors.New("rsocket: unexpected first frame on resume")
	}

	c.runLoop(ctx, du)
	return newRequesterRSocket(du), nil
}

// runLoop drives the Duplex's read-dispatch loop on its bound transport and
// fans its exit error out to every registered OnClose callback.
func (c *client) runLoop(ctx context.Context, du *socket.Duplex) {
	go func(ctx context.Context) {
		err := du.Start(ctx)
		for _, fn := range c.onClose {
			fn(err)
		}
	}(ctx)
}

func newRandomToken() []byte {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return b
}
