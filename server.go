package rsocket

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/fragmentation"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/internal/session"
	"github.com/flowmux/rsocket/internal/socket"
	"github.com/flowmux/rsocket/internal/transport"
	"github.com/flowmux/rsocket/lease"
	"github.com/flowmux/rsocket/logger"
)

const (
	serverSessionCleanInterval = 500 * time.Millisecond
	serverSessionDuration      = 30 * time.Second
)

var (
	errUnavailableResume    = []byte("resume not supported")
	errUnavailableLease     = []byte("lease not supported")
	errDuplicatedSetupToken = []byte("duplicated setup token")
)

type (
	// OpServerResume configures resume options for an RSocket server.
	OpServerResume func(o *serverResumeOptions)
	// ServerBuilder builds an RSocket server.
	ServerBuilder interface {
		// Fragment sets the fragmentation MTU; 0 disables fragmentation.
		Fragment(mtu int) ServerBuilder
		// Lease enables the LEASE feature using the given permit source.
		Lease(leases lease.Leases) ServerBuilder
		// Resume enables warm RESUME for this server.
		Resume(opts ...OpServerResume) ServerBuilder
		// Acceptor registers the server acceptor used to handle incoming
		// connections.
		Acceptor(acceptor ServerAcceptor) ServerTransportBuilder
		// OnStart registers a handler invoked once the server is listening.
		OnStart(onStart func()) ServerBuilder
	}

	// ServerTransportBuilder selects a transport for a server with an
	// acceptor already registered.
	ServerTransportBuilder interface {
		Transport(transport string) Start
	}

	// Start starts a built RSocket server.
	Start interface {
		Serve(ctx context.Context) error
		ServeTLS(ctx context.Context, c *tls.Config) error
	}
)

// Receive begins building an RSocket server.
func Receive() ServerBuilder {
	return &server{
		fragment: fragmentation.MaxFragment,
		sm:       session.NewManager(),
		done:     make(chan struct{}),
		resumeOpts: &serverResumeOptions{
			sessionDuration: serverSessionDuration,
		},
	}
}

type serverResumeOptions struct {
	enable          bool
	sessionDuration time.Duration
}

type server struct {
	resumeOpts *serverResumeOptions
	fragment   int
	addr       string
	acc        ServerAcceptor
	sm         *session.Manager
	done       chan struct{}
	onServe    []func()
	leases     lease.Leases
}

func (p *server) Lease(leases lease.Leases) ServerBuilder {
	p.leases = leases
	return p
}

func (p *server) OnStart(onStart func()) ServerBuilder {
	if onStart != nil {
		p.onServe = append(p.onServe, onStart)
	}
	return p
}

func (p *server) Resume(opts ...OpServerResume) ServerBuilder {
	p.resumeOpts.enable = true
	for _, it := range opts {
		it(p.resumeOpts)
	}
	return p
}

func (p *server) Fragment(mtu int) ServerBuilder {
	p.fragment = mtu
	return p
}

func (p *server) Acceptor(acceptor ServerAcceptor) ServerTransportBuilder {
	p.acc = acceptor
	return p
}

func (p *server) Transport(transport string) Start {
	p.addr = transport
	return p
}

func (p *server) ServeTLS(ctx context.Context, c *tls.Config) error {
	return p.serve(ctx, c)
}

func (p *server) Serve(ctx context.Context) error {
	return p.serve(ctx, nil)
}

func (p *server) serve(ctx context.Context, tc *tls.Config) error {
	u, err := transport.ParseURI(p.addr)
	if err != nil {
		return err
	}
	if err := fragmentation.IsValidFragment(p.fragment); err != nil {
		return err
	}
	t, err := u.MakeServerTransport(tc)
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	go func(ctx context.Context) {
		_ = p.loopCleanSession(ctx)
	}(ctx)

	t.Accept(func(ctx context.Context, tp *transport.Transport) {
		socketChan := make(chan *socket.ServerSocket, 1)
		defer func() {
			select {
			case ssk, ok := <-socketChan:
				if !ok {
					break
				}
				token, ok := ssk.Token()
				if !ok {
					_ = ssk.Close()
					break
				}
				ssk.Pause()
				deadline := time.Now().Add(p.resumeOpts.sessionDuration)
				s := session.NewSession(deadline, token, ssk)
				p.sm.Push(s)
				if logger.IsDebugEnabled() {
					logger.Debugf("store session: %s\n", s)
				}
			default:
			}
			close(socketChan)
		}()

		first, err := tp.ReadFirst(ctx)
		if err != nil {
			logger.Errorf("read first frame failed: %s\n", err)
			_ = tp.Close()
			return
		}

		switch frame := first.(type) {
		case *framing.FrameResume:
			p.doResume(frame, tp, socketChan)
		case *framing.FrameSetup:
			sendingSocket, rErr := p.doSetup(frame, tp, socketChan)
			if rErr != nil {
				_ = tp.Send(rErr, true)
				_ = tp.Close()
				return
			}
			if err := sendingSocket.Start(ctx); err != nil && logger.IsDebugEnabled() {
				logger.Debugf("sending socket exit: %s\n", err.Error())
			}
		default:
			ferr := framing.NewFrameError(0, common.ErrorCodeConnectionError, []byte("first frame must be setup or resume"))
			_ = tp.Send(ferr, true)
			_ = tp.Close()
			return
		}
	})

	serveNotifier := make(chan struct{})
	go func(c <-chan struct{}, fn []func()) {
		<-c
		for i := range fn {
			fn[i]()
		}
	}(serveNotifier, p.onServe)
	return t.Listen(ctx, serveNotifier)
}

func (p *server) doSetup(
	frame *framing.FrameSetup,
	tp *transport.Transport,
	socketChan chan<- *socket.ServerSocket,
) (sendingSocket *socket.ServerSocket, err *framing.FrameError) {
	if frame.Header().Flag().Check(framing.FlagLease) && p.leases == nil {
		err = framing.NewFrameError(0, common.ErrorCodeUnsupportedSetup, errUnavailableLease)
		return
	}

	isResume := frame.Header().Flag().Check(framing.FlagResume)

	if isResume && !p.resumeOpts.enable {
		err = framing.NewFrameError(0, common.ErrorCodeUnsupportedSetup, errUnavailableResume)
		return
	}

	rawSocket := socket.NewServerDuplexRSocket(p.fragment, p.leases)
	rawSocket.SetKeepalive(
		time.Duration(frame.KeepaliveInterval())*time.Millisecond,
		time.Duration(frame.MaxLifetime())*time.Millisecond,
	)
	sendingSocket = rawSocket
	rs := newRequesterRSocket(rawSocket.Duplex)

	if !isResume {
		responder, e := p.acc(wrapSetup(frame), rs)
		if e != nil {
			err = framing.NewFrameError(0, common.ErrorCodeRejectedSetup, []byte(e.Error()))
			return
		}
		sendingSocket.SetResponder(responder)
		sendingSocket.SetTransport(tp)
		socketChan <- sendingSocket
		return
	}

	token := make([]byte, len(frame.Token()))
	copy(token, frame.Token())

	if _, ok := p.sm.Load(token); ok {
		err = framing.NewFrameError(0, common.ErrorCodeRejectedSetup, errDuplicatedSetupToken)
		return
	}

	rawSocket.EnableToken(token)
	responder, e := p.acc(wrapSetup(frame), rs)
	if e != nil {
		switch vv := e.(type) {
		case *framing.FrameError:
			err = framing.NewFrameError(0, vv.ErrorCode(), vv.ErrorData())
		default:
			err = framing.NewFrameError(0, common.ErrorCodeInvalidSetup, []byte(e.Error()))
		}
		return
	}
	sendingSocket.SetResponder(responder)
	sendingSocket.SetTransport(tp)
	socketChan <- sendingSocket
	return
}

func (p *server) doResume(frame *framing.FrameResume, tp *transport.Transport, socketChan chan<- *socket.ServerSocket) {
	if !p.resumeOpts.enable {
		p.rejectResume(tp, errUnavailableResume)
		return
	}

	s, ok := p.sm.Load(frame.Token())
	if !ok {
		p.rejectResume(tp, []byte("no such session"))
		return
	}

	ssk := s.Socket().(*socket.ServerSocket)
	serverPos := frame.LastReceivedServerPosition()
	clientPos := frame.FirstClientPosition()

	if clientPos > ssk.LastReceivedPosition() || !ssk.IsPositionAvailable(serverPos) {
		p.rejectResume(tp, []byte("resume position no longer available"))
		_ = ssk.Close()
		return
	}

	if err := tp.Send(framing.NewFrameResumeOK(ssk.LastReceivedPosition()), true); err != nil {
		logger.Errorf("send resume response failed: %s\n", err)
		_ = tp.Close()
		return
	}
	if err := ssk.ReplayFrom(serverPos, tp); err != nil {
		logger.Errorf("replay resume cache failed: %s\n", err)
		_ = tp.Close()
		return
	}

	ssk.SetTransport(tp)
	socketChan <- ssk
	if logger.IsDebugEnabled() {
		logger.Debugf("recover session: %s\n", s)
	}
}

func (p *server) rejectResume(tp *transport.Transport, reason []byte) {
	if err := tp.Send(framing.NewFrameError(0, common.ErrorCodeRejectedResume, reason), true); err != nil {
		logger.Errorf("send resume response failed: %s\n", err)
	}
	_ = tp.Close()
}

func (p *server) loopCleanSession(ctx context.Context) (err error) {
	tk := time.NewTicker(serverSessionCleanInterval)
	defer func() {
		tk.Stop()
		p.destroySessions()
	}()
L:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break L
		case <-p.done:
			break L
		case <-tk.C:
			p.doCleanSession()
		}
	}
	return
}

func (p *server) destroySessions() {
	for p.sm.Len() > 0 {
		nextSession := p.sm.Pop()
		if err := nextSession.Close(); err != nil {
			logger.Warnf("kill session failed: %s\n", err)
		} else if logger.IsDebugEnabled() {
			logger.Debugf("kill session success: %s\n", nextSession)
		}
	}
}

func (p *server) doCleanSession() {
	deads := make(chan *session.Session)
	go func(deads chan *session.Session) {
		for it := range deads {
			if err := it.Close(); err != nil {
				logger.Warnf("close dead session failed: %s\n", err)
			} else if logger.IsDebugEnabled() {
				logger.Debugf("close dead session success: %s\n", it)
			}
		}
	}(deads)
	var cur *session.Session
	for p.sm.Len() > 0 {
		cur = p.sm.Pop()
		if !cur.IsDead() {
			p.sm.Push(cur)
			break
		}
		deads <- cur
	}
	close(deads)
}

// WithServerResumeSessionDuration sets how long a server parks a disconnected
// resumable socket before giving up on it.
func WithServerResumeSessionDuration(duration time.Duration) OpServerResume {
	return func(o *serverResumeOptions) { o.sessionDuration = duration }
}

// setupPayload wraps a decoded SETUP frame as the SetupPayload an Acceptor
// sees, satisfying payload.Payload and the mime-type accessors by promotion.
type setupPayload struct {
	*framing.FrameSetup
}

func wrapSetup(f *framing.FrameSetup) SetupPayload {
	return &setupPayload{f}
}
