package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/framing"
)

func newListener(addr string, tlsConf *tls.Config) (net.Listener, error) {
	if tlsConf == nil {
		return net.Listen("tcp", addr)
	}
	return tls.Listen("tcp", addr, tlsConf)
}

// wsConn adapts a gorilla/websocket connection, framed as binary messages,
// to the Conn contract. Each RSocket frame (header and body, without the
// length prefix) is sent as one websocket binary message, so no length-prefix
// decoder is needed on read.
type wsConn struct {
	counter *Counter
	ws      *websocket.Conn
	mu      sync.Mutex // guards concurrent WriteMessage calls
}

func newWsConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (p *wsConn) SetCounter(c *Counter) {
	p.counter = c
}

func (p *wsConn) SetDeadline(deadline time.Time) error {
	return p.ws.SetReadDeadline(deadline)
}

func (p *wsConn) Read() (framing.Frame, error) {
	_, raw, err := p.ws.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "read websocket message failed")
	}
	if len(raw) < framing.HeaderLen {
		return nil, framing.ErrInvalidFrame
	}
	f, err := framing.DecodeFrom(raw)
	if err != nil {
		return nil, err
	}
	if p.counter != nil && f.IsResumable() {
		p.counter.incrReadBytes(f.Len())
	}
	return f, nil
}

func (p *wsConn) ReadRaw() ([]byte, error) {
	_, raw, err := p.ws.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "read websocket message failed")
	}
	if len(raw) < framing.HeaderLen {
		return nil, framing.ErrInvalidFrame
	}
	return raw, nil
}

func (p *wsConn) Write(frame framing.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var bodyBuf writerToBuffer
	if _, err := frame.WriteTo(&bodyBuf); err != nil {
		return errors.Wrap(err, "write websocket message failed")
	}
	if p.counter != nil && frame.IsResumable() {
		p.counter.incrWriteBytes(len(bodyBuf.buf))
	}
	return p.ws.WriteMessage(websocket.BinaryMessage, bodyBuf.buf)
}

// writerToBuffer is a tiny io.Writer sink used to materialize a frame's
// encoded bytes for a single websocket message.
type writerToBuffer struct {
	buf []byte
}

func (w *writerToBuffer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (p *wsConn) Flush() error {
	return nil
}

func (p *wsConn) Close() error {
	return p.ws.Close()
}

type websocketServerTransport struct {
	host, path string
	tlsConf    *tls.Config
	acceptor   ServerTransportAcceptor
	server     *http.Server
	once       sync.Once
	upgrader   websocket.Upgrader
}

func newWebsocketServerTransport(host, path string, tlsConf *tls.Config) *websocketServerTransport {
	return &websocketServerTransport{host: host, path: path, tlsConf: tlsConf}
}

func (p *websocketServerTransport) Accept(acceptor ServerTransportAcceptor) {
	p.acceptor = acceptor
}

func (p *websocketServerTransport) Close() (err error) {
	if p.server == nil {
		return nil
	}
	p.once.Do(func() {
		err = p.server.Close()
	})
	return
}

func (p *websocketServerTransport) Listen(ctx context.Context, notifier chan<- struct{}) error {
	mux := http.NewServeMux()
	path := p.path
	if path == "" {
		path = "/"
	}
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := p.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		tp := newTransportClient(newWsConn(conn))
		go func(ctx context.Context, tp *Transport) {
			p.acceptor(ctx, tp)
		}(ctx, tp)
	})
	p.server = &http.Server{Addr: p.host, Handler: mux, TLSConfig: p.tlsConf}

	ln, err := newListener(p.host, p.tlsConf)
	if err != nil {
		return errors.Wrap(err, "websocket listen failed")
	}
	notifier <- struct{}{}
	err = p.server.Serve(ln)
	if err == http.ErrServerClosed || isClosedErr(err) {
		return nil
	}
	return err
}

func newWebsocketClientTransport(url string, tlsConf *tls.Config, headers map[string][]string) (*Transport, error) {
	dialer := websocket.Dialer{TLSClientConfig: tlsConf}
	conn, _, err := dialer.Dial(url, http.Header(headers))
	if err != nil {
		return nil, errors.Wrap(err, "dial websocket failed")
	}
	return newTransportClient(newWsConn(conn)), nil
}
