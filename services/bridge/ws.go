//go:build !(rp2040 || rp2350)

package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// "ws": dial a remote WebSocket endpoint
// -----------------------------------------------------------------------------

type wsDialTransport struct {
	url    string
	dialer *websocket.Dialer
}

func newWSDialTransport(cfg TransportConfig) (Transport, error) {
	if cfg.WS == nil || cfg.WS.URL == "" {
		return nil, errors.New("ws transport requires ws.url")
	}
	return &wsDialTransport{
		url: cfg.WS.URL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
		},
	}, nil
}

func (t *wsDialTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	c, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(c), nil
}

func (t *wsDialTransport) String() string { return "ws " + t.url }

// -----------------------------------------------------------------------------
// "ws_listen": serve one peer at a time
// -----------------------------------------------------------------------------

type wsListenTransport struct {
	addr string
	path string

	upgrader websocket.Upgrader
	conns    chan *websocket.Conn

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func newWSListenTransport(cfg TransportConfig) (Transport, error) {
	if cfg.WS == nil || cfg.WS.Addr == "" {
		return nil, errors.New("ws_listen transport requires ws.addr")
	}
	path := cfg.WS.Path
	if path == "" {
		path = "/"
	}
	return &wsListenTransport{
		addr: cfg.WS.Addr,
		path: path,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		conns: make(chan *websocket.Conn, 1),
	}, nil
}

func (t *wsListenTransport) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.path, t.serveWS)
	t.ln = ln
	t.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go t.srv.Serve(ln)
	println("Info: bridge listening on", ln.Addr().String()+t.path)
	return nil
}

func (t *wsListenTransport) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	select {
	case t.conns <- c:
	default:
		// A peer is already waiting to be picked up.
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "busy"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
}

func (t *wsListenTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if err := t.start(); err != nil {
		return nil, err
	}
	select {
	case c := <-t.conns:
		return newWSConn(c), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr returns the bound listen address once Open has run.
func (t *wsListenTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return ""
	}
	return t.ln.Addr().String()
}

func (t *wsListenTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srv == nil {
		return nil
	}
	err := t.srv.Close()
	t.srv, t.ln = nil, nil
	return err
}

func (t *wsListenTransport) String() string { return "ws_listen " + t.addr + t.path }

// -----------------------------------------------------------------------------
// Byte stream over binary messages
// -----------------------------------------------------------------------------

type wsConn struct {
	c *websocket.Conn
	r io.Reader
}

func newWSConn(c *websocket.Conn) *wsConn { return &wsConn{c: c} }

func (w *wsConn) Read(p []byte) (int, error) {
	for {
		if w.r == nil {
			typ, r, err := w.c.NextReader()
			if err != nil {
				return 0, err
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			w.r = r
		}
		n, err := w.r.Read(p)
		if err == io.EOF {
			w.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	_ = w.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.c.Close()
}
