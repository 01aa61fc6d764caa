package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
)

// STOMP subprotocols offered during the WebSocket handshake.
var stompSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

const disconnectTimeout = 2 * time.Second

// errSessionAborted is reported when the STOMP layer tears the socket down on
// its own, e.g. after missed heart-beats.
var errSessionAborted = errors.New("stomp session aborted")

// StompDialer connects to a STOMP 1.2 broker over a WebSocket.
type StompDialer struct {
	// URL is the WebSocket endpoint (ws, wss, http or https scheme).
	URL string
	// Origin is sent on the handshake when set.
	Origin string
	// HTTPClient performs the handshake; its cookie jar supplies credentials.
	HTTPClient *http.Client
	// Token returns the bearer token sent as the CONNECT Authorization header.
	Token func() string
	// RequireToken makes Dial fail fast when Token yields nothing.
	RequireToken bool

	Heartbeat      time.Duration
	ConnectTimeout time.Duration
}

// Dial performs the WebSocket handshake followed by the STOMP CONNECT exchange.
// ctx bounds the handshake only; the returned Conn lives until Close.
func (d *StompDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(strings.TrimSpace(d.URL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q", ErrInvalidDialer, d.URL)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDialer, u.Scheme)
	}

	var token string
	if d.Token != nil {
		token = strings.TrimSpace(d.Token())
	}
	if token == "" && d.RequireToken {
		return nil, ErrMissingCredentials
	}

	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	hb := d.Heartbeat
	if hb <= 0 {
		hb = defaultHeartbeat
	}

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	if d.Origin != "" {
		header.Set("Origin", d.Origin)
	}

	ws, _, err := websocket.Dial(hctx, u.String(), &websocket.DialOptions{
		HTTPClient:   d.HTTPClient,
		HTTPHeader:   header,
		Subprotocols: stompSubprotocols,
	})
	if err != nil {
		return nil, &ProtocolError{Op: "dial", Err: err}
	}
	ws.SetReadLimit(maxFrameBytes)

	lifetime, stop := context.WithCancel(context.Background())
	wc := newWatchedConn(websocket.NetConn(lifetime, ws, websocket.MessageText))

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(u.Hostname()),
		stomp.ConnOpt.HeartBeat(hb, hb),
		stomp.ConnOpt.UnsubscribeReceiptTimeout(unsubscribeTimeout),
	}
	if token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+token))
	}

	type result struct {
		conn *stomp.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		sc, err := stomp.Connect(wc, opts...)
		ch <- result{conn: sc, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			wc.local.Store(true)
			_ = wc.Close()
			stop()
			return nil, &ProtocolError{Op: "handshake", Err: r.err}
		}
		return &stompConn{sc: r.conn, wc: wc, stop: stop}, nil
	case <-hctx.Done():
		wc.local.Store(true)
		_ = wc.Close()
		stop()
		return nil, &ProtocolError{Op: "handshake", Err: hctx.Err()}
	}
}

// watchedConn records the first read failure so the Manager can tell a clean
// close from a lost transport.
type watchedConn struct {
	net.Conn

	local atomic.Bool // set before an intentional Close
	once  sync.Once
	done  chan struct{}

	mu  sync.Mutex
	err error
}

func newWatchedConn(c net.Conn) *watchedConn {
	return &watchedConn{Conn: c, done: make(chan struct{})}
}

func (w *watchedConn) Read(p []byte) (int, error) {
	n, err := w.Conn.Read(p)
	if err != nil {
		w.finish(err)
	}
	return n, err
}

func (w *watchedConn) Close() error {
	if w.local.Load() {
		w.finish(nil)
	} else {
		w.finish(errSessionAborted)
	}
	return w.Conn.Close()
}

func (w *watchedConn) finish(err error) {
	w.once.Do(func() {
		if err != nil && !w.local.Load() && !isCleanClose(err) {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
		}
		close(w.done)
	})
}

func (w *watchedConn) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func isCleanClose(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}

type stompConn struct {
	sc   *stomp.Conn
	wc   *watchedConn
	stop context.CancelFunc

	mu   sync.Mutex
	subs []*stompSubscription

	closeOnce sync.Once
	closeErr  error
}

func (c *stompConn) Subscribe(topic string) (Subscription, error) {
	sub, err := c.sc.Subscribe(topic, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	s := &stompSubscription{
		sub:    sub,
		frames: make(chan []byte, frameBuffer),
		quit:   make(chan struct{}),
	}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	go s.pump()
	return s, nil
}

func (c *stompConn) Send(destination, contentType string, body []byte) error {
	return c.sc.Send(destination, contentType, body)
}

func (c *stompConn) Done() <-chan struct{} { return c.wc.done }

func (c *stompConn) Err() error { return c.wc.Err() }

// Close sends DISCONNECT, waits briefly for the receipt and closes the socket.
// DISCONNECT ends every subscription, so none is unsubscribed one by one.
func (c *stompConn) Close() error {
	c.closeOnce.Do(func() {
		c.wc.local.Store(true)

		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()
		for _, s := range subs {
			s.abandon()
		}

		res := make(chan error, 1)
		go func() { res <- c.sc.Disconnect() }()

		timer := time.NewTimer(disconnectTimeout)
		defer timer.Stop()
		select {
		case c.closeErr = <-res:
		case <-timer.C:
			c.closeErr = fmt.Errorf("stomp disconnect: no receipt within %s", disconnectTimeout)
		}

		_ = c.wc.Close()
		c.stop()
	})
	return c.closeErr
}

type stompSubscription struct {
	sub    *stomp.Subscription
	frames chan []byte

	quit     chan struct{}
	quitOnce sync.Once
}

func (s *stompSubscription) Frames() <-chan []byte { return s.frames }

func (s *stompSubscription) pump() {
	defer close(s.frames)
	for {
		select {
		case <-s.quit:
			go s.drain()
			return
		case msg, ok := <-s.sub.C:
			if !ok || msg == nil || msg.Err != nil {
				return
			}
			select {
			case s.frames <- msg.Body:
			case <-s.quit:
				go s.drain()
				return
			}
		}
	}
}

// drain keeps the broker's read loop from blocking on an abandoned subscription.
func (s *stompSubscription) drain() {
	for range s.sub.C {
	}
}

// abandon stops forwarding frames without telling the broker.
func (s *stompSubscription) abandon() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Unsubscribe waits at most unsubscribeTimeout for the broker's receipt.
func (s *stompSubscription) Unsubscribe() error {
	s.abandon()
	return s.sub.Unsubscribe()
}
