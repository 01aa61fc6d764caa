package realtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDialer struct {
	dials atomic.Int32

	// gate, when non-nil, blocks Dial until closed or ctx ends.
	gate chan struct{}
	err  error

	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.dials.Add(1)
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) last(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatalf("no connection dialed")
	}
	return d.conns[len(d.conns)-1]
}

type sentFrame struct {
	dest        string
	contentType string
	body        string
}

type fakeConn struct {
	mu     sync.Mutex
	subs   map[string]*fakeSub
	sent   []sentFrame
	closed bool

	done chan struct{}
	once sync.Once
	err  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{subs: make(map[string]*fakeSub), done: make(chan struct{})}
}

func (c *fakeConn) Subscribe(topic string) (Subscription, error) {
	s := &fakeSub{frames: make(chan []byte, 128)}
	c.mu.Lock()
	c.subs[topic] = s
	c.mu.Unlock()
	return s, nil
}

func (c *fakeConn) Send(dest, contentType string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentFrame{dest: dest, contentType: contentType, body: string(body)})
	return nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.kill(nil)
	return nil
}

// kill ends the transport as the network would.
func (c *fakeConn) kill(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeConn) push(t *testing.T, topic, body string) {
	t.Helper()
	c.mu.Lock()
	s := c.subs[topic]
	c.mu.Unlock()
	if s == nil {
		t.Fatalf("no broker subscription for %s", topic)
	}
	s.frames <- []byte(body)
}

func (c *fakeConn) sub(topic string) *fakeSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[topic]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentFrames() []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentFrame(nil), c.sent...)
}

type fakeSub struct {
	frames       chan []byte
	unsubscribed atomic.Bool
}

func (s *fakeSub) Frames() <-chan []byte { return s.frames }

func (s *fakeSub) Unsubscribe() error {
	s.unsubscribed.Store(true)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, d Dialer, opts Options) *Manager {
	t.Helper()
	opts.Dialer = d
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	m, err := NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Disconnect)
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
