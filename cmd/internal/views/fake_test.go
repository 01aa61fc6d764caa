package views

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"talkwire/cmd/internal/realtime"
	"talkwire/cmd/internal/restapi"
	"talkwire/cmd/internal/session"
)

// fakeBroker is an in-memory realtime.Dialer: every dialed connection shares
// its topic table, so push reaches each live subscription on a topic.
type fakeBroker struct {
	mu    sync.Mutex
	subs  map[string][]*brokerSub
	sent  []published
	conns []*brokerConn
	dials atomic.Int32
	// refuse is the number of upcoming dials that fail.
	refuse atomic.Int32
}

type published struct {
	dest string
	body string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string][]*brokerSub)}
}

var errBrokerDown = errors.New("broker: connection refused")

func (b *fakeBroker) Dial(context.Context) (realtime.Conn, error) {
	b.dials.Add(1)
	if n := b.refuse.Load(); n > 0 && b.refuse.CompareAndSwap(n, n-1) {
		return nil, errBrokerDown
	}
	c := &brokerConn{b: b, done: make(chan struct{})}
	b.mu.Lock()
	b.conns = append(b.conns, c)
	b.mu.Unlock()
	return c, nil
}

// drop ends every dialed connection with err.
func (b *fakeBroker) drop(err error) {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()
	for _, c := range conns {
		c.end(err)
	}
}

func (b *fakeBroker) push(t *testing.T, topic string, v any) {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[topic] {
		if !s.gone.Load() {
			s.frames <- body
		}
	}
}

// live counts subscriptions on topic that were not cancelled.
func (b *fakeBroker) live(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subs[topic] {
		if !s.gone.Load() {
			n++
		}
	}
	return n
}

func (b *fakeBroker) published() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.sent...)
}

type brokerConn struct {
	b    *fakeBroker
	done chan struct{}
	once sync.Once
	err  atomic.Value

	mu   sync.Mutex
	subs []*brokerSub
}

func (c *brokerConn) Subscribe(topic string) (realtime.Subscription, error) {
	s := &brokerSub{frames: make(chan []byte, 64)}
	c.b.mu.Lock()
	c.b.subs[topic] = append(c.b.subs[topic], s)
	c.b.mu.Unlock()
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s, nil
}

func (c *brokerConn) Send(dest, _ string, body []byte) error {
	c.b.mu.Lock()
	c.b.sent = append(c.b.sent, published{dest: dest, body: string(body)})
	c.b.mu.Unlock()
	return nil
}

func (c *brokerConn) Done() <-chan struct{} { return c.done }

func (c *brokerConn) Err() error {
	err, _ := c.err.Load().(error)
	return err
}

// Close ends the connection and with it every subscription opened on it.
func (c *brokerConn) Close() error {
	c.end(nil)
	return nil
}

func (c *brokerConn) end(err error) {
	c.once.Do(func() {
		if err != nil {
			c.err.Store(err)
		}
		c.mu.Lock()
		for _, s := range c.subs {
			s.gone.Store(true)
		}
		c.mu.Unlock()
		close(c.done)
	})
}

type brokerSub struct {
	frames chan []byte
	gone   atomic.Bool
}

func (s *brokerSub) Frames() <-chan []byte { return s.frames }

func (s *brokerSub) Unsubscribe() error {
	s.gone.Store(true)
	return nil
}

type fixture struct {
	deps   Deps
	store  *session.Store
	bus    *session.Bus
	broker *fakeBroker
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture wires views against a chi backend and the fake broker, with
// "bob" already signed in.
func newFixture(t *testing.T, r http.Handler) *fixture {
	t.Helper()

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	bus := session.NewBus()
	store := session.NewStore(bus)
	store.Set(session.Session{Username: "bob", Email: "bob@example.com"})

	api, err := restapi.New(restapi.Options{
		BaseURL: ts.URL + "/api",
		Timeout: 2 * time.Second,
		Store:   store,
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("restapi.New: %v", err)
	}

	broker := newFakeBroker()
	return &fixture{
		deps: Deps{
			API:        api,
			Store:      store,
			NewManager: ManagerFactoryFor(realtime.Options{Dialer: broker, Logger: testLogger()}),
			Logger:     testLogger(),
		},
		store:  store,
		bus:    bus,
		broker: broker,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func data(v any) map[string]any { return map[string]any{"data": v} }

func newRouter() chi.Router { return chi.NewRouter() }

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
