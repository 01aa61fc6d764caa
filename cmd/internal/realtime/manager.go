package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	v1 "talkwire/shared/contracts/realtime/v1"
)

// ErrNilHandler is returned by Subscribe when no handler is given.
var ErrNilHandler = errors.New("realtime: nil handler")

// Options configures a Manager.
type Options struct {
	Dialer  Dialer
	Logger  *slog.Logger
	Metrics *Metrics

	// OnError receives transport failures that happen after Connect returned.
	// It runs on the supervising goroutine.
	OnError func(error)

	// Limiter bounds Publish; nil disables client-side limiting.
	Limiter *RateLimiter

	Now func() time.Time
}

// Manager is one ConnectionHandle: a single transport connection and the
// subscriptions opened on it. All methods are safe for concurrent use.
type Manager struct {
	id      string
	dialer  Dialer
	log     *slog.Logger
	metrics *Metrics
	onError func(error)
	limiter *RateLimiter
	now     func() time.Time

	connects singleflight.Group

	mu      sync.Mutex
	state   State
	conn    Conn
	gen     uint64 // bumped whenever the current connection is torn down
	lastErr error
	abort   context.CancelFunc
	subs    map[string]*subscription
}

// NewManager constructs an idle Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidDialer)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	id, err := NewHandleID(now())
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		id:      id,
		dialer:  opts.Dialer,
		log:     log.With("handle_id", id),
		metrics: opts.Metrics,
		onError: opts.OnError,
		limiter: opts.Limiter,
		now:     now,
		subs:    make(map[string]*subscription),
	}, nil
}

// ID identifies the Manager in logs.
func (m *Manager) ID() string { return m.id }

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the transport is up.
func (m *Manager) Connected() bool { return m.State() == StateConnected }

// Err returns the failure that moved the Manager to StateError, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Topics lists the subscribed topics in lexical order.
func (m *Manager) Topics() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.subs))
	for t := range m.subs {
		out = append(out, t)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}

// Connect establishes the transport. It returns immediately when already
// connected. Concurrent callers share one attempt and its outcome; a caller
// whose ctx ends stops waiting without cancelling the attempt.
func (m *Manager) Connect(ctx context.Context) error {
	if m.Connected() {
		return nil
	}
	ch := m.connects.DoChan("connect", func() (any, error) {
		return nil, m.dial()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) dial() error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.lastErr = nil
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.abort = cancel
	m.mu.Unlock()
	defer cancel()

	start := m.now()
	m.log.Debug("realtime.connect.start")
	conn, err := m.dialer.Dial(ctx)

	m.mu.Lock()
	m.abort = nil
	if m.gen != gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		m.metrics.connect("aborted")
		return ErrDisconnected
	}
	if err != nil {
		m.state = StateError
		m.lastErr = err
		m.mu.Unlock()
		m.metrics.connect("error")
		m.log.Warn("realtime.connect.failed", "err", err)
		return err
	}
	m.state = StateConnected
	m.conn = conn
	m.mu.Unlock()

	m.metrics.connect("ok")
	m.log.Info("realtime.connect.ok", "dur_ms", m.now().Sub(start).Milliseconds())
	go m.supervise(conn, gen)
	return nil
}

// supervise waits for the transport to end on its own and invalidates every
// subscription. Subscriptions are not replayed.
func (m *Manager) supervise(conn Conn, gen uint64) {
	<-conn.Done()
	err := conn.Err()

	m.mu.Lock()
	if m.gen != gen || m.conn != conn {
		// Disconnect already tore this connection down.
		m.mu.Unlock()
		return
	}
	m.gen++
	m.conn = nil
	subs := m.subs
	m.subs = make(map[string]*subscription)
	if err != nil {
		m.state = StateError
		m.lastErr = err
	} else {
		m.state = StateClosed
	}
	onError := m.onError
	m.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	m.metrics.subscriptionsAdd(-len(subs))

	if err == nil {
		m.log.Info("realtime.transport.closed", "topics", len(subs))
		return
	}
	m.log.Warn("realtime.transport.lost", "topics", len(subs), "err", err)
	if onError != nil {
		onError(err)
	}
}

// Subscribe opens the broker subscription for topic. Frames are passed to
// handler one at a time in arrival order.
func (m *Manager) Subscribe(topic string, handler func(body []byte)) error {
	if strings.TrimSpace(topic) == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return ErrNilHandler
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	if _, ok := m.subs[topic]; ok {
		return ErrAlreadySubscribed
	}

	sub, err := m.conn.Subscribe(topic)
	if err != nil {
		return &ProtocolError{Op: "subscribe", Err: err}
	}
	s := &subscription{topic: topic, sub: sub, done: make(chan struct{})}
	m.subs[topic] = s
	m.metrics.subscriptionsAdd(1)
	go s.run(handler)

	m.log.Info("realtime.subscribe", "topic", topic)
	return nil
}

// Unsubscribe cancels the subscription for topic.
func (m *Manager) Unsubscribe(topic string) error {
	m.mu.Lock()
	s, ok := m.subs[topic]
	if ok {
		delete(m.subs, topic)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotSubscribed
	}
	s.stop()
	m.metrics.subscriptionsAdd(-1)
	m.log.Info("realtime.unsubscribe", "topic", topic)
	if err := s.sub.Unsubscribe(); err != nil {
		return &ProtocolError{Op: "unsubscribe", Err: err}
	}
	return nil
}

// Publish sends payload as JSON to destination. It does not wait for the
// server's echo.
func (m *Manager) Publish(destination string, payload any) error {
	if strings.TrimSpace(destination) == "" {
		return ErrInvalidTopic
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode payload: %w", err)
	}

	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected && conn != nil
	m.mu.Unlock()

	if !connected {
		m.metrics.publish("not_connected")
		return ErrNotConnected
	}
	if !m.limiter.Allow(m.now()) {
		m.metrics.publish("rate_limited")
		return ErrRateLimited
	}
	if err := conn.Send(destination, v1.ContentTypeJSON, body); err != nil {
		m.metrics.publish("error")
		return &ProtocolError{Op: "send", Err: err}
	}
	m.metrics.publish("ok")
	m.log.Debug("realtime.publish", "destination", destination, "bytes", len(body))
	return nil
}

// Disconnect cancels every subscription, closes the transport and returns the
// Manager to StateIdle. It is idempotent and aborts an in-flight Connect.
// Subscriptions end with the transport; no per-topic UNSUBSCRIBE is sent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	abort := m.abort
	m.abort = nil
	conn := m.conn
	m.conn = nil
	subs := m.subs
	m.subs = make(map[string]*subscription)
	wasIdle := m.state == StateIdle
	m.state = StateIdle
	m.lastErr = nil
	m.mu.Unlock()

	if abort != nil {
		abort()
	}
	for _, s := range subs {
		s.stop()
	}
	m.metrics.subscriptionsAdd(-len(subs))
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.log.Debug("realtime.disconnect.close_failed", "err", err)
		}
	}
	if !wasIdle {
		m.log.Info("realtime.disconnect", "topics", len(subs))
	}
}

type subscription struct {
	topic string
	sub   Subscription

	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *subscription) run(handler func([]byte)) {
	frames := s.sub.Frames()
	for {
		select {
		case <-s.done:
			return
		case body, ok := <-frames:
			if !ok {
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
			handler(body)
		}
	}
}
