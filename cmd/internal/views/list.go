package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"talkwire/cmd/internal/alert"
	"talkwire/cmd/internal/realtime"
	"talkwire/cmd/internal/reconcile"
	v1 "talkwire/shared/contracts/realtime/v1"
)

// Change reports one applied list mutation.
type Change[T any] struct {
	View    string
	Action  v1.Action
	Entity  T
	Outcome reconcile.Outcome
	// Local is true for mutations applied after a successful REST call
	// rather than received over the channel.
	Local bool
}

// ListConfig parameterizes a ListView.
type ListConfig[T reconcile.Keyed] struct {
	// Name labels the view in logs.
	Name  string
	Topic v1.TopicTemplate
	// Scope returns the topic scope (a username or chat id).
	Scope func() (string, error)
	Fetch func(ctx context.Context) ([]T, error)
}

// ListView is a keyed list seeded over REST and kept in sync by one
// realtime Manager watching a single topic.
type ListView[T reconcile.Keyed, E v1.Event[T]] struct {
	cfg     ListConfig[T]
	deps    Deps
	alerts  *alert.Channel
	log     *slog.Logger
	applied func(Change[T])

	// deliver serializes frame handling with the replay that ends seeding.
	deliver sync.Mutex

	mu      sync.Mutex
	list    *reconcile.List[T]
	manager *realtime.Manager
	gen     uint64
	mounted bool
	seeding bool
	pending []E
	topic   string
}

// NewListView builds an unmounted view.
func NewListView[T reconcile.Keyed, E v1.Event[T]](cfg ListConfig[T], deps Deps) *ListView[T, E] {
	deps = deps.withDefaults()
	log := deps.Logger.With("view", cfg.Name)
	return &ListView[T, E]{
		cfg:    cfg,
		deps:   deps,
		alerts: alert.NewChannel(alertLogger(log)),
		log:    log,
		list:   reconcile.New[T](),
	}
}

// Alerts is the view's banner.
func (v *ListView[T, E]) Alerts() *alert.Channel { return v.alerts }

// OnChange registers fn for every applied change. It runs on the delivering
// goroutine and must not call back into the view's mutating methods.
func (v *ListView[T, E]) OnChange(fn func(Change[T])) {
	v.mu.Lock()
	v.applied = fn
	v.mu.Unlock()
}

// Mount opens the realtime subscription and then seeds the list over REST.
// Frames received while the fetch is in flight are held and replayed over the
// seed in arrival order. Fetch and connect failures are raised on Alerts and
// returned. A failed subscribe still seeds the list, and the next Mount
// retries it; so does a Mount after the transport was lost.
func (v *ListView[T, E]) Mount(ctx context.Context) error {
	scope, err := v.cfg.Scope()
	if err != nil {
		return err
	}
	topic, err := v.cfg.Topic.For(scope)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if v.mounted && v.manager != nil && v.manager.Connected() {
		v.mu.Unlock()
		return nil
	}
	stale := v.manager
	v.manager = nil
	v.gen++
	gen := v.gen
	v.mounted = true
	v.seeding = true
	v.pending = nil
	v.topic = topic
	v.mu.Unlock()

	if stale != nil {
		stale.Disconnect()
	}

	var errs []error

	m, err := v.open(ctx, gen, topic)
	if err != nil {
		v.alerts.Handle(err)
		errs = append(errs, fmt.Errorf("%s: subscribe: %w", v.cfg.Name, err))
	}

	items, fetchErr := v.cfg.Fetch(ctx)
	if fetchErr != nil {
		v.alerts.Handle(fetchErr)
		errs = append(errs, fmt.Errorf("%s: fetch: %w", v.cfg.Name, fetchErr))
	}

	v.deliver.Lock()
	v.mu.Lock()
	if v.gen != gen {
		// Unmounted or remounted while fetching.
		v.mu.Unlock()
		v.deliver.Unlock()
		if m != nil {
			m.Disconnect()
		}
		return nil
	}
	if fetchErr == nil {
		v.list.Seed(items)
	}
	replayed := len(v.pending)
	changes := make([]Change[T], 0, replayed)
	for _, ev := range v.pending {
		if c, ok := v.applyLocked(ev.EventAction(), ev.Entity(), false); ok {
			changes = append(changes, c)
		}
	}
	v.pending = nil
	v.seeding = false
	v.manager = m
	fn := v.applied
	v.mu.Unlock()
	v.emit(fn, changes...)
	v.deliver.Unlock()

	v.log.Info("view.mount", "topic", topic, "items", v.Len(), "replayed", replayed, "subscribed", m != nil)
	return errors.Join(errs...)
}

// open connects a fresh Manager and watches topic for generation gen.
func (v *ListView[T, E]) open(ctx context.Context, gen uint64, topic string) (*realtime.Manager, error) {
	m, err := v.deps.NewManager(v.lost)
	if err != nil {
		return nil, err
	}
	err = m.Connect(ctx)
	if err == nil {
		err = realtime.Watch(m, topic, func(ev E) { v.receive(gen, ev) })
	}
	if err != nil {
		m.Disconnect()
		return nil, err
	}
	return m, nil
}

// receive applies one frame, or holds it while the seed is in flight.
func (v *ListView[T, E]) receive(gen uint64, ev E) {
	v.deliver.Lock()
	defer v.deliver.Unlock()

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	if v.seeding {
		v.pending = append(v.pending, ev)
		v.mu.Unlock()
		return
	}
	c, ok := v.applyLocked(ev.EventAction(), ev.Entity(), false)
	fn := v.applied
	v.mu.Unlock()
	if ok {
		v.emit(fn, c)
	}
}

// lost is the Manager's OnError: the banner shows the failure and the owner
// is told the subscription is gone.
func (v *ListView[T, E]) lost(err error) {
	v.alerts.Handle(err)
	if v.deps.OnLost != nil {
		v.deps.OnLost(v.cfg.Name, err)
	}
}

// Unmount closes the subscription and discards the list. It is idempotent.
func (v *ListView[T, E]) Unmount() {
	v.mu.Lock()
	v.gen++
	wasMounted := v.mounted
	topic := v.topic
	v.mounted = false
	v.seeding = false
	v.pending = nil
	m := v.manager
	v.manager = nil
	v.list = reconcile.New[T]()
	v.mu.Unlock()

	if m != nil {
		m.Disconnect()
	}
	if wasMounted {
		v.log.Info("view.unmount", "topic", topic)
	}
}

// Mounted reports whether the view is mounted.
func (v *ListView[T, E]) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounted
}

// Connected reports whether the view's subscription is live.
func (v *ListView[T, E]) Connected() bool {
	v.mu.Lock()
	m := v.manager
	v.mu.Unlock()
	return m != nil && m.Connected()
}

// Manager returns the live channel, or nil when not subscribed.
func (v *ListView[T, E]) Manager() *realtime.Manager {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.manager
}

// Items returns a snapshot of the list.
func (v *ListView[T, E]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.list.Items()
}

// Get returns the entry with id.
func (v *ListView[T, E]) Get(id int64) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.list.Get(id)
}

// Len returns the number of entries.
func (v *ListView[T, E]) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.list.Len()
}

// ApplyLocal applies a mutation confirmed by a REST call.
func (v *ListView[T, E]) ApplyLocal(action v1.Action, entity T) reconcile.Outcome {
	return v.apply(action, entity, true)
}

func (v *ListView[T, E]) apply(action v1.Action, entity T, local bool) reconcile.Outcome {
	v.mu.Lock()
	c, ok := v.applyLocked(action, entity, local)
	fn := v.applied
	v.mu.Unlock()
	if ok {
		v.emit(fn, c)
	}
	return c.Outcome
}

// applyLocked mutates the list; ok is false when nothing changed.
func (v *ListView[T, E]) applyLocked(action v1.Action, entity T, local bool) (Change[T], bool) {
	if !v.mounted {
		return Change[T]{}, false
	}
	out := v.list.Apply(action, entity)
	c := Change[T]{View: v.cfg.Name, Action: action, Entity: entity, Outcome: out, Local: local}
	return c, out.Changed
}

func (v *ListView[T, E]) emit(fn func(Change[T]), changes ...Change[T]) {
	for _, c := range changes {
		v.log.Debug("view.change", "action", string(c.Action), "id", c.Entity.Key(), "local", c.Local)
		if fn != nil {
			fn(c)
		}
	}
}
