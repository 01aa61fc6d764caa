package app

import (
	"context"
	"sync"

	"talkwire/cmd/internal/reconcile"
	"talkwire/cmd/internal/views"
	v1 "talkwire/shared/contracts/realtime/v1"
)

// mountable is the lifecycle shared by every sidebar view.
type mountable interface {
	Mount(ctx context.Context) error
	Unmount()
	Connected() bool
}

// sidebar keeps the per-user lists of the signed-in area in sync: chats,
// contacts, and both directions of contact requests.
type sidebar struct {
	log Logger

	chats    *views.ChatsView
	contacts *views.ContactsView
	received *views.RequestsView
	sent     *views.RequestsView

	// lost is signalled, coalesced, when a view's transport ends on its own.
	lost chan struct{}

	mu       sync.Mutex
	username string
}

func newSidebar(deps views.Deps, log Logger) *sidebar {
	s := &sidebar{log: log, lost: make(chan struct{}, 1)}
	deps.OnLost = s.onLost
	s.chats = views.NewChatsView(deps)
	s.contacts = views.NewContactsView(deps)
	s.received = views.NewReceivedRequestsView(deps)
	s.sent = views.NewSentRequestsView(deps)
	s.chats.OnChange(logChange[v1.Chat](log))
	s.contacts.OnChange(logChange[v1.Contact](log))
	s.received.OnChange(logChange[v1.Request](log))
	s.sent.OnChange(logChange[v1.Request](log))
	return s
}

func (s *sidebar) all() []mountable {
	return []mountable{s.chats, s.contacts, s.received, s.sent}
}

// mount brings every view up for username. A different user than the one
// currently mounted tears the old subscriptions down first.
func (s *sidebar) mount(ctx context.Context, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.username != "" && s.username != username {
		s.unmountLocked()
	}
	s.username = username

	var wg sync.WaitGroup
	for _, v := range s.all() {
		wg.Go(func() {
			if err := v.Mount(ctx); err != nil {
				s.log.Error("sidebar.mount.failed", "username", username, "err", err)
			}
		})
	}
	wg.Wait()

	s.log.Info("sidebar.mounted",
		"username", username,
		"chats", s.chats.Len(),
		"contacts", s.contacts.Len(),
		"received", s.received.Len(),
		"sent", s.sent.Len(),
	)
}

func (s *sidebar) unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmountLocked()
}

func (s *sidebar) unmountLocked() {
	if s.username == "" {
		return
	}
	for _, v := range s.all() {
		v.Unmount()
	}
	s.log.Info("sidebar.unmounted", "username", s.username)
	s.username = ""
}

// resync remounts every view whose subscription is not live. It does nothing
// while signed out.
func (s *sidebar) resync(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	username := s.username
	if username == "" {
		return
	}

	var (
		wg    sync.WaitGroup
		stale int
	)
	for _, v := range s.all() {
		if v.Connected() {
			continue
		}
		stale++
		wg.Go(func() {
			if err := v.Mount(ctx); err != nil {
				s.log.Warn("sidebar.resync.failed", "username", username, "err", err)
			}
		})
	}
	wg.Wait()
	if stale > 0 {
		s.log.Info("sidebar.resynced", "username", username, "views", stale, "synced", s.synced())
	}
}

func (s *sidebar) onLost(view string, err error) {
	s.log.Warn("sidebar.view.lost", "view", view, "err", err)
	select {
	case s.lost <- struct{}{}:
	default:
	}
}

// synced reports whether every view holds a live subscription.
func (s *sidebar) synced() bool {
	for _, v := range s.all() {
		if !v.Connected() {
			return false
		}
	}
	return true
}

func logChange[T reconcile.Keyed](log Logger) func(views.Change[T]) {
	return func(c views.Change[T]) {
		log.Info("sync.change",
			"view", c.View,
			"action", string(c.Action),
			"id", c.Entity.Key(),
			"changed", c.Outcome.Changed,
			"deleted", c.Outcome.Deleted,
			"local", c.Local,
		)
	}
}
