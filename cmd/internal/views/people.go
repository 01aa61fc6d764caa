package views

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"talkwire/cmd/internal/alert"
	"talkwire/cmd/internal/restapi"
	"talkwire/cmd/internal/session"
)

var (
	// ErrNoUser is returned by relation actions before a user is loaded.
	ErrNoUser    = errors.New("views: no user selected")
	ErrNoRequest = errors.New("views: no pending request")
)

// RelationAction is an action offered on another user's profile.
type RelationAction string

const (
	ActionOpenChat       RelationAction = "open_chat"
	ActionSendRequest    RelationAction = "send_request"
	ActionApproveRequest RelationAction = "approve_request"
	ActionCancelRequest  RelationAction = "cancel_request"
)

// RelationsView shows one other user and how the signed-in user relates to
// them. It is fetched on demand and never patched by realtime events.
type RelationsView struct {
	api    *restapi.Client
	store  *session.Store
	alerts *alert.Channel
	log    *slog.Logger

	mu        sync.Mutex
	user      restapi.User
	relations restapi.Relations
	loaded    bool
}

// NewRelationsView builds an empty profile view.
func NewRelationsView(deps Deps) *RelationsView {
	deps = deps.withDefaults()
	log := deps.Logger.With("view", "relations")
	return &RelationsView{
		api:    deps.API,
		store:  deps.Store,
		alerts: alert.NewChannel(alertLogger(log)),
		log:    log,
	}
}

// Alerts is the view's banner.
func (r *RelationsView) Alerts() *alert.Channel { return r.alerts }

// Refresh loads userID and the relation summary.
func (r *RelationsView) Refresh(ctx context.Context, userID int64) error {
	var (
		user restapi.User
		rel  restapi.Relations
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = r.api.GetUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		rel, err = r.api.Relations(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		r.alerts.HandleAs(err, alert.SeverityDanger)
		return err
	}

	r.mu.Lock()
	r.user, r.relations, r.loaded = user, rel, true
	r.mu.Unlock()
	r.store.Put(session.KeySelectedUser, strconv.FormatInt(userID, 10))

	r.log.Debug("view.relations", "user_id", userID, "actions", len(r.Actions()))
	return nil
}

// Restore reloads the user selected before the last restart. It reports false
// when nothing usable was persisted; an unreadable entry is dropped.
func (r *RelationsView) Restore(ctx context.Context) (bool, error) {
	raw, ok := r.store.Value(session.KeySelectedUser)
	if !ok {
		return false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		r.store.Remove(session.KeySelectedUser)
		return false, nil
	}
	if err := r.Refresh(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// User returns the loaded user.
func (r *RelationsView) User() (restapi.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user, r.loaded
}

// Relations returns the loaded summary.
func (r *RelationsView) Relations() restapi.Relations {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.relations
}

// Actions lists what the signed-in user can do next.
func (r *RelationsView) Actions() []RelationAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return nil
	}
	rel := r.relations
	var out []RelationAction
	if rel.HasChat {
		out = append(out, ActionOpenChat)
	}
	switch {
	case rel.HasIncomingRequest:
		out = append(out, ActionApproveRequest)
	case rel.HasOutgoingRequest:
		out = append(out, ActionCancelRequest)
	case !rel.HasContact:
		out = append(out, ActionSendRequest)
	}
	return out
}

// SendRequest asks the loaded user to become a contact.
func (r *RelationsView) SendRequest(ctx context.Context) error {
	user, ok := r.User()
	if !ok {
		return ErrNoUser
	}
	if _, err := r.api.CreateRequest(ctx, user.ID); err != nil {
		r.alerts.Handle(err)
		return err
	}
	return r.Refresh(ctx, user.ID)
}

// Approve accepts the loaded user's pending request.
func (r *RelationsView) Approve(ctx context.Context) error {
	return r.onRequest(ctx, func(rel restapi.Relations) int64 { return rel.IncomingRequestID }, r.api.ApproveRequest)
}

// Cancel withdraws the request sent to the loaded user.
func (r *RelationsView) Cancel(ctx context.Context) error {
	return r.onRequest(ctx, func(rel restapi.Relations) int64 { return rel.OutgoingRequestID }, r.api.DeleteRequest)
}

func (r *RelationsView) onRequest(ctx context.Context, pick func(restapi.Relations) int64, call func(context.Context, int64) error) error {
	r.mu.Lock()
	loaded, userID, reqID := r.loaded, r.user.ID, pick(r.relations)
	r.mu.Unlock()
	if !loaded {
		return ErrNoUser
	}
	if reqID <= 0 {
		return ErrNoRequest
	}
	if err := call(ctx, reqID); err != nil {
		r.alerts.Handle(err)
		return err
	}
	return r.Refresh(ctx, userID)
}

// Reset forgets the loaded user.
func (r *RelationsView) Reset() {
	r.mu.Lock()
	r.user, r.relations, r.loaded = restapi.User{}, restapi.Relations{}, false
	r.mu.Unlock()
	r.store.Remove(session.KeySelectedUser)
}

// SearchView filters the user directory locally.
type SearchView struct {
	api    *restapi.Client
	alerts *alert.Channel

	mu    sync.Mutex
	users []restapi.User
}

// NewSearchView builds an empty search.
func NewSearchView(deps Deps) *SearchView {
	deps = deps.withDefaults()
	return &SearchView{
		api:    deps.API,
		alerts: alert.NewChannel(alertLogger(deps.Logger.With("view", "search"))),
	}
}

// Alerts is the view's banner.
func (s *SearchView) Alerts() *alert.Channel { return s.alerts }

// Load fetches the whole directory.
func (s *SearchView) Load(ctx context.Context) error {
	users, err := s.api.ListUsers(ctx, restapi.UserFilter{})
	if err != nil {
		s.alerts.Handle(err)
		return err
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

// Filter returns users whose username contains term, followed by the
// remaining users whose email contains it. Matching is case-insensitive.
func (s *SearchView) Filter(term string) []restapi.User {
	s.mu.Lock()
	users := s.users
	s.mu.Unlock()

	term = strings.ToLower(strings.TrimSpace(term))
	seen := make(map[int64]struct{}, len(users))
	out := make([]restapi.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), term) {
			seen[u.ID] = struct{}{}
			out = append(out, u)
		}
	}
	for _, u := range users {
		if _, ok := seen[u.ID]; ok {
			continue
		}
		if strings.Contains(strings.ToLower(u.Email), term) {
			seen[u.ID] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}
