package views

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"talkwire/cmd/internal/restapi"
	"talkwire/cmd/internal/session"
	v1 "talkwire/shared/contracts/realtime/v1"
)

var (
	ErrUnknownChat = errors.New("views: unknown chat")
	ErrNotIncoming = errors.New("views: only received requests can be approved or rejected")
)

// ChatsView lists the user's chats and tracks the selected one.
// The selection survives remounts through the Session Store.
type ChatsView struct {
	*ListView[v1.Chat, v1.ChatEvent]

	api   *restapi.Client
	store *session.Store

	mu       sync.Mutex
	selected int64
	notify   func(Change[v1.Chat])
}

// NewChatsView builds an unmounted chats list.
func NewChatsView(deps Deps) *ChatsView {
	c := &ChatsView{api: deps.API, store: deps.Store}
	c.ListView = NewListView[v1.Chat, v1.ChatEvent](ListConfig[v1.Chat]{
		Name:  "chats",
		Topic: v1.ChatsTopic,
		Scope: usernameScope(deps.Store),
		Fetch: func(ctx context.Context) ([]v1.Chat, error) { return deps.API.ListChats(ctx) },
	}, deps)
	c.ListView.OnChange(c.observe)
	return c
}

// OnChange registers fn for every applied change.
func (c *ChatsView) OnChange(fn func(Change[v1.Chat])) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Mount seeds, subscribes and restores the persisted selection.
func (c *ChatsView) Mount(ctx context.Context) error {
	err := c.ListView.Mount(ctx)

	if raw, ok := c.store.Value(session.KeySelectedChat); ok {
		if id, perr := strconv.ParseInt(raw, 10, 64); perr == nil && c.Has(id) {
			c.mu.Lock()
			c.selected = id
			c.mu.Unlock()
		}
	}
	return err
}

// Unmount forgets the in-memory selection; the persisted one is kept.
func (c *ChatsView) Unmount() {
	c.ListView.Unmount()
	c.mu.Lock()
	c.selected = 0
	c.mu.Unlock()
}

// Has reports whether the chat is listed.
func (c *ChatsView) Has(id int64) bool {
	_, ok := c.Get(id)
	return ok
}

// Select marks chatID as the open chat.
func (c *ChatsView) Select(chatID int64) error {
	if !c.Has(chatID) {
		return ErrUnknownChat
	}
	c.mu.Lock()
	c.selected = chatID
	c.mu.Unlock()
	c.store.Put(session.KeySelectedChat, strconv.FormatInt(chatID, 10))
	return nil
}

// Selected returns the open chat.
func (c *ChatsView) Selected() (v1.Chat, bool) {
	c.mu.Lock()
	id := c.selected
	c.mu.Unlock()
	if id == 0 {
		return v1.Chat{}, false
	}
	return c.Get(id)
}

// ClearSelection closes the open chat.
func (c *ChatsView) ClearSelection() {
	c.mu.Lock()
	c.selected = 0
	c.mu.Unlock()
	c.store.Remove(session.KeySelectedChat)
}

// Create opens a chat with another user.
func (c *ChatsView) Create(ctx context.Context, in restapi.ChatCreate) (v1.Chat, error) {
	chat, err := c.api.CreateChat(ctx, in)
	if err != nil {
		c.Alerts().Handle(err)
		return v1.Chat{}, err
	}
	c.ApplyLocal(v1.ActionCreate, chat)
	return chat, nil
}

// Delete removes a chat.
func (c *ChatsView) Delete(ctx context.Context, chatID int64) error {
	if err := c.api.DeleteChat(ctx, chatID); err != nil {
		c.Alerts().Handle(err)
		return err
	}
	c.ApplyLocal(v1.ActionDelete, v1.Chat{ID: chatID})
	return nil
}

func (c *ChatsView) observe(ch Change[v1.Chat]) {
	c.mu.Lock()
	cleared := ch.Outcome.Deleted && ch.Entity.ID == c.selected
	if cleared {
		c.selected = 0
	}
	fn := c.notify
	c.mu.Unlock()

	if cleared {
		c.store.Remove(session.KeySelectedChat)
	}
	if fn != nil {
		fn(ch)
	}
}

// ContactsView lists accepted contacts.
type ContactsView struct {
	*ListView[v1.Contact, v1.ContactEvent]
	api *restapi.Client
}

// NewContactsView builds an unmounted contacts list.
func NewContactsView(deps Deps) *ContactsView {
	return &ContactsView{
		api: deps.API,
		ListView: NewListView[v1.Contact, v1.ContactEvent](ListConfig[v1.Contact]{
			Name:  "contacts",
			Topic: v1.ContactsTopic,
			Scope: usernameScope(deps.Store),
			Fetch: func(ctx context.Context) ([]v1.Contact, error) { return deps.API.ListContacts(ctx) },
		}, deps),
	}
}

// Delete removes a contact.
func (c *ContactsView) Delete(ctx context.Context, contactID int64) error {
	if err := c.api.DeleteContact(ctx, contactID); err != nil {
		c.Alerts().Handle(err)
		return err
	}
	c.ApplyLocal(v1.ActionDelete, v1.Contact{ID: contactID})
	return nil
}

// RequestsView lists pending requests in one direction.
type RequestsView struct {
	*ListView[v1.Request, v1.RequestEvent]
	api      *restapi.Client
	incoming bool
}

// NewReceivedRequestsView lists requests addressed to the user.
func NewReceivedRequestsView(deps Deps) *RequestsView {
	return &RequestsView{
		api:      deps.API,
		incoming: true,
		ListView: NewListView[v1.Request, v1.RequestEvent](ListConfig[v1.Request]{
			Name:  "received_requests",
			Topic: v1.ReceivedRequestsTopic,
			Scope: usernameScope(deps.Store),
			Fetch: func(ctx context.Context) ([]v1.Request, error) { return deps.API.ListReceivedRequests(ctx) },
		}, deps),
	}
}

// NewSentRequestsView lists requests the user sent.
func NewSentRequestsView(deps Deps) *RequestsView {
	return &RequestsView{
		api: deps.API,
		ListView: NewListView[v1.Request, v1.RequestEvent](ListConfig[v1.Request]{
			Name:  "sent_requests",
			Topic: v1.SentRequestsTopic,
			Scope: usernameScope(deps.Store),
			Fetch: func(ctx context.Context) ([]v1.Request, error) { return deps.API.ListSentRequests(ctx) },
		}, deps),
	}
}

// Incoming reports whether the view lists received requests.
func (r *RequestsView) Incoming() bool { return r.incoming }

// Approve accepts a received request.
func (r *RequestsView) Approve(ctx context.Context, reqID int64) error {
	if !r.incoming {
		return ErrNotIncoming
	}
	return r.resolve(ctx, reqID, r.api.ApproveRequest)
}

// Reject declines a received request.
func (r *RequestsView) Reject(ctx context.Context, reqID int64) error {
	if !r.incoming {
		return ErrNotIncoming
	}
	return r.resolve(ctx, reqID, r.api.RejectRequest)
}

// Delete withdraws (sent) or discards (received) a request.
func (r *RequestsView) Delete(ctx context.Context, reqID int64) error {
	return r.resolve(ctx, reqID, r.api.DeleteRequest)
}

func (r *RequestsView) resolve(ctx context.Context, reqID int64, call func(context.Context, int64) error) error {
	if err := call(ctx, reqID); err != nil {
		r.Alerts().Handle(err)
		return err
	}
	r.ApplyLocal(v1.ActionDelete, v1.Request{ID: reqID})
	return nil
}
