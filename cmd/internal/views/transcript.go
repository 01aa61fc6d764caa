package views

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"talkwire/cmd/internal/realtime"
	v1 "talkwire/shared/contracts/realtime/v1"
)

var (
	ErrEmptyMessage = errors.New("views: empty message")
	ErrNoChat       = errors.New("views: no chat open")
)

// TranscriptView holds the messages of one chat. Writes go out over the
// channel and land in the list when the server echoes them back.
type TranscriptView struct {
	*ListView[v1.Message, v1.MessageEvent]

	mu     sync.Mutex
	chatID int64
}

// NewTranscriptView builds a transcript with no chat open.
func NewTranscriptView(deps Deps) *TranscriptView {
	t := &TranscriptView{}
	t.ListView = NewListView[v1.Message, v1.MessageEvent](ListConfig[v1.Message]{
		Name:  "transcript",
		Topic: v1.MessagesTopic,
		Scope: t.scope,
		Fetch: func(ctx context.Context) ([]v1.Message, error) {
			return deps.API.ListMessages(ctx, t.ChatID())
		},
	}, deps)
	return t
}

func (t *TranscriptView) scope() (string, error) {
	id := t.ChatID()
	if id <= 0 {
		return "", ErrNoChat
	}
	return strconv.FormatInt(id, 10), nil
}

// ChatID returns the open chat, or 0.
func (t *TranscriptView) ChatID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chatID
}

// Open re-scopes the transcript to chatID. The previous chat's subscription is
// torn down before the new one is mounted.
func (t *TranscriptView) Open(ctx context.Context, chatID int64) error {
	if chatID <= 0 {
		return ErrNoChat
	}
	t.Unmount()
	t.mu.Lock()
	t.chatID = chatID
	t.mu.Unlock()
	return t.Mount(ctx)
}

// Close unmounts the transcript and forgets the chat.
func (t *TranscriptView) Close() {
	t.Unmount()
	t.mu.Lock()
	t.chatID = 0
	t.mu.Unlock()
}

// Send publishes a new message.
func (t *TranscriptView) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	return t.publish(v1.MessageCreateDestination, v1.MessageCreatePayload{Text: text})
}

// Edit publishes a new text for messageID.
func (t *TranscriptView) Edit(messageID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	return t.publish(func(chatID int64) (string, error) {
		return v1.MessageUpdateDestination(chatID, messageID)
	}, v1.MessageUpdatePayload{Text: text})
}

// Delete publishes the removal of messageID.
func (t *TranscriptView) Delete(messageID int64) error {
	return t.publish(func(chatID int64) (string, error) {
		return v1.MessageDeleteDestination(chatID, messageID)
	}, v1.MessageDeletePayload{})
}

func (t *TranscriptView) publish(destination func(chatID int64) (string, error), payload any) error {
	m := t.Manager()
	if m == nil {
		return ErrNotMounted
	}
	dest, err := destination(t.ChatID())
	if err != nil {
		return err
	}
	if err := m.Publish(dest, payload); err != nil {
		if !errors.Is(err, realtime.ErrRateLimited) {
			t.Alerts().Handle(err)
		}
		return err
	}
	return nil
}
