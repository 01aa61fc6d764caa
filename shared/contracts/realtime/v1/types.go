package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedFrame is returned when a frame body is not a valid update event.
	ErrMalformedFrame = errors.New("realtime: malformed frame")

	// ErrUnknownAction is returned for well-formed frames whose action is not recognised.
	// Consumers ignore such frames rather than treating them as failures.
	ErrUnknownAction = errors.New("realtime: unknown action")
)

// ---- Entities ----

// Message is one chat message.
type Message struct {
	ID        int64  `json:"id"`
	ChatID    int64  `json:"chatId,omitempty"`
	Text      string `json:"text,omitempty"`
	Username  string `json:"username,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Key returns the reconciliation key.
func (m Message) Key() int64 { return m.ID }

// Chat is one chat the signed-in user participates in.
type Chat struct {
	ID        int64  `json:"id"`
	Name      string `json:"name,omitempty"`
	UserID    int64  `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Key returns the reconciliation key.
func (c Chat) Key() int64 { return c.ID }

// Contact is one accepted relationship.
type Contact struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Key returns the reconciliation key.
func (c Contact) Key() int64 { return c.ID }

// Request is one pending relationship request, either sent or received.
type Request struct {
	ID                int64  `json:"id"`
	SenderUsername    string `json:"senderUsername,omitempty"`
	RecipientUsername string `json:"recipientUsername,omitempty"`
	Status            string `json:"status,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
}

// Key returns the reconciliation key.
func (r Request) Key() int64 { return r.ID }

// ---- Events ----

// Event is the common shape of every typed update event.
type Event[T any] interface {
	EventAction() Action
	Entity() T
	Validate() error
}

// MessageEvent is pushed on a chat's messages topic.
type MessageEvent struct {
	Action Action `json:"action"`
	Message
}

// EventAction returns the discriminator.
func (e MessageEvent) EventAction() Action { return e.Action }

// Entity returns the carried message.
func (e MessageEvent) Entity() Message { return e.Message }

// Validate checks the event at the deserialization boundary.
func (e MessageEvent) Validate() error { return validateEvent(e.Action, e.ID) }

// ChatEvent is pushed on a user's chats topic.
type ChatEvent struct {
	Action Action `json:"action"`
	Chat
}

// EventAction returns the discriminator.
func (e ChatEvent) EventAction() Action { return e.Action }

// Entity returns the carried chat.
func (e ChatEvent) Entity() Chat { return e.Chat }

// Validate checks the event at the deserialization boundary.
func (e ChatEvent) Validate() error { return validateEvent(e.Action, e.ID) }

// ContactEvent is pushed on a user's contacts topic.
type ContactEvent struct {
	Action Action `json:"action"`
	Contact
}

// EventAction returns the discriminator.
func (e ContactEvent) EventAction() Action { return e.Action }

// Entity returns the carried contact.
func (e ContactEvent) Entity() Contact { return e.Contact }

// Validate checks the event at the deserialization boundary.
func (e ContactEvent) Validate() error { return validateEvent(e.Action, e.ID) }

// RequestEvent is pushed on a user's sent or received requests topic.
type RequestEvent struct {
	Action Action `json:"action"`
	Request
}

// EventAction returns the discriminator.
func (e RequestEvent) EventAction() Action { return e.Action }

// Entity returns the carried request.
func (e RequestEvent) Entity() Request { return e.Request }

// Validate checks the event at the deserialization boundary.
func (e RequestEvent) Validate() error { return validateEvent(e.Action, e.ID) }

func validateEvent(a Action, id int64) error {
	if strings.TrimSpace(string(a)) == "" {
		return fmt.Errorf("%w: missing field: action", ErrMalformedFrame)
	}
	if !a.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, string(a))
	}
	if id <= 0 {
		return fmt.Errorf("%w: missing field: id", ErrMalformedFrame)
	}
	return nil
}

// Decode parses and validates one frame body as E.
func Decode[E interface{ Validate() error }](body []byte) (E, error) {
	var e E
	if len(body) == 0 {
		return e, fmt.Errorf("%w: empty body", ErrMalformedFrame)
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := e.Validate(); err != nil {
		return e, err
	}
	return e, nil
}

// ---- Publish payloads ----

// MessageCreatePayload is published to MessageCreateDestination.
type MessageCreatePayload struct {
	Text string `json:"text"`
}

// MessageUpdatePayload is published to MessageUpdateDestination.
type MessageUpdatePayload struct {
	Text string `json:"text"`
}

// MessageDeletePayload is published to MessageDeleteDestination.
type MessageDeletePayload struct{}
