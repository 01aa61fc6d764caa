// Package v1 defines the talkwire realtime contract.
//
// It names the broker topics the client subscribes to, the destinations it
// publishes to, and the typed update events pushed by the server. Frames are
// decoded and validated here so that consumers never see loosely-typed payloads.
package v1

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is the discriminator carried by every inbound update frame.
type Action string

// Action constants (wire-stable).
const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Known reports whether a is one of the recognised actions.
func (a Action) Known() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// ContentTypeJSON is the content type used for every published frame.
const ContentTypeJSON = "application/json"

// Topic prefixes.
const (
	topicChats            = "/topic/chats/"
	topicContacts         = "/topic/contacts/"
	topicSentRequests     = "/topic/sent_requests/"
	topicReceivedRequests = "/topic/received_requests/"
	topicChatMessages     = "/topic/secured/chats/"

	destChatMessages = "/app/chats/"
)

var (
	// ErrEmptyScope is returned when a topic or destination is built without its scoping identifier.
	ErrEmptyScope = errors.New("realtime: empty topic scope")
)

// Kind names the entity family a topic carries. It is used as a low-cardinality metric label.
type Kind string

// Topic kinds.
const (
	KindChats            Kind = "chats"
	KindContacts         Kind = "contacts"
	KindSentRequests     Kind = "sent_requests"
	KindReceivedRequests Kind = "received_requests"
	KindMessages         Kind = "messages"
	KindUnknown          Kind = "unknown"
)

// TopicTemplate builds a per-user or per-chat topic from its scoping identifier.
type TopicTemplate struct {
	Kind   Kind
	prefix string
	suffix string
}

// Per-user templates.
var (
	ChatsTopic            = TopicTemplate{Kind: KindChats, prefix: topicChats}
	ContactsTopic         = TopicTemplate{Kind: KindContacts, prefix: topicContacts}
	SentRequestsTopic     = TopicTemplate{Kind: KindSentRequests, prefix: topicSentRequests}
	ReceivedRequestsTopic = TopicTemplate{Kind: KindReceivedRequests, prefix: topicReceivedRequests}
)

// MessagesTopic is the per-chat template.
var MessagesTopic = TopicTemplate{Kind: KindMessages, prefix: topicChatMessages, suffix: "/messages"}

// For renders the topic for scope (a username or a chat id).
func (t TopicTemplate) For(scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", ErrEmptyScope
	}
	if strings.Contains(scope, "/") {
		return "", fmt.Errorf("realtime: invalid topic scope %q", scope)
	}
	return t.prefix + scope + t.suffix, nil
}

// ForID renders the topic for a numeric scope.
func (t TopicTemplate) ForID(id int64) (string, error) {
	if id <= 0 {
		return "", ErrEmptyScope
	}
	return t.For(strconv.FormatInt(id, 10))
}

// KindOf classifies a concrete topic string.
func KindOf(topic string) Kind {
	switch {
	case strings.HasPrefix(topic, topicChatMessages) && strings.HasSuffix(topic, "/messages"):
		return KindMessages
	case strings.HasPrefix(topic, topicChats):
		return KindChats
	case strings.HasPrefix(topic, topicContacts):
		return KindContacts
	case strings.HasPrefix(topic, topicSentRequests):
		return KindSentRequests
	case strings.HasPrefix(topic, topicReceivedRequests):
		return KindReceivedRequests
	default:
		return KindUnknown
	}
}

// MessageCreateDestination is where a new message for chatID is published.
func MessageCreateDestination(chatID int64) (string, error) {
	if chatID <= 0 {
		return "", ErrEmptyScope
	}
	return destChatMessages + strconv.FormatInt(chatID, 10) + "/messages/create", nil
}

// MessageUpdateDestination is where an edit of messageID in chatID is published.
func MessageUpdateDestination(chatID, messageID int64) (string, error) {
	return messageActionDestination(chatID, messageID, "update")
}

// MessageDeleteDestination is where a deletion of messageID in chatID is published.
func MessageDeleteDestination(chatID, messageID int64) (string, error) {
	return messageActionDestination(chatID, messageID, "destroy")
}

func messageActionDestination(chatID, messageID int64, verb string) (string, error) {
	if chatID <= 0 || messageID <= 0 {
		return "", ErrEmptyScope
	}
	return destChatMessages + strconv.FormatInt(chatID, 10) +
		"/messages/" + strconv.FormatInt(messageID, 10) + "/" + verb, nil
}
