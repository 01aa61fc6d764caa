// Package alert turns errors into dismissable, view-scoped banners.
package alert

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"talkwire/cmd/internal/restapi"
)

// Kind is the error taxonomy shared by every view.
type Kind string

const (
	KindTimeout            Kind = "timeout"
	KindValidation         Kind = "validation"
	KindUnauthorized       Kind = "unauthorized"
	KindNetworkUnreachable Kind = "network_unreachable"
	KindServerMessage      Kind = "server_message"
	KindUnknown            Kind = "unknown"
)

// Severity selects how a banner is presented.
type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityDanger  Severity = "DANGER"
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityWarning, SeverityDanger, SeverityInfo, SeveritySuccess:
		return true
	default:
		return false
	}
}

const (
	MsgTimeout    = "Connection timeout. Please try again."
	MsgNoResponse = "No response from server. Please check your connection."
	MsgFallback   = "An error occurred. Please try again."
	MsgBadReply   = "The server sent an unexpected response. Please try again."
)

// Alert is one banner.
type Alert struct {
	Kind     Kind
	Severity Severity
	Message  string
	At       time.Time
}

// Classify maps err onto the taxonomy and the message shown to the user.
func Classify(err error) (Kind, string) {
	if err == nil {
		return KindUnknown, MsgFallback
	}

	if isTimeout(err) {
		return KindTimeout, MsgTimeout
	}

	var apiErr *restapi.APIError
	if errors.As(err, &apiErr) {
		if msg := joinFieldErrors(apiErr.Errors); msg != "" {
			return KindValidation, msg
		}
		kind := KindServerMessage
		if errors.Is(err, restapi.ErrUnauthorized) {
			kind = KindUnauthorized
		}
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return kind, msg
		}
		return kind, fmt.Sprintf("Request failed: %d %s", apiErr.Status, http.StatusText(apiErr.Status))
	}

	if errors.Is(err, restapi.ErrNoResponse) {
		return KindNetworkUnreachable, MsgNoResponse
	}

	// A 2xx reply the client cannot use is still the server's answer.
	if errors.Is(err, restapi.ErrInvalidResponse) {
		return KindServerMessage, MsgBadReply
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return KindUnknown, msg
	}
	return KindUnknown, MsgFallback
}

// DefaultSeverity is used when the caller does not pick one.
func DefaultSeverity(k Kind) Severity {
	if k == KindTimeout {
		return SeverityWarning
	}
	return SeverityDanger
}

func isTimeout(err error) bool {
	if errors.Is(err, restapi.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// joinFieldErrors joins non-empty messages in field-name order.
func joinFieldErrors(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(fields[k]); v != "" {
			msgs = append(msgs, v)
		}
	}
	return strings.Join(msgs, "\n")
}

// Channel holds the current banner of one view.
// It is safe for concurrent use; realtime failures arrive from broker goroutines.
type Channel struct {
	mu      sync.Mutex
	current *Alert
	observe func(Alert)
	now     func() time.Time
}

// NewChannel returns an empty Channel. observe, when non-nil, is called with
// every raised alert outside the lock.
func NewChannel(observe func(Alert)) *Channel {
	return &Channel{observe: observe, now: time.Now}
}

// Handle classifies err and raises it with the kind's default severity.
// A nil error is ignored.
func (c *Channel) Handle(err error) {
	if err == nil {
		return
	}
	kind, msg := Classify(err)
	c.raise(Alert{Kind: kind, Severity: DefaultSeverity(kind), Message: msg})
}

// HandleAs is Handle with an explicit severity.
func (c *Channel) HandleAs(err error, sev Severity) {
	if err == nil {
		return
	}
	kind, msg := Classify(err)
	if !sev.Valid() {
		sev = DefaultSeverity(kind)
	}
	c.raise(Alert{Kind: kind, Severity: sev, Message: msg})
}

// Notify raises a non-error banner, e.g. a success confirmation.
func (c *Channel) Notify(sev Severity, msg string) {
	if !sev.Valid() {
		sev = SeverityInfo
	}
	c.raise(Alert{Kind: KindServerMessage, Severity: sev, Message: msg})
}

// Current returns the visible banner.
func (c *Channel) Current() (Alert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Alert{}, false
	}
	return *c.current, true
}

// Clear dismisses the visible banner.
func (c *Channel) Clear() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Channel) raise(a Alert) {
	c.mu.Lock()
	a.At = c.now()
	c.current = &a
	observe := c.observe
	c.mu.Unlock()

	if observe != nil {
		observe(a)
	}
}
