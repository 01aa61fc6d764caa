package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected       = errors.New("realtime: not connected")
	ErrAlreadySubscribed  = errors.New("realtime: topic already subscribed")
	ErrNotSubscribed      = errors.New("realtime: topic not subscribed")
	ErrInvalidTopic       = errors.New("realtime: invalid topic")
	ErrRateLimited        = errors.New("realtime: publish rate limited")
	ErrDisconnected       = errors.New("realtime: disconnected while connecting")
	ErrInvalidDialer      = errors.New("realtime: invalid dialer config")
	ErrMissingCredentials = errors.New("realtime: no bearer token available")
)

// ProtocolError reports a handshake or transport failure.
type ProtocolError struct {
	Op  string // "dial", "handshake", "transport", "subscribe", "send"
	Err error
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("realtime: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
