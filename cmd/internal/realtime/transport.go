package realtime

import "context"

// Dialer opens one transport connection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is an established broker session.
type Conn interface {
	// Subscribe opens a broker subscription to topic.
	Subscribe(topic string) (Subscription, error)
	// Send publishes body to destination.
	Send(destination, contentType string, body []byte) error
	// Done is closed when the transport ends for any reason.
	Done() <-chan struct{}
	// Err reports why the transport ended; nil after a clean close.
	Err() error
	// Close disconnects gracefully (idempotent).
	Close() error
}

// Subscription is one broker subscription.
type Subscription interface {
	// Frames yields frame bodies in arrival order and is closed when the subscription ends.
	Frames() <-chan []byte
	Unsubscribe() error
}
