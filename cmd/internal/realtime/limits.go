package realtime

import "time"

const (
	// Max bytes per websocket message read.
	maxFrameBytes = 1 << 20

	defaultConnectTimeout = 10 * time.Second
	defaultHeartbeat      = 10 * time.Second

	// Bounds the wait for an UNSUBSCRIBE receipt; go-stomp defaults to 30s.
	unsubscribeTimeout = 2 * time.Second

	// Per-subscription buffer between the transport and the handler.
	frameBuffer = 64

	// Default outbound publish budget (events per window).
	publishRateEvents = 30
	publishRateWindow = 10 * time.Second
)
