// Package realtime keeps view-local state in sync with the server's push channel.
//
// A Manager is one logical connection (a ConnectionHandle) owned by a single
// mounted feature. It supervises at most one broker subscription per topic,
// decodes inbound frames into typed events at the boundary and publishes
// outbound actions. There is no automatic reconnect: when the transport ends
// the Manager moves to Closed or Error, drops its subscriptions, and the owner
// decides whether to remount.
//
// The production transport is STOMP 1.2 over a WebSocket (see StompDialer).
// Tests substitute the Dialer.
package realtime
