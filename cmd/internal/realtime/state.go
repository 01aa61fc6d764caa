package realtime

// State is the lifecycle of a Manager.
//
//	Idle -> Connecting -> Connected -> Closed | Error
//
// Disconnect returns any state to Idle; Connect from Idle, Closed or Error dials again.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
