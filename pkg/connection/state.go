// Package connection orchestrates the full controller-side connect
// sequence: TCP dial, pairing, OPTIONS, ANNOUNCE/SETUP,
// UDP port binding, RECORD, and reconnection on recoverable failures.
package connection

import "fmt"

// State is the lifecycle state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSettingUp
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateSettingUp:
		return "SettingUp"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// forwardEdges lists the transitions permitted out of each state. A
// Manager only ever moves forward along this graph or drops back to
// Reconnecting/Disconnected on failure, mirroring the checkState idiom
// used by pkg/session.
var forwardEdges = map[State][]State{
	StateDisconnected:   {StateConnecting},
	StateConnecting:     {StateAuthenticating, StateSettingUp, StateFailed, StateDisconnected},
	StateAuthenticating: {StateSettingUp, StateFailed, StateDisconnected},
	StateSettingUp:      {StateConnected, StateFailed, StateDisconnected},
	StateConnected:      {StateReconnecting, StateDisconnected, StateFailed},
	StateReconnecting:   {StateConnecting, StateFailed, StateDisconnected},
	StateFailed:         {StateConnecting, StateDisconnected},
}

func checkTransition(from, to State) error {
	for _, allowed := range forwardEdges[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("connection: illegal transition %s -> %s", from, to)
}
