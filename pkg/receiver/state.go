// Package receiver implements the accessory side of the RTSP/pairing/RTP
// stack: the server-side dual of pkg/connection, accepting a controller's
// connection and driving the same method sequence in reverse.
package receiver

import "github.com/openairplay/airplay/internal/liberrors"

// State is the lifecycle state of one accepted session, mirroring
// pkg/session.State from the accessory's point of view.
type State int

const (
	StateIdle State = iota
	StateOptionsHandled
	StateAnnounced
	StateSetUp
	StateRecording
	StateFlushing
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOptionsHandled:
		return "OptionsHandled"
	case StateAnnounced:
		return "Announced"
	case StateSetUp:
		return "SetUp"
	case StateRecording:
		return "Recording"
	case StateFlushing:
		return "Flushing"
	case StateTornDown:
		return "TornDown"
	default:
		return "Unknown"
	}
}

func checkState(current State, allowed ...State) error {
	for _, a := range allowed {
		if current == a {
			return nil
		}
	}
	return liberrors.Session("BAD_STATE", "method not allowed in state "+current.String(), nil)
}
