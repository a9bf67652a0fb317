// Package session implements the RTSP session state machine and
// multi-phase SETUP controller: OPTIONS -> ANNOUNCE/SETUP
// (phase 1, phase 2) -> RECORD -> SET_PARAMETER -> FLUSH -> TEARDOWN.
package session

import (
	"fmt"

	"github.com/openairplay/airplay/internal/liberrors"
)

// State is a state of the SETUP/session state machine:
// {Init, OptionsExchanged, Announced(AP1)|TimingEstablished(AP2),
// StreamsEstablished, Recording, Flushing, TornDown}.
type State int

const (
	StateInit State = iota
	StateOptionsExchanged
	StateAnnounced         // AP1: ANNOUNCE acknowledged
	StateTimingEstablished // AP2: SETUP phase 1 acknowledged
	StateStreamsEstablished
	StateRecording
	StateFlushing
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateOptionsExchanged:
		return "OptionsExchanged"
	case StateAnnounced:
		return "Announced"
	case StateTimingEstablished:
		return "TimingEstablished"
	case StateStreamsEstablished:
		return "StreamsEstablished"
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

// checkState fails fast with a named list of allowed states rather than
// a bare bool.
func checkState(current State, allowed ...State) error {
	for _, a := range allowed {
		if current == a {
			return nil
		}
	}
	return liberrors.Session("INVALID_STATE",
		fmt.Sprintf("operation not valid in state %s (allowed: %v)", current, allowed), nil)
}
