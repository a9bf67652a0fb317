// Package pairing implements the SRP-6a transient pair-setup, persistent
// pair-setup, and Ed25519/X25519 pair-verify state machines.
package pairing

import (
	"fmt"

	"github.com/openairplay/airplay/pkg/crypto"
)

// State is a state of a pairing state machine: {Idle,
// M1Sent, M2Received, M3Sent, Complete, Failed}. Any parse/MAC/signature
// failure transitions to Failed, which is terminal.
type State int

const (
	StateIdle State = iota
	StateM1Sent
	StateM2Received
	StateM3Sent
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateM1Sent:
		return "M1Sent"
	case StateM2Received:
		return "M2Received"
	case StateM3Sent:
		return "M3Sent"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// StepKind tags the variant of a StepResult.
type StepKind int

const (
	// StepSendData means the caller must POST Data to NextPath and feed
	// the reply back into the state machine.
	StepSendData StepKind = iota
	// StepComplete means the exchange finished successfully.
	StepComplete
	// StepFailed means the exchange is terminally failed.
	StepFailed
)

// StepResult is the sum-type output of one pairing state machine
// transition: exactly one of SendData/Complete/Failed applies, selected by
// Kind — avoiding a raw "any" value.
type StepResult struct {
	Kind StepKind

	// valid when Kind == StepSendData
	Data     []byte
	NextPath string

	// valid when Kind == StepComplete
	SessionKeys *crypto.SessionKeys
	Persistent  *PersistentKeys

	// valid when Kind == StepFailed
	Err error
}

func sendData(data []byte, path string) *StepResult {
	return &StepResult{Kind: StepSendData, Data: data, NextPath: path}
}

func complete(keys *crypto.SessionKeys, persistent *PersistentKeys) *StepResult {
	return &StepResult{Kind: StepComplete, SessionKeys: keys, Persistent: persistent}
}

func failed(err error) *StepResult {
	return &StepResult{Kind: StepFailed, Err: err}
}

// ErrProofMismatch is returned when an SRP proof fails to verify.
var ErrProofMismatch = fmt.Errorf("pairing: SRP proof mismatch")

// ErrStateViolation is returned when a message arrives out of sequence.
var ErrStateViolation = fmt.Errorf("pairing: message received in wrong state")

// ErrSignatureInvalid is returned when an Ed25519 signature fails to verify.
var ErrSignatureInvalid = fmt.Errorf("pairing: signature invalid")
