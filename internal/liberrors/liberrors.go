// Package liberrors contains the typed errors returned across the module,
// grouped by subsystem as described in the error handling design.
package liberrors

import "fmt"

// Kind classifies an error for propagation/reconnection policy.
type Kind int

// error kinds.
const (
	KindTransport Kind = iota
	KindProtocol
	KindSecurity
	KindSession
	KindTiming
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindSecurity:
		return "security"
	case KindSession:
		return "session"
	case KindTiming:
		return "timing"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Recoverable reports whether a reconnection attempt is permitted after an
// error of this kind: only Transport and Timing errors are auto-retried.
func (k Kind) Recoverable() bool {
	return k == KindTransport || k == KindTiming
}

// Error is the common shape of every typed error in this module: a kind, a
// short code, and a causal message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Recoverable reports whether reconnection is permitted after this error.
func (e *Error) Recoverable() bool {
	return e.Kind.Recoverable()
}

// New builds an *Error.
func New(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Transport/Protocol/Security/Session/Timing/Configuration are constructors
// for each error kind.
func Transport(code, message string, cause error) *Error {
	return New(KindTransport, code, message, cause)
}

func Protocol(code, message string, cause error) *Error {
	return New(KindProtocol, code, message, cause)
}

func Security(code, message string, cause error) *Error {
	return New(KindSecurity, code, message, cause)
}

func Session(code, message string, cause error) *Error {
	return New(KindSession, code, message, cause)
}

func Timing(code, message string, cause error) *Error {
	return New(KindTiming, code, message, cause)
}

func Configuration(code, message string, cause error) *Error {
	return New(KindConfiguration, code, message, cause)
}
