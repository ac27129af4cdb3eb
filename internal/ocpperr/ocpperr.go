// Package ocpperr consolidates the core's error taxonomy into one place,
// matching the kinds of errors the wire codec, command engine and
// repository port surface, so handlers can recover with errors.As instead
// of inspecting ad hoc struct shapes.
package ocpperr

import "fmt"

// ParseError means C1's strict parser and lenient sanitizer both failed to
// turn raw text into a frame.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// HandlerDecodeError means a version-specific payload failed to deserialize
// into its typed request struct. The dispatchers do not return this type:
// they log the failure and answer with the action's fallback response,
// which is an empty object for most actions, an Invalid authorization
// status for Authorize (and for 1.6 StartTransaction), Rejected for
// DataTransfer, and a zero-valued BootNotificationResponse.
type HandlerDecodeError struct {
	Action string
	Cause  error
}

func (e *HandlerDecodeError) Error() string {
	return fmt.Sprintf("decode error for action %s: %v", e.Action, e.Cause)
}

func (e *HandlerDecodeError) Unwrap() error { return e.Cause }

// NotConnected means the Command Engine tried to send to a station with no
// live session.
type NotConnected struct {
	StationID string
}

func (e *NotConnected) Error() string {
	return fmt.Sprintf("station %s is not connected", e.StationID)
}

// CommandTimeout means a PendingCommand's deadline elapsed with no matching
// response or error frame.
type CommandTimeout struct {
	StationID string
	MessageID string
}

func (e *CommandTimeout) Error() string {
	return fmt.Sprintf("command %s to station %s timed out", e.MessageID, e.StationID)
}

// CallError mirrors an OCPP-J CallError frame returned by a station in
// response to a server-initiated command.
type CallError struct {
	Code        string
	Description string
	Details     interface{}
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// RepositoryError wraps a failure from the repository port, distinguishing
// it from a legitimate not-found result (see ErrNotFound).
type RepositoryError struct {
	Op    string
	Cause error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository operation %s failed: %v", e.Op, e.Cause)
}

func (e *RepositoryError) Unwrap() error { return e.Cause }

// sentinelError is a comparable error for simple not-found-style sentinels,
// usable with errors.Is.
type sentinelError string

func (e sentinelError) Error() string { return string(e) }

// ErrNotFound is returned by repository port lookups that complete
// successfully but find no matching entity — distinct from RepositoryError,
// which signals a transport failure.
const ErrNotFound = sentinelError("entity not found")

// ErrNoDefaultTariff is a fatal billing error: no tariff is marked default
// and none was specified.
const ErrNoDefaultTariff = sentinelError("no default tariff configured")
