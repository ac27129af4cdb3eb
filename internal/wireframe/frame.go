// Package wireframe implements the OCPP-J wire codec (C1): parsing and
// serializing the three 4-tuple-family frame variants, plus a lenient
// fallback sanitizer for documented real-world deviations.
//
// Payloads are kept as opaque json.RawMessage values; typed decoding into
// version-specific request/response structs happens one layer up, in the
// per-version dispatcher.
package wireframe

import (
	"encoding/json"
	"fmt"

	"github.com/ocpp-csms/central-system/internal/ocpperr"
)

// Kind discriminates the three OCPP-J frame variants by their leading
// integer.
type Kind int

const (
	KindCall       Kind = 2
	KindCallResult Kind = 3
	KindCallError  Kind = 4
)

// Frame is the parsed, version-agnostic representation of one OCPP-J
// message. Only the fields relevant to its Kind are populated.
type Frame struct {
	Kind             Kind
	MessageID        string
	Action           string          // Call only
	Payload          json.RawMessage // Call, CallResult
	ErrorCode        string          // CallError only
	ErrorDescription string          // CallError only
	ErrorDetails     json.RawMessage // CallError only
}

// Parse turns raw wire text into a Frame using the strict decoder. Callers
// that need the lenient fallback should call Sanitize first on strict
// failure, then retry Parse on the sanitized bytes.
func Parse(text []byte) (Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(text, &elems); err != nil {
		return Frame{}, &ocpperr.ParseError{Reason: "not a JSON array", Cause: err}
	}
	if len(elems) < 3 {
		return Frame{}, &ocpperr.ParseError{Reason: "array has fewer than 3 elements"}
	}

	var kind int
	if err := json.Unmarshal(elems[0], &kind); err != nil {
		return Frame{}, &ocpperr.ParseError{Reason: "first element is not an integer", Cause: err}
	}

	var messageID string
	if err := json.Unmarshal(elems[1], &messageID); err != nil {
		return Frame{}, &ocpperr.ParseError{Reason: "message id is not a string", Cause: err}
	}

	switch Kind(kind) {
	case KindCall:
		if len(elems) != 4 {
			return Frame{}, &ocpperr.ParseError{Reason: "Call frame must have exactly 4 elements"}
		}
		var action string
		if err := json.Unmarshal(elems[2], &action); err != nil {
			return Frame{}, &ocpperr.ParseError{Reason: "action is not a string", Cause: err}
		}
		return Frame{Kind: KindCall, MessageID: messageID, Action: action, Payload: elems[3]}, nil

	case KindCallResult:
		if len(elems) != 3 {
			return Frame{}, &ocpperr.ParseError{Reason: "CallResult frame must have exactly 3 elements"}
		}
		return Frame{Kind: KindCallResult, MessageID: messageID, Payload: elems[2]}, nil

	case KindCallError:
		if len(elems) < 4 || len(elems) > 5 {
			return Frame{}, &ocpperr.ParseError{Reason: "CallError frame must have 4 or 5 elements"}
		}
		var code, desc string
		if err := json.Unmarshal(elems[2], &code); err != nil {
			return Frame{}, &ocpperr.ParseError{Reason: "error code is not a string", Cause: err}
		}
		if err := json.Unmarshal(elems[3], &desc); err != nil {
			return Frame{}, &ocpperr.ParseError{Reason: "error description is not a string", Cause: err}
		}
		var details json.RawMessage
		if len(elems) == 5 {
			details = elems[4]
		}
		return Frame{Kind: KindCallError, MessageID: messageID, ErrorCode: code, ErrorDescription: desc, ErrorDetails: details}, nil

	default:
		return Frame{}, &ocpperr.ParseError{Reason: fmt.Sprintf("unknown message type discriminator %d", kind)}
	}
}

// Serialize renders a Frame back into OCPP-J wire text.
func Serialize(f Frame) ([]byte, error) {
	var elems []interface{}
	switch f.Kind {
	case KindCall:
		payload := f.Payload
		if payload == nil {
			payload = json.RawMessage("{}")
		}
		elems = []interface{}{int(KindCall), f.MessageID, f.Action, payload}

	case KindCallResult:
		payload := f.Payload
		if payload == nil {
			payload = json.RawMessage("{}")
		}
		elems = []interface{}{int(KindCallResult), f.MessageID, payload}

	case KindCallError:
		details := f.ErrorDetails
		if details == nil {
			details = json.RawMessage("{}")
		}
		elems = []interface{}{int(KindCallError), f.MessageID, f.ErrorCode, f.ErrorDescription, details}

	default:
		return nil, &ocpperr.ParseError{Reason: fmt.Sprintf("unknown frame kind %d", f.Kind)}
	}

	return json.Marshal(elems)
}
