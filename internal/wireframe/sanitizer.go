package wireframe

import (
	"encoding/json"
)

// nullableIntFields lists the (action, field) pairs where a station is
// known to send a JSON null instead of omitting the field or sending a real
// integer. The sanitizer repairs these to 0 before strict re-parsing.
var nullableIntFields = map[string][]string{
	"StopTransaction":    {"transactionId", "meterStop"},
	"StartTransaction":   {"meterStart", "connectorId"},
	"MeterValues":        {"connectorId"},
	"StatusNotification": {"connectorId"},
}

// Sanitize attempts to repair three documented real-world deviations from
// strict OCPP-J framing: short CallResult/CallError arrays, null scalar
// fields in a known set of request actions, and a null payload object. It
// must only be invoked after Parse has already failed on the raw text —
// never folded into the strict pass, so it can never mask a bug in our own
// serializer.
//
// Sanitize returns the repaired bytes; the caller re-invokes Parse on them.
// If the text cannot be repaired, ok is false.
func Sanitize(text []byte) (repaired []byte, ok bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(text, &elems); err != nil {
		return nil, false
	}
	if len(elems) < 1 {
		return nil, false
	}

	var kind int
	if err := json.Unmarshal(elems[0], &kind); err != nil {
		return nil, false
	}

	switch Kind(kind) {
	case KindCall:
		if len(elems) < 4 {
			return nil, false
		}
		var action string
		_ = json.Unmarshal(elems[2], &action)
		elems[3] = sanitizePayload(action, elems[3])

	case KindCallResult:
		elems = padArray(elems, 3, json.RawMessage("{}"))
		if len(elems) >= 3 && isNullOrEmpty(elems[2]) {
			elems[2] = json.RawMessage("{}")
		}

	case KindCallError:
		elems = padArray(elems, 5, nil)
		if isNullOrEmpty(elems[2]) {
			elems[2] = mustMarshal("NotImplemented")
		}
		if len(elems) > 3 && isNullOrEmpty(elems[3]) {
			elems[3] = mustMarshal("")
		}
		if len(elems) > 4 && isNullOrEmpty(elems[4]) {
			elems[4] = json.RawMessage("{}")
		}

	default:
		return nil, false
	}

	out, err := json.Marshal(elems)
	if err != nil {
		return nil, false
	}
	return out, true
}

// padArray grows elems to length n, filling new slots with fill, or with
// JSON null when fill is nil.
func padArray(elems []json.RawMessage, n int, fill json.RawMessage) []json.RawMessage {
	for len(elems) < n {
		if fill == nil {
			elems = append(elems, json.RawMessage("null"))
		} else {
			elems = append(elems, fill)
		}
	}
	return elems
}

func sanitizePayload(action string, payload json.RawMessage) json.RawMessage {
	if isNullOrEmpty(payload) {
		return json.RawMessage("{}")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return payload
	}

	fields, known := nullableIntFields[action]
	if !known {
		return payload
	}

	changed := false
	for _, field := range fields {
		if raw, present := obj[field]; present && string(raw) == "null" {
			obj[field] = json.RawMessage("0")
			changed = true
		}
	}
	if !changed {
		return payload
	}

	repaired, err := json.Marshal(obj)
	if err != nil {
		return payload
	}
	return repaired
}

func isNullOrEmpty(raw json.RawMessage) bool {
	return raw == nil || string(raw) == "null"
}

func mustMarshal(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
