package wireframe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{
			name: "Call",
			frame: Frame{
				Kind:      KindCall,
				MessageID: "id1",
				Action:    "BootNotification",
				Payload:   json.RawMessage(`{"chargePointVendor":"Acme"}`),
			},
		},
		{
			name: "CallResult",
			frame: Frame{
				Kind:      KindCallResult,
				MessageID: "id2",
				Payload:   json.RawMessage(`{"status":"Accepted"}`),
			},
		},
		{
			name: "CallError",
			frame: Frame{
				Kind:             KindCallError,
				MessageID:        "id3",
				ErrorCode:        "GenericError",
				ErrorDescription: "boom",
				ErrorDetails:     json.RawMessage(`{"detail":"x"}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := Serialize(tt.frame)
			require.NoError(t, err)

			parsed, err := Parse(wire)
			require.NoError(t, err)
			assert.Equal(t, tt.frame.Kind, parsed.Kind)
			assert.Equal(t, tt.frame.MessageID, parsed.MessageID)
			assert.Equal(t, tt.frame.Action, parsed.Action)
			assert.JSONEq(t, string(tt.frame.Payload), string(parsed.Payload))
			assert.Equal(t, tt.frame.ErrorCode, parsed.ErrorCode)
			assert.Equal(t, tt.frame.ErrorDescription, parsed.ErrorDescription)
		})
	}
}

func TestParse_StrictFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not an array", `{"foo":"bar"}`},
		{"too few elements", `[2,"id1"]`},
		{"call with wrong arity", `[2,"id1","Action",{},"extra"]`},
		{"unknown kind", `[9,"id1","Action",{}]`},
		{"call result with wrong arity", `[3,"id1"]`},
		{"call error too short", `[4,"id1","Code"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.text))
			assert.Error(t, err)
		})
	}
}

func TestSanitize_ScenarioE(t *testing.T) {
	// The outer array is structurally valid, so Parse accepts it and the
	// dispatchers never sanitize it; the test calls Sanitize directly to
	// check that StopTransaction's null integer fields are repaired to 0.
	text := []byte(`[2,"id1","StopTransaction",{"transactionId":null,"meterStop":null,"timestamp":"2024-01-01T00:00:00Z","idTag":"T"}]`)

	repaired, ok := Sanitize(text)
	require.True(t, ok)

	frame, err := Parse(repaired)
	require.NoError(t, err)
	assert.Equal(t, "StopTransaction", frame.Action)

	var payload struct {
		TransactionID int    `json:"transactionId"`
		MeterStop     int    `json:"meterStop"`
		IdTag         string `json:"idTag"`
	}
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, 0, payload.TransactionID)
	assert.Equal(t, 0, payload.MeterStop)
	assert.Equal(t, "T", payload.IdTag)
}

func TestSanitize_Idempotent(t *testing.T) {
	valid := []byte(`[2,"id1","Heartbeat",{}]`)

	repaired, ok := Sanitize(valid)
	require.True(t, ok)

	twice, ok := Sanitize(repaired)
	require.True(t, ok)

	assert.JSONEq(t, string(repaired), string(twice))
}

func TestSanitize_NullPayload(t *testing.T) {
	text := []byte(`[2,"id1","Heartbeat",null]`)
	repaired, ok := Sanitize(text)
	require.True(t, ok)

	frame, err := Parse(repaired)
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(frame.Payload))
}

func TestSanitize_ShortCallError(t *testing.T) {
	text := []byte(`[4,"id1",null]`)
	repaired, ok := Sanitize(text)
	require.True(t, ok)

	frame, err := Parse(repaired)
	require.NoError(t, err)
	assert.Equal(t, "NotImplemented", frame.ErrorCode)
}

func TestSanitize_ShortCallResult(t *testing.T) {
	text := []byte(`[3,"id1"]`)
	repaired, ok := Sanitize(text)
	require.True(t, ok)

	frame, err := Parse(repaired)
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(frame.Payload))
}

func TestSanitize_UnrepairableReturnsFalse(t *testing.T) {
	_, ok := Sanitize([]byte(`not json at all`))
	assert.False(t, ok)
}
