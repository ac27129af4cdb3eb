package ocpp16

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/commandengine"
)

func TestSerializeCommand_RemoteStopTransaction(t *testing.T) {
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action:  commandengine.ActionRemoteStopTransaction,
		Payload: commandengine.RemoteStopTransactionPayload{TransactionID: 42},
	})
	require.NoError(t, err)
	assert.Equal(t, "RemoteStopTransaction", action)

	var decoded struct {
		TransactionId int `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, 42, decoded.TransactionId)
}

func TestSerializeCommand_RemoteStartTransaction(t *testing.T) {
	connectorID := 1
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action: commandengine.ActionRemoteStartTransaction,
		Payload: commandengine.RemoteStartTransactionPayload{
			ConnectorID: &connectorID,
			IdTag:       "TAG1",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "RemoteStartTransaction", action)

	var decoded struct {
		ConnectorId int    `json:"connectorId"`
		IdTag       string `json:"idTag"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, 1, decoded.ConnectorId)
	assert.Equal(t, "TAG1", decoded.IdTag)
}

func TestSerializeCommand_Reset(t *testing.T) {
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action:  commandengine.ActionReset,
		Payload: commandengine.ResetPayload{Hard: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Reset", action)
	assert.Contains(t, string(payload), `"Hard"`)
}

func TestSerializeCommand_ChangeConfiguration(t *testing.T) {
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action:  commandengine.ActionChangeConfiguration,
		Payload: commandengine.ChangeConfigurationPayload{Key: "HeartbeatInterval", Value: "300"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ChangeConfiguration", action)

	var decoded struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "HeartbeatInterval", decoded.Key)
	assert.Equal(t, "300", decoded.Value)
}

func TestSerializeCommand_ReserveNow(t *testing.T) {
	expiry := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action: commandengine.ActionReserveNow,
		Payload: commandengine.ReserveNowPayload{
			ConnectorID:   1,
			ExpiryDate:    expiry,
			IdTag:         "TAG1",
			ReservationID: 7,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ReserveNow", action)
	assert.Contains(t, string(payload), "7")
}

func TestSerializeCommand_UnsupportedActionErrors(t *testing.T) {
	_, _, err := Serializer{}.SerializeCommand(commandengine.Command{Action: "NotACommand"})
	assert.Error(t, err)
}

func TestSerializeCommand_BadPayloadTypeErrors(t *testing.T) {
	_, _, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action:  commandengine.ActionReset,
		Payload: "wrong type",
	})
	assert.Error(t, err)
}
