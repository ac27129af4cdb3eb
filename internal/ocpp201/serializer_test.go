package ocpp201

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/commandengine"
)

func TestSerializeCommand_RemoteStopTransactionBecomesRequestStopTransaction(t *testing.T) {
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action:  commandengine.ActionRemoteStopTransaction,
		Payload: commandengine.RemoteStopTransactionPayload{TransactionID: 42},
	})
	require.NoError(t, err)
	assert.Equal(t, "RequestStopTransaction", action)

	var decoded struct {
		TransactionId string `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "42", decoded.TransactionId)
}

func TestSerializeCommand_RemoteStartTransactionBecomesRequestStartTransaction(t *testing.T) {
	connectorID := 1
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action: commandengine.ActionRemoteStartTransaction,
		Payload: commandengine.RemoteStartTransactionPayload{
			ConnectorID: &connectorID,
			IdTag:       "TAG1",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "RequestStartTransaction", action)

	var decoded struct {
		EvseId  int `json:"evseId"`
		IdToken struct {
			IdToken string `json:"idToken"`
		} `json:"idToken"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, 1, decoded.EvseId)
	assert.Equal(t, "TAG1", decoded.IdToken.IdToken)
}

func TestSerializeCommand_ChangeConfigurationBecomesSetVariables(t *testing.T) {
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action:  commandengine.ActionChangeConfiguration,
		Payload: commandengine.ChangeConfigurationPayload{Key: "HeartbeatInterval", Value: "300"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SetVariables", action)
	assert.Contains(t, string(payload), "HeartbeatInterval")
	assert.Contains(t, string(payload), "300")
}

func TestSerializeCommand_GetConfigurationBecomesGetVariables(t *testing.T) {
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action:  commandengine.ActionGetConfiguration,
		Payload: commandengine.GetConfigurationPayload{Keys: []string{"HeartbeatInterval", "MeterValueSampleInterval"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "GetVariables", action)

	var decoded struct {
		GetVariableData []struct {
			Variable struct {
				Name string `json:"name"`
			} `json:"variable"`
		} `json:"getVariableData"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Len(t, decoded.GetVariableData, 2)
	assert.Equal(t, "HeartbeatInterval", decoded.GetVariableData[0].Variable.Name)
}

func TestSerializeCommand_Reset(t *testing.T) {
	action, payload, err := Serializer{}.SerializeCommand(commandengine.Command{
		Action:  commandengine.ActionReset,
		Payload: commandengine.ResetPayload{Hard: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Reset", action)
	assert.Contains(t, string(payload), "Immediate")
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
