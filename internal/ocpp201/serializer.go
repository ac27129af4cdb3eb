package ocpp201

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ocpp-csms/central-system/internal/commandengine"
	msgs "github.com/ocpp-csms/central-system/internal/domain/ocpp201"
)

// Serializer implements commandengine.Serializer for stations negotiated
// at OCPP 2.0.1, translating the engine's version-agnostic Command
// vocabulary (spelled in 1.6 wire terms) into 2.0.1's differently-named
// actions and payload shapes — RemoteStartTransaction becomes
// RequestStartTransaction, ChangeConfiguration becomes SetVariables, and
// so on.
type Serializer struct{}

// SerializeCommand implements commandengine.Serializer.
func (Serializer) SerializeCommand(cmd commandengine.Command) (string, []byte, error) {
	switch cmd.Action {
	case commandengine.ActionRemoteStartTransaction:
		p, ok := cmd.Payload.(commandengine.RemoteStartTransactionPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		req := msgs.RequestStartTransactionRequest{IdToken: msgs.IdToken{IdToken: p.IdTag, Type: "Central"}}
		if p.ConnectorID != nil {
			req.EvseId = *p.ConnectorID
		}
		return marshal(string(msgs.ActionRequestStartTransaction), req)

	case commandengine.ActionRemoteStopTransaction:
		p, ok := cmd.Payload.(commandengine.RemoteStopTransactionPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		req := msgs.RequestStopTransactionRequest{TransactionId: strconv.FormatInt(p.TransactionID, 10)}
		return marshal(string(msgs.ActionRequestStopTransaction), req)

	case commandengine.ActionReset:
		p, ok := cmd.Payload.(commandengine.ResetPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		t := msgs.ResetTypeOnIdle
		if p.Hard {
			t = msgs.ResetTypeImmediate
		}
		return marshal(string(msgs.ActionReset), msgs.ResetRequest{Type: t})

	case commandengine.ActionUnlockConnector:
		p, ok := cmd.Payload.(commandengine.UnlockConnectorPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionUnlockConnector), msgs.UnlockConnectorRequest{EvseId: 1, ConnectorId: p.ConnectorID})

	case commandengine.ActionChangeAvailability:
		p, ok := cmd.Payload.(commandengine.ChangeAvailabilityPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		status := msgs.OperationalStatusInoperative
		if p.Operative {
			status = msgs.OperationalStatusOperative
		}
		return marshal(string(msgs.ActionChangeAvailability), msgs.ChangeAvailabilityRequest{
			OperationalStatus: status,
			Evse:              &msgs.EVSE{Id: p.ConnectorID},
		})

	case commandengine.ActionChangeConfiguration:
		p, ok := cmd.Payload.(commandengine.ChangeConfigurationPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		req := msgs.SetVariablesRequest{SetVariableData: []msgs.SetVariableData{{
			Component:      msgs.Component{Name: "ChargingStation"},
			Variable:       msgs.Variable{Name: p.Key},
			AttributeValue: p.Value,
		}}}
		return marshal(string(msgs.ActionSetVariables), req)

	case commandengine.ActionGetConfiguration:
		p, ok := cmd.Payload.(commandengine.GetConfigurationPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		data := make([]msgs.GetVariableData, 0, len(p.Keys))
		for _, key := range p.Keys {
			data = append(data, msgs.GetVariableData{
				Component: msgs.Component{Name: "ChargingStation"},
				Variable:  msgs.Variable{Name: key},
			})
		}
		return marshal(string(msgs.ActionGetVariables), msgs.GetVariablesRequest{GetVariableData: data})

	case commandengine.ActionClearCache:
		return marshal(string(msgs.ActionClearCache), msgs.ClearCacheRequest{})

	case commandengine.ActionSetChargingProfile:
		p, ok := cmd.Payload.(commandengine.SetChargingProfilePayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionSetChargingProfile), msgs.SetChargingProfileRequest{
			EvseId:          p.ConnectorID,
			ChargingProfile: toChargingProfile(p),
		})

	case commandengine.ActionClearChargingProfile:
		p, ok := cmd.Payload.(commandengine.ClearChargingProfilePayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		req := msgs.ClearChargingProfileRequest{}
		if p.ProfileID != nil {
			req.ChargingProfileId = *p.ProfileID
		}
		if p.ConnectorID != nil || p.Purpose != nil || p.StackLevel != nil {
			criteria := &msgs.ChargingProfileCriteria{}
			if p.ConnectorID != nil {
				criteria.EvseId = *p.ConnectorID
			}
			if p.Purpose != nil {
				criteria.ChargingProfilePurpose = *p.Purpose
			}
			if p.StackLevel != nil {
				criteria.StackLevel = *p.StackLevel
			}
			req.ChargingProfileCriteria = criteria
		}
		return marshal(string(msgs.ActionClearChargingProfile), req)

	case commandengine.ActionTriggerMessage:
		p, ok := cmd.Payload.(commandengine.TriggerMessagePayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		req := msgs.TriggerMessageRequest{RequestedMessage: p.RequestedMessage}
		if p.ConnectorID != nil {
			req.Evse = &msgs.EVSE{ConnectorId: *p.ConnectorID}
		}
		return marshal(string(msgs.ActionTriggerMessage), req)

	case commandengine.ActionDataTransfer:
		p, ok := cmd.Payload.(commandengine.DataTransferPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionDataTransfer), msgs.DataTransferRequest{VendorId: p.VendorID, MessageId: p.MessageID, Data: p.Data})

	case commandengine.ActionReserveNow:
		p, ok := cmd.Payload.(commandengine.ReserveNowPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		req := msgs.ReserveNowRequest{
			Id:             int(p.ReservationID),
			ExpiryDateTime: msgs.DateTime{Time: p.ExpiryDate},
			IdToken:        msgs.IdToken{IdToken: p.IdTag, Type: "Central"},
			Evse:           &msgs.EVSE{ConnectorId: p.ConnectorID},
		}
		return marshal(string(msgs.ActionReserveNow), req)

	case commandengine.ActionCancelReservation:
		p, ok := cmd.Payload.(commandengine.CancelReservationPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp201: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionCancelReservation), msgs.CancelReservationRequest{ReservationId: int(p.ReservationID)})

	default:
		return "", nil, fmt.Errorf("ocpp201: unsupported command action %q", cmd.Action)
	}
}

func toChargingProfile(p commandengine.SetChargingProfilePayload) msgs.ChargingProfile {
	periods := make([]msgs.ChargingSchedulePeriod, 0, len(p.Periods))
	for _, period := range p.Periods {
		periods = append(periods, msgs.ChargingSchedulePeriod{StartPeriod: period.StartPeriodSeconds, Limit: period.LimitValue})
	}
	return msgs.ChargingProfile{
		Id:                     p.ProfileID,
		StackLevel:             p.StackLevel,
		ChargingProfilePurpose: p.Purpose,
		ChargingProfileKind:    "Absolute",
		ChargingSchedule: []msgs.ChargingSchedule{{
			ChargingRateUnit:       p.RateUnit,
			ChargingSchedulePeriod: periods,
		}},
	}
}

func marshal(action string, req interface{}) (string, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", nil, err
	}
	return action, payload, nil
}
