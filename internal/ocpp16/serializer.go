package ocpp16

import (
	"encoding/json"
	"fmt"

	"github.com/ocpp-csms/central-system/internal/commandengine"
	msgs "github.com/ocpp-csms/central-system/internal/domain/ocpp16"
)

// Serializer implements commandengine.Serializer for stations negotiated
// at OCPP 1.6, translating the engine's version-agnostic Command
// vocabulary into 1.6 Call actions and payloads.
type Serializer struct{}

// SerializeCommand implements commandengine.Serializer.
func (Serializer) SerializeCommand(cmd commandengine.Command) (string, []byte, error) {
	switch cmd.Action {
	case commandengine.ActionRemoteStartTransaction:
		p, ok := cmd.Payload.(commandengine.RemoteStartTransactionPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		req := msgs.RemoteStartTransactionRequest{ConnectorId: p.ConnectorID, IdTag: p.IdTag}
		return marshal(string(msgs.ActionRemoteStartTransaction), req)

	case commandengine.ActionRemoteStopTransaction:
		p, ok := cmd.Payload.(commandengine.RemoteStopTransactionPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		req := msgs.RemoteStopTransactionRequest{TransactionId: int(p.TransactionID)}
		return marshal(string(msgs.ActionRemoteStopTransaction), req)

	case commandengine.ActionReset:
		p, ok := cmd.Payload.(commandengine.ResetPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		t := msgs.ResetTypeSoft
		if p.Hard {
			t = msgs.ResetTypeHard
		}
		return marshal(string(msgs.ActionReset), msgs.ResetRequest{Type: t})

	case commandengine.ActionUnlockConnector:
		p, ok := cmd.Payload.(commandengine.UnlockConnectorPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionUnlockConnector), msgs.UnlockConnectorRequest{ConnectorId: p.ConnectorID})

	case commandengine.ActionChangeAvailability:
		p, ok := cmd.Payload.(commandengine.ChangeAvailabilityPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		t := msgs.AvailabilityTypeInoperative
		if p.Operative {
			t = msgs.AvailabilityTypeOperative
		}
		return marshal(string(msgs.ActionChangeAvailability), msgs.ChangeAvailabilityRequest{ConnectorId: p.ConnectorID, Type: t})

	case commandengine.ActionChangeConfiguration:
		p, ok := cmd.Payload.(commandengine.ChangeConfigurationPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionChangeConfiguration), msgs.ChangeConfigurationRequest{Key: p.Key, Value: p.Value})

	case commandengine.ActionGetConfiguration:
		p, ok := cmd.Payload.(commandengine.GetConfigurationPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionGetConfiguration), msgs.GetConfigurationRequest{Key: p.Keys})

	case commandengine.ActionClearCache:
		return marshal(string(msgs.ActionClearCache), msgs.ClearCacheRequest{})

	case commandengine.ActionSetChargingProfile:
		p, ok := cmd.Payload.(commandengine.SetChargingProfilePayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionSetChargingProfile), msgs.SetChargingProfileRequest{
			ConnectorId:     p.ConnectorID,
			ChargingProfile: toChargingProfile(p),
		})

	case commandengine.ActionClearChargingProfile:
		p, ok := cmd.Payload.(commandengine.ClearChargingProfilePayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		req := msgs.ClearChargingProfileRequest{Id: p.ProfileID, ConnectorId: p.ConnectorID, StackLevel: p.StackLevel}
		if p.Purpose != nil {
			purpose := msgs.ChargingProfilePurpose(*p.Purpose)
			req.ChargingProfilePurpose = &purpose
		}
		return marshal(string(msgs.ActionClearChargingProfile), req)

	case commandengine.ActionTriggerMessage:
		p, ok := cmd.Payload.(commandengine.TriggerMessagePayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionTriggerMessage), msgs.TriggerMessageRequest{
			RequestedMessage: msgs.MessageTrigger(p.RequestedMessage),
			ConnectorId:      p.ConnectorID,
		})

	case commandengine.ActionDataTransfer:
		p, ok := cmd.Payload.(commandengine.DataTransferPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		req := msgs.DataTransferRequest{VendorId: p.VendorID, Data: p.Data}
		if p.MessageID != "" {
			req.MessageId = &p.MessageID
		}
		return marshal(string(msgs.ActionDataTransfer), req)

	case commandengine.ActionReserveNow:
		p, ok := cmd.Payload.(commandengine.ReserveNowPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		req := msgs.ReserveNowRequest{
			ConnectorId:   p.ConnectorID,
			ExpiryDate:    msgs.DateTime{Time: p.ExpiryDate},
			IdTag:         p.IdTag,
			ReservationId: int(p.ReservationID),
		}
		if p.ParentIdTag != "" {
			req.ParentIdTag = &p.ParentIdTag
		}
		return marshal(string(msgs.ActionReserveNow), req)

	case commandengine.ActionCancelReservation:
		p, ok := cmd.Payload.(commandengine.CancelReservationPayload)
		if !ok {
			return "", nil, fmt.Errorf("ocpp16: bad payload for %s", cmd.Action)
		}
		return marshal(string(msgs.ActionCancelReservation), msgs.CancelReservationRequest{ReservationId: int(p.ReservationID)})

	default:
		return "", nil, fmt.Errorf("ocpp16: unsupported command action %q", cmd.Action)
	}
}

func toChargingProfile(p commandengine.SetChargingProfilePayload) msgs.ChargingProfile {
	periods := make([]msgs.ChargingSchedulePeriod, 0, len(p.Periods))
	for _, period := range p.Periods {
		periods = append(periods, msgs.ChargingSchedulePeriod{StartPeriod: period.StartPeriodSeconds, Limit: period.LimitValue})
	}
	return msgs.ChargingProfile{
		ChargingProfileId:      p.ProfileID,
		StackLevel:             p.StackLevel,
		ChargingProfilePurpose: msgs.ChargingProfilePurpose(p.Purpose),
		ChargingProfileKind:    msgs.ChargingProfileKindAbsolute,
		ChargingSchedule: msgs.ChargingSchedule{
			ChargingRateUnit:       msgs.ChargingRateUnit(p.RateUnit),
			ChargingSchedulePeriod: periods,
		},
	}
}

func marshal(action string, req interface{}) (string, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", nil, err
	}
	return action, payload, nil
}
