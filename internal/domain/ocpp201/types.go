// Package ocpp201 holds the OCPP 2.0.1 wire DTOs the CSMS-side dispatcher
// decodes and encodes. Adapted from the charge-point-side message shapes
// in the reference simulator to the subset this system's handlers need.
package ocpp201

import "time"

// MessageType identifies an OCPP-J frame's element 0.
type MessageType int

const (
	Call       MessageType = 2
	CallResult MessageType = 3
	CallError  MessageType = 4
)

// Action names this CSMS's C4 dispatcher routes, plus the outbound
// command actions its Serializer emits.
type Action string

const (
	ActionAuthorize                 Action = "Authorize"
	ActionBootNotification          Action = "BootNotification"
	ActionDataTransfer              Action = "DataTransfer"
	ActionFirmwareStatusNotification Action = "FirmwareStatusNotification"
	ActionHeartbeat                 Action = "Heartbeat"
	ActionMeterValues               Action = "MeterValues"
	ActionNotifyEvent               Action = "NotifyEvent"
	ActionNotifyMonitoringReport    Action = "NotifyMonitoringReport"
	ActionNotifyReport              Action = "NotifyReport"
	ActionReportChargingProfiles    Action = "ReportChargingProfiles"
	ActionSecurityEventNotification Action = "SecurityEventNotification"
	ActionStatusNotification        Action = "StatusNotification"
	ActionTransactionEvent          Action = "TransactionEvent"

	// Outbound-only: server-initiated Calls this station answers.
	ActionRequestStartTransaction Action = "RequestStartTransaction"
	ActionRequestStopTransaction  Action = "RequestStopTransaction"
	ActionReset                   Action = "Reset"
	ActionUnlockConnector         Action = "UnlockConnector"
	ActionChangeAvailability      Action = "ChangeAvailability"
	ActionSetVariables            Action = "SetVariables"
	ActionGetVariables            Action = "GetVariables"
	ActionClearCache              Action = "ClearCache"
	ActionSetChargingProfile      Action = "SetChargingProfile"
	ActionClearChargingProfile    Action = "ClearChargingProfile"
	ActionTriggerMessage          Action = "TriggerMessage"
	ActionReserveNow              Action = "ReserveNow"
	ActionCancelReservation       Action = "CancelReservation"
)

// DateTime wraps time.Time for RFC3339 wire encoding, mirroring
// internal/domain/ocpp16.DateTime so both dispatchers share one
// timestamp convention.
type DateTime struct {
	time.Time
}

func (dt DateTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.Time.Format(time.RFC3339) + `"`), nil
}

func (dt *DateTime) UnmarshalJSON(data []byte) error {
	str := string(data)
	if str == "null" {
		return nil
	}
	str = str[1 : len(str)-1]
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	dt.Time = t
	return nil
}

// RegistrationStatus is BootNotificationResponse's status field.
type RegistrationStatus string

const (
	RegistrationStatusAccepted RegistrationStatus = "Accepted"
	RegistrationStatusPending  RegistrationStatus = "Pending"
	RegistrationStatusRejected RegistrationStatus = "Rejected"
)

// ConnectorStatus is StatusNotificationRequest's connectorStatus field.
type ConnectorStatus string

const (
	ConnectorStatusAvailable   ConnectorStatus = "Available"
	ConnectorStatusOccupied    ConnectorStatus = "Occupied"
	ConnectorStatusReserved    ConnectorStatus = "Reserved"
	ConnectorStatusUnavailable ConnectorStatus = "Unavailable"
	ConnectorStatusFaulted     ConnectorStatus = "Faulted"
)

// AuthorizationStatus is IdTokenInfo's status field.
type AuthorizationStatus string

const (
	AuthorizationStatusAccepted       AuthorizationStatus = "Accepted"
	AuthorizationStatusBlocked        AuthorizationStatus = "Blocked"
	AuthorizationStatusExpired        AuthorizationStatus = "Expired"
	AuthorizationStatusInvalid        AuthorizationStatus = "Invalid"
	AuthorizationStatusConcurrentTx   AuthorizationStatus = "ConcurrentTx"
)

// TransactionEventType is TransactionEventRequest's eventType field.
type TransactionEventType string

const (
	TransactionEventStarted TransactionEventType = "Started"
	TransactionEventUpdated TransactionEventType = "Updated"
	TransactionEventEnded   TransactionEventType = "Ended"
)

// TriggerReason is TransactionEventRequest's triggerReason field. A few
// common values get named constants; the dispatcher does not branch on
// this field, and the rest pass through as opaque strings.
type TriggerReason string

const (
	TriggerReasonAuthorized     TriggerReason = "Authorized"
	TriggerReasonCablePluggedIn TriggerReason = "CablePluggedIn"
	TriggerReasonDeauthorized   TriggerReason = "Deauthorized"
	TriggerReasonRemoteStart    TriggerReason = "RemoteStart"
	TriggerReasonRemoteStop     TriggerReason = "RemoteStop"
	TriggerReasonStopAuthorized TriggerReason = "StopAuthorized"
	TriggerReasonMeterValuePeriodic TriggerReason = "MeterValuePeriodic"
)

// ChargingState is Transaction.chargingState.
type ChargingState string

const (
	ChargingStateCharging      ChargingState = "Charging"
	ChargingStateEVConnected   ChargingState = "EVConnected"
	ChargingStateSuspendedEV   ChargingState = "SuspendedEV"
	ChargingStateSuspendedEVSE ChargingState = "SuspendedEVSE"
	ChargingStateIdle          ChargingState = "Idle"
)

// Measurand mirrors OCPP 1.6's vocabulary for the three measurands this
// system normalizes; 2.0.1 spells the same strings.
type Measurand string

const (
	MeasurandEnergyActiveImportRegister Measurand = "Energy.Active.Import.Register"
	MeasurandPowerActiveImport          Measurand = "Power.Active.Import"
	MeasurandSoC                        Measurand = "SoC"
)

// ResetType is ResetRequest's type field.
type ResetType string

const (
	ResetTypeImmediate ResetType = "Immediate"
	ResetTypeOnIdle    ResetType = "OnIdle"
)

// OperationalStatus is ChangeAvailabilityRequest's operationalStatus field.
type OperationalStatus string

const (
	OperationalStatusInoperative OperationalStatus = "Inoperative"
	OperationalStatusOperative   OperationalStatus = "Operative"
)

// SetVariableStatus and GetVariableStatus are SetVariablesResponse's and
// GetVariablesResponse's per-attribute status vocabulary, narrowed to the
// values this CSMS acts on.
type SetVariableStatus string

const (
	SetVariableStatusAccepted       SetVariableStatus = "Accepted"
	SetVariableStatusRejected       SetVariableStatus = "Rejected"
	SetVariableStatusNotSupported   SetVariableStatus = "NotSupported"
)

type GetVariableStatus string

const (
	GetVariableStatusAccepted     GetVariableStatus = "Accepted"
	GetVariableStatusRejected     GetVariableStatus = "Rejected"
	GetVariableStatusNotSupported GetVariableStatus = "NotSupported"
)
