package commandengine

import "time"

// The Action* constants name the version-agnostic command vocabulary a
// caller builds a Command around. They are spelled using the OCPP 1.6
// wire action names since that is this module's baseline vocabulary; a
// version's Serializer is responsible for translating both the name and
// the payload shape into whatever that version actually puts on the wire
// (e.g. 2.0.1 turns ActionRemoteStartTransaction into a
// RequestStartTransaction Call).
const (
	ActionRemoteStartTransaction = "RemoteStartTransaction"
	ActionRemoteStopTransaction  = "RemoteStopTransaction"
	ActionReset                  = "Reset"
	ActionUnlockConnector         = "UnlockConnector"
	ActionChangeAvailability      = "ChangeAvailability"
	ActionChangeConfiguration     = "ChangeConfiguration"
	ActionGetConfiguration        = "GetConfiguration"
	ActionClearCache              = "ClearCache"
	ActionSetChargingProfile      = "SetChargingProfile"
	ActionClearChargingProfile    = "ClearChargingProfile"
	ActionTriggerMessage          = "TriggerMessage"
	ActionDataTransfer            = "DataTransfer"
	ActionReserveNow              = "ReserveNow"
	ActionCancelReservation       = "CancelReservation"
)

// RemoteStartTransactionPayload requests a station begin a transaction on
// behalf of an operator.
type RemoteStartTransactionPayload struct {
	ConnectorID     *int
	IdTag           string
	LimitType       string // "" if no limit, else Energy/Amount/Soc
	LimitValue      float64
}

// RemoteStopTransactionPayload requests a station stop a running
// transaction, identified by the central system's own transaction ID.
type RemoteStopTransactionPayload struct {
	TransactionID int64
}

// ResetPayload requests a station reboot.
type ResetPayload struct {
	Hard bool // true = Hard, false = Soft
}

// UnlockConnectorPayload requests a station release a connector's lock.
type UnlockConnectorPayload struct {
	ConnectorID int
}

// ChangeAvailabilityPayload requests a connector (0 = whole station) be
// marked operative or inoperative.
type ChangeAvailabilityPayload struct {
	ConnectorID int
	Operative   bool
}

// ChangeConfigurationPayload sets one station configuration key.
type ChangeConfigurationPayload struct {
	Key   string
	Value string
}

// GetConfigurationPayload requests the value of zero or more
// configuration keys (all keys, if empty).
type GetConfigurationPayload struct {
	Keys []string
}

// ClearCachePayload requests the station clear its authorization cache.
type ClearCachePayload struct{}

// SetChargingProfilePayload installs a charging schedule on a connector.
type SetChargingProfilePayload struct {
	ConnectorID int
	ProfileID   int
	Purpose     string // ChargePointMaxProfile / TxDefaultProfile / TxProfile
	StackLevel  int
	RateUnit    string // W or A
	Periods     []ChargingSchedulePeriod
}

// ChargingSchedulePeriod is one segment of a SetChargingProfilePayload's
// schedule.
type ChargingSchedulePeriod struct {
	StartPeriodSeconds int
	LimitValue         float64
}

// ClearChargingProfilePayload removes previously installed profiles
// matching the given (optional) filters.
type ClearChargingProfilePayload struct {
	ProfileID   *int
	ConnectorID *int
	Purpose     *string
	StackLevel  *int
}

// TriggerMessagePayload asks a station to (re-)send a status message out
// of its normal schedule.
type TriggerMessagePayload struct {
	RequestedMessage string
	ConnectorID      *int
}

// DataTransferPayload carries a vendor-specific payload through unchanged.
type DataTransferPayload struct {
	VendorID  string
	MessageID string
	Data      interface{}
}

// ReserveNowPayload asks a station to hold a connector for idTag until
// ExpiryDate.
type ReserveNowPayload struct {
	ConnectorID   int
	ExpiryDate    time.Time
	IdTag         string
	ParentIdTag   string
	ReservationID int64
}

// CancelReservationPayload releases a previously made reservation.
type CancelReservationPayload struct {
	ReservationID int64
}
