// Package eventbus defines the outbound domain event catalog and the
// Publisher port the core writes to, generalizing the teacher's
// charge-point-scoped event model to this module's station vocabulary.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names one kind of domain event.
type Type string

const (
	TypeStationConnected      Type = "station.connected"
	TypeStationDisconnected   Type = "station.disconnected"
	TypeStationStatusChanged  Type = "station.status_changed"
	TypeConnectorStatusChanged Type = "connector.status_changed"
	TypeTransactionStarted    Type = "transaction.started"
	TypeTransactionStopped    Type = "transaction.stopped"
	TypeTransactionBilled     Type = "transaction.billed"
	TypeMeterValuesReceived   Type = "meter_values.received"
	TypeHeartbeatReceived     Type = "heartbeat.received"
	TypeAuthorizationResult   Type = "authorization.result"
	TypeBootNotification      Type = "boot_notification.received"
	TypeDeviceAlert           Type = "device.alert"
	TypeError                 Type = "error"
)

// Severity grades an event for alerting/log-level purposes.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Metadata carries cross-cutting correlation fields independent of the
// event's own payload.
type Metadata struct {
	Source          string  `json:"source"`
	ProtocolVersion string  `json:"protocol_version,omitempty"`
	MessageID       *string `json:"message_id,omitempty"`
	CorrelationID   *string `json:"correlation_id,omitempty"`
}

// Event is the common envelope every published domain event satisfies.
type Event interface {
	GetID() string
	GetType() Type
	GetStationID() string
	GetTimestamp() time.Time
	GetSeverity() Severity
	GetMetadata() Metadata
	GetPayload() interface{}
	ToJSON() ([]byte, error)
}

// BaseEvent supplies the Event accessors every concrete event embeds,
// matching the teacher's composition-over-inheritance shape.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	StationID string    `json:"station_id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Metadata  Metadata  `json:"metadata"`
}

func (e *BaseEvent) GetID() string             { return e.ID }
func (e *BaseEvent) GetType() Type              { return e.Type }
func (e *BaseEvent) GetStationID() string       { return e.StationID }
func (e *BaseEvent) GetTimestamp() time.Time    { return e.Timestamp }
func (e *BaseEvent) GetSeverity() Severity      { return e.Severity }
func (e *BaseEvent) GetMetadata() Metadata      { return e.Metadata }

// NewBaseEvent stamps a fresh event ID and timestamp.
func NewBaseEvent(typ Type, stationID string, severity Severity, meta Metadata) *BaseEvent {
	return &BaseEvent{
		ID:        uuid.New().String(),
		Type:      typ,
		StationID: stationID,
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Metadata:  meta,
	}
}

// StationConnectedEvent fires when a station completes its WebSocket
// handshake and is registered.
type StationConnectedEvent struct {
	*BaseEvent
	ProtocolVersion string `json:"protocol_version"`
	Vendor          string `json:"vendor,omitempty"`
	Model           string `json:"model,omitempty"`
}

func (e *StationConnectedEvent) GetPayload() interface{} { return e }
func (e *StationConnectedEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// StationDisconnectedEvent fires when a station's connection is torn down,
// whether by the station, an evicting reconnect, or liveness eviction.
type StationDisconnectedEvent struct {
	*BaseEvent
	Reason string `json:"reason"`
}

func (e *StationDisconnectedEvent) GetPayload() interface{} { return e }
func (e *StationDisconnectedEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// StationStatusChangedEvent fires when the liveness sweeper reclassifies a
// station's presence.
type StationStatusChangedEvent struct {
	*BaseEvent
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
}

func (e *StationStatusChangedEvent) GetPayload() interface{} { return e }
func (e *StationStatusChangedEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// ConnectorStatusChangedEvent fires on an inbound StatusNotification.
type ConnectorStatusChangedEvent struct {
	*BaseEvent
	ConnectorID    int    `json:"connector_id"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	ErrorCode      string `json:"error_code,omitempty"`
}

func (e *ConnectorStatusChangedEvent) GetPayload() interface{} { return e }
func (e *ConnectorStatusChangedEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// TransactionStartedEvent fires when a charging session begins.
type TransactionStartedEvent struct {
	*BaseEvent
	TransactionID int64  `json:"transaction_id"`
	ConnectorID   int    `json:"connector_id"`
	IdTag         string `json:"id_tag"`
	MeterStartWh  int64  `json:"meter_start_wh"`
}

func (e *TransactionStartedEvent) GetPayload() interface{} { return e }
func (e *TransactionStartedEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// TransactionStoppedEvent fires when a charging session ends, whether by
// station-initiated stop, remote stop, or auto-stop on limit reached.
type TransactionStoppedEvent struct {
	*BaseEvent
	TransactionID int64  `json:"transaction_id"`
	MeterStopWh   int64  `json:"meter_stop_wh"`
	Reason        string `json:"reason"`
}

func (e *TransactionStoppedEvent) GetPayload() interface{} { return e }
func (e *TransactionStoppedEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// TransactionBilledEvent fires once a stopped transaction's billing record
// has been calculated.
type TransactionBilledEvent struct {
	*BaseEvent
	TransactionID int64  `json:"transaction_id"`
	TotalCost     int64  `json:"total_cost"`
	Currency      string `json:"currency"`
}

func (e *TransactionBilledEvent) GetPayload() interface{} { return e }
func (e *TransactionBilledEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// MeterValuesReceivedEvent fires on an inbound MeterValues report.
type MeterValuesReceivedEvent struct {
	*BaseEvent
	ConnectorID   int    `json:"connector_id"`
	TransactionID *int64 `json:"transaction_id,omitempty"`
	MeterWh       int64  `json:"meter_wh"`
	PowerW        int64  `json:"power_w,omitempty"`
	SoC           int    `json:"soc,omitempty"`
}

func (e *MeterValuesReceivedEvent) GetPayload() interface{} { return e }
func (e *MeterValuesReceivedEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// HeartbeatReceivedEvent fires on an inbound Heartbeat.
type HeartbeatReceivedEvent struct {
	*BaseEvent
}

func (e *HeartbeatReceivedEvent) GetPayload() interface{} { return nil }
func (e *HeartbeatReceivedEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// AuthorizationResultEvent fires after an Authorize/StartTransaction
// id tag lookup resolves.
type AuthorizationResultEvent struct {
	*BaseEvent
	IdTag  string `json:"id_tag"`
	Result string `json:"result"`
}

func (e *AuthorizationResultEvent) GetPayload() interface{} { return e }
func (e *AuthorizationResultEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// BootNotificationEvent fires when a station registers or re-registers.
type BootNotificationEvent struct {
	*BaseEvent
	Vendor          string `json:"vendor"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

func (e *BootNotificationEvent) GetPayload() interface{} { return e }
func (e *BootNotificationEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// DeviceAlertEvent fires on a SecurityEventNotification or on a
// FirmwareStatusNotification reporting a failed download or installation.
type DeviceAlertEvent struct {
	*BaseEvent
	AlertType string `json:"alert_type"`
	Detail    string `json:"detail,omitempty"`
}

func (e *DeviceAlertEvent) GetPayload() interface{} { return e }
func (e *DeviceAlertEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }

// ErrorEvent carries an error code and description. No component in this
// tree publishes it: the dispatchers only log parse and decode failures.
type ErrorEvent struct {
	*BaseEvent
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *ErrorEvent) GetPayload() interface{} { return e }
func (e *ErrorEvent) ToJSON() ([]byte, error)  { return json.Marshal(e) }
