// Package ocpp201 is the OCPP 2.0.1 Inbound Dispatcher (C4): the 2.0.1
// counterpart to internal/ocpp16, decoding Call frames into typed 2.0.1
// requests, mutating domain state through internal/charging, and
// encoding typed responses back onto the wire. It also routes
// CallResult/CallError frames back into the Outbound Command Engine's
// correlation table.
//
// Grounded on internal/ocpp16/dispatcher.go's structure (shared almost
// verbatim: frame parsing, the action switch, the decode-or-fallback-response
// contract) and on
// _examples/weilun-shrimp-wlgo_ocpp_charger_simulator/ocpp/v201/messages.go
// for the 2.0.1 wire shapes, since the teacher repo has no 2.0.1 support
// at all.
package ocpp201

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocpp-csms/central-system/internal/charging"
	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/connection"
	msgs "github.com/ocpp-csms/central-system/internal/domain/ocpp201"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/repository"
	"github.com/ocpp-csms/central-system/internal/wireframe"
)

// ResponseRouter completes a pending outbound command when this station's
// answer to a server-initiated Call arrives. Identical contract to
// internal/ocpp16.ResponseRouter; kept as its own type so this package
// has no import-time dependency on the 1.6 dispatcher.
type ResponseRouter interface {
	CompleteResult(messageID string, payload []byte) bool
	CompleteError(messageID, code, description string, details interface{}) bool
}

// Dispatcher implements ocppadapter.InboundAdapter for one 2.0.1 station
// connection.
type Dispatcher struct {
	stationID string
	charging  *charging.Service
	router    ResponseRouter
	publisher eventbus.Publisher
	clock     clock.Clock
	log       zerolog.Logger

	mu        sync.Mutex
	activeTxn map[string]int64 // station-chosen transactionId -> server-assigned transaction ID
}

// New builds a Dispatcher for stationID. c defaults to clock.New() if nil.
func New(stationID string, svc *charging.Service, router ResponseRouter, publisher eventbus.Publisher, c clock.Clock, log zerolog.Logger) *Dispatcher {
	if c == nil {
		c = clock.New()
	}
	return &Dispatcher{
		stationID: stationID,
		charging:  svc,
		router:    router,
		publisher: publisher,
		clock:     c,
		log:       log.With().Str("component", "ocpp201").Str("station_id", stationID).Logger(),
		activeTxn: make(map[string]int64),
	}
}

func (d *Dispatcher) Version() connection.Version { return connection.Version201 }
func (d *Dispatcher) StationID() string            { return d.stationID }

// HandleMessage implements ocppadapter.InboundAdapter.
func (d *Dispatcher) HandleMessage(ctx context.Context, text string) (string, bool) {
	frame, err := wireframe.Parse([]byte(text))
	if err != nil {
		if repaired, ok := wireframe.Sanitize([]byte(text)); ok {
			frame, err = wireframe.Parse(repaired)
		}
		if err != nil {
			d.log.Warn().Err(err).Msg("dropping unparseable frame")
			return "", false
		}
	}

	switch frame.Kind {
	case wireframe.KindCall:
		return d.handleCall(ctx, frame)
	case wireframe.KindCallResult:
		d.router.CompleteResult(frame.MessageID, frame.Payload)
		return "", false
	case wireframe.KindCallError:
		d.router.CompleteError(frame.MessageID, frame.ErrorCode, frame.ErrorDescription, frame.ErrorDetails)
		return "", false
	default:
		return "", false
	}
}

func (d *Dispatcher) handleCall(ctx context.Context, frame wireframe.Frame) (string, bool) {
	var respPayload interface{}

	switch msgs.Action(frame.Action) {
	case msgs.ActionBootNotification:
		respPayload = d.handleBootNotification(ctx, frame.Payload)
	case msgs.ActionHeartbeat:
		respPayload = d.handleHeartbeat(ctx)
	case msgs.ActionStatusNotification:
		respPayload = d.handleStatusNotification(ctx, frame.Payload)
	case msgs.ActionAuthorize:
		respPayload = d.handleAuthorize(ctx, frame.Payload)
	case msgs.ActionTransactionEvent:
		respPayload = d.handleTransactionEvent(ctx, frame.Payload)
	case msgs.ActionMeterValues:
		respPayload = d.handleMeterValues(ctx, frame.Payload)
	case msgs.ActionDataTransfer:
		respPayload = d.handleDataTransfer(ctx, frame.Payload)
	case msgs.ActionFirmwareStatusNotification:
		respPayload = d.handleFirmwareStatusNotification(ctx, frame.Payload)
	case msgs.ActionSecurityEventNotification:
		respPayload = d.handleSecurityEventNotification(ctx, frame.Payload)
	case msgs.ActionNotifyEvent:
		respPayload = msgs.NotifyEventResponse{}
	case msgs.ActionNotifyMonitoringReport:
		respPayload = msgs.NotifyMonitoringReportResponse{}
	case msgs.ActionNotifyReport:
		respPayload = msgs.NotifyReportResponse{}
	case msgs.ActionReportChargingProfiles:
		respPayload = msgs.ReportChargingProfilesResponse{}
	default:
		d.log.Warn().Str("action", frame.Action).Msg("unknown or server-initiated-only action received from station; responding with empty object")
		respPayload = struct{}{}
	}

	payloadBytes, err := json.Marshal(respPayload)
	if err != nil {
		d.log.Error().Err(err).Str("action", frame.Action).Msg("failed to serialize response payload")
		return "", false
	}
	wire, err := wireframe.Serialize(wireframe.Frame{
		Kind:      wireframe.KindCallResult,
		MessageID: frame.MessageID,
		Payload:   json.RawMessage(payloadBytes),
	})
	if err != nil {
		d.log.Error().Err(err).Msg("failed to serialize CallResult frame")
		return "", false
	}
	return string(wire), true
}

func (d *Dispatcher) decode(payload json.RawMessage, action string, out interface{}) bool {
	if err := json.Unmarshal(payload, out); err != nil {
		d.log.Warn().Err(err).Str("action", action).Msg("failed to decode request payload; responding with the action's fallback response")
		return false
	}
	return true
}

func (d *Dispatcher) handleBootNotification(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.BootNotificationRequest
	if !d.decode(payload, string(msgs.ActionBootNotification), &req) {
		return msgs.BootNotificationResponse{}
	}
	_, err := d.charging.RegisterStation(ctx, d.stationID, "2.0.1", req.ChargingStation.VendorName, req.ChargingStation.Model,
		req.ChargingStation.SerialNumber, req.ChargingStation.FirmwareVersion)
	if err != nil {
		d.log.Error().Err(err).Msg("RegisterStation failed")
		return msgs.BootNotificationResponse{Status: msgs.RegistrationStatusRejected, CurrentTime: msgs.DateTime{Time: d.clock.Now()}, Interval: 300}
	}
	return msgs.BootNotificationResponse{Status: msgs.RegistrationStatusAccepted, CurrentTime: msgs.DateTime{Time: d.clock.Now()}, Interval: 300}
}

func (d *Dispatcher) handleHeartbeat(ctx context.Context) interface{} {
	now, err := d.charging.Heartbeat(ctx, d.stationID)
	if err != nil {
		d.log.Error().Err(err).Msg("Heartbeat failed")
		return msgs.HeartbeatResponse{CurrentTime: msgs.DateTime{Time: d.clock.Now()}}
	}
	return msgs.HeartbeatResponse{CurrentTime: msgs.DateTime{Time: now}}
}

func (d *Dispatcher) handleStatusNotification(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.StatusNotificationRequest
	if !d.decode(payload, string(msgs.ActionStatusNotification), &req) {
		return msgs.StatusNotificationResponse{}
	}
	if err := d.charging.UpdateConnectorStatus(ctx, d.stationID, req.ConnectorId, mapConnectorStatus(req.ConnectorStatus), ""); err != nil {
		d.log.Error().Err(err).Msg("UpdateConnectorStatus failed")
	}
	return msgs.StatusNotificationResponse{}
}

// mapConnectorStatus translates 2.0.1's five-value connector status
// vocabulary onto the repository's 1.6-shaped ConnectorStatus (which has
// no direct Occupied value — split into Charging/SuspendedEVSE/
// SuspendedEV/Preparing on the 1.6 side). Absent the richer 2.0.1 signal,
// Occupied maps to Charging, the common case; meter/transaction state
// refines it further once a TransactionEvent arrives.
func mapConnectorStatus(s msgs.ConnectorStatus) repository.ConnectorStatus {
	switch s {
	case msgs.ConnectorStatusAvailable:
		return repository.ConnectorAvailable
	case msgs.ConnectorStatusOccupied:
		return repository.ConnectorCharging
	case msgs.ConnectorStatusReserved:
		return repository.ConnectorReserved
	case msgs.ConnectorStatusUnavailable:
		return repository.ConnectorUnavailable
	case msgs.ConnectorStatusFaulted:
		return repository.ConnectorFaulted
	default:
		return repository.ConnectorAvailable
	}
}

func (d *Dispatcher) handleAuthorize(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.AuthorizeRequest
	if !d.decode(payload, string(msgs.ActionAuthorize), &req) {
		return msgs.AuthorizeResponse{IdTokenInfo: msgs.IdTokenInfo{Status: msgs.AuthorizationStatusInvalid}}
	}
	status, err := d.charging.AuthStatus(ctx, req.IdToken.IdToken)
	if err != nil {
		d.log.Error().Err(err).Msg("AuthStatus failed")
		return msgs.AuthorizeResponse{IdTokenInfo: msgs.IdTokenInfo{Status: msgs.AuthorizationStatusInvalid}}
	}
	return msgs.AuthorizeResponse{IdTokenInfo: msgs.IdTokenInfo{Status: msgs.AuthorizationStatus(status)}}
}

// handleTransactionEvent sub-dispatches on EventType, since 2.0.1 folds
// the whole of a transaction's lifecycle into one action. Started opens
// a server-side transaction record and remembers the station-chosen
// transactionId; Updated feeds meter samples through the same
// record; Ended closes it and triggers billing, exactly as 1.6's
// StopTransaction does.
func (d *Dispatcher) handleTransactionEvent(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.TransactionEventRequest
	if !d.decode(payload, string(msgs.ActionTransactionEvent), &req) {
		return msgs.TransactionEventResponse{}
	}

	connectorID := 1
	if req.Evse != nil && req.Evse.ConnectorId != 0 {
		connectorID = req.Evse.ConnectorId
	}

	switch req.EventType {
	case msgs.TransactionEventStarted:
		return d.handleTransactionStarted(ctx, req, connectorID)
	case msgs.TransactionEventUpdated:
		return d.handleTransactionUpdated(ctx, req)
	case msgs.TransactionEventEnded:
		return d.handleTransactionEnded(ctx, req)
	default:
		d.log.Warn().Str("event_type", string(req.EventType)).Msg("unrecognized TransactionEvent eventType")
		return msgs.TransactionEventResponse{}
	}
}

func (d *Dispatcher) handleTransactionStarted(ctx context.Context, req msgs.TransactionEventRequest, connectorID int) interface{} {
	idToken := ""
	if req.IdToken != nil {
		idToken = req.IdToken.IdToken
	}
	startedAt := req.Timestamp.Time
	meterStart := latestEnergyWh(req.MeterValue)

	result, err := d.charging.StartTransaction(ctx, d.stationID, connectorID, idToken, meterStart, startedAt)
	if err != nil {
		d.log.Error().Err(err).Msg("StartTransaction failed")
		return msgs.TransactionEventResponse{IdTokenInfo: &msgs.IdTokenInfo{Status: msgs.AuthorizationStatusInvalid}}
	}

	d.mu.Lock()
	d.activeTxn[req.TransactionInfo.TransactionId] = result.TransactionID
	d.mu.Unlock()

	return msgs.TransactionEventResponse{
		IdTokenInfo: &msgs.IdTokenInfo{Status: msgs.AuthorizationStatus(result.AuthStatus)},
	}
}

func (d *Dispatcher) handleTransactionUpdated(ctx context.Context, req msgs.TransactionEventRequest) interface{} {
	txID, ok := d.resolveTransaction(req.TransactionInfo.TransactionId)
	if !ok {
		d.log.Warn().Str("transaction_id", req.TransactionInfo.TransactionId).Msg("Updated event for unknown transaction")
		return msgs.TransactionEventResponse{}
	}
	connectorID := 1
	if req.Evse != nil && req.Evse.ConnectorId != 0 {
		connectorID = req.Evse.ConnectorId
	}
	samples, sampledAt := normalizeMeterValues(req.MeterValue, d.clock.Now())
	if len(samples) > 0 {
		if err := d.charging.UpdateMeterValues(ctx, d.stationID, connectorID, &txID, samples, sampledAt); err != nil {
			d.log.Error().Err(err).Msg("UpdateMeterValues failed")
		}
	}
	return msgs.TransactionEventResponse{}
}

func (d *Dispatcher) handleTransactionEnded(ctx context.Context, req msgs.TransactionEventRequest) interface{} {
	txID, ok := d.resolveTransaction(req.TransactionInfo.TransactionId)
	if !ok {
		d.log.Warn().Str("transaction_id", req.TransactionInfo.TransactionId).Msg("Ended event for unknown transaction")
		return msgs.TransactionEventResponse{}
	}
	idToken := ""
	if req.IdToken != nil {
		idToken = req.IdToken.IdToken
	}
	meterStop := latestEnergyWh(req.MeterValue)
	authorized, err := d.charging.StopTransaction(ctx, txID, meterStop, req.TransactionInfo.StoppedReason, idToken, req.Timestamp.Time)
	if err != nil {
		d.log.Error().Err(err).Msg("StopTransaction failed")
		return msgs.TransactionEventResponse{}
	}

	d.mu.Lock()
	delete(d.activeTxn, req.TransactionInfo.TransactionId)
	d.mu.Unlock()

	status := msgs.AuthorizationStatusInvalid
	if authorized {
		status = msgs.AuthorizationStatusAccepted
	}
	return msgs.TransactionEventResponse{IdTokenInfo: &msgs.IdTokenInfo{Status: status}}
}

func (d *Dispatcher) resolveTransaction(externalID string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.activeTxn[externalID]
	return id, ok
}

// latestEnergyWh pulls the most recent Energy.Active.Import.Register
// sample out of a TransactionEvent's meterValue batch, for use as the
// meterStart/meterStop this system's transaction record tracks. Returns
// 0 if no such sample is present (the event carried none, as is typical
// for a Started event before any energy has flowed).
func latestEnergyWh(values []msgs.MeterValue) int64 {
	var wh int64
	for _, mv := range values {
		for _, sv := range mv.SampledValue {
			if sv.Measurand != nil && *sv.Measurand != msgs.MeasurandEnergyActiveImportRegister {
				continue
			}
			value := sv.Value
			if sv.UnitOfMeasure != nil && sv.UnitOfMeasure.Unit == "kWh" {
				value *= 1000
			}
			wh = int64(value)
		}
	}
	return wh
}

func (d *Dispatcher) handleMeterValues(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.MeterValuesRequest
	if !d.decode(payload, string(msgs.ActionMeterValues), &req) {
		return msgs.MeterValuesResponse{}
	}
	samples, sampledAt := normalizeMeterValues(req.MeterValue, d.clock.Now())
	if err := d.charging.UpdateMeterValues(ctx, d.stationID, req.EvseId, nil, samples, sampledAt); err != nil {
		d.log.Error().Err(err).Msg("UpdateMeterValues failed")
	}
	return msgs.MeterValuesResponse{}
}

// normalizeMeterValues mirrors internal/ocpp16's measurand/unit
// normalization rules over 2.0.1's identically-shaped MeterValue/
// SampledValue structs.
func normalizeMeterValues(values []msgs.MeterValue, fallback time.Time) ([]charging.MeterSample, time.Time) {
	sampledAt := fallback
	var samples []charging.MeterSample
	for _, mv := range values {
		if !mv.Timestamp.Time.IsZero() {
			sampledAt = mv.Timestamp.Time
		}
		for _, sv := range mv.SampledValue {
			sample, ok := normalizeSampledValue(sv)
			if !ok {
				continue
			}
			samples = append(samples, sample)
		}
	}
	return samples, sampledAt
}

func normalizeSampledValue(sv msgs.SampledValue) (charging.MeterSample, bool) {
	measurand := msgs.MeasurandEnergyActiveImportRegister
	if sv.Measurand != nil {
		measurand = *sv.Measurand
	}
	unit := ""
	if sv.UnitOfMeasure != nil {
		unit = sv.UnitOfMeasure.Unit
	}

	switch measurand {
	case msgs.MeasurandEnergyActiveImportRegister:
		value := sv.Value
		if unit == "kWh" {
			value *= 1000
		}
		return charging.MeterSample{Measurand: charging.MeasurandEnergyActiveImportRegister, ValueWh: int64(value)}, true
	case msgs.MeasurandPowerActiveImport:
		value := sv.Value
		if unit == "kW" {
			value *= 1000
		}
		return charging.MeterSample{Measurand: charging.MeasurandPowerActiveImport, ValueW: int64(value)}, true
	case msgs.MeasurandSoC:
		return charging.MeterSample{Measurand: charging.MeasurandSoC, SoC: int(sv.Value)}, true
	default:
		return charging.MeterSample{}, false
	}
}

func (d *Dispatcher) handleDataTransfer(_ context.Context, payload json.RawMessage) interface{} {
	var req msgs.DataTransferRequest
	if !d.decode(payload, string(msgs.ActionDataTransfer), &req) {
		return msgs.DataTransferResponse{Status: msgs.DataTransferStatusRejected}
	}
	d.log.Info().Str("vendor_id", req.VendorId).Msg("data transfer received; no vendor extension registered")
	return msgs.DataTransferResponse{Status: msgs.DataTransferStatusUnknownVendorId}
}

func (d *Dispatcher) handleFirmwareStatusNotification(_ context.Context, payload json.RawMessage) interface{} {
	var req msgs.FirmwareStatusNotificationRequest
	if d.decode(payload, string(msgs.ActionFirmwareStatusNotification), &req) {
		if req.Status == msgs.FirmwareStatusInstallationFailed || req.Status == msgs.FirmwareStatusDownloadFailed {
			d.publishAlert("firmware", string(req.Status))
		}
	}
	return msgs.FirmwareStatusNotificationResponse{}
}

func (d *Dispatcher) handleSecurityEventNotification(_ context.Context, payload json.RawMessage) interface{} {
	var req msgs.SecurityEventNotificationRequest
	if d.decode(payload, string(msgs.ActionSecurityEventNotification), &req) {
		d.publishAlert("security", req.Type)
	}
	return msgs.SecurityEventNotificationResponse{}
}

func (d *Dispatcher) publishAlert(alertType, detail string) {
	if d.publisher == nil {
		return
	}
	ev := &eventbus.DeviceAlertEvent{
		BaseEvent: eventbus.NewBaseEvent(eventbus.TypeDeviceAlert, d.stationID, eventbus.SeverityWarning, eventbus.Metadata{Source: "ocpp201"}),
		AlertType: alertType,
		Detail:    detail,
	}
	if err := d.publisher.Publish(context.Background(), ev); err != nil {
		d.log.Warn().Err(err).Msg("device alert publish failed")
	}
}
