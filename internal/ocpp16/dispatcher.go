// Package ocpp16 is the OCPP 1.6 Inbound Dispatcher (C4): it decodes
// every Call frame a 1.6 station sends into its typed request, mutates
// domain state through internal/charging, publishes the corresponding
// domain events, and encodes the typed response back onto the wire. It
// also routes CallResult/CallError frames — replies to commands this
// server issued — back into the Outbound Command Engine's correlation
// table.
//
// Grounded on internal/protocol/ocpp16/processor.go's ProcessMessage /
// handleAction switch, generalized from that file's always-accept stubs
// to real charging-service-backed logic, and on
// internal/domain/ocpp16/{types,messages}.go's request/response structs,
// kept as the wire DTOs.
package ocpp16

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocpp-csms/central-system/internal/charging"
	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/connection"
	msgs "github.com/ocpp-csms/central-system/internal/domain/ocpp16"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/repository"
	"github.com/ocpp-csms/central-system/internal/wireframe"
)

// ResponseRouter completes a pending outbound command when this station's
// answer to a server-initiated Call arrives.
type ResponseRouter interface {
	CompleteResult(messageID string, payload []byte) bool
	CompleteError(messageID, code, description string, details interface{}) bool
}

// Dispatcher implements ocppadapter.InboundAdapter for one 1.6 station
// connection.
type Dispatcher struct {
	stationID string
	charging  *charging.Service
	router    ResponseRouter
	publisher eventbus.Publisher
	clock     clock.Clock
	log       zerolog.Logger
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
		log:       log.With().Str("component", "ocpp16").Str("station_id", stationID).Logger(),
	}
}

func (d *Dispatcher) Version() connection.Version { return connection.Version16 }
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
	case msgs.ActionStartTransaction:
		respPayload = d.handleStartTransaction(ctx, frame.Payload)
	case msgs.ActionStopTransaction:
		respPayload = d.handleStopTransaction(ctx, frame.Payload)
	case msgs.ActionMeterValues:
		respPayload = d.handleMeterValues(ctx, frame.Payload)
	case msgs.ActionDataTransfer:
		respPayload = d.handleDataTransfer(ctx, frame.Payload)
	case msgs.ActionDiagnosticsStatusNotification:
		respPayload = msgs.DiagnosticsStatusNotificationResponse{}
	case msgs.ActionFirmwareStatusNotification:
		respPayload = d.handleFirmwareStatusNotification(ctx, frame.Payload)
	case msgs.ActionSecurityEventNotification:
		respPayload = d.handleSecurityEventNotification(ctx, frame.Payload)
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
	_, err := d.charging.RegisterStation(ctx, d.stationID, "1.6", req.ChargePointVendor, req.ChargePointModel,
		derefOr(req.ChargePointSerialNumber, ""), derefOr(req.FirmwareVersion, ""))
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
	if err := d.charging.UpdateConnectorStatus(ctx, d.stationID, req.ConnectorId, repository.ConnectorStatus(req.Status), string(req.ErrorCode)); err != nil {
		d.log.Error().Err(err).Msg("UpdateConnectorStatus failed")
	}
	return msgs.StatusNotificationResponse{}
}

func (d *Dispatcher) handleAuthorize(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.AuthorizeRequest
	if !d.decode(payload, string(msgs.ActionAuthorize), &req) {
		return msgs.AuthorizeResponse{IdTagInfo: msgs.IdTagInfo{Status: msgs.AuthorizationStatusInvalid}}
	}
	status, err := d.charging.AuthStatus(ctx, req.IdTag)
	if err != nil {
		d.log.Error().Err(err).Msg("AuthStatus failed")
		return msgs.AuthorizeResponse{IdTagInfo: msgs.IdTagInfo{Status: msgs.AuthorizationStatusInvalid}}
	}
	return msgs.AuthorizeResponse{IdTagInfo: msgs.IdTagInfo{Status: msgs.AuthorizationStatus(status)}}
}

func (d *Dispatcher) handleStartTransaction(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.StartTransactionRequest
	if !d.decode(payload, string(msgs.ActionStartTransaction), &req) {
		return msgs.StartTransactionResponse{IdTagInfo: msgs.IdTagInfo{Status: msgs.AuthorizationStatusInvalid}}
	}
	result, err := d.charging.StartTransaction(ctx, d.stationID, req.ConnectorId, req.IdTag, int64(req.MeterStart), req.Timestamp.Time)
	if err != nil {
		d.log.Error().Err(err).Msg("StartTransaction failed")
		return msgs.StartTransactionResponse{IdTagInfo: msgs.IdTagInfo{Status: msgs.AuthorizationStatusInvalid}}
	}
	return msgs.StartTransactionResponse{
		TransactionId: int(result.TransactionID),
		IdTagInfo:     msgs.IdTagInfo{Status: msgs.AuthorizationStatus(result.AuthStatus)},
	}
}

func (d *Dispatcher) handleStopTransaction(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.StopTransactionRequest
	if !d.decode(payload, string(msgs.ActionStopTransaction), &req) {
		return msgs.StopTransactionResponse{}
	}
	reason := ""
	if req.Reason != nil {
		reason = string(*req.Reason)
	}
	idTag := derefOr(req.IdTag, "")
	authorized, err := d.charging.StopTransaction(ctx, int64(req.TransactionId), int64(req.MeterStop), reason, idTag, req.Timestamp.Time)
	if err != nil {
		d.log.Error().Err(err).Msg("StopTransaction failed")
		return msgs.StopTransactionResponse{}
	}
	status := msgs.AuthorizationStatusInvalid
	if authorized {
		status = msgs.AuthorizationStatusAccepted
	}
	return msgs.StopTransactionResponse{IdTagInfo: &msgs.IdTagInfo{Status: status}}
}

func (d *Dispatcher) handleMeterValues(ctx context.Context, payload json.RawMessage) interface{} {
	var req msgs.MeterValuesRequest
	if !d.decode(payload, string(msgs.ActionMeterValues), &req) {
		return msgs.MeterValuesResponse{}
	}
	var txID *int64
	if req.TransactionId != nil {
		v := int64(*req.TransactionId)
		txID = &v
	}
	samples, sampledAt := d.normalizeMeterValues(req.MeterValue)
	if err := d.charging.UpdateMeterValues(ctx, d.stationID, req.ConnectorId, txID, samples, sampledAt); err != nil {
		d.log.Error().Err(err).Msg("UpdateMeterValues failed")
	}
	return msgs.MeterValuesResponse{}
}

// normalizeMeterValues flattens every sampled value across all reported
// MeterValue entries into the three measurands charging.Service
// understands, taking the latest MeterValue's timestamp (or the local
// clock, if none parse) as the sample time. Unrecognized measurands are
// logged and ignored, per the "extra measurands" edge case.
func (d *Dispatcher) normalizeMeterValues(values []msgs.MeterValue) ([]charging.MeterSample, time.Time) {
	sampledAt := d.clock.Now()
	var samples []charging.MeterSample
	for _, mv := range values {
		if !mv.Timestamp.Time.IsZero() {
			sampledAt = mv.Timestamp.Time
		}
		for _, sv := range mv.SampledValue {
			sample, ok := d.normalizeSampledValue(sv)
			if !ok {
				continue
			}
			samples = append(samples, sample)
		}
	}
	return samples, sampledAt
}

func (d *Dispatcher) normalizeSampledValue(sv msgs.SampledValue) (charging.MeterSample, bool) {
	value, err := strconv.ParseFloat(sv.Value, 64)
	if err != nil {
		d.log.Warn().Str("value", sv.Value).Msg("non-numeric sampled value; ignoring")
		return charging.MeterSample{}, false
	}
	measurand := msgs.MeasurandEnergyActiveImportRegister
	if sv.Measurand != nil {
		measurand = *sv.Measurand
	}
	unit := msgs.UnitOfMeasureWh
	if sv.Unit != nil {
		unit = *sv.Unit
	}

	switch measurand {
	case msgs.MeasurandEnergyActiveImportRegister:
		if unit == msgs.UnitOfMeasureKWh {
			value *= 1000
		}
		return charging.MeterSample{Measurand: charging.MeasurandEnergyActiveImportRegister, ValueWh: int64(value)}, true
	case msgs.MeasurandPowerActiveImport:
		if unit == msgs.UnitOfMeasureKW {
			value *= 1000
		}
		return charging.MeterSample{Measurand: charging.MeasurandPowerActiveImport, ValueW: int64(value)}, true
	case msgs.MeasurandSoC:
		return charging.MeterSample{Measurand: charging.MeasurandSoC, SoC: int(value)}, true
	default:
		d.log.Debug().Str("measurand", string(measurand)).Msg("unrecognized measurand; ignoring sample")
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
		BaseEvent: eventbus.NewBaseEvent(eventbus.TypeDeviceAlert, d.stationID, eventbus.SeverityWarning, eventbus.Metadata{Source: "ocpp16"}),
		AlertType: alertType,
		Detail:    detail,
	}
	if err := d.publisher.Publish(context.Background(), ev); err != nil {
		d.log.Warn().Err(err).Msg("device alert publish failed")
	}
}

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
