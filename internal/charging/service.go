// Package charging implements the Charging Core Services (C6):
// authorization, transaction lifecycle (start/meter-update/stop),
// limit enforcement with auto-stop, billing, and the pending-limit
// handoff between a remote-start API call and the station's own
// StartTransaction. It is the business layer the per-version dispatchers
// (C4) call into after decoding an inbound frame, generalizing the
// teacher's business/transaction and business/chargepoint managers from
// an in-process map-of-maps store to calls against the repository port.
package charging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/ocpp-csms/central-system/internal/cache"
	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/ocpperr"
	"github.com/ocpp-csms/central-system/internal/repository"
)

// authCacheTTL bounds how long a GetAuthStatus result is trusted before
// falling back to the repository again. Short enough that an operator
// blocklisting a tag takes effect within one heartbeat interval.
const authCacheTTL = 30 * time.Second

// Commander is the narrow outbound capability the service needs to issue
// an auto-stop command without importing internal/commandengine directly.
// Importing it would not create a cycle today; the same
// interface-at-the-boundary discipline used between sessionregistry and
// commandengine is kept here since both packages are wired from cmd/csms
// and neither should need to know the other's concrete type.
type Commander interface {
	// RequestStop issues a remote stop for stationID/transactionID, version
	// chosen by the caller's wiring. It may block until the station answers
	// or ctx ends, so callers invoke it from its own goroutine per the
	// anti-deadlock rule, never from the inbound reader.
	RequestStop(ctx context.Context, stationID string, transactionID int64) error
}

// pendingLimitKey identifies a not-yet-attached operator charging limit.
type pendingLimitKey struct {
	stationID   string
	connectorID int
}

// Service implements C6 against the repository port.
type Service struct {
	repo      repository.Repository
	publisher eventbus.Publisher
	commander Commander
	clock     clock.Clock
	log       zerolog.Logger

	mu           sync.Mutex
	pendingLimit map[pendingLimitKey]pendingLimit
	autoStopping map[int64]bool // transaction ID -> auto-stop already in flight
	breaker      *gobreaker.CircuitBreaker
	authCache    *cache.LRUCache
}

type pendingLimit struct {
	limitType  repository.ChargingLimitType
	limitValue float64
	setAt      time.Time
}

// pendingLimitTTL bounds how long an unconsumed pending limit waits for its
// StartTransaction before it is discarded.
const pendingLimitTTL = 2 * time.Minute

// New builds a Service. c defaults to clock.New() if nil.
func New(repo repository.Repository, publisher eventbus.Publisher, commander Commander, c clock.Clock, log zerolog.Logger) *Service {
	if c == nil {
		c = clock.New()
	}
	return &Service{
		repo:         repo,
		publisher:    publisher,
		commander:    commander,
		clock:        c,
		log:          log.With().Str("component", "charging").Logger(),
		pendingLimit: make(map[pendingLimitKey]pendingLimit),
		autoStopping: make(map[int64]bool),
		authCache:    cache.NewLRUCache(cache.DefaultCacheConfig()),
	}
}

// Authorize reports whether tag currently authorizes a transaction.
func (s *Service) Authorize(ctx context.Context, tag string) (bool, error) {
	ok, err := s.repo.IdTags().IsValid(ctx, tag, s.clock.Now())
	if err != nil {
		return false, &ocpperr.RepositoryError{Op: "IdTags.IsValid", Cause: err}
	}
	return ok, nil
}

// AuthStatus returns the OCPP-level status string for tag, for responses
// that echo id_tag_info.status. Unknown tokens report Invalid. A hot
// shared-fleet tag (a depot's badge used across dozens of stations)
// would otherwise hit the repository on every Authorize.req; the result
// is cached for authCacheTTL, keyed by tag.
func (s *Service) AuthStatus(ctx context.Context, tag string) (repository.IdTagStatus, error) {
	if cached, ok := s.authCache.Get(tag); ok {
		return cached.(repository.IdTagStatus), nil
	}

	status, err := s.repo.IdTags().GetAuthStatus(ctx, tag)
	if err != nil {
		if errors.Is(err, ocpperr.ErrNotFound) {
			return repository.IdTagInvalid, nil
		}
		return "", &ocpperr.RepositoryError{Op: "IdTags.GetAuthStatus", Cause: err}
	}

	_ = s.authCache.Set(tag, status, authCacheTTL)
	return status, nil
}

// RegisterStation handles BootNotification: registers or updates the
// Station, records the negotiated version, ensures connector 0 exists.
func (s *Service) RegisterStation(ctx context.Context, stationID, protocolVersion, vendor, model, serial, firmware string) (*repository.Station, error) {
	now := s.clock.Now()
	station, err := s.repo.Stations().FindByID(ctx, stationID)
	if err != nil && !errors.Is(err, ocpperr.ErrNotFound) {
		return nil, &ocpperr.RepositoryError{Op: "Stations.FindByID", Cause: err}
	}
	if station == nil {
		station = &repository.Station{ID: stationID, RegisteredAt: now}
	}
	station.ProtocolVersion = protocolVersion
	station.Vendor = vendor
	station.Model = model
	station.SerialNumber = serial
	station.FirmwareVersion = firmware
	station.LastHeartbeat = now
	station.Presence = repository.PresenceOnline
	station.EnsureConnector(0)

	if err := s.repo.Stations().Save(ctx, station); err != nil {
		return nil, &ocpperr.RepositoryError{Op: "Stations.Save", Cause: err}
	}

	s.publish(ctx, &eventbus.BootNotificationEvent{
		BaseEvent:       eventbus.NewBaseEvent(eventbus.TypeBootNotification, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "charging"}),
		Vendor:          vendor,
		Model:           model,
		FirmwareVersion: firmware,
	})
	return station, nil
}

// Heartbeat updates last_heartbeat and transitions status to Online if
// not already.
func (s *Service) Heartbeat(ctx context.Context, stationID string) (time.Time, error) {
	now := s.clock.Now()
	station, err := s.repo.Stations().FindByID(ctx, stationID)
	if err != nil {
		return now, &ocpperr.RepositoryError{Op: "Stations.FindByID", Cause: err}
	}
	station.LastHeartbeat = now
	if station.Presence != repository.PresenceOnline {
		station.Presence = repository.PresenceOnline
	}
	if err := s.repo.Stations().Update(ctx, station); err != nil {
		return now, &ocpperr.RepositoryError{Op: "Stations.Update", Cause: err}
	}
	s.publish(ctx, &eventbus.HeartbeatReceivedEvent{
		BaseEvent: eventbus.NewBaseEvent(eventbus.TypeHeartbeatReceived, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "charging"}),
	})
	return now, nil
}

// UpdateConnectorStatus applies a StatusNotification's already-mapped
// domain status.
func (s *Service) UpdateConnectorStatus(ctx context.Context, stationID string, connectorID int, status repository.ConnectorStatus, errorCode string) error {
	station, err := s.repo.Stations().FindByID(ctx, stationID)
	if err != nil {
		return &ocpperr.RepositoryError{Op: "Stations.FindByID", Cause: err}
	}
	conn := station.EnsureConnector(connectorID)
	previous := conn.Status
	conn.Status = status
	conn.ErrorCode = errorCode

	if err := s.repo.Stations().Update(ctx, station); err != nil {
		return &ocpperr.RepositoryError{Op: "Stations.Update", Cause: err}
	}

	s.publish(ctx, &eventbus.ConnectorStatusChangedEvent{
		BaseEvent:      eventbus.NewBaseEvent(eventbus.TypeConnectorStatusChanged, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "charging"}),
		ConnectorID:    connectorID,
		PreviousStatus: string(previous),
		NewStatus:      string(status),
		ErrorCode:      errorCode,
	})
	return nil
}

// SetPendingLimit records an operator-supplied (limit_type, limit_value)
// ahead of the station's StartTransaction, to be attached once the
// transaction is created and then cleared.
func (s *Service) SetPendingLimit(stationID string, connectorID int, limitType repository.ChargingLimitType, limitValue float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingLimit[pendingLimitKey{stationID, connectorID}] = pendingLimit{limitType: limitType, limitValue: limitValue, setAt: s.clock.Now()}
}

func (s *Service) takePendingLimit(stationID string, connectorID int) (pendingLimit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pendingLimitKey{stationID, connectorID}
	pl, ok := s.pendingLimit[key]
	if ok {
		delete(s.pendingLimit, key)
		if s.clock.Now().Sub(pl.setAt) > pendingLimitTTL {
			return pendingLimit{}, false
		}
	}
	return pl, ok
}

// StartTransactionResult is returned by StartTransaction.
type StartTransactionResult struct {
	Accepted      bool
	TransactionID int64
	AuthStatus    repository.IdTagStatus
}

// StartTransaction authorizes idTag and, if accepted, allocates and
// persists a new Transaction, attaching any pending operator limit.
func (s *Service) StartTransaction(ctx context.Context, stationID string, connectorID int, idTag string, meterStartWh int64, startedAt time.Time) (StartTransactionResult, error) {
	status, err := s.AuthStatus(ctx, idTag)
	if err != nil {
		return StartTransactionResult{}, err
	}
	if status != repository.IdTagAccepted {
		s.publishAuth(ctx, stationID, idTag, string(status))
		// StartTransaction.conf always reports Invalid on denial, regardless
		// of the specific reason (Blocked/Expired/etc.) — that finer-grained
		// status is only echoed back on a standalone Authorize.req.
		return StartTransactionResult{Accepted: false, TransactionID: 0, AuthStatus: repository.IdTagInvalid}, nil
	}

	id, err := s.repo.Transactions().NextID(ctx)
	if err != nil {
		return StartTransactionResult{}, &ocpperr.RepositoryError{Op: "Transactions.NextID", Cause: err}
	}

	tx := &repository.Transaction{
		ID:              id,
		StationID:       stationID,
		ConnectorID:     connectorID,
		IdTag:           idTag,
		MeterStart:      meterStartWh,
		StartedAt:       startedAt,
		LastMeterValue:  meterStartWh,
		LastMeterUpdate: startedAt,
		Status:          repository.TransactionActive,
	}
	if pl, ok := s.takePendingLimit(stationID, connectorID); ok {
		tx.HasLimit = true
		tx.LimitType = pl.limitType
		tx.LimitValue = pl.limitValue
	}

	if err := s.repo.Transactions().Save(ctx, tx); err != nil {
		return StartTransactionResult{}, &ocpperr.RepositoryError{Op: "Transactions.Save", Cause: err}
	}

	s.publishAuth(ctx, stationID, idTag, string(status))
	s.publish(ctx, &eventbus.TransactionStartedEvent{
		BaseEvent:     eventbus.NewBaseEvent(eventbus.TypeTransactionStarted, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "charging"}),
		TransactionID: id,
		ConnectorID:   connectorID,
		IdTag:         idTag,
		MeterStartWh:  meterStartWh,
	})
	return StartTransactionResult{Accepted: true, TransactionID: id, AuthStatus: status}, nil
}

func (s *Service) publishAuth(ctx context.Context, stationID, idTag, result string) {
	s.publish(ctx, &eventbus.AuthorizationResultEvent{
		BaseEvent: eventbus.NewBaseEvent(eventbus.TypeAuthorizationResult, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "charging"}),
		IdTag:     idTag,
		Result:    result,
	})
}

// MeterMeasurand names a recognized MeterValues sampled value measurand.
type MeterMeasurand int

const (
	MeasurandEnergyActiveImportRegister MeterMeasurand = iota
	MeasurandPowerActiveImport
	MeasurandSoC
)

// MeterSample is one normalized reading from an inbound MeterValues or
// TransactionEvent(Updated) report.
type MeterSample struct {
	Measurand MeterMeasurand
	ValueWh   int64 // for energy samples
	ValueW    int64 // for power samples
	SoC       int   // for SoC samples, 0-100
}

// UpdateMeterValues finds the transaction (by ID if given, else by active
// station/connector lookup), applies the normalized samples, and runs the
// limit check, spawning an auto-stop if the limit is reached.
func (s *Service) UpdateMeterValues(ctx context.Context, stationID string, connectorID int, transactionID *int64, samples []MeterSample, now time.Time) error {
	tx, err := s.resolveTransaction(ctx, stationID, connectorID, transactionID)
	if err != nil {
		return err
	}
	if tx == nil {
		s.log.Warn().Str("station_id", stationID).Int("connector_id", connectorID).Msg("meter values for unknown active transaction")
		return nil
	}

	meterWh, powerW, soc := tx.LastMeterValue, tx.CurrentPowerW, tx.CurrentSoC
	for _, sample := range samples {
		switch sample.Measurand {
		case MeasurandEnergyActiveImportRegister:
			meterWh = sample.ValueWh
		case MeasurandPowerActiveImport:
			powerW = sample.ValueW
		case MeasurandSoC:
			soc = sample.SoC
		}
	}
	tx.UpdateMeterData(meterWh, powerW, soc, now)

	if err := s.repo.Transactions().UpdateMeterData(ctx, tx.ID, meterWh, powerW, soc); err != nil {
		return &ocpperr.RepositoryError{Op: "Transactions.UpdateMeterData", Cause: err}
	}

	s.publish(ctx, &eventbus.MeterValuesReceivedEvent{
		BaseEvent:     eventbus.NewBaseEvent(eventbus.TypeMeterValuesReceived, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "charging"}),
		ConnectorID:   connectorID,
		TransactionID: &tx.ID,
		MeterWh:       meterWh,
		PowerW:        powerW,
		SoC:           soc,
	})

	s.checkLimit(tx)
	return nil
}

func (s *Service) resolveTransaction(ctx context.Context, stationID string, connectorID int, transactionID *int64) (*repository.Transaction, error) {
	if transactionID != nil {
		tx, err := s.repo.Transactions().FindByID(ctx, *transactionID)
		if err != nil {
			if errors.Is(err, ocpperr.ErrNotFound) {
				return nil, nil
			}
			return nil, &ocpperr.RepositoryError{Op: "Transactions.FindByID", Cause: err}
		}
		return tx, nil
	}
	tx, err := s.repo.Transactions().FindActiveByStationConnector(ctx, stationID, connectorID)
	if err != nil {
		if errors.Is(err, ocpperr.ErrNotFound) {
			return nil, nil
		}
		return nil, &ocpperr.RepositoryError{Op: "Transactions.FindActiveByStationConnector", Cause: err}
	}
	return tx, nil
}

// checkLimit evaluates tx's limit predicate and, if reached, spawns an
// auto-stop in its own goroutine — never inline, per the anti-deadlock
// rule: this method is called from the inbound reader's MeterValues
// handling path, which must not block awaiting the very CallResult its
// own RequestStop command would need to observe.
func (s *Service) checkLimit(tx *repository.Transaction) {
	if !tx.IsLimitReached() {
		return
	}
	s.mu.Lock()
	if s.autoStopping[tx.ID] {
		s.mu.Unlock()
		return
	}
	s.autoStopping[tx.ID] = true
	s.mu.Unlock()

	stationID, txID := tx.StationID, tx.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.commander.RequestStop(ctx, stationID, txID); err != nil {
			s.log.Warn().Err(err).Str("station_id", stationID).Int64("transaction_id", txID).Msg("auto-stop command failed")
		}
	}()
}

// StopTransaction verifies the stopping tag's authorization relationship
// to the starting one (warns but still processes the stop when neither
// matches, per the tolerant station-trust model), finalizes the
// transaction, computes billing synchronously, and publishes the
// corresponding events. The returned bool reports whether the stopping
// tag was authorized, for callers (the per-version dispatchers) that must
// echo it back as the stop response's id_tag_info.status.
func (s *Service) StopTransaction(ctx context.Context, transactionID int64, meterStopWh int64, reason, stoppingIdTag string, stoppedAt time.Time) (bool, error) {
	tx, err := s.repo.Transactions().FindByID(ctx, transactionID)
	if err != nil {
		return false, &ocpperr.RepositoryError{Op: "Transactions.FindByID", Cause: err}
	}

	authorized := s.stopIsAuthorized(ctx, tx, stoppingIdTag)
	if !authorized {
		s.log.Warn().Int64("transaction_id", transactionID).Str("starting_tag", tx.IdTag).Str("stopping_tag", stoppingIdTag).
			Msg("stop id tag does not match start id tag or its parent; processing stop anyway")
	}

	tx.Stop(meterStopWh, reason, stoppedAt)
	if err := s.repo.Transactions().Update(ctx, tx); err != nil {
		return authorized, &ocpperr.RepositoryError{Op: "Transactions.Update", Cause: err}
	}

	billing, billErr := s.ComputeBilling(ctx, tx)
	if billErr != nil {
		s.log.Error().Err(billErr).Int64("transaction_id", transactionID).Msg("billing computation failed; publishing zero-cost stop")
		s.publish(ctx, &eventbus.TransactionStoppedEvent{
			BaseEvent:     eventbus.NewBaseEvent(eventbus.TypeTransactionStopped, tx.StationID, eventbus.SeverityWarning, eventbus.Metadata{Source: "charging"}),
			TransactionID: transactionID,
			MeterStopWh:   meterStopWh,
			Reason:        reason,
		})
		return authorized, nil
	}

	s.publish(ctx, &eventbus.TransactionBilledEvent{
		BaseEvent:     eventbus.NewBaseEvent(eventbus.TypeTransactionBilled, tx.StationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "charging"}),
		TransactionID: transactionID,
		TotalCost:     billing.TotalCost,
		Currency:      billing.Currency,
	})
	s.publish(ctx, &eventbus.TransactionStoppedEvent{
		BaseEvent:     eventbus.NewBaseEvent(eventbus.TypeTransactionStopped, tx.StationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "charging"}),
		TransactionID: transactionID,
		MeterStopWh:   meterStopWh,
		Reason:        reason,
	})
	return authorized, nil
}

// stopIsAuthorized reports whether stoppingIdTag equals the starting tag
// or is that tag's registered parent. An empty stoppingIdTag (the stop
// request carried no tag) also counts as authorized.
func (s *Service) stopIsAuthorized(ctx context.Context, tx *repository.Transaction, stoppingIdTag string) bool {
	if stoppingIdTag == "" || stoppingIdTag == tx.IdTag {
		return true
	}
	parent, err := s.repo.IdTags().GetParent(ctx, tx.IdTag)
	if err != nil {
		return false
	}
	return parent != "" && parent == stoppingIdTag
}

func (s *Service) publish(ctx context.Context, ev eventbus.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event_type", string(ev.GetType())).Msg("event publish failed")
	}
}

// ActiveTransactionID resolves the active transaction ID for a station's
// connector, for callers (e.g. a remote-stop API) that only know the
// station-facing coordinates.
func (s *Service) ActiveTransactionID(ctx context.Context, stationID string, connectorID int) (int64, error) {
	tx, err := s.repo.Transactions().FindActiveByStationConnector(ctx, stationID, connectorID)
	if err != nil {
		return 0, &ocpperr.RepositoryError{Op: "Transactions.FindActiveByStationConnector", Cause: err}
	}
	return tx.ID, nil
}
