// Package repository defines the persistence port the core consumes:
// stations, connectors, id tags, transactions, reservations, tariffs and
// billing records. Schema and migrations are out of scope; this package
// only names the interfaces and the entities that cross the port.
package repository

import "time"

// ChargingLimitType names the kind of operator-set cap a transaction may
// carry, round-trippable to and from its wire string per
// original_source's transaction model.
type ChargingLimitType string

const (
	LimitTypeEnergy ChargingLimitType = "Energy"
	LimitTypeAmount ChargingLimitType = "Amount"
	LimitTypeSoc    ChargingLimitType = "Soc"
)

// ParseChargingLimitType round-trips a wire string to a ChargingLimitType,
// defaulting unknown values to Energy.
func ParseChargingLimitType(s string) ChargingLimitType {
	switch ChargingLimitType(s) {
	case LimitTypeEnergy, LimitTypeAmount, LimitTypeSoc:
		return ChargingLimitType(s)
	default:
		return LimitTypeEnergy
	}
}

// PresenceStatus classifies a station's liveness, as evaluated by the
// heartbeat sweeper.
type PresenceStatus string

const (
	PresenceOnline      PresenceStatus = "Online"
	PresenceOffline     PresenceStatus = "Offline"
	PresenceUnavailable PresenceStatus = "Unavailable"
	PresenceUnknown     PresenceStatus = "Unknown"
)

// ConnectorStatus is the domain-level connector status vocabulary both
// OCPP 1.6 and 2.0.1 status notifications are mapped into.
type ConnectorStatus string

const (
	ConnectorAvailable     ConnectorStatus = "Available"
	ConnectorPreparing     ConnectorStatus = "Preparing"
	ConnectorCharging      ConnectorStatus = "Charging"
	ConnectorSuspendedEV   ConnectorStatus = "SuspendedEV"
	ConnectorSuspendedEVSE ConnectorStatus = "SuspendedEVSE"
	ConnectorFinishing     ConnectorStatus = "Finishing"
	ConnectorReserved      ConnectorStatus = "Reserved"
	ConnectorUnavailable   ConnectorStatus = "Unavailable"
	ConnectorFaulted       ConnectorStatus = "Faulted"
)

// Connector is a child entity of Station, identified by a small integer (0
// = station-wide).
type Connector struct {
	ID        int
	Status    ConnectorStatus
	ErrorCode string
	Info      string
}

// Station is the aggregate root for a charging station.
type Station struct {
	ID                string              `yaml:"id"`
	ProtocolVersion   string              `yaml:"protocol_version"`
	Vendor            string              `yaml:"vendor"`
	Model             string              `yaml:"model"`
	SerialNumber      string              `yaml:"serial_number"`
	FirmwareVersion   string              `yaml:"firmware_version"`
	ModemIMSI         string              `yaml:"modem_imsi"`
	ModemICCID        string              `yaml:"modem_iccid"`
	MeterType         string              `yaml:"meter_type"`
	MeterSerialNumber string              `yaml:"meter_serial_number"`
	Presence          PresenceStatus      `yaml:"presence"`
	Connectors        map[int]*Connector  `yaml:"-"`
	RegisteredAt      time.Time           `yaml:"-"`
	LastHeartbeat     time.Time           `yaml:"-"`
}

// EnsureConnector returns the connector with the given ID, creating it
// (defaulting to Available) if absent.
func (s *Station) EnsureConnector(id int) *Connector {
	if s.Connectors == nil {
		s.Connectors = make(map[int]*Connector)
	}
	if c, ok := s.Connectors[id]; ok {
		return c
	}
	c := &Connector{ID: id, Status: ConnectorAvailable}
	s.Connectors[id] = c
	return c
}

// IdTagStatus is the authorization token's stored status.
type IdTagStatus string

const (
	IdTagAccepted      IdTagStatus = "Accepted"
	IdTagBlocked       IdTagStatus = "Blocked"
	IdTagExpired       IdTagStatus = "Expired"
	IdTagInvalid       IdTagStatus = "Invalid"
	IdTagConcurrentTx  IdTagStatus = "ConcurrentTx"
)

// IdTag is an authorization token presented to start or stop a session.
type IdTag struct {
	Tag       string      `yaml:"tag"`
	Status    IdTagStatus `yaml:"status"`
	ParentTag string      `yaml:"parent_tag"`
	ExpiresAt *time.Time  `yaml:"expires_at"`
	Active    bool        `yaml:"active"`
}

// OCPPStatus maps the stored token to the status an Authorize/StartTransaction
// response should carry: an expired-by-date token always reports Expired
// regardless of its stored status.
func (t *IdTag) OCPPStatus(now time.Time) IdTagStatus {
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return IdTagExpired
	}
	return t.Status
}

// IsValid reports whether the token currently authorizes a transaction.
func (t *IdTag) IsValid(now time.Time) bool {
	if !t.Active || t.Status != IdTagAccepted {
		return false
	}
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return false
	}
	return true
}

// ReservationStatus is the reservation state machine's vocabulary, grounded
// on original_source/src/domain/reservation/model.rs.
type ReservationStatus string

const (
	ReservationAccepted  ReservationStatus = "Accepted"
	ReservationCancelled ReservationStatus = "Cancelled"
	ReservationExpired   ReservationStatus = "Expired"
	ReservationUsed      ReservationStatus = "Used"
)

// ParseReservationStatus round-trips a stored status string, defaulting an
// unrecognized value to Cancelled (matching the Rust original's fallback).
func ParseReservationStatus(s string) ReservationStatus {
	switch ReservationStatus(s) {
	case ReservationAccepted, ReservationCancelled, ReservationExpired, ReservationUsed:
		return ReservationStatus(s)
	default:
		return ReservationCancelled
	}
}

// Reservation is an operator-granted hold of a connector for a token until
// an expiry.
type Reservation struct {
	ID            int64
	StationID     string
	ConnectorID   int // 0 = any connector
	IdTag         string
	ParentIdTag   string
	ExpiryDate    time.Time
	Status        ReservationStatus
	CreatedAt     time.Time
}

// Cancel transitions an Accepted reservation to Cancelled. A no-op on a
// reservation already in a terminal state.
func (r *Reservation) Cancel() {
	if r.Status == ReservationAccepted {
		r.Status = ReservationCancelled
	}
}

// Expire transitions the reservation to Expired.
func (r *Reservation) Expire() {
	r.Status = ReservationExpired
}

// MarkUsed transitions the reservation to Used, once consumed by a
// StartTransaction.
func (r *Reservation) MarkUsed() {
	r.Status = ReservationUsed
}

// IsActive reports whether the reservation currently holds a connector.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationAccepted
}

// IsExpired reports whether the reservation is already marked Expired, or
// is still Accepted but past its expiry date.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationExpired || (r.Status == ReservationAccepted && now.After(r.ExpiryDate))
}

// TransactionStatus tracks a Transaction's lifecycle.
type TransactionStatus string

const (
	TransactionActive    TransactionStatus = "Active"
	TransactionCompleted TransactionStatus = "Completed"
	TransactionFailed    TransactionStatus = "Failed"
)

// Transaction is one charging session from energization to stop.
type Transaction struct {
	ID               int64
	StationID        string
	ConnectorID      int
	IdTag            string
	MeterStart       int64 // Wh
	StartedAt        time.Time
	LastMeterValue   int64 // Wh
	CurrentPowerW    int64
	CurrentSoC       int
	LastMeterUpdate  time.Time
	LimitType        ChargingLimitType
	LimitValue       float64
	HasLimit         bool
	MeterStop        int64
	StoppedAt        *time.Time
	StopReason       string
	Status           TransactionStatus
	AutoStopIssued   bool
}

// IsActive reports whether the transaction has not yet been stopped.
func (t *Transaction) IsActive() bool {
	return t.StoppedAt == nil
}

// EnergyConsumedWh returns the total energy delivered over the
// transaction's lifetime, from its final meter reading.
func (t *Transaction) EnergyConsumedWh() int64 {
	return t.MeterStop - t.MeterStart
}

// LiveEnergyConsumedWh returns energy delivered so far, from the live
// meter reading, for use while the transaction is still active.
func (t *Transaction) LiveEnergyConsumedWh() int64 {
	return t.LastMeterValue - t.MeterStart
}

// Stop finalizes the transaction's terminal fields.
func (t *Transaction) Stop(meterStop int64, reason string, stoppedAt time.Time) {
	t.MeterStop = meterStop
	t.StopReason = reason
	t.StoppedAt = &stoppedAt
	t.Status = TransactionCompleted
}

// UpdateMeterData refreshes the live meter/power/SoC triple.
func (t *Transaction) UpdateMeterData(meterWh, powerW int64, soc int, now time.Time) {
	t.LastMeterValue = meterWh
	t.CurrentPowerW = powerW
	t.CurrentSoC = soc
	t.LastMeterUpdate = now
}

// IsLimitReached evaluates the Energy/Soc limit predicates. An Amount
// limit always reports false here, and no other component evaluates it.
func (t *Transaction) IsLimitReached() bool {
	if !t.HasLimit {
		return false
	}
	switch t.LimitType {
	case LimitTypeEnergy:
		return float64(t.LiveEnergyConsumedWh())/1000.0 >= t.LimitValue
	case LimitTypeSoc:
		return float64(t.CurrentSoC) >= t.LimitValue
	default:
		return false
	}
}

// TariffType selects which billing formula a Tariff applies.
type TariffType string

const (
	TariffPerKwh     TariffType = "PerKwh"
	TariffPerMinute  TariffType = "PerMinute"
	TariffPerSession TariffType = "PerSession"
	TariffCombined   TariffType = "Combined"
)

// Tariff is a pricing policy applied at billing time. All monetary fields
// are in the smallest currency unit (e.g. cents).
type Tariff struct {
	ID          string      `yaml:"id"`
	Type        TariffType  `yaml:"type"`
	PricePerKwh int64       `yaml:"price_per_kwh"`
	PricePerMin int64       `yaml:"price_per_min"`
	SessionFee  int64       `yaml:"session_fee"`
	Currency    string      `yaml:"currency"`
	MinFee      int64       `yaml:"min_fee"`
	MaxFee      int64       `yaml:"max_fee"` // 0 means unbounded
	ValidFrom   *time.Time  `yaml:"valid_from"`
	ValidUntil  *time.Time  `yaml:"valid_until"`
	IsActive    bool        `yaml:"is_active"`
	IsDefault   bool        `yaml:"is_default"`
}

// IsValid reports whether the tariff is active and within its validity
// window at the given instant.
func (t *Tariff) IsValid(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.ValidFrom != nil && now.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidUntil != nil && now.After(*t.ValidUntil) {
		return false
	}
	return true
}

// BillingStatus tracks a TransactionBilling record's lifecycle.
type BillingStatus string

const (
	BillingPending    BillingStatus = "Pending"
	BillingCalculated BillingStatus = "Calculated"
	BillingInvoiced   BillingStatus = "Invoiced"
	BillingPaid       BillingStatus = "Paid"
	BillingFailed     BillingStatus = "Failed"
)

// TransactionBilling is the derived billing record pinned at stop time.
type TransactionBilling struct {
	TransactionID   int64
	TariffID        string
	EnergyWh        int64
	DurationSeconds int64
	EnergyCost      int64
	TimeCost        int64
	SessionFee      int64
	TotalCost       int64
	Currency        string
	Status          BillingStatus
}
