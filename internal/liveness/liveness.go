// Package liveness runs the two periodic sweepers (C7): the heartbeat
// monitor, which reclassifies every station's presence from its last
// heartbeat and the Session Registry's live-connection view, and the
// reservation expiry sweep, which transitions overdue Accepted
// reservations to Expired. Both are grounded on the teacher's
// ticker-plus-select periodic-task idiom from cmd/gateway/main.go,
// generalized from a stats-logging goroutine to state-mutating
// sweepers gated on a shutdown context.
package liveness

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/repository"
)

// DefaultHeartbeatPeriod is the default period between heartbeat sweeps.
const DefaultHeartbeatPeriod = 60 * time.Second

// DefaultUnavailableThreshold is the elapsed-since-last-heartbeat cutoff
// past which a station is considered stalled.
const DefaultUnavailableThreshold = 600 * time.Second

// DefaultReservationSweepPeriod is the default period between
// reservation expiry sweeps.
const DefaultReservationSweepPeriod = 60 * time.Second

// ConnectivityChecker reports whether a station currently has a live
// session, decoupling the sweeper from sessionregistry.Registry's
// concrete type.
type ConnectivityChecker interface {
	IsConnected(stationID string) bool
}

// HeartbeatMonitor periodically reclassifies station presence.
type HeartbeatMonitor struct {
	stationRepo          repository.StationRepository
	connectivity         ConnectivityChecker
	publisher            eventbus.Publisher
	clock                clock.Clock
	period               time.Duration
	unavailableThreshold time.Duration
	log                  zerolog.Logger
}

// NewHeartbeatMonitor builds a HeartbeatMonitor with the spec's default
// period and threshold; override them with WithPeriod and
// WithUnavailableThreshold before calling Run.
func NewHeartbeatMonitor(stationRepo repository.StationRepository, connectivity ConnectivityChecker, publisher eventbus.Publisher, c clock.Clock, log zerolog.Logger) *HeartbeatMonitor {
	if c == nil {
		c = clock.New()
	}
	return &HeartbeatMonitor{
		stationRepo:          stationRepo,
		connectivity:         connectivity,
		publisher:            publisher,
		clock:                c,
		period:               DefaultHeartbeatPeriod,
		unavailableThreshold: DefaultUnavailableThreshold,
		log:                  log.With().Str("component", "liveness.heartbeat").Logger(),
	}
}

// WithPeriod overrides the sweep period.
func (m *HeartbeatMonitor) WithPeriod(d time.Duration) *HeartbeatMonitor {
	m.period = d
	return m
}

// WithUnavailableThreshold overrides the stall threshold.
func (m *HeartbeatMonitor) WithUnavailableThreshold(d time.Duration) *HeartbeatMonitor {
	m.unavailableThreshold = d
	return m
}

// classify applies the heartbeat monitor's five-way presence table.
func classify(connected bool, neverHeard bool, elapsed time.Duration, threshold time.Duration) repository.PresenceStatus {
	if neverHeard {
		return repository.PresenceUnknown
	}
	switch {
	case connected && elapsed <= threshold:
		return repository.PresenceOnline
	case connected && elapsed > threshold:
		return repository.PresenceUnavailable
	case !connected && elapsed <= threshold:
		return repository.PresenceOffline
	default: // !connected && elapsed > threshold
		return repository.PresenceUnavailable
	}
}

// SweepOnce runs one heartbeat classification pass over every station,
// persisting and publishing only the stations whose presence changed.
func (m *HeartbeatMonitor) SweepOnce(ctx context.Context) error {
	stations, err := m.stationRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := m.clock.Now()
	for _, station := range stations {
		neverHeard := station.LastHeartbeat.IsZero()
		elapsed := now.Sub(station.LastHeartbeat)
		connected := m.connectivity.IsConnected(station.ID)

		newStatus := classify(connected, neverHeard, elapsed, m.unavailableThreshold)
		if newStatus == station.Presence {
			continue
		}
		previous := station.Presence
		if err := m.stationRepo.UpdateStatus(ctx, station.ID, newStatus); err != nil {
			m.log.Warn().Err(err).Str("station_id", station.ID).Msg("failed to persist presence change")
			continue
		}
		m.publish(ctx, station.ID, string(previous), string(newStatus))
	}
	return nil
}

func (m *HeartbeatMonitor) publish(ctx context.Context, stationID, previous, next string) {
	if m.publisher == nil {
		return
	}
	ev := &eventbus.StationStatusChangedEvent{
		BaseEvent:      eventbus.NewBaseEvent(eventbus.TypeStationStatusChanged, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "liveness"}),
		PreviousStatus: previous,
		NewStatus:      next,
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.log.Warn().Err(err).Str("station_id", stationID).Msg("status-change event publish failed")
	}
}

// Run sweeps on a ticker at the configured period until ctx is
// cancelled, matching the teacher's ticker-plus-shutdown-select idiom.
func (m *HeartbeatMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	m.log.Info().Dur("period", m.period).Dur("unavailable_threshold", m.unavailableThreshold).Msg("heartbeat monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("heartbeat monitor stopping")
			return
		case <-ticker.C:
			if err := m.SweepOnce(ctx); err != nil {
				m.log.Warn().Err(err).Msg("heartbeat sweep failed")
			}
		}
	}
}

// ReservationSweeper periodically expires overdue reservations. The
// expiry comparison against "now" happens inside the repository port's
// ListExpired, the same way both redisrepo and memrepo implement it —
// this sweeper only walks the result and persists the transition.
type ReservationSweeper struct {
	reservations repository.ReservationRepository
	period       time.Duration
	log          zerolog.Logger
}

// NewReservationSweeper builds a ReservationSweeper with the spec's
// default period.
func NewReservationSweeper(reservations repository.ReservationRepository, log zerolog.Logger) *ReservationSweeper {
	return &ReservationSweeper{
		reservations: reservations,
		period:       DefaultReservationSweepPeriod,
		log:          log.With().Str("component", "liveness.reservations").Logger(),
	}
}

// WithPeriod overrides the sweep period.
func (s *ReservationSweeper) WithPeriod(d time.Duration) *ReservationSweeper {
	s.period = d
	return s
}

// SweepOnce transitions every reservation the repository reports as
// expired into the Expired state.
func (s *ReservationSweeper) SweepOnce(ctx context.Context) error {
	expired, err := s.reservations.ListExpired(ctx)
	if err != nil {
		return err
	}
	for _, r := range expired {
		r.Expire()
		if err := s.reservations.Update(ctx, r); err != nil {
			s.log.Warn().Err(err).Int64("reservation_id", r.ID).Msg("failed to persist reservation expiry")
		}
	}
	return nil
}

// Run sweeps on a ticker at the configured period until ctx is
// cancelled.
func (s *ReservationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	s.log.Info().Dur("period", s.period).Msg("reservation sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reservation sweeper stopping")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.log.Warn().Err(err).Msg("reservation sweep failed")
			}
		}
	}
}
