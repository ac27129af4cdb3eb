package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/repository"
	"github.com/ocpp-csms/central-system/internal/repository/memrepo"
)

type fakeConnectivity struct {
	connected map[string]bool
}

func (f *fakeConnectivity) IsConnected(stationID string) bool { return f.connected[stationID] }

func TestClassify_FiveWayTable(t *testing.T) {
	threshold := 600 * time.Second
	tests := []struct {
		name       string
		connected  bool
		neverHeard bool
		elapsed    time.Duration
		want       repository.PresenceStatus
	}{
		{"never heard from", false, true, 0, repository.PresenceUnknown},
		{"connected within threshold -> online", true, false, 100 * time.Second, repository.PresenceOnline},
		{"connected past threshold -> unavailable", true, false, 700 * time.Second, repository.PresenceUnavailable},
		{"disconnected within threshold -> offline", false, false, 100 * time.Second, repository.PresenceOffline},
		{"disconnected past threshold -> unavailable", false, false, 700 * time.Second, repository.PresenceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.connected, tt.neverHeard, tt.elapsed, threshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeartbeatMonitor_SweepOnce_PersistsOnlyOnChange(t *testing.T) {
	store := memrepo.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SeedStation(&repository.Station{ID: "CP1", Presence: repository.PresenceOnline, LastHeartbeat: now.Add(-30 * time.Second)})
	store.SeedStation(&repository.Station{ID: "CP2", Presence: repository.PresenceOnline, LastHeartbeat: now.Add(-900 * time.Second)})

	conn := &fakeConnectivity{connected: map[string]bool{"CP1": true, "CP2": true}}
	pub := eventbus.NewFakePublisher()
	fc := clock.NewFake(now)

	mon := NewHeartbeatMonitor(store.Stations(), conn, pub, fc, zerolog.Nop())
	require.NoError(t, mon.SweepOnce(context.Background()))

	cp1, _ := store.Stations().FindByID(context.Background(), "CP1")
	assert.Equal(t, repository.PresenceOnline, cp1.Presence) // unchanged, no event

	cp2, _ := store.Stations().FindByID(context.Background(), "CP2")
	assert.Equal(t, repository.PresenceUnavailable, cp2.Presence) // connected but stalled

	assert.Equal(t, 1, pub.Count(eventbus.TypeStationStatusChanged))
}

func TestHeartbeatMonitor_NeverHeardIsUnknown(t *testing.T) {
	store := memrepo.New()
	store.SeedStation(&repository.Station{ID: "CP3", Presence: repository.PresenceOffline})

	conn := &fakeConnectivity{connected: map[string]bool{}}
	fc := clock.NewFake(time.Now())
	mon := NewHeartbeatMonitor(store.Stations(), conn, nil, fc, zerolog.Nop())
	require.NoError(t, mon.SweepOnce(context.Background()))

	cp3, _ := store.Stations().FindByID(context.Background(), "CP3")
	assert.Equal(t, repository.PresenceUnknown, cp3.Presence)
}

func TestReservationSweeper_ExpiresOverdueAccepted(t *testing.T) {
	store := memrepo.New()
	now := time.Now().UTC()

	ctx := context.Background()
	require.NoError(t, store.Reservations().Update(ctx, &repository.Reservation{ID: 1, Status: repository.ReservationAccepted, ExpiryDate: now.Add(-time.Minute)}))
	require.NoError(t, store.Reservations().Update(ctx, &repository.Reservation{ID: 2, Status: repository.ReservationAccepted, ExpiryDate: now.Add(time.Hour)}))

	sweeper := NewReservationSweeper(store.Reservations(), zerolog.Nop())
	require.NoError(t, sweeper.SweepOnce(ctx))

	r1, err := store.Reservations().FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, repository.ReservationExpired, r1.Status)

	r2, err := store.Reservations().FindByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, repository.ReservationAccepted, r2.Status)
}

func TestHeartbeatMonitor_Run_StopsOnContextCancel(t *testing.T) {
	store := memrepo.New()
	conn := &fakeConnectivity{connected: map[string]bool{}}
	mon := NewHeartbeatMonitor(store.Stations(), conn, nil, clock.New(), zerolog.Nop()).WithPeriod(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
