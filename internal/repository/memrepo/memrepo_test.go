package memrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/ocpperr"
	"github.com/ocpp-csms/central-system/internal/repository"
)

func TestStore_StationRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Stations().FindByID(ctx, "CP1")
	assert.ErrorIs(t, err, ocpperr.ErrNotFound)

	require.NoError(t, s.Stations().Save(ctx, &repository.Station{ID: "CP1", Presence: repository.PresenceOffline}))
	got, err := s.Stations().FindByID(ctx, "CP1")
	require.NoError(t, err)
	assert.Equal(t, repository.PresenceOffline, got.Presence)

	require.NoError(t, s.Stations().UpdateStatus(ctx, "CP1", repository.PresenceOnline))
	got, err = s.Stations().FindByID(ctx, "CP1")
	require.NoError(t, err)
	assert.Equal(t, repository.PresenceOnline, got.Presence)

	exists, err := s.Stations().Exists(ctx, "CP1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_IdTagIsValid(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name string
		tag  *repository.IdTag
		want bool
	}{
		{"accepted and active", &repository.IdTag{Tag: "T1", Status: repository.IdTagAccepted, Active: true}, true},
		{"blocked", &repository.IdTag{Tag: "T2", Status: repository.IdTagBlocked, Active: true}, false},
		{"inactive", &repository.IdTag{Tag: "T3", Status: repository.IdTagAccepted, Active: false}, false},
		{"expired by date", &repository.IdTag{Tag: "T4", Status: repository.IdTagAccepted, Active: true, ExpiresAt: &past}, false},
		{"not yet expired", &repository.IdTag{Tag: "T5", Status: repository.IdTagAccepted, Active: true, ExpiresAt: &future}, true},
	}

	s := New()
	for _, tt := range tests {
		s.SeedIdTag(tt.tag)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, err := s.IdTags().IsValid(ctx, tt.tag.Tag, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, valid)
		})
	}
}

func TestStore_IdTagUnknownIsFalseNotError(t *testing.T) {
	s := New()
	valid, err := s.IdTags().IsValid(context.Background(), "ghost", time.Now())
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestStore_TransactionActiveLookup(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := &repository.Transaction{ID: 1, StationID: "CP1", ConnectorID: 1, MeterStart: 1000, StartedAt: time.Now()}
	require.NoError(t, s.Transactions().Save(ctx, tx))

	active, err := s.Transactions().FindActiveByStationConnector(ctx, "CP1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active.ID)

	tx.Stop(5000, "Local", time.Now())
	require.NoError(t, s.Transactions().Update(ctx, tx))

	_, err = s.Transactions().FindActiveByStationConnector(ctx, "CP1", 1)
	assert.ErrorIs(t, err, ocpperr.ErrNotFound)
}

func TestStore_TransactionNextIDMonotonic(t *testing.T) {
	s := New()
	ctx := context.Background()
	first, err := s.Transactions().NextID(ctx)
	require.NoError(t, err)
	second, err := s.Transactions().NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestStore_ReservationListExpired(t *testing.T) {
	s := New()
	ctx := context.Background()

	active := &repository.Reservation{ID: 1, Status: repository.ReservationAccepted, ExpiryDate: time.Now().Add(time.Hour)}
	pastDue := &repository.Reservation{ID: 2, Status: repository.ReservationAccepted, ExpiryDate: time.Now().Add(-time.Hour)}
	used := &repository.Reservation{ID: 3, Status: repository.ReservationUsed, ExpiryDate: time.Now().Add(-time.Hour)}

	for _, r := range []*repository.Reservation{active, pastDue, used} {
		require.NoError(t, s.Reservations().Update(ctx, r))
	}

	expired, err := s.Reservations().ListExpired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, int64(2), expired[0].ID)
}

func TestStore_TariffDefault(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Tariffs().FindDefault(ctx)
	assert.ErrorIs(t, err, ocpperr.ErrNoDefaultTariff)

	s.SeedTariff(&repository.Tariff{ID: "standard", Type: repository.TariffPerKwh, PricePerKwh: 35, IsActive: true, IsDefault: true})
	got, err := s.Tariffs().FindDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, "standard", got.ID)
}

func TestStore_BillingUpsert(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := &repository.TransactionBilling{TransactionID: 7, TotalCost: 1234, Status: repository.BillingCalculated}
	require.NoError(t, s.Billing().Upsert(ctx, b))
	assert.Equal(t, b, s.billing[7])
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.yaml")
	yamlData := `
stations:
  - id: CP1
    presence: Online
id_tags:
  - tag: VALIDTAG1
    status: Accepted
    active: true
tariffs:
  - id: standard
    type: PerKwh
    price_per_kwh: 35
    is_active: true
    is_default: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	s, err := LoadFixtures(path)
	require.NoError(t, err)

	ctx := context.Background()
	st, err := s.Stations().FindByID(ctx, "CP1")
	require.NoError(t, err)
	assert.Equal(t, repository.PresenceOnline, st.Presence)

	valid, err := s.IdTags().IsValid(ctx, "VALIDTAG1", time.Now())
	require.NoError(t, err)
	assert.True(t, valid)

	tariff, err := s.Tariffs().FindDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(35), tariff.PricePerKwh)
}

func TestLoadFixtures_MissingFile(t *testing.T) {
	_, err := LoadFixtures("/nonexistent/fixtures.yaml")
	assert.Error(t, err)
}
