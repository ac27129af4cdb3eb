package redisrepo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/ocpperr"
	"github.com/ocpp-csms/central-system/internal/repository"
)

func newMockStore(t *testing.T) (*Store, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	return &Store{client: client}, mock
}

func TestStationRepo_FindByID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectGet(stationPrefix + "CP1").RedisNil()

	_, err := store.Stations().FindByID(context.Background(), "CP1")
	assert.ErrorIs(t, err, ocpperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStationRepo_SaveAndFind(t *testing.T) {
	store, mock := newMockStore(t)
	station := &repository.Station{ID: "CP1", Presence: repository.PresenceOnline}
	data, _ := json.Marshal(station)

	mock.ExpectSet(stationPrefix+"CP1", data, 0).SetVal("OK")
	require.NoError(t, store.Stations().Save(context.Background(), station))

	mock.ExpectGet(stationPrefix + "CP1").SetVal(string(data))
	got, err := store.Stations().FindByID(context.Background(), "CP1")
	require.NoError(t, err)
	assert.Equal(t, station.ID, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdTagRepo_IsValid_UnknownTagIsFalseNotError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectGet(idTagPrefix + "unknown").RedisNil()

	valid, err := store.IdTags().IsValid(context.Background(), "unknown", time.Now())
	require.NoError(t, err)
	assert.False(t, valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdTagRepo_GetAuthStatus_Blocked(t *testing.T) {
	store, mock := newMockStore(t)
	tag := &repository.IdTag{Tag: "T1", Status: repository.IdTagBlocked, Active: true}
	data, _ := json.Marshal(tag)
	mock.ExpectGet(idTagPrefix + "T1").SetVal(string(data))

	status, err := store.IdTags().GetAuthStatus(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, repository.IdTagBlocked, status)
}

func TestTransactionRepo_NextID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectIncr(txIDCounterKey).SetVal(42)

	id, err := store.Transactions().NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTariffRepo_FindDefault_NoneConfigured(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectGet(tariffDefaultKey).RedisNil()

	_, err := store.Tariffs().FindDefault(context.Background())
	assert.ErrorIs(t, err, ocpperr.ErrNoDefaultTariff)
}

func TestBillingRepo_Upsert(t *testing.T) {
	store, mock := newMockStore(t)
	billing := &repository.TransactionBilling{TransactionID: 42, TotalCost: 50000, Status: repository.BillingCalculated}
	data, _ := json.Marshal(billing)

	mock.ExpectSet(billingPrefix+"42", data, 0).SetVal("OK")
	require.NoError(t, store.Billing().Upsert(context.Background(), billing))
	require.NoError(t, mock.ExpectationsWereMet())
}
