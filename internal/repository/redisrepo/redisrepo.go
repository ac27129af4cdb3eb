// Package redisrepo implements the repository port against Redis,
// generalizing the teacher's narrow pod-affinity connection cache into a
// full entity store. Every aggregate is stored as a JSON blob under a
// per-entity key prefix; the ping-on-construct and wrapped-error idioms are
// kept from the teacher's storage layer.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ocpp-csms/central-system/internal/config"
	"github.com/ocpp-csms/central-system/internal/ocpperr"
	"github.com/ocpp-csms/central-system/internal/repository"
)

const (
	stationPrefix     = "csms:station:"
	idTagPrefix       = "csms:idtag:"
	transactionPrefix = "csms:tx:"
	txActivePrefix    = "csms:tx:active:" // stationID:connectorID -> tx id
	reservationPrefix = "csms:reservation:"
	reservationSet    = "csms:reservations:all"
	stationSet        = "csms:stations:all"
	tariffPrefix      = "csms:tariff:"
	tariffDefaultKey  = "csms:tariff:default"
	billingPrefix     = "csms:billing:"
	txIDCounterKey    = "csms:tx:next-id"
)

// Store is a Redis-backed implementation of repository.Repository.
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping, matching
// the teacher's storage.NewRedisStorage construction idiom.
func New(cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Store{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Stations() repository.StationRepository         { return stationRepo{s.client} }
func (s *Store) IdTags() repository.IdTagRepository              { return idTagRepo{s.client} }
func (s *Store) Transactions() repository.TransactionRepository  { return transactionRepo{s.client} }
func (s *Store) Reservations() repository.ReservationRepository  { return reservationRepo{s.client} }
func (s *Store) Tariffs() repository.TariffRepository             { return tariffRepo{s.client} }
func (s *Store) Billing() repository.BillingRepository            { return billingRepo{s.client} }

func getJSON(ctx context.Context, client *redis.Client, key string, op string, out interface{}) error {
	val, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ocpperr.ErrNotFound
	}
	if err != nil {
		return &ocpperr.RepositoryError{Op: op, Cause: err}
	}
	if err := json.Unmarshal(val, out); err != nil {
		return &ocpperr.RepositoryError{Op: op, Cause: err}
	}
	return nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, op string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &ocpperr.RepositoryError{Op: op, Cause: err}
	}
	if err := client.Set(ctx, key, data, 0).Err(); err != nil {
		return &ocpperr.RepositoryError{Op: op, Cause: err}
	}
	return nil
}

type stationRepo struct{ client *redis.Client }

func (r stationRepo) FindByID(ctx context.Context, id string) (*repository.Station, error) {
	var st repository.Station
	if err := getJSON(ctx, r.client, stationPrefix+id, "Stations.FindByID", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r stationRepo) Save(ctx context.Context, station *repository.Station) error {
	if err := setJSON(ctx, r.client, stationPrefix+station.ID, "Stations.Save", station); err != nil {
		return err
	}
	r.client.SAdd(ctx, stationSet, station.ID)
	return nil
}

func (r stationRepo) Update(ctx context.Context, station *repository.Station) error {
	return setJSON(ctx, r.client, stationPrefix+station.ID, "Stations.Update", station)
}

func (r stationRepo) ListAll(ctx context.Context) ([]*repository.Station, error) {
	ids, err := r.client.SMembers(ctx, stationSet).Result()
	if err != nil {
		return nil, &ocpperr.RepositoryError{Op: "Stations.ListAll", Cause: err}
	}
	stations := make([]*repository.Station, 0, len(ids))
	for _, id := range ids {
		st, err := r.FindByID(ctx, id)
		if err != nil {
			continue
		}
		stations = append(stations, st)
	}
	return stations, nil
}

func (r stationRepo) UpdateStatus(ctx context.Context, id string, presence repository.PresenceStatus) error {
	st, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	st.Presence = presence
	return r.Update(ctx, st)
}

func (r stationRepo) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, stationPrefix+id).Result()
	if err != nil {
		return false, &ocpperr.RepositoryError{Op: "Stations.Exists", Cause: err}
	}
	return n > 0, nil
}

type idTagRepo struct{ client *redis.Client }

func (r idTagRepo) FindByTag(ctx context.Context, tag string) (*repository.IdTag, error) {
	var t repository.IdTag
	if err := getJSON(ctx, r.client, idTagPrefix+tag, "IdTags.FindByTag", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r idTagRepo) IsValid(ctx context.Context, tag string, now time.Time) (bool, error) {
	t, err := r.FindByTag(ctx, tag)
	if errors.Is(err, ocpperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.IsValid(now), nil
}

func (r idTagRepo) GetAuthStatus(ctx context.Context, tag string) (repository.IdTagStatus, error) {
	t, err := r.FindByTag(ctx, tag)
	if errors.Is(err, ocpperr.ErrNotFound) {
		return repository.IdTagInvalid, nil
	}
	if err != nil {
		return "", err
	}
	return t.OCPPStatus(time.Now().UTC()), nil
}

func (r idTagRepo) GetParent(ctx context.Context, tag string) (string, error) {
	t, err := r.FindByTag(ctx, tag)
	if err != nil {
		return "", err
	}
	return t.ParentTag, nil
}

type transactionRepo struct{ client *redis.Client }

func (r transactionRepo) FindByID(ctx context.Context, id int64) (*repository.Transaction, error) {
	var tx repository.Transaction
	key := fmt.Sprintf("%s%d", transactionPrefix, id)
	if err := getJSON(ctx, r.client, key, "Transactions.FindByID", &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func activeKey(stationID string, connectorID int) string {
	return fmt.Sprintf("%s%s:%d", txActivePrefix, stationID, connectorID)
}

func (r transactionRepo) FindActiveByStationConnector(ctx context.Context, stationID string, connectorID int) (*repository.Transaction, error) {
	idStr, err := r.client.Get(ctx, activeKey(stationID, connectorID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ocpperr.ErrNotFound
	}
	if err != nil {
		return nil, &ocpperr.RepositoryError{Op: "Transactions.FindActiveByStationConnector", Cause: err}
	}
	var id int64
	if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
		return nil, &ocpperr.RepositoryError{Op: "Transactions.FindActiveByStationConnector", Cause: err}
	}
	return r.FindByID(ctx, id)
}

func (r transactionRepo) Save(ctx context.Context, tx *repository.Transaction) error {
	key := fmt.Sprintf("%s%d", transactionPrefix, tx.ID)
	if err := setJSON(ctx, r.client, key, "Transactions.Save", tx); err != nil {
		return err
	}
	if tx.IsActive() {
		if err := r.client.Set(ctx, activeKey(tx.StationID, tx.ConnectorID), tx.ID, 0).Err(); err != nil {
			return &ocpperr.RepositoryError{Op: "Transactions.Save", Cause: err}
		}
	}
	return nil
}

func (r transactionRepo) Update(ctx context.Context, tx *repository.Transaction) error {
	key := fmt.Sprintf("%s%d", transactionPrefix, tx.ID)
	if err := setJSON(ctx, r.client, key, "Transactions.Update", tx); err != nil {
		return err
	}
	if !tx.IsActive() {
		r.client.Del(ctx, activeKey(tx.StationID, tx.ConnectorID))
	}
	return nil
}

func (r transactionRepo) UpdateMeterData(ctx context.Context, id int64, meterWh, powerW int64, soc int) error {
	tx, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	tx.UpdateMeterData(meterWh, powerW, soc, time.Now().UTC())
	return r.Update(ctx, tx)
}

func (r transactionRepo) NextID(ctx context.Context) (int64, error) {
	id, err := r.client.Incr(ctx, txIDCounterKey).Result()
	if err != nil {
		return 0, &ocpperr.RepositoryError{Op: "Transactions.NextID", Cause: err}
	}
	return id, nil
}

type reservationRepo struct{ client *redis.Client }

func (r reservationRepo) key(id int64) string {
	return fmt.Sprintf("%s%d", reservationPrefix, id)
}

func (r reservationRepo) FindByID(ctx context.Context, id int64) (*repository.Reservation, error) {
	var res repository.Reservation
	if err := getJSON(ctx, r.client, r.key(id), "Reservations.FindByID", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r reservationRepo) ListExpired(ctx context.Context) ([]*repository.Reservation, error) {
	ids, err := r.client.SMembers(ctx, reservationSet).Result()
	if err != nil {
		return nil, &ocpperr.RepositoryError{Op: "Reservations.ListExpired", Cause: err}
	}
	now := time.Now().UTC()
	var expired []*repository.Reservation
	for _, idStr := range ids {
		var id int64
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			continue
		}
		res, err := r.FindByID(ctx, id)
		if err != nil {
			continue
		}
		if res.Status == repository.ReservationAccepted && now.After(res.ExpiryDate) {
			expired = append(expired, res)
		}
	}
	return expired, nil
}

func (r reservationRepo) Update(ctx context.Context, res *repository.Reservation) error {
	if err := setJSON(ctx, r.client, r.key(res.ID), "Reservations.Update", res); err != nil {
		return err
	}
	idStr := fmt.Sprintf("%d", res.ID)
	if res.Status == repository.ReservationAccepted {
		r.client.SAdd(ctx, reservationSet, idStr)
	} else {
		r.client.SRem(ctx, reservationSet, idStr)
	}
	return nil
}

type tariffRepo struct{ client *redis.Client }

func (r tariffRepo) FindDefault(ctx context.Context) (*repository.Tariff, error) {
	id, err := r.client.Get(ctx, tariffDefaultKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ocpperr.ErrNoDefaultTariff
	}
	if err != nil {
		return nil, &ocpperr.RepositoryError{Op: "Tariffs.FindDefault", Cause: err}
	}
	return r.FindByID(ctx, id)
}

func (r tariffRepo) FindByID(ctx context.Context, id string) (*repository.Tariff, error) {
	var t repository.Tariff
	if err := getJSON(ctx, r.client, tariffPrefix+id, "Tariffs.FindByID", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type billingRepo struct{ client *redis.Client }

func (r billingRepo) Upsert(ctx context.Context, b *repository.TransactionBilling) error {
	key := fmt.Sprintf("%s%d", billingPrefix, b.TransactionID)
	return setJSON(ctx, r.client, key, "Billing.Upsert", b)
}
