// Package memrepo is an in-memory repository.Repository implementation
// used by tests and by cmd/csms outside the production profile. Seed fixtures are loaded from YAML, in the idiom the
// charge-point simulator pack repo uses for its own test fixtures, instead
// of hand-written Go literals for larger tables.
package memrepo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ocpp-csms/central-system/internal/ocpperr"
	"github.com/ocpp-csms/central-system/internal/repository"
)

// Store is a mutex-guarded in-memory repository.Repository.
type Store struct {
	mu           sync.Mutex
	stations     map[string]*repository.Station
	idTags       map[string]*repository.IdTag
	transactions map[int64]*repository.Transaction
	active       map[string]int64 // "stationID:connectorID" -> tx id
	reservations map[int64]*repository.Reservation
	tariffs      map[string]*repository.Tariff
	defaultTariff string
	billing      map[int64]*repository.TransactionBilling
	nextTxID     int64
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{
		stations:     make(map[string]*repository.Station),
		idTags:       make(map[string]*repository.IdTag),
		transactions: make(map[int64]*repository.Transaction),
		active:       make(map[string]int64),
		reservations: make(map[int64]*repository.Reservation),
		tariffs:      make(map[string]*repository.Tariff),
		billing:      make(map[int64]*repository.TransactionBilling),
	}
}

// Fixtures is the YAML shape seed data is loaded from.
type Fixtures struct {
	Stations []repository.Station `yaml:"stations"`
	IdTags   []repository.IdTag   `yaml:"id_tags"`
	Tariffs  []repository.Tariff  `yaml:"tariffs"`
}

// LoadFixtures reads a YAML fixture file and seeds a fresh Store from it.
func LoadFixtures(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, err
	}

	s := New()
	for i := range fx.Stations {
		st := fx.Stations[i]
		s.stations[st.ID] = &st
	}
	for i := range fx.IdTags {
		tag := fx.IdTags[i]
		s.idTags[tag.Tag] = &tag
	}
	for i := range fx.Tariffs {
		tariff := fx.Tariffs[i]
		s.tariffs[tariff.ID] = &tariff
		if tariff.IsDefault {
			s.defaultTariff = tariff.ID
		}
	}
	return s, nil
}

func (s *Store) Stations() repository.StationRepository        { return stationRepo{s} }
func (s *Store) IdTags() repository.IdTagRepository             { return idTagRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository { return transactionRepo{s} }
func (s *Store) Reservations() repository.ReservationRepository { return reservationRepo{s} }
func (s *Store) Tariffs() repository.TariffRepository            { return tariffRepo{s} }
func (s *Store) Billing() repository.BillingRepository            { return billingRepo{s} }

// SeedTariff adds or replaces a tariff directly, for tests that don't want
// to go through a fixture file.
func (s *Store) SeedTariff(t *repository.Tariff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tariffs[t.ID] = t
	if t.IsDefault {
		s.defaultTariff = t.ID
	}
}

// SeedIdTag adds or replaces an id tag directly.
func (s *Store) SeedIdTag(t *repository.IdTag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idTags[t.Tag] = t
}

// SeedStation adds or replaces a station directly.
func (s *Store) SeedStation(st *repository.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations[st.ID] = st
}

type stationRepo struct{ s *Store }

func (r stationRepo) FindByID(_ context.Context, id string) (*repository.Station, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.stations[id]
	if !ok {
		return nil, ocpperr.ErrNotFound
	}
	return st, nil
}

func (r stationRepo) Save(_ context.Context, station *repository.Station) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stations[station.ID] = station
	return nil
}

func (r stationRepo) Update(ctx context.Context, station *repository.Station) error {
	return r.Save(ctx, station)
}

func (r stationRepo) UpdateStatus(_ context.Context, id string, presence repository.PresenceStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.stations[id]
	if !ok {
		return ocpperr.ErrNotFound
	}
	st.Presence = presence
	return nil
}

func (r stationRepo) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.stations[id]
	return ok, nil
}

func (r stationRepo) ListAll(_ context.Context) ([]*repository.Station, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stations := make([]*repository.Station, 0, len(r.s.stations))
	for _, st := range r.s.stations {
		stations = append(stations, st)
	}
	return stations, nil
}

type idTagRepo struct{ s *Store }

func (r idTagRepo) FindByTag(_ context.Context, tag string) (*repository.IdTag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.idTags[tag]
	if !ok {
		return nil, ocpperr.ErrNotFound
	}
	return t, nil
}

func (r idTagRepo) IsValid(ctx context.Context, tag string, now time.Time) (bool, error) {
	t, err := r.FindByTag(ctx, tag)
	if err == ocpperr.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.IsValid(now), nil
}

func (r idTagRepo) GetAuthStatus(ctx context.Context, tag string) (repository.IdTagStatus, error) {
	t, err := r.FindByTag(ctx, tag)
	if err == ocpperr.ErrNotFound {
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

type transactionRepo struct{ s *Store }

func (r transactionRepo) FindByID(_ context.Context, id int64) (*repository.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.transactions[id]
	if !ok {
		return nil, ocpperr.ErrNotFound
	}
	return tx, nil
}

func activeKey(stationID string, connectorID int) string {
	return fmt.Sprintf("%s:%d", stationID, connectorID)
}

func (r transactionRepo) FindActiveByStationConnector(_ context.Context, stationID string, connectorID int) (*repository.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.active[activeKey(stationID, connectorID)]
	if !ok {
		return nil, ocpperr.ErrNotFound
	}
	tx, ok := r.s.transactions[id]
	if !ok {
		return nil, ocpperr.ErrNotFound
	}
	return tx, nil
}

func (r transactionRepo) Save(_ context.Context, tx *repository.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.transactions[tx.ID] = tx
	if tx.IsActive() {
		r.s.active[activeKey(tx.StationID, tx.ConnectorID)] = tx.ID
	}
	return nil
}

func (r transactionRepo) Update(_ context.Context, tx *repository.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.transactions[tx.ID] = tx
	if !tx.IsActive() {
		delete(r.s.active, activeKey(tx.StationID, tx.ConnectorID))
	}
	return nil
}

func (r transactionRepo) UpdateMeterData(_ context.Context, id int64, meterWh, powerW int64, soc int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.transactions[id]
	if !ok {
		return ocpperr.ErrNotFound
	}
	tx.UpdateMeterData(meterWh, powerW, soc, time.Now().UTC())
	return nil
}

func (r transactionRepo) NextID(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextTxID++
	return r.s.nextTxID, nil
}

type reservationRepo struct{ s *Store }

func (r reservationRepo) FindByID(_ context.Context, id int64) (*repository.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, ocpperr.ErrNotFound
	}
	return res, nil
}

func (r reservationRepo) ListExpired(_ context.Context) ([]*repository.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var out []*repository.Reservation
	for _, res := range r.s.reservations {
		if res.Status == repository.ReservationAccepted && now.After(res.ExpiryDate) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r reservationRepo) Update(_ context.Context, res *repository.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.reservations[res.ID] = res
	return nil
}

type tariffRepo struct{ s *Store }

func (r tariffRepo) FindDefault(_ context.Context) (*repository.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.defaultTariff == "" {
		return nil, ocpperr.ErrNoDefaultTariff
	}
	t, ok := r.s.tariffs[r.s.defaultTariff]
	if !ok {
		return nil, ocpperr.ErrNoDefaultTariff
	}
	return t, nil
}

func (r tariffRepo) FindByID(_ context.Context, id string) (*repository.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tariffs[id]
	if !ok {
		return nil, ocpperr.ErrNotFound
	}
	return t, nil
}

type billingRepo struct{ s *Store }

func (r billingRepo) Upsert(_ context.Context, b *repository.TransactionBilling) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.billing[b.TransactionID] = b
	return nil
}
