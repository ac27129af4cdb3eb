package charging

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ocpp-csms/central-system/internal/ocpperr"
	"github.com/ocpp-csms/central-system/internal/repository"
)

// truncToInt64 truncates toward zero, matching the tariff model's integer
// cost semantics: a fractional multiplication result always rounds down
// in magnitude, never to the nearest integer.
func truncToInt64(f float64) int64 {
	return int64(f)
}

// CalculateCost computes the subtotal for one tariff against one
// energy/duration pair, without the min/max clamp. Each term is
// truncated toward zero individually before being summed for a Combined
// tariff — matching the reference billing model, where summing first and
// truncating once would occasionally produce a one-unit-higher total.
func CalculateCost(tariff *repository.Tariff, energyWh, durationSeconds int64) (energyCost, timeCost, sessionFee, subtotal int64) {
	energyKwh := float64(energyWh) / 1000.0
	durationMin := float64(durationSeconds) / 60.0

	energyCost = truncToInt64(energyKwh * float64(tariff.PricePerKwh))
	timeCost = truncToInt64(durationMin * float64(tariff.PricePerMin))
	sessionFee = tariff.SessionFee

	switch tariff.Type {
	case repository.TariffPerKwh:
		subtotal = energyCost
	case repository.TariffPerMinute:
		subtotal = timeCost
	case repository.TariffPerSession:
		subtotal = sessionFee
	case repository.TariffCombined:
		subtotal = energyCost + timeCost + sessionFee
	default:
		subtotal = energyCost + timeCost + sessionFee
	}
	return
}

// clampCost applies the tariff's min/max fee bounds. A zero max_fee means
// unbounded.
func clampCost(subtotal int64, tariff *repository.Tariff) int64 {
	cost := subtotal
	if cost < tariff.MinFee {
		cost = tariff.MinFee
	}
	if tariff.MaxFee > 0 && cost > tariff.MaxFee {
		cost = tariff.MaxFee
	}
	return cost
}

// billingBreaker guards the billing repository's Upsert call: a string of
// transient failures trips the breaker, failing fast instead of retrying
// inline on the synchronous StopTransaction path.
var billingBreakerSettings = gobreaker.Settings{
	Name:        "billing-upsert",
	MaxRequests: 3,
	Interval:    time.Minute,
	Timeout:     30 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		if counts.Requests < 3 {
			return false
		}
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return failureRatio >= 0.6
	},
}

// ComputeBilling resolves the system default tariff (every transaction is
// billed against it), calculates the cost breakdown, clamps it, and upserts the resulting
// TransactionBilling record through the circuit breaker.
func (s *Service) ComputeBilling(ctx context.Context, tx *repository.Transaction) (*repository.TransactionBilling, error) {
	tariff, err := s.resolveTariff(ctx, tx)
	if err != nil {
		return nil, err
	}

	energyWh := tx.EnergyConsumedWh()
	var durationSeconds int64
	if tx.StoppedAt != nil {
		durationSeconds = int64(tx.StoppedAt.Sub(tx.StartedAt).Seconds())
	}

	energyCost, timeCost, sessionFee, subtotal := CalculateCost(tariff, energyWh, durationSeconds)
	total := clampCost(subtotal, tariff)

	billing := &repository.TransactionBilling{
		TransactionID:   tx.ID,
		TariffID:        tariff.ID,
		EnergyWh:        energyWh,
		DurationSeconds: durationSeconds,
		EnergyCost:      energyCost,
		TimeCost:        timeCost,
		SessionFee:      sessionFee,
		TotalCost:       total,
		Currency:        tariff.Currency,
		Status:          repository.BillingCalculated,
	}

	if _, err := s.billingBreaker().Execute(func() (interface{}, error) {
		return nil, s.repo.Billing().Upsert(ctx, billing)
	}); err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ocpperr.RepositoryError{Op: "Billing.Upsert", Cause: err}
		}
		return nil, &ocpperr.RepositoryError{Op: "Billing.Upsert", Cause: err}
	}
	return billing, nil
}

func (s *Service) resolveTariff(ctx context.Context, tx *repository.Transaction) (*repository.Tariff, error) {
	tariff, err := s.repo.Tariffs().FindDefault(ctx)
	if err != nil {
		if errors.Is(err, ocpperr.ErrNotFound) {
			return nil, ocpperr.ErrNoDefaultTariff
		}
		return nil, &ocpperr.RepositoryError{Op: "Tariffs.FindDefault", Cause: err}
	}
	return tariff, nil
}

func (s *Service) billingBreaker() *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.breaker == nil {
		s.breaker = gobreaker.NewCircuitBreaker(billingBreakerSettings)
	}
	return s.breaker
}
