package charging

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ocpp-csms/central-system/internal/repository"
)

func TestCalculateCost_PerKwh(t *testing.T) {
	tariff := &repository.Tariff{Type: repository.TariffPerKwh, PricePerKwh: 30}
	energyCost, timeCost, sessionFee, subtotal := CalculateCost(tariff, 10_000, 3600)
	assert.Equal(t, int64(300), energyCost) // 10 kWh * 30
	assert.Equal(t, int64(0), sessionFee)
	_ = timeCost
	assert.Equal(t, int64(300), subtotal)
}

func TestCalculateCost_PerMinute(t *testing.T) {
	tariff := &repository.Tariff{Type: repository.TariffPerMinute, PricePerMin: 5}
	_, timeCost, _, subtotal := CalculateCost(tariff, 0, 600) // 10 minutes
	assert.Equal(t, int64(50), timeCost)
	assert.Equal(t, int64(50), subtotal)
}

func TestCalculateCost_PerSession(t *testing.T) {
	tariff := &repository.Tariff{Type: repository.TariffPerSession, SessionFee: 199}
	_, _, fee, subtotal := CalculateCost(tariff, 5000, 1200)
	assert.Equal(t, int64(199), fee)
	assert.Equal(t, int64(199), subtotal)
}

func TestCalculateCost_Combined_TruncatesEachTermBeforeSumming(t *testing.T) {
	// energy_kwh = 1.999 -> cost 1.999*100 = 199.9 -> truncates to 199
	// duration_min = 179/60 = 2.983 -> cost 29.83 -> truncates to 29
	// per-term truncation sums to 199+29+50 = 278, whereas summing
	// 199.9+29.83+50 = 279.73 first and truncating once would give 279.
	tariff := &repository.Tariff{Type: repository.TariffCombined, PricePerKwh: 100, PricePerMin: 10, SessionFee: 50}
	energyCost, timeCost, sessionFee, subtotal := CalculateCost(tariff, 1999, 179) // 1.999 kWh, 2.983 min
	assert.Equal(t, int64(199), energyCost)
	assert.Equal(t, int64(29), timeCost)
	assert.Equal(t, int64(50), sessionFee)
	assert.Equal(t, int64(199+29+50), subtotal)
}

func TestClampCost_AppliesMinFee(t *testing.T) {
	tariff := &repository.Tariff{MinFee: 100, MaxFee: 0}
	assert.Equal(t, int64(100), clampCost(50, tariff))
	assert.Equal(t, int64(150), clampCost(150, tariff))
}

func TestClampCost_AppliesMaxFeeWhenPositive(t *testing.T) {
	tariff := &repository.Tariff{MinFee: 0, MaxFee: 500}
	assert.Equal(t, int64(500), clampCost(900, tariff))
	assert.Equal(t, int64(400), clampCost(400, tariff))
}

func TestClampCost_UnboundedWhenMaxFeeZero(t *testing.T) {
	tariff := &repository.Tariff{MinFee: 0, MaxFee: 0}
	assert.Equal(t, int64(10_000_000), clampCost(10_000_000, tariff))
}
