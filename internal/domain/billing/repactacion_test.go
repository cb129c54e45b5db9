package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan(t *testing.T, first *decimal.Decimal) *RepactacionPlan {
	t.Helper()
	plan, err := NewRepactacionPlan(
		uuid.New(),
		time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), // day of month must be ignored
		6,
		first,
		decimal.NewFromInt(10000),
		decimal.NewFromInt(60000),
	)
	require.NoError(t, err)
	return plan
}

func TestNewRepactacionPlan(t *testing.T) {
	t.Run("rejects non-positive installment count", func(t *testing.T) {
		_, err := NewRepactacionPlan(uuid.New(), time.Now(), 0, nil,
			decimal.NewFromInt(10000), decimal.NewFromInt(60000))
		assert.Error(t, err)
	})

	t.Run("rejects non-positive installment amount", func(t *testing.T) {
		_, err := NewRepactacionPlan(uuid.New(), time.Now(), 6, nil,
			decimal.Zero, decimal.NewFromInt(60000))
		assert.Error(t, err)
	})

	t.Run("rejects non-positive first installment override", func(t *testing.T) {
		neg := decimal.NewFromInt(-1)
		_, err := NewRepactacionPlan(uuid.New(), time.Now(), 6, &neg,
			decimal.NewFromInt(10000), decimal.NewFromInt(60000))
		assert.Error(t, err)
	})

	t.Run("rejects missing customer", func(t *testing.T) {
		_, err := NewRepactacionPlan(uuid.Nil, time.Now(), 6, nil,
			decimal.NewFromInt(10000), decimal.NewFromInt(60000))
		assert.Error(t, err)
	})
}

func TestInstallmentFor(t *testing.T) {
	plan := testPlan(t, nil)
	period := func(y int, m time.Month) time.Time {
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}

	t.Run("start month yields installment 1", func(t *testing.T) {
		due, ok := plan.InstallmentFor(period(2025, time.January))
		require.True(t, ok)
		assert.Equal(t, 1, due.Number)
		assert.True(t, due.Amount.Equal(decimal.NewFromInt(10000)))
	})

	t.Run("March 2025 yields installment 3", func(t *testing.T) {
		due, ok := plan.InstallmentFor(period(2025, time.March))
		require.True(t, ok)
		assert.Equal(t, 3, due.Number)
		assert.Equal(t, 6, due.TotalInstallments)
		assert.True(t, due.OriginalDebt.Equal(decimal.NewFromInt(60000)))
	})

	t.Run("June 2025 yields the final installment", func(t *testing.T) {
		due, ok := plan.InstallmentFor(period(2025, time.June))
		require.True(t, ok)
		assert.Equal(t, 6, due.Number)
	})

	t.Run("July 2025 is out of range", func(t *testing.T) {
		_, ok := plan.InstallmentFor(period(2025, time.July))
		assert.False(t, ok)
		assert.True(t, plan.IsExhausted(period(2025, time.July)))
	})

	t.Run("periods before the start are not due", func(t *testing.T) {
		_, ok := plan.InstallmentFor(period(2024, time.December))
		assert.False(t, ok)
		assert.False(t, plan.IsExhausted(period(2024, time.December)))
	})

	t.Run("year boundary counts across Decembers", func(t *testing.T) {
		longPlan, err := NewRepactacionPlan(uuid.New(),
			period(2024, time.November), 6, nil,
			decimal.NewFromInt(5000), decimal.NewFromInt(30000))
		require.NoError(t, err)
		due, ok := longPlan.InstallmentFor(period(2025, time.February))
		require.True(t, ok)
		assert.Equal(t, 4, due.Number)
	})

	t.Run("first installment override applies only to installment 1", func(t *testing.T) {
		first := decimal.NewFromInt(15000)
		overridden := testPlan(t, &first)

		due1, ok := overridden.InstallmentFor(period(2025, time.January))
		require.True(t, ok)
		assert.True(t, due1.Amount.Equal(first))

		due2, ok := overridden.InstallmentFor(period(2025, time.February))
		require.True(t, ok)
		assert.True(t, due2.Amount.Equal(decimal.NewFromInt(10000)))
	})
}
