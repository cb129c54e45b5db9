package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func target(number string, issued time.Time, outstanding int64) AllocationTarget {
	return AllocationTarget{
		InvoiceID:         uuid.New(),
		InvoiceNumber:     number,
		IssueDate:         issued,
		OutstandingAmount: decimal.NewFromInt(outstanding),
	}
}

func TestFIFOAllocate(t *testing.T) {
	allocator := NewFIFOAllocator(DefaultEpsilon)
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	t.Run("pays oldest first, partial next, newest untouched", func(t *testing.T) {
		targets := []AllocationTarget{
			target("B-0003", mar, 3000),
			target("B-0001", jan, 5000),
			target("B-0002", feb, 8000),
		}
		result, err := allocator.Allocate(decimal.NewFromInt(10000), targets)
		require.NoError(t, err)

		require.Len(t, result.Allocations, 2)
		assert.Equal(t, "B-0001", result.Allocations[0].InvoiceNumber)
		assert.True(t, result.Allocations[0].Amount.Equal(decimal.NewFromInt(5000)))
		assert.True(t, result.Allocations[0].FullyPaid)

		assert.Equal(t, "B-0002", result.Allocations[1].InvoiceNumber)
		assert.True(t, result.Allocations[1].Amount.Equal(decimal.NewFromInt(5000)))
		assert.False(t, result.Allocations[1].FullyPaid)

		assert.True(t, result.TotalAllocated.Equal(decimal.NewFromInt(10000)))
		assert.True(t, result.CreditRemaining.IsZero())
		assert.True(t, result.AnyFullyPaid)
	})

	t.Run("overpayment surfaces the residual as credit", func(t *testing.T) {
		targets := []AllocationTarget{target("B-0001", jan, 8000)}
		result, err := allocator.Allocate(decimal.NewFromInt(10000), targets)
		require.NoError(t, err)

		require.Len(t, result.Allocations, 1)
		assert.True(t, result.Allocations[0].FullyPaid)
		assert.True(t, result.TotalAllocated.Equal(decimal.NewFromInt(8000)))
		assert.True(t, result.CreditRemaining.Equal(decimal.NewFromInt(2000)))
	})

	t.Run("no outstanding invoices means the whole payment is credit", func(t *testing.T) {
		result, err := allocator.Allocate(decimal.NewFromInt(4000), nil)
		require.NoError(t, err)
		assert.Empty(t, result.Allocations)
		assert.True(t, result.CreditRemaining.Equal(decimal.NewFromInt(4000)))
		assert.False(t, result.AnyFullyPaid)
	})

	t.Run("conservation holds for every input", func(t *testing.T) {
		targets := []AllocationTarget{
			target("B-0001", jan, 1234),
			target("B-0002", feb, 567),
			target("B-0003", mar, 8901),
		}
		for _, amount := range []int64{1, 500, 1234, 1235, 10702, 20000} {
			p := decimal.NewFromInt(amount)
			result, err := allocator.Allocate(p, targets)
			require.NoError(t, err)
			assert.True(t, result.TotalAllocated.Add(result.CreditRemaining).Equal(p),
				"conservation broken for payment %d", amount)
		}
	})

	t.Run("same inputs produce identical allocations", func(t *testing.T) {
		targets := []AllocationTarget{
			target("B-0002", feb, 8000),
			target("B-0001", jan, 5000),
		}
		first, err := allocator.Allocate(decimal.NewFromInt(7000), targets)
		require.NoError(t, err)
		second, err := allocator.Allocate(decimal.NewFromInt(7000), targets)
		require.NoError(t, err)
		assert.Equal(t, first.Allocations, second.Allocations)
		assert.True(t, first.CreditRemaining.Equal(second.CreditRemaining))
	})

	t.Run("does not reorder the caller's slice", func(t *testing.T) {
		targets := []AllocationTarget{
			target("B-0002", feb, 8000),
			target("B-0001", jan, 5000),
		}
		_, err := allocator.Allocate(decimal.NewFromInt(7000), targets)
		require.NoError(t, err)
		assert.Equal(t, "B-0002", targets[0].InvoiceNumber)
	})

	t.Run("invoice number breaks same-day ties", func(t *testing.T) {
		targets := []AllocationTarget{
			target("B-0011", jan, 3000),
			target("B-0010", jan, 3000),
		}
		result, err := allocator.Allocate(decimal.NewFromInt(3000), targets)
		require.NoError(t, err)
		require.Len(t, result.Allocations, 1)
		assert.Equal(t, "B-0010", result.Allocations[0].InvoiceNumber)
	})

	t.Run("settled invoices are skipped", func(t *testing.T) {
		settled := target("B-0001", jan, 0)
		open := target("B-0002", feb, 5000)
		result, err := allocator.Allocate(decimal.NewFromInt(2000), []AllocationTarget{settled, open})
		require.NoError(t, err)
		require.Len(t, result.Allocations, 1)
		assert.Equal(t, "B-0002", result.Allocations[0].InvoiceNumber)
	})

	t.Run("near-exact payment within epsilon marks the invoice fully paid", func(t *testing.T) {
		targets := []AllocationTarget{{
			InvoiceID:         uuid.New(),
			InvoiceNumber:     "B-0001",
			IssueDate:         jan,
			OutstandingAmount: decimal.NewFromFloat(5000.005),
		}}
		result, err := allocator.Allocate(decimal.NewFromInt(5000), targets)
		require.NoError(t, err)
		require.Len(t, result.Allocations, 1)
		assert.True(t, result.Allocations[0].FullyPaid)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := allocator.Allocate(decimal.Zero, nil)
		assert.Error(t, err)
		_, err = allocator.Allocate(decimal.NewFromInt(-100), nil)
		assert.Error(t, err)
	})
}

func TestSortTargetsFIFO(t *testing.T) {
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)

	targets := []AllocationTarget{
		target("B-0003", feb, 100),
		target("B-0002", jan, 100),
		target("B-0001", jan, 100),
	}
	SortTargetsFIFO(targets)

	assert.Equal(t, "B-0001", targets[0].InvoiceNumber)
	assert.Equal(t, "B-0002", targets[1].InvoiceNumber)
	assert.Equal(t, "B-0003", targets[2].InvoiceNumber)
}
