package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentLifecycle(t *testing.T) {
	customerID := uuid.New()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	newPending := func(t *testing.T) *Payment {
		t.Helper()
		p, err := NewPayment(customerID, decimal.NewFromInt(10000), PaymentMethodCash)
		require.NoError(t, err)
		return p
	}

	t.Run("registration validates its inputs", func(t *testing.T) {
		_, err := NewPayment(uuid.Nil, decimal.NewFromInt(100), PaymentMethodCash)
		assert.Error(t, err)
		_, err = NewPayment(customerID, decimal.Zero, PaymentMethodCash)
		assert.Error(t, err)
		_, err = NewPayment(customerID, decimal.NewFromInt(100), PaymentMethod("CHEQUE"))
		assert.Error(t, err)
	})

	t.Run("completing records the timestamp and emits an event", func(t *testing.T) {
		p := newPending(t)
		require.NoError(t, p.Complete(now))

		assert.Equal(t, PaymentStatusCompleted, p.Status)
		require.NotNil(t, p.CompletedAt)
		assert.True(t, p.CompletedAt.Equal(now))
		require.Len(t, p.GetDomainEvents(), 1)
		assert.Equal(t, EventTypePaymentCompleted, p.GetDomainEvents()[0].EventType())
	})

	t.Run("only pending payments can complete or fail", func(t *testing.T) {
		p := newPending(t)
		require.NoError(t, p.Complete(now))
		assert.Error(t, p.Complete(now))
		assert.Error(t, p.Fail())
	})

	t.Run("failing a pending payment keeps it out of the ledger", func(t *testing.T) {
		p := newPending(t)
		require.NoError(t, p.Fail())
		assert.Equal(t, PaymentStatusFailed, p.Status)
		assert.False(t, p.Status.CountsTowardLedger())
	})

	t.Run("reversal requires a completed payment", func(t *testing.T) {
		p := newPending(t)
		assert.Error(t, p.Reverse("typo", now))

		require.NoError(t, p.Complete(now))
		require.NoError(t, p.Reverse("typo", now.Add(time.Hour)))
		assert.Equal(t, PaymentStatusReversed, p.Status)
		assert.Equal(t, "typo", p.ReversalReason)
		assert.False(t, p.Status.CountsTowardLedger())
	})

	t.Run("a reversed payment cannot be reversed again", func(t *testing.T) {
		p := newPending(t)
		require.NoError(t, p.Complete(now))
		require.NoError(t, p.Reverse("first", now))
		assert.Error(t, p.Reverse("second", now))
	})
}
