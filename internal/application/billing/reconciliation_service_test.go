package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCustomer(t *testing.T, store *memStore, code string) *billing.Customer {
	t.Helper()
	c, err := billing.NewCustomer(code, "Socio de Prueba", "Camino Interior s/n")
	require.NoError(t, err)
	require.NoError(t, store.scope().CustomerRepo().Save(context.Background(), c))
	return c
}

func seedInvoice(t *testing.T, store *memStore, customerID uuid.UUID, number string, issued time.Time, charge int64) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice(
		customerID, number,
		issued.AddDate(0, -1, 0), issued, issued, issued.AddDate(0, 0, 20),
		decimal.NewFromInt(10), decimal.NewFromInt(charge), decimal.Zero, decimal.Zero,
	)
	require.NoError(t, err)
	inv.ClearDomainEvents()
	require.NoError(t, store.scope().InvoiceRepo().Save(context.Background(), inv))
	return inv
}

func seedPendingPayment(t *testing.T, store *memStore, customerID uuid.UUID, amount int64) *billing.Payment {
	t.Helper()
	p, err := billing.NewPayment(customerID, decimal.NewFromInt(amount), billing.PaymentMethodCash)
	require.NoError(t, err)
	require.NoError(t, store.scope().PaymentRepo().Save(context.Background(), p))
	return p
}

func TestCompletePayment(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	t.Run("settles invoices FIFO and persists the projection", func(t *testing.T) {
		store := newMemStore()
		bus := &recordingEventBus{}
		svc := NewReconciliationService(store.scope(), nil, bus)

		customer := seedCustomer(t, store, "SOC-0001")
		first := seedInvoice(t, store, customer.ID, "B-0001", jan, 5000)
		second := seedInvoice(t, store, customer.ID, "B-0002", feb, 8000)
		payment := seedPendingPayment(t, store, customer.ID, 10000)

		summary, err := svc.CompletePayment(ctx, payment.ID, mar)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.InvoicesAffected)
		assert.True(t, summary.NewBalance.Equal(decimal.NewFromInt(3000)))
		assert.True(t, summary.CreditAvailable.IsZero())

		saved1, err := store.scope().InvoiceRepo().FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, saved1.Status)
		assert.True(t, saved1.PaidAmount.Equal(decimal.NewFromInt(5000)))

		saved2, err := store.scope().InvoiceRepo().FindByID(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPartial, saved2.Status)
		assert.True(t, saved2.OutstandingAmount.Equal(decimal.NewFromInt(3000)))

		savedPayment, err := store.scope().PaymentRepo().FindByID(ctx, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusCompleted, savedPayment.Status)

		types := bus.typesPublished()
		assert.Contains(t, types, billing.EventTypePaymentCompleted)
		assert.Contains(t, types, billing.EventTypeInvoicePaid)
		assert.Contains(t, types, billing.EventTypePaymentReconciled)
		assert.NotContains(t, types, billing.EventTypeCreditIssued)
	})

	t.Run("overpayment surfaces credit and announces it", func(t *testing.T) {
		store := newMemStore()
		bus := &recordingEventBus{}
		svc := NewReconciliationService(store.scope(), nil, bus)

		customer := seedCustomer(t, store, "SOC-0002")
		seedInvoice(t, store, customer.ID, "B-0001", jan, 8000)
		payment := seedPendingPayment(t, store, customer.ID, 10000)

		summary, err := svc.CompletePayment(ctx, payment.ID, feb)
		require.NoError(t, err)

		assert.True(t, summary.CreditAvailable.Equal(decimal.NewFromInt(2000)))
		assert.True(t, summary.NewBalance.Equal(decimal.NewFromInt(-2000)))
		assert.Contains(t, bus.typesPublished(), billing.EventTypeCreditIssued)
	})

	t.Run("a payment cannot be completed twice", func(t *testing.T) {
		store := newMemStore()
		svc := NewReconciliationService(store.scope(), nil, nil)

		customer := seedCustomer(t, store, "SOC-0003")
		invoice := seedInvoice(t, store, customer.ID, "B-0001", jan, 8000)
		payment := seedPendingPayment(t, store, customer.ID, 8000)

		_, err := svc.CompletePayment(ctx, payment.ID, feb)
		require.NoError(t, err)
		_, err = svc.CompletePayment(ctx, payment.ID, feb)
		require.Error(t, err)

		// The ledger never double-counts the payment
		saved, err := store.scope().InvoiceRepo().FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.True(t, saved.PaidAmount.Equal(decimal.NewFromInt(8000)))
	})

	t.Run("fails for an unknown payment", func(t *testing.T) {
		store := newMemStore()
		svc := NewReconciliationService(store.scope(), nil, nil)
		_, err := svc.CompletePayment(ctx, uuid.New(), feb)
		assert.Error(t, err)
	})
}

func TestReversePayment(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	t.Run("re-runs the ledger without the reversed payment", func(t *testing.T) {
		store := newMemStore()
		bus := &recordingEventBus{}
		svc := NewReconciliationService(store.scope(), nil, bus)

		customer := seedCustomer(t, store, "SOC-0010")
		first := seedInvoice(t, store, customer.ID, "B-0001", jan, 5000)
		second := seedInvoice(t, store, customer.ID, "B-0002", feb, 8000)

		p1 := seedPendingPayment(t, store, customer.ID, 5000)
		p2 := seedPendingPayment(t, store, customer.ID, 5000)
		_, err := svc.CompletePayment(ctx, p1.ID, feb)
		require.NoError(t, err)
		_, err = svc.CompletePayment(ctx, p2.ID, mar)
		require.NoError(t, err)

		// Before the reversal both payments sit on the two oldest debts
		saved2, err := store.scope().InvoiceRepo().FindByID(ctx, second.ID)
		require.NoError(t, err)
		assert.True(t, saved2.PaidAmount.Equal(decimal.NewFromInt(5000)))

		summary, err := svc.ReversePayment(ctx, p1.ID, "duplicate charge", mar)
		require.NoError(t, err)
		assert.True(t, summary.NewBalance.Equal(decimal.NewFromInt(8000)))

		// The surviving payment now covers the oldest invoice instead
		saved1, err := store.scope().InvoiceRepo().FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, saved1.Status)

		saved2, err = store.scope().InvoiceRepo().FindByID(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPending, saved2.Status)
		assert.True(t, saved2.PaidAmount.IsZero())

		assert.Contains(t, bus.typesPublished(), billing.EventTypePaymentReversed)
	})

	t.Run("only completed payments can be reversed", func(t *testing.T) {
		store := newMemStore()
		svc := NewReconciliationService(store.scope(), nil, nil)

		customer := seedCustomer(t, store, "SOC-0011")
		payment := seedPendingPayment(t, store, customer.ID, 5000)

		_, err := svc.ReversePayment(ctx, payment.ID, "typo", feb)
		assert.Error(t, err)
	})
}

// serialScope wraps a scope so transactions run one at a time, matching the
// per-customer serialization the database scope provides
type serialScope struct {
	mu    sync.Mutex
	inner TransactionScope
}

func (s *serialScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Execute(ctx, fn)
}

func TestConcurrentCompletePayment(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)

	t.Run("concurrent completions never allocate past the outstanding debt", func(t *testing.T) {
		store := newMemStore()
		scope := &serialScope{inner: store.scope()}
		svc := NewReconciliationService(scope, nil, nil)

		customer := seedCustomer(t, store, "SOC-0030")
		invoice := seedInvoice(t, store, customer.ID, "B-0001", jan, 10000)
		p1 := seedPendingPayment(t, store, customer.ID, 6000)
		p2 := seedPendingPayment(t, store, customer.ID, 6000)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for _, paymentID := range []uuid.UUID{p1.ID, p2.ID} {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := svc.CompletePayment(ctx, id, feb)
				errs <- err
			}(paymentID)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		saved, err := store.scope().InvoiceRepo().FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, saved.Status)
		assert.True(t, saved.PaidAmount.Equal(decimal.NewFromInt(10000)))

		// Each payment is applied once; the applied slices cover the debt
		// exactly, never past it
		applied := decimal.Zero
		seen := make(map[uuid.UUID]bool)
		for _, ap := range saved.AppliedPayments {
			assert.False(t, seen[ap.PaymentID], "payment %s allocated twice", ap.PaymentID)
			seen[ap.PaymentID] = true
			applied = applied.Add(ap.Amount)
		}
		assert.True(t, applied.Equal(decimal.NewFromInt(10000)), "got %s", applied)

		// The excess surfaces as credit, not as extra allocation
		summary, err := svc.Reconcile(ctx, customer.ID)
		require.NoError(t, err)
		assert.True(t, summary.CreditAvailable.Equal(decimal.NewFromInt(2000)))
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)

	t.Run("a redundant run leaves the ledger unchanged", func(t *testing.T) {
		store := newMemStore()
		svc := NewReconciliationService(store.scope(), nil, nil)

		customer := seedCustomer(t, store, "SOC-0020")
		invoice := seedInvoice(t, store, customer.ID, "B-0001", jan, 5000)
		payment := seedPendingPayment(t, store, customer.ID, 3000)
		_, err := svc.CompletePayment(ctx, payment.ID, feb)
		require.NoError(t, err)

		first, err := svc.Reconcile(ctx, customer.ID)
		require.NoError(t, err)
		second, err := svc.Reconcile(ctx, customer.ID)
		require.NoError(t, err)

		assert.True(t, first.NewBalance.Equal(second.NewBalance))
		assert.True(t, first.CreditAvailable.Equal(second.CreditAvailable))

		saved, err := store.scope().InvoiceRepo().FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.True(t, saved.PaidAmount.Equal(decimal.NewFromInt(3000)))
		assert.Len(t, saved.AppliedPayments, 1)
	})
}
