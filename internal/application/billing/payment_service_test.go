package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictScope fails the next n transactions with a serialization conflict,
// then delegates to the wrapped scope
type conflictScope struct {
	inner TransactionScope
	mu    sync.Mutex
	left  int
}

func (s *conflictScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	if s.left > 0 {
		s.left--
		s.mu.Unlock()
		return shared.ErrConcurrencyConflict
	}
	s.mu.Unlock()
	return s.inner.Execute(ctx, fn)
}

func newPaymentService(store *memStore) *PaymentService {
	scope := store.scope()
	reconciliation := NewReconciliationService(scope, nil, nil)
	return NewPaymentService(scope, reconciliation, newMemIdempotencyStore(), shared.DefaultIdempotencyConfig())
}

func TestRegisterPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("registers a pending payment by customer code", func(t *testing.T) {
		store := newMemStore()
		svc := newPaymentService(store)
		customer := seedCustomer(t, store, "SOC-0001")

		payment, err := svc.RegisterPayment(ctx, RegisterPaymentRequest{
			CustomerCode: "SOC-0001",
			Amount:       decimal.NewFromInt(10000),
			Method:       billing.PaymentMethodTransfer,
		})
		require.NoError(t, err)
		assert.Equal(t, customer.ID, payment.CustomerID)
		assert.Equal(t, billing.PaymentStatusPending, payment.Status)
	})

	t.Run("resolves historical aliases", func(t *testing.T) {
		store := newMemStore()
		svc := newPaymentService(store)

		customer := seedCustomer(t, store, "SOC-0100")
		renamed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, customer.AddAlias(billing.IdentityAlias{
			Code:          "SOC-0017",
			EffectiveFrom: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			EffectiveTo:   &renamed,
		}))
		require.NoError(t, store.scope().CustomerRepo().Save(ctx, customer))

		payment, err := svc.RegisterPayment(ctx, RegisterPaymentRequest{
			CustomerCode: "SOC-0017",
			Amount:       decimal.NewFromInt(5000),
			Method:       billing.PaymentMethodCash,
		})
		require.NoError(t, err)
		assert.Equal(t, customer.ID, payment.CustomerID)
	})

	t.Run("rejects an unknown customer", func(t *testing.T) {
		store := newMemStore()
		svc := newPaymentService(store)
		_, err := svc.RegisterPayment(ctx, RegisterPaymentRequest{
			CustomerCode: "SOC-9999",
			Amount:       decimal.NewFromInt(5000),
			Method:       billing.PaymentMethodCash,
		})
		assert.Error(t, err)
	})
}

func TestRegisterAndComplete(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)

	t.Run("counter payment settles the oldest debt immediately", func(t *testing.T) {
		store := newMemStore()
		svc := newPaymentService(store)

		customer := seedCustomer(t, store, "SOC-0001")
		invoice := seedInvoice(t, store, customer.ID, "B-0001", jan, 8000)

		summary, err := svc.RegisterAndComplete(ctx, RegisterPaymentRequest{
			CustomerCode: "SOC-0001",
			Amount:       decimal.NewFromInt(8000),
			Method:       billing.PaymentMethodCash,
		}, feb)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.InvoicesAffected)
		assert.True(t, summary.NewBalance.IsZero())

		saved, err := store.scope().InvoiceRepo().FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, saved.Status)
	})
}

func TestHandleGatewayNotification(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)

	register := func(t *testing.T, store *memStore, svc *PaymentService, code, reference string, amount int64) {
		t.Helper()
		_, err := svc.RegisterPayment(ctx, RegisterPaymentRequest{
			CustomerCode:     code,
			Amount:           decimal.NewFromInt(amount),
			Method:           billing.PaymentMethodCard,
			GatewayReference: reference,
		})
		require.NoError(t, err)
	}

	t.Run("a successful notification completes and reconciles", func(t *testing.T) {
		store := newMemStore()
		svc := newPaymentService(store)

		customer := seedCustomer(t, store, "SOC-0001")
		invoice := seedInvoice(t, store, customer.ID, "B-0001", jan, 8000)
		register(t, store, svc, "SOC-0001", "TBK-001", 8000)

		summary, err := svc.HandleGatewayNotification(ctx, GatewayNotification{
			Reference: "TBK-001", Succeeded: true, PaidAt: feb,
		})
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.True(t, summary.NewBalance.IsZero())

		saved, err := store.scope().InvoiceRepo().FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, saved.Status)
	})

	t.Run("a duplicate notification is acknowledged without reprocessing", func(t *testing.T) {
		store := newMemStore()
		svc := newPaymentService(store)

		customer := seedCustomer(t, store, "SOC-0001")
		invoice := seedInvoice(t, store, customer.ID, "B-0001", jan, 8000)
		register(t, store, svc, "SOC-0001", "TBK-002", 8000)

		first, err := svc.HandleGatewayNotification(ctx, GatewayNotification{
			Reference: "TBK-002", Succeeded: true, PaidAt: feb,
		})
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := svc.HandleGatewayNotification(ctx, GatewayNotification{
			Reference: "TBK-002", Succeeded: true, PaidAt: feb,
		})
		require.NoError(t, err)
		assert.Nil(t, second)

		saved, err := store.scope().InvoiceRepo().FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.True(t, saved.PaidAmount.Equal(decimal.NewFromInt(8000)))
	})

	t.Run("a failed notification voids the payment without touching the ledger", func(t *testing.T) {
		store := newMemStore()
		svc := newPaymentService(store)

		customer := seedCustomer(t, store, "SOC-0001")
		invoice := seedInvoice(t, store, customer.ID, "B-0001", jan, 8000)
		register(t, store, svc, "SOC-0001", "TBK-003", 8000)

		summary, err := svc.HandleGatewayNotification(ctx, GatewayNotification{
			Reference: "TBK-003", Succeeded: false, PaidAt: feb,
		})
		require.NoError(t, err)
		assert.Nil(t, summary)

		payment, err := store.scope().PaymentRepo().FindByGatewayReference(ctx, "TBK-003")
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusFailed, payment.Status)

		saved, err := store.scope().InvoiceRepo().FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPending, saved.Status)
	})

	t.Run("the retry after a serialization conflict completes the payment", func(t *testing.T) {
		store := newMemStore()
		flaky := &conflictScope{inner: store.scope(), left: 1}
		reconciliation := NewReconciliationService(flaky, nil, nil)
		svc := NewPaymentService(store.scope(), reconciliation, newMemIdempotencyStore(), shared.DefaultIdempotencyConfig())

		customer := seedCustomer(t, store, "SOC-0001")
		invoice := seedInvoice(t, store, customer.ID, "B-0001", jan, 8000)
		register(t, store, svc, "SOC-0001", "TBK-004", 8000)

		// First delivery aborts on the conflict; the gateway redelivers
		_, err := svc.HandleGatewayNotification(ctx, GatewayNotification{
			Reference: "TBK-004", Succeeded: true, PaidAt: feb,
		})
		require.Error(t, err)

		summary, err := svc.HandleGatewayNotification(ctx, GatewayNotification{
			Reference: "TBK-004", Succeeded: true, PaidAt: feb,
		})
		require.NoError(t, err)
		require.NotNil(t, summary, "redelivery must be processed, not dropped as a duplicate")

		saved, err := store.scope().InvoiceRepo().FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, saved.Status)

		payment, err := store.scope().PaymentRepo().FindByGatewayReference(ctx, "TBK-004")
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusCompleted, payment.Status)
	})

	t.Run("rejects a notification without a reference", func(t *testing.T) {
		store := newMemStore()
		svc := newPaymentService(store)
		_, err := svc.HandleGatewayNotification(ctx, GatewayNotification{Succeeded: true})
		assert.Error(t, err)
	})
}
