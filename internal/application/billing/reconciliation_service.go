package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationService orchestrates payment lifecycle changes and the ledger
// replay that keeps invoice projections consistent with payment history.
//
// Every mutation runs inside a transaction scope: the payment state change
// and the refreshed invoice projections commit atomically. Domain events are
// published only after the transaction commits.
type ReconciliationService struct {
	scope    TransactionScope
	ledger   *billing.LedgerService
	eventBus shared.EventPublisher
	metrics  *telemetry.BusinessMetrics
}

// NewReconciliationService creates a ReconciliationService
func NewReconciliationService(
	scope TransactionScope,
	ledger *billing.LedgerService,
	eventBus shared.EventPublisher,
) *ReconciliationService {
	if ledger == nil {
		ledger = billing.NewLedgerService(nil)
	}
	return &ReconciliationService{
		scope:    scope,
		ledger:   ledger,
		eventBus: eventBus,
	}
}

// SetBusinessMetrics enables reconciliation latency recording
func (s *ReconciliationService) SetBusinessMetrics(metrics *telemetry.BusinessMetrics) {
	s.metrics = metrics
}

// ReconciliationSummary reports the outcome of a reconciliation run
type ReconciliationSummary struct {
	PaymentID        *uuid.UUID      `json:"payment_id,omitempty"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	InvoicesAffected int             `json:"invoices_affected"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	CreditAvailable  decimal.Decimal `json:"credit_available"`
}

// Reconcile replays the customer's full payment history and persists the
// refreshed invoice projections. It is safe to run at any time: the replay is
// idempotent, so a redundant run leaves the ledger unchanged.
func (s *ReconciliationService) Reconcile(ctx context.Context, customerID uuid.UUID) (*ReconciliationSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "reconcile")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, customerID.String())

	started := time.Now()
	var summary *ReconciliationSummary
	var events []shared.DomainEvent

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		stmt, evs, err := s.replayAndPersist(ctx, repos, customerID)
		if err != nil {
			return err
		}
		events = evs
		summary = &ReconciliationSummary{
			CustomerID:       customerID,
			InvoicesAffected: len(stmt.Invoices),
			NewBalance:       stmt.Balance,
			CreditAvailable:  stmt.CreditAvailable,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.recordLatency(ctx, started, summary.InvoicesAffected)
	s.publish(ctx, events)
	return summary, nil
}

// CompletePayment confirms a pending payment and reconciles the customer's
// ledger in the same transaction.
func (s *ReconciliationService) CompletePayment(ctx context.Context, paymentID uuid.UUID, at time.Time) (*ReconciliationSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "complete_payment")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	started := time.Now()
	var summary *ReconciliationSummary
	var events []shared.DomainEvent

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}

		creditBefore, err := s.creditAvailable(ctx, repos, payment.CustomerID)
		if err != nil {
			return err
		}

		if err := payment.Complete(at); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		events = append(events, payment.GetDomainEvents()...)
		payment.ClearDomainEvents()

		stmt, evs, err := s.replayAndPersist(ctx, repos, payment.CustomerID)
		if err != nil {
			return err
		}
		events = append(events, evs...)

		affected := invoicesTouchedBy(stmt, paymentID)
		events = append(events, billing.NewPaymentReconciledEvent(
			paymentID, payment.CustomerID, payment.Amount,
			affected, stmt.Balance, stmt.CreditAvailable))

		if creditDelta := stmt.CreditAvailable.Sub(creditBefore); creditDelta.IsPositive() {
			events = append(events, billing.NewCreditIssuedEvent(
				paymentID, payment.CustomerID, creditDelta))
		}

		summary = &ReconciliationSummary{
			PaymentID:        &paymentID,
			CustomerID:       payment.CustomerID,
			InvoicesAffected: affected,
			NewBalance:       stmt.Balance,
			CreditAvailable:  stmt.CreditAvailable,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.AddEvent(span, "payment_reconciled",
		"invoices_affected", summary.InvoicesAffected,
		"new_balance", summary.NewBalance.String(),
	)
	s.recordLatency(ctx, started, summary.InvoicesAffected)
	s.publish(ctx, events)
	return summary, nil
}

// ReversePayment administratively voids a completed payment and re-runs the
// ledger without it. Allocations of every later payment may shift as a
// result; the full replay handles that instead of attempting an
// incremental undo.
func (s *ReconciliationService) ReversePayment(ctx context.Context, paymentID uuid.UUID, reason string, at time.Time) (*ReconciliationSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "reverse_payment")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	started := time.Now()
	var summary *ReconciliationSummary
	var events []shared.DomainEvent

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}

		if err := payment.Reverse(reason, at); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		events = append(events, payment.GetDomainEvents()...)
		payment.ClearDomainEvents()

		stmt, evs, err := s.replayAndPersist(ctx, repos, payment.CustomerID)
		if err != nil {
			return err
		}
		events = append(events, evs...)

		summary = &ReconciliationSummary{
			PaymentID:        &paymentID,
			CustomerID:       payment.CustomerID,
			InvoicesAffected: len(stmt.Invoices),
			NewBalance:       stmt.Balance,
			CreditAvailable:  stmt.CreditAvailable,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.recordLatency(ctx, started, summary.InvoicesAffected)
	s.publish(ctx, events)
	return summary, nil
}

// replayAndPersist rebuilds the customer's ledger from history and writes the
// projection back onto the invoice aggregates. Reapplying each allocation
// through the aggregate keeps the conservation check on every slice; a
// violation aborts the transaction.
func (s *ReconciliationService) replayAndPersist(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID) (*billing.CustomerStatement, []shared.DomainEvent, error) {
	invoices, err := repos.InvoiceRepo().FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	payments, err := repos.PaymentRepo().FindCompletedByCustomer(ctx, customerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load payments: %w", err)
	}

	stmt, err := s.ledger.BuildStatement(customerID, invoices, payments)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[uuid.UUID]*billing.Invoice, len(invoices))
	for i := range invoices {
		byID[invoices[i].ID] = &invoices[i]
	}

	epsilon := s.ledger.Allocator().Epsilon()
	var events []shared.DomainEvent
	for _, balance := range stmt.Invoices {
		inv := byID[balance.InvoiceID]
		wasPaid := inv.Status == billing.InvoiceStatusPaid

		inv.ResetDerived()
		for _, applied := range balance.AppliedPayments {
			if err := inv.ApplyPayment(applied.PaymentID, applied.Amount, applied.AppliedAt, epsilon); err != nil {
				return nil, nil, err
			}
		}

		// Only newly paid invoices announce the transition; replays of
		// already settled invoices stay silent.
		if !wasPaid && inv.Status == billing.InvoiceStatusPaid {
			events = append(events, inv.GetDomainEvents()...)
		}
		inv.ClearDomainEvents()
	}

	if err := repos.InvoiceRepo().SaveAll(ctx, invoices); err != nil {
		return nil, nil, fmt.Errorf("failed to save invoices: %w", err)
	}
	return stmt, events, nil
}

// creditAvailable computes the customer's current credit without persisting
func (s *ReconciliationService) creditAvailable(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID) (decimal.Decimal, error) {
	invoices, err := repos.InvoiceRepo().FindByCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load invoices: %w", err)
	}
	payments, err := repos.PaymentRepo().FindCompletedByCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load payments: %w", err)
	}
	stmt, err := s.ledger.BuildStatement(customerID, invoices, payments)
	if err != nil {
		return decimal.Zero, err
	}
	return stmt.CreditAvailable, nil
}

func (s *ReconciliationService) recordLatency(ctx context.Context, started time.Time, invoicesAffected int) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordReconciliation(ctx, time.Since(started), invoicesAffected)
}

func (s *ReconciliationService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventBus == nil || len(events) == 0 {
		return
	}
	// Event delivery is best-effort; the committed state is authoritative
	_ = s.eventBus.Publish(ctx, events...)
}

// invoicesTouchedBy counts the invoices that absorbed part of the payment
func invoicesTouchedBy(stmt *billing.CustomerStatement, paymentID uuid.UUID) int {
	count := 0
	for _, balance := range stmt.Invoices {
		for _, applied := range balance.AppliedPayments {
			if applied.PaymentID == paymentID {
				count++
				break
			}
		}
	}
	return count
}
