package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingRunService issues the monthly boletas. For each meter reading it
// combines the effective tariff, the customer's subsidy, any restructuring
// installment due this period, and pending adjustments into one invoice.
type BillingRunService struct {
	scope    TransactionScope
	ledger   *billing.LedgerService
	eventBus shared.EventPublisher
}

// NewBillingRunService creates a BillingRunService
func NewBillingRunService(
	scope TransactionScope,
	ledger *billing.LedgerService,
	eventBus shared.EventPublisher,
) *BillingRunService {
	if ledger == nil {
		ledger = billing.NewLedgerService(nil)
	}
	return &BillingRunService{
		scope:    scope,
		ledger:   ledger,
		eventBus: eventBus,
	}
}

// MeterReading is one customer's consumption for the billing period
type MeterReading struct {
	CustomerID    uuid.UUID
	ConsumptionM3 decimal.Decimal
}

// BillingRunRequest describes one monthly billing run
type BillingRunRequest struct {
	Period    time.Time // any day inside the billing month
	IssueDate time.Time
	DueDate   time.Time
	Readings  []MeterReading
}

// BillingRunResult summarizes an executed run
type BillingRunResult struct {
	InvoicesIssued int             `json:"invoices_issued"`
	Skipped        int             `json:"skipped"`
	TotalBilled    decimal.Decimal `json:"total_billed"`
}

// Run executes a billing run. Each customer is billed in its own
// transaction: one bad reading skips that customer instead of aborting the
// whole run.
func (s *BillingRunService) Run(ctx context.Context, req BillingRunRequest) (*BillingRunResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing_run", "run")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPeriod, req.Period.Format("2006-01"),
		"readings", len(req.Readings),
	)

	if req.DueDate.Before(req.IssueDate) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Due date cannot precede the issue date")
	}

	result := &BillingRunResult{TotalBilled: decimal.Zero}
	var events []shared.DomainEvent

	for _, reading := range req.Readings {
		var invoice *billing.Invoice
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			invoice, err = s.issueInvoice(ctx, repos, req, reading)
			return err
		})
		if err != nil {
			telemetry.AddEvent(span, "customer_skipped",
				telemetry.SpanAttrCustomerID, reading.CustomerID.String(),
				"reason", err.Error(),
			)
			result.Skipped++
			continue
		}

		result.InvoicesIssued++
		result.TotalBilled = result.TotalBilled.Add(invoice.MonthlyCharge)
		events = append(events, invoice.GetDomainEvents()...)
		invoice.ClearDomainEvents()
	}

	if s.eventBus != nil && len(events) > 0 {
		_ = s.eventBus.Publish(ctx, events...)
	}
	return result, nil
}

// issueInvoice bills a single customer for the period
func (s *BillingRunService) issueInvoice(ctx context.Context, repos TransactionalRepositories, req BillingRunRequest, reading MeterReading) (*billing.Invoice, error) {
	customer, err := repos.CustomerRepo().FindByID(ctx, reading.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if !customer.Active {
		return nil, shared.NewDomainError("INVALID_STATE", "Customer account is inactive")
	}

	number := invoiceNumberFor(customer, req.Period)
	if existing, err := repos.InvoiceRepo().FindByNumber(ctx, number); err == nil && existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("Customer already billed for period %s", req.Period.Format("2006-01")))
	}

	tariff, err := repos.TariffRepo().FindEffectiveOn(ctx, req.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("no tariff in force on %s: %w", req.IssueDate.Format("2006-01-02"), err)
	}

	class, err := s.subsidyClassFor(ctx, repos, customer.ID, req.IssueDate)
	if err != nil {
		return nil, err
	}

	breakdown, err := billing.CalculateCharges(reading.ConsumptionM3, tariff, class)
	if err != nil {
		return nil, err
	}

	monthlyCharge := breakdown.Total.Amount()
	plans, err := repos.RepactacionRepo().FindCurrentByCustomer(ctx, customer.ID, req.Period)
	if err != nil {
		return nil, fmt.Errorf("failed to load restructuring plans: %w", err)
	}
	for i := range plans {
		if due, ok := plans[i].InstallmentFor(req.Period); ok {
			monthlyCharge = monthlyCharge.Add(due.Amount)
		}
	}

	carried, err := s.carriedBalance(ctx, repos, customer.ID)
	if err != nil {
		return nil, err
	}

	invoice, err := billing.NewInvoice(
		customer.ID, number,
		monthStart(req.Period), monthEnd(req.Period),
		req.IssueDate, req.DueDate,
		reading.ConsumptionM3, monthlyCharge, carried, breakdown.Subsidy.Amount(),
	)
	if err != nil {
		return nil, err
	}

	// Adjustments granted since the last run attach to this boleta
	pending, err := repos.AdjustmentRepo().FindUnbilledByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending adjustments: %w", err)
	}
	for i := range pending {
		adj := &pending[i]
		if err := invoice.ApplyAdjustment(adj); err != nil {
			return nil, err
		}
		adj.InvoiceID = &invoice.ID
		if err := repos.AdjustmentRepo().Save(ctx, adj); err != nil {
			return nil, fmt.Errorf("failed to save adjustment: %w", err)
		}
	}
	invoice.ResetDerived()

	if err := repos.InvoiceRepo().Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	return invoice, nil
}

// subsidyClassFor resolves the customer's active subsidy class, nil when none
func (s *BillingRunService) subsidyClassFor(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID, on time.Time) (*billing.SubsidyClass, error) {
	assignment, err := repos.SubsidyRepo().FindActiveAssignment(ctx, customerID, on)
	if err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == shared.ErrNotFound.Code {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load subsidy assignment: %w", err)
	}
	class, err := repos.SubsidyRepo().FindClassByID(ctx, assignment.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subsidy class: %w", err)
	}
	return class, nil
}

// carriedBalance computes the debt carried into the new boleta for display
func (s *BillingRunService) carriedBalance(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID) (decimal.Decimal, error) {
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
	return stmt.TotalOutstanding, nil
}

// invoiceNumberFor derives the deterministic boleta number for a customer
// and period, which doubles as the billing-run uniqueness key
func invoiceNumberFor(customer *billing.Customer, period time.Time) string {
	return fmt.Sprintf("B-%s-%s", customer.Code, period.Format("200601"))
}

func monthStart(period time.Time) time.Time {
	return time.Date(period.Year(), period.Month(), 1, 0, 0, 0, 0, period.Location())
}

func monthEnd(period time.Time) time.Time {
	return monthStart(period).AddDate(0, 1, -1)
}
