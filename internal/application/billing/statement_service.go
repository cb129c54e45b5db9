package billing

import (
	"context"
	"fmt"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// StatementService answers ledger queries without mutating anything. The
// statement is computed by replay, so it reflects payment history even if
// the persisted invoice projections are stale.
type StatementService struct {
	customerRepo billing.CustomerRepository
	invoiceRepo  billing.InvoiceRepository
	paymentRepo  billing.PaymentRepository
	ledger       *billing.LedgerService
}

// NewStatementService creates a StatementService
func NewStatementService(
	customerRepo billing.CustomerRepository,
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	ledger *billing.LedgerService,
) *StatementService {
	if ledger == nil {
		ledger = billing.NewLedgerService(nil)
	}
	return &StatementService{
		customerRepo: customerRepo,
		invoiceRepo:  invoiceRepo,
		paymentRepo:  paymentRepo,
		ledger:       ledger,
	}
}

// GetStatement builds the customer's current statement: per-invoice
// balances in FIFO order, total outstanding, and available credit
func (s *StatementService) GetStatement(ctx context.Context, customerID uuid.UUID) (*billing.CustomerStatement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "statement", "get")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, customerID.String())

	invoices, err := s.invoiceRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	payments, err := s.paymentRepo.FindCompletedByCustomer(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	stmt, err := s.ledger.BuildStatement(customerID, invoices, payments)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return stmt, nil
}

// GetStatementByCode resolves the customer by current code or historical
// alias and builds their statement
func (s *StatementService) GetStatementByCode(ctx context.Context, code string) (*billing.CustomerStatement, error) {
	customer, err := s.customerRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}
	return s.GetStatement(ctx, customer.ID)
}

// GetOutstanding returns the invoices still owing for a customer, oldest
// first, ready for FIFO allocation
func (s *StatementService) GetOutstanding(ctx context.Context, customerID uuid.UUID) ([]billing.InvoiceBalance, error) {
	stmt, err := s.GetStatement(ctx, customerID)
	if err != nil {
		return nil, err
	}
	outstanding := make([]billing.InvoiceBalance, 0, len(stmt.Invoices))
	for _, balance := range stmt.Invoices {
		if balance.OutstandingAmount.IsPositive() {
			outstanding = append(outstanding, balance)
		}
	}
	return outstanding, nil
}
