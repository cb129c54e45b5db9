package billing

import (
	"context"

	"github.com/coopaguas/backend/internal/domain/billing"
)

// TransactionScope provides transactional access to billing repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
//
// Reconciliation depends on this: a payment state change and the replayed
// invoice projections must land together or not at all.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the billing repositories
// within a transaction. All repositories returned share the same underlying
// database transaction.
type TransactionalRepositories interface {
	// CustomerRepo returns the customer repository scoped to the current transaction
	CustomerRepo() billing.CustomerRepository
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() billing.InvoiceRepository
	// PaymentRepo returns the payment repository scoped to the current transaction
	PaymentRepo() billing.PaymentRepository
	// AdjustmentRepo returns the adjustment repository scoped to the current transaction
	AdjustmentRepo() billing.AdjustmentRepository
	// SubsidyRepo returns the subsidy repository scoped to the current transaction
	SubsidyRepo() billing.SubsidyRepository
	// RepactacionRepo returns the restructuring plan repository scoped to the current transaction
	RepactacionRepo() billing.RepactacionRepository
	// TariffRepo returns the tariff repository scoped to the current transaction
	TariffRepo() billing.TariffRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	customerRepo    billing.CustomerRepository
	invoiceRepo     billing.InvoiceRepository
	paymentRepo     billing.PaymentRepository
	adjustmentRepo  billing.AdjustmentRepository
	subsidyRepo     billing.SubsidyRepository
	repactacionRepo billing.RepactacionRepository
	tariffRepo      billing.TariffRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	customerRepo billing.CustomerRepository,
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	adjustmentRepo billing.AdjustmentRepository,
	subsidyRepo billing.SubsidyRepository,
	repactacionRepo billing.RepactacionRepository,
	tariffRepo billing.TariffRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		customerRepo:    customerRepo,
		invoiceRepo:     invoiceRepo,
		paymentRepo:     paymentRepo,
		adjustmentRepo:  adjustmentRepo,
		subsidyRepo:     subsidyRepo,
		repactacionRepo: repactacionRepo,
		tariffRepo:      tariffRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// CustomerRepo returns the customer repository.
func (s *NoOpTransactionScope) CustomerRepo() billing.CustomerRepository {
	return s.customerRepo
}

// InvoiceRepo returns the invoice repository.
func (s *NoOpTransactionScope) InvoiceRepo() billing.InvoiceRepository {
	return s.invoiceRepo
}

// PaymentRepo returns the payment repository.
func (s *NoOpTransactionScope) PaymentRepo() billing.PaymentRepository {
	return s.paymentRepo
}

// AdjustmentRepo returns the adjustment repository.
func (s *NoOpTransactionScope) AdjustmentRepo() billing.AdjustmentRepository {
	return s.adjustmentRepo
}

// SubsidyRepo returns the subsidy repository.
func (s *NoOpTransactionScope) SubsidyRepo() billing.SubsidyRepository {
	return s.subsidyRepo
}

// RepactacionRepo returns the restructuring plan repository.
func (s *NoOpTransactionScope) RepactacionRepo() billing.RepactacionRepository {
	return s.repactacionRepo
}

// TariffRepo returns the tariff repository.
func (s *NoOpTransactionScope) TariffRepo() billing.TariffRepository {
	return s.tariffRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
