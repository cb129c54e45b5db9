package persistence

import (
	"context"
	"database/sql"
	"errors"

	appbilling "github.com/coopaguas/backend/internal/application/billing"
	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Reconciliation replays the whole ledger of one customer, so transactions
// run serializable; a serialization failure surfaces as a concurrency
// conflict the caller can retry.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a serializable database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	if isSerializationFailure(err) {
		return shared.ErrConcurrencyConflict
	}
	return err
}

// isSerializationFailure reports whether the error is a Postgres
// serialization failure (SQLSTATE 40001) or deadlock (40P01)
func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// CustomerRepo returns the customer repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CustomerRepo() billing.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

// InvoiceRepo returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) InvoiceRepo() billing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// PaymentRepo returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PaymentRepo() billing.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// AdjustmentRepo returns the adjustment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) AdjustmentRepo() billing.AdjustmentRepository {
	return NewGormAdjustmentRepository(r.tx)
}

// SubsidyRepo returns the subsidy repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SubsidyRepo() billing.SubsidyRepository {
	return NewGormSubsidyRepository(r.tx)
}

// RepactacionRepo returns the restructuring plan repository scoped to the current transaction.
func (r *gormTransactionalRepositories) RepactacionRepo() billing.RepactacionRepository {
	return NewGormRepactacionRepository(r.tx)
}

// TariffRepo returns the tariff repository scoped to the current transaction.
func (r *gormTransactionalRepositories) TariffRepo() billing.TariffRepository {
	return NewGormTariffRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appbilling.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appbilling.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
