package billing

import (
	"context"
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Status     *InvoiceStatus
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	Overdue    *bool
}

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Status     *PaymentStatus
	Method     *PaymentMethod
	From       *time.Time
	To         *time.Time
}

// CustomerRepository persists customer accounts
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	// FindByCode resolves a customer by current code or any historical alias
	FindByCode(ctx context.Context, code string) (*Customer, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Customer, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	Save(ctx context.Context, customer *Customer) error
}

// InvoiceRepository persists invoices. All by-customer queries return
// invoices sorted by issue date ascending, invoice number ascending, the
// canonical FIFO order.
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]Invoice, error)
	FindOutstandingByCustomer(ctx context.Context, customerID uuid.UUID) ([]Invoice, error)
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	Save(ctx context.Context, invoice *Invoice) error
	SaveAll(ctx context.Context, invoices []Invoice) error
}

// PaymentRepository persists payments. FindCompletedByCustomer returns
// payments sorted by completion timestamp ascending.
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByGatewayReference(ctx context.Context, reference string) (*Payment, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter PaymentFilter) ([]Payment, error)
	FindCompletedByCustomer(ctx context.Context, customerID uuid.UUID) ([]Payment, error)
	Save(ctx context.Context, payment *Payment) error
}

// AdjustmentRepository persists discounts and fines
type AdjustmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Adjustment, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Adjustment, error)
	// FindUnbilledByCustomer returns adjustments issued before billing that
	// still await the next billing run (InvoiceID is nil)
	FindUnbilledByCustomer(ctx context.Context, customerID uuid.UUID) ([]Adjustment, error)
	Save(ctx context.Context, adjustment *Adjustment) error
}

// SubsidyRepository persists subsidy classes and time-ranged assignments
type SubsidyRepository interface {
	FindClassByID(ctx context.Context, id uuid.UUID) (*SubsidyClass, error)
	FindClassByCode(ctx context.Context, code int) (*SubsidyClass, error)
	FindAllClasses(ctx context.Context) ([]SubsidyClass, error)
	SaveClass(ctx context.Context, class *SubsidyClass) error

	// FindActiveAssignment returns the assignment in force for the customer
	// on the given date, or shared.ErrNotFound
	FindActiveAssignment(ctx context.Context, customerID uuid.UUID, on time.Time) (*SubsidyAssignment, error)
	FindAssignmentsByCustomer(ctx context.Context, customerID uuid.UUID) ([]SubsidyAssignment, error)
	SaveAssignment(ctx context.Context, assignment *SubsidyAssignment) error
}

// RepactacionRepository persists debt-restructuring plans
type RepactacionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*RepactacionPlan, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]RepactacionPlan, error)
	// FindCurrentByCustomer returns plans not yet exhausted as of the period
	FindCurrentByCustomer(ctx context.Context, customerID uuid.UUID, period time.Time) ([]RepactacionPlan, error)
	Save(ctx context.Context, plan *RepactacionPlan) error
}

// TariffRepository persists effective-dated tariff schedules
type TariffRepository interface {
	// FindEffectiveOn returns the schedule in force on the given date,
	// or shared.ErrNotFound
	FindEffectiveOn(ctx context.Context, on time.Time) (*TariffSchedule, error)
	FindAll(ctx context.Context) ([]TariffSchedule, error)
	Save(ctx context.Context, schedule *TariffSchedule) error
}
