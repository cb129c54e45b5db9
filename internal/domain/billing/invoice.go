package billing

import (
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the derived payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING" // No payment applied
	InvoiceStatusPartial InvoiceStatus = "PARTIAL" // 0 < paid < charge
	InvoiceStatusPaid    InvoiceStatus = "PAID"    // Outstanding within epsilon of zero
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// AppliedPayment records a slice of a payment allocated to this invoice.
// The set of applied payments is a projection of the ledger replay, never
// an independently editable association.
type AppliedPayment struct {
	PaymentID uuid.UUID       `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
}

// Invoice is a billing-period boleta issued to a customer. MonthlyCharge is
// this period's obligation; TotalAmount additionally carries the balance
// outstanding at issue time, for display. PaidAmount, OutstandingAmount and
// Status are derived from payment history and recomputed on every
// reconciliation; they are persisted only as a read projection.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber string
	CustomerID    uuid.UUID
	PeriodFrom    time.Time
	PeriodTo      time.Time
	IssueDate     time.Time
	DueDate       time.Time
	ConsumptionM3 decimal.Decimal
	MonthlyCharge decimal.Decimal // this period's obligation, net of subsidy at issue
	TotalAmount   decimal.Decimal // monthly charge plus carried-over balance at issue
	SubsidyAmount decimal.Decimal
	Adjustments   []AppliedAdjustment

	// Derived projection, rebuilt by replay
	AppliedPayments   []AppliedPayment
	PaidAmount        decimal.Decimal
	OutstandingAmount decimal.Decimal
	Status            InvoiceStatus
}

// NewInvoice issues an invoice for a billing period
func NewInvoice(
	customerID uuid.UUID,
	invoiceNumber string,
	periodFrom, periodTo, issueDate, dueDate time.Time,
	consumptionM3, monthlyCharge, carriedBalance, subsidyAmount decimal.Decimal,
) (*Invoice, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice requires a customer")
	}
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice number is required")
	}
	if periodTo.Before(periodFrom) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice period is inverted")
	}
	if monthlyCharge.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Monthly charge cannot be negative")
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		CustomerID:        customerID,
		PeriodFrom:        periodFrom,
		PeriodTo:          periodTo,
		IssueDate:         issueDate,
		DueDate:           dueDate,
		ConsumptionM3:     consumptionM3,
		MonthlyCharge:     monthlyCharge,
		TotalAmount:       monthlyCharge.Add(carriedBalance),
		SubsidyAmount:     subsidyAmount,
	}
	inv.ResetDerived()
	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv))
	return inv, nil
}

// ChargeAmount returns the effective obligation of this invoice: the monthly
// charge plus fines and minus discounts applied after issue, floored at zero.
func (i *Invoice) ChargeAmount() decimal.Decimal {
	charge := i.MonthlyCharge
	for _, adj := range i.Adjustments {
		switch adj.Kind {
		case AdjustmentKindFine:
			charge = charge.Add(adj.Amount)
		case AdjustmentKindDiscount:
			charge = charge.Sub(adj.Amount)
		}
	}
	if charge.IsNegative() {
		return decimal.Zero
	}
	return charge
}

// ApplyAdjustment resolves and records a discount or fine against this
// invoice. The ledger must be replayed afterwards to refresh derived state.
func (i *Invoice) ApplyAdjustment(adj *Adjustment) error {
	if adj == nil || !adj.Kind.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Invalid adjustment")
	}
	for _, applied := range i.Adjustments {
		if applied.AdjustmentID == adj.ID {
			return shared.NewDomainError("ALREADY_EXISTS", "Adjustment already applied to this invoice")
		}
	}
	i.Adjustments = append(i.Adjustments, AppliedAdjustment{
		AdjustmentID: adj.ID,
		Kind:         adj.Kind,
		Amount:       adj.AmountAgainst(i.MonthlyCharge),
		AppliedAt:    adj.AppliedAt,
	})
	i.UpdatedAt = time.Now()
	return nil
}

// ResetDerived clears the payment projection back to the unpaid state.
// Every replay starts here; derived state is never mutated incrementally
// across reconciliation runs.
func (i *Invoice) ResetDerived() {
	i.AppliedPayments = nil
	i.PaidAmount = decimal.Zero
	i.OutstandingAmount = i.ChargeAmount()
	i.Status = InvoiceStatusPending
	if i.OutstandingAmount.IsZero() {
		i.Status = InvoiceStatusPaid
	}
}

// ApplyPayment records an allocation of a payment slice to this invoice and
// refreshes the derived amounts. The outstanding amount is monotonically
// non-increasing; an application that would drive it negative beyond epsilon
// is a conservation violation, not a correctable input error.
func (i *Invoice) ApplyPayment(paymentID uuid.UUID, amount decimal.Decimal, at time.Time, epsilon decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Applied amount must be positive")
	}
	newOutstanding := i.OutstandingAmount.Sub(amount)
	if newOutstanding.LessThan(epsilon.Neg()) {
		return shared.NewConservationViolation(
			"Applied amount exceeds invoice outstanding beyond epsilon")
	}

	i.AppliedPayments = append(i.AppliedPayments, AppliedPayment{
		PaymentID: paymentID,
		Amount:    amount,
		AppliedAt: at,
	})
	i.PaidAmount = i.PaidAmount.Add(amount)
	i.OutstandingAmount = newOutstanding

	wasPaid := i.Status == InvoiceStatusPaid
	if i.IsPaid(epsilon) {
		i.Status = InvoiceStatusPaid
		if !wasPaid {
			i.AddDomainEvent(NewInvoicePaidEvent(i, paymentID))
		}
	} else {
		i.Status = InvoiceStatusPartial
	}
	i.UpdatedAt = time.Now()
	return nil
}

// IsPaid reports whether the outstanding amount is negligible
func (i *Invoice) IsPaid(epsilon decimal.Decimal) bool {
	return i.OutstandingAmount.LessThanOrEqual(epsilon)
}
