package billing

import (
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"   // Registered, awaiting confirmation
	PaymentStatusCompleted PaymentStatus = "COMPLETED" // Confirmed; participates in reconciliation
	PaymentStatusFailed    PaymentStatus = "FAILED"    // Rejected by the gateway or voided before completion
	PaymentStatusReversed  PaymentStatus = "REVERSED"  // Administratively reversed after completion
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusReversed:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// CountsTowardLedger reports whether the payment participates in ledger replay
func (s PaymentStatus) CountsTowardLedger() bool {
	return s == PaymentStatusCompleted
}

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"     // Entered at the counter by a clerk
	PaymentMethodTransfer PaymentMethod = "TRANSFER" // Bank transfer
	PaymentMethodCard     PaymentMethod = "CARD"     // Card through the payment gateway
	PaymentMethodPortal   PaymentMethod = "PORTAL"   // Customer portal online payment
	PaymentMethodOther    PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard, PaymentMethodPortal, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// Payment records money received from a customer. Once completed it is
// immutable except for administrative reversal; its association with the
// invoices it satisfied is derived by the ledger replay, never stored as a
// foreign key.
type Payment struct {
	shared.BaseAggregateRoot
	CustomerID       uuid.UUID
	Amount           decimal.Decimal
	Method           PaymentMethod
	GatewayReference string // opaque reference from the card gateway, if any
	Status           PaymentStatus
	CompletedAt      *time.Time
	ReversedAt       *time.Time
	ReversalReason   string
}

// NewPayment registers a pending payment
func NewPayment(customerID uuid.UUID, amount decimal.Decimal, method PaymentMethod) (*Payment, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment requires a customer")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid payment method")
	}
	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		Amount:            amount,
		Method:            method,
		Status:            PaymentStatusPending,
	}, nil
}

// Complete confirms the payment at the given time
func (p *Payment) Complete(at time.Time) error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError("INVALID_STATE",
			"Only pending payments can be completed")
	}
	p.Status = PaymentStatusCompleted
	p.CompletedAt = &at
	p.UpdatedAt = time.Now()
	p.AddDomainEvent(NewPaymentCompletedEvent(p))
	return nil
}

// Fail marks the payment rejected before completion
func (p *Payment) Fail() error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError("INVALID_STATE",
			"Only pending payments can be failed")
	}
	p.Status = PaymentStatusFailed
	p.UpdatedAt = time.Now()
	return nil
}

// Reverse administratively voids a completed payment. The ledger must be
// replayed afterwards: FIFO order without this payment may allocate the
// remaining payments differently, so an incremental undo is not attempted.
func (p *Payment) Reverse(reason string, at time.Time) error {
	if p.Status != PaymentStatusCompleted {
		return shared.NewDomainError("INVALID_STATE",
			"Only completed payments can be reversed")
	}
	p.Status = PaymentStatusReversed
	p.ReversedAt = &at
	p.ReversalReason = reason
	p.UpdatedAt = time.Now()
	p.AddDomainEvent(NewPaymentReversedEvent(p, reason))
	return nil
}
