package billing

import (
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types for the billing domain
const (
	EventTypeInvoiceIssued     = "billing.invoice.issued"
	EventTypeInvoicePaid       = "billing.invoice.paid"
	EventTypePaymentCompleted  = "billing.payment.completed"
	EventTypePaymentReconciled = "billing.payment.reconciled"
	EventTypePaymentReversed   = "billing.payment.reversed"
	EventTypeCreditIssued      = "billing.credit.issued"
)

// InvoiceIssuedEvent is published when a boleta is generated
type InvoiceIssuedEvent struct {
	shared.BaseDomainEvent
	CustomerID    uuid.UUID       `json:"customer_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PeriodFrom    time.Time       `json:"period_from"`
	PeriodTo      time.Time       `json:"period_to"`
	MonthlyCharge decimal.Decimal `json:"monthly_charge"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	DueDate       time.Time       `json:"due_date"`
}

// NewInvoiceIssuedEvent creates an InvoiceIssuedEvent
func NewInvoiceIssuedEvent(inv *Invoice) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceIssued, "Invoice", inv.ID),
		CustomerID:      inv.CustomerID,
		InvoiceNumber:   inv.InvoiceNumber,
		PeriodFrom:      inv.PeriodFrom,
		PeriodTo:        inv.PeriodTo,
		MonthlyCharge:   inv.MonthlyCharge,
		TotalAmount:     inv.TotalAmount,
		DueDate:         inv.DueDate,
	}
}

// InvoicePaidEvent is published when an invoice becomes fully paid
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	CustomerID    uuid.UUID `json:"customer_id"`
	InvoiceNumber string    `json:"invoice_number"`
	PaymentID     uuid.UUID `json:"payment_id"`
}

// NewInvoicePaidEvent creates an InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice, paymentID uuid.UUID) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, "Invoice", inv.ID),
		CustomerID:      inv.CustomerID,
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentID:       paymentID,
	}
}

// PaymentCompletedEvent is published when a payment is confirmed
type PaymentCompletedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID       `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
}

// NewPaymentCompletedEvent creates a PaymentCompletedEvent
func NewPaymentCompletedEvent(p *Payment) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCompleted, "Payment", p.ID),
		CustomerID:      p.CustomerID,
		Amount:          p.Amount,
		Method:          p.Method,
	}
}

// PaymentReconciledEvent is published after a payment has been allocated
// across the customer's outstanding invoices
type PaymentReconciledEvent struct {
	shared.BaseDomainEvent
	CustomerID       uuid.UUID       `json:"customer_id"`
	Amount           decimal.Decimal `json:"amount"`
	InvoicesAffected int             `json:"invoices_affected"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	CreditAvailable  decimal.Decimal `json:"credit_available"`
}

// NewPaymentReconciledEvent creates a PaymentReconciledEvent
func NewPaymentReconciledEvent(paymentID, customerID uuid.UUID, amount decimal.Decimal, invoicesAffected int, newBalance, credit decimal.Decimal) *PaymentReconciledEvent {
	return &PaymentReconciledEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentReconciled, "Payment", paymentID),
		CustomerID:       customerID,
		Amount:           amount,
		InvoicesAffected: invoicesAffected,
		NewBalance:       newBalance,
		CreditAvailable:  credit,
	}
}

// PaymentReversedEvent is published when a completed payment is voided
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID       `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
}

// NewPaymentReversedEvent creates a PaymentReversedEvent
func NewPaymentReversedEvent(p *Payment, reason string) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReversed, "Payment", p.ID),
		CustomerID:      p.CustomerID,
		Amount:          p.Amount,
		Reason:          reason,
	}
}

// CreditIssuedEvent is published when a payment leaves residual credit
type CreditIssuedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID       `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// NewCreditIssuedEvent creates a CreditIssuedEvent
func NewCreditIssuedEvent(paymentID, customerID uuid.UUID, amount decimal.Decimal) *CreditIssuedEvent {
	return &CreditIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditIssued, "Payment", paymentID),
		CustomerID:      customerID,
		Amount:          amount,
	}
}
