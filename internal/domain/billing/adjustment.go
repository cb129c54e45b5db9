package billing

import (
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustmentKind distinguishes discounts from fines
type AdjustmentKind string

const (
	AdjustmentKindDiscount AdjustmentKind = "DISCOUNT"
	AdjustmentKindFine     AdjustmentKind = "FINE"
)

// IsValid checks if the kind is valid
func (k AdjustmentKind) IsValid() bool {
	return k == AdjustmentKindDiscount || k == AdjustmentKindFine
}

// AdjustmentValueType distinguishes fixed amounts from percentages
type AdjustmentValueType string

const (
	AdjustmentValueFixed   AdjustmentValueType = "FIXED"
	AdjustmentValuePercent AdjustmentValueType = "PERCENT"
)

// IsValid checks if the value type is valid
func (t AdjustmentValueType) IsValid() bool {
	return t == AdjustmentValueFixed || t == AdjustmentValuePercent
}

// Adjustment changes the effective amount due for a specific invoice, or for
// the customer's next billing run when issued before billing (InvoiceID nil).
type Adjustment struct {
	shared.BaseAggregateRoot
	CustomerID uuid.UUID
	InvoiceID  *uuid.UUID
	Kind       AdjustmentKind
	ValueType  AdjustmentValueType
	Value      decimal.Decimal // amount, or percentage in (0, 100]
	Reason     string
	AppliedAt  time.Time
}

// NewAdjustment creates a discount or fine
func NewAdjustment(
	customerID uuid.UUID,
	invoiceID *uuid.UUID,
	kind AdjustmentKind,
	valueType AdjustmentValueType,
	value decimal.Decimal,
	reason string,
) (*Adjustment, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Adjustment requires a customer")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid adjustment kind")
	}
	if !valueType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid adjustment value type")
	}
	if !value.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Adjustment value must be positive")
	}
	if valueType == AdjustmentValuePercent && value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Percentage adjustment cannot exceed 100")
	}
	return &Adjustment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		InvoiceID:         invoiceID,
		Kind:              kind,
		ValueType:         valueType,
		Value:             value,
		Reason:            reason,
		AppliedAt:         time.Now(),
	}, nil
}

// AmountAgainst resolves the adjustment to a currency amount for the given
// base charge. Percentages are rounded to whole currency units.
func (a *Adjustment) AmountAgainst(base decimal.Decimal) decimal.Decimal {
	if a.ValueType == AdjustmentValueFixed {
		return a.Value
	}
	return base.Mul(a.Value).Div(decimal.NewFromInt(100)).Round(0)
}

// AppliedAdjustment is the record of an adjustment resolved against an
// invoice, stored inside the Invoice aggregate
type AppliedAdjustment struct {
	AdjustmentID uuid.UUID       `json:"adjustment_id"`
	Kind         AdjustmentKind  `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	AppliedAt    time.Time       `json:"applied_at"`
}
