package billing

import (
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RepactacionPlan is a multi-installment debt restructuring agreement that
// replaces a lump-sum debt. Plans are month-granular: the day of month of
// StartDate is ignored when locating an installment.
type RepactacionPlan struct {
	shared.BaseAggregateRoot
	CustomerID             uuid.UUID
	StartDate              time.Time
	TotalInstallments      int
	FirstInstallmentAmount *decimal.Decimal // optional override for installment 1
	InstallmentAmount      decimal.Decimal  // regular per-installment amount
	OriginalDebt           decimal.Decimal
}

// NewRepactacionPlan creates a restructuring plan
func NewRepactacionPlan(
	customerID uuid.UUID,
	startDate time.Time,
	totalInstallments int,
	firstInstallment *decimal.Decimal,
	installmentAmount decimal.Decimal,
	originalDebt decimal.Decimal,
) (*RepactacionPlan, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Plan requires a customer")
	}
	if totalInstallments <= 0 {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan must have a positive installment count")
	}
	if !installmentAmount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Installment amount must be positive")
	}
	if firstInstallment != nil && !firstInstallment.IsPositive() {
		return nil, shared.NewDomainError("INVALID_PLAN", "First installment override must be positive")
	}
	if !originalDebt.IsPositive() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Original debt must be positive")
	}
	return &RepactacionPlan{
		BaseAggregateRoot:      shared.NewBaseAggregateRoot(),
		CustomerID:             customerID,
		StartDate:              startDate,
		TotalInstallments:      totalInstallments,
		FirstInstallmentAmount: firstInstallment,
		InstallmentAmount:      installmentAmount,
		OriginalDebt:           originalDebt,
	}, nil
}

// InstallmentDue describes the installment a plan contributes to one period
type InstallmentDue struct {
	Number            int             `json:"number"`
	Amount            decimal.Decimal `json:"amount"`
	TotalInstallments int             `json:"total_installments"`
	OriginalDebt      decimal.Decimal `json:"original_debt"`
}

// InstallmentNumber returns the 1-based installment number the plan reaches
// in the given period: months elapsed since the start month, plus one. A
// period in the plan's start month yields 1; earlier periods go negative.
func (p *RepactacionPlan) InstallmentNumber(period time.Time) int {
	return (period.Year()-p.StartDate.Year())*12 + int(period.Month()) - int(p.StartDate.Month()) + 1
}

// InstallmentFor determines whether an installment is due in the target
// billing period, and its amount. Returns (nil, false) when the period falls
// before the plan starts or after all installments have been billed.
func (p *RepactacionPlan) InstallmentFor(period time.Time) (*InstallmentDue, bool) {
	n := p.InstallmentNumber(period)
	if n < 1 || n > p.TotalInstallments {
		return nil, false
	}

	amount := p.InstallmentAmount
	if n == 1 && p.FirstInstallmentAmount != nil {
		amount = *p.FirstInstallmentAmount
	}

	return &InstallmentDue{
		Number:            n,
		Amount:            amount,
		TotalInstallments: p.TotalInstallments,
		OriginalDebt:      p.OriginalDebt,
	}, true
}

// IsExhausted reports whether the plan has no effect on the period
// because every installment has already been billed
func (p *RepactacionPlan) IsExhausted(period time.Time) bool {
	return p.InstallmentNumber(period) > p.TotalInstallments
}
