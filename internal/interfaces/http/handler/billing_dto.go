package handler

import (
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerResponse is the API shape of a customer account
type CustomerResponse struct {
	ID             uuid.UUID               `json:"id"`
	Code           string                  `json:"code"`
	Name           string                  `json:"name"`
	ServiceAddress string                  `json:"service_address"`
	Active         bool                    `json:"active"`
	Aliases        []billing.IdentityAlias `json:"aliases,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

func toCustomerResponse(c *billing.Customer) CustomerResponse {
	return CustomerResponse{
		ID:             c.ID,
		Code:           c.Code,
		Name:           c.Name,
		ServiceAddress: c.ServiceAddress,
		Active:         c.Active,
		Aliases:        c.Aliases,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toCustomerResponses(customers []billing.Customer) []CustomerResponse {
	out := make([]CustomerResponse, len(customers))
	for i := range customers {
		out[i] = toCustomerResponse(&customers[i])
	}
	return out
}

// PaymentResponse is the API shape of a payment
type PaymentResponse struct {
	ID               uuid.UUID             `json:"id"`
	CustomerID       uuid.UUID             `json:"customer_id"`
	Amount           decimal.Decimal       `json:"amount"`
	Method           billing.PaymentMethod `json:"method"`
	GatewayReference string                `json:"gateway_reference,omitempty"`
	Status           billing.PaymentStatus `json:"status"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	ReversedAt       *time.Time            `json:"reversed_at,omitempty"`
	ReversalReason   string                `json:"reversal_reason,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

func toPaymentResponse(p *billing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		CustomerID:       p.CustomerID,
		Amount:           p.Amount,
		Method:           p.Method,
		GatewayReference: p.GatewayReference,
		Status:           p.Status,
		CompletedAt:      p.CompletedAt,
		ReversedAt:       p.ReversedAt,
		ReversalReason:   p.ReversalReason,
		CreatedAt:        p.CreatedAt,
	}
}

// InvoiceResponse is the API shape of a boleta with its ledger projection
type InvoiceResponse struct {
	ID                uuid.UUID                   `json:"id"`
	InvoiceNumber     string                      `json:"invoice_number"`
	CustomerID        uuid.UUID                   `json:"customer_id"`
	PeriodFrom        time.Time                   `json:"period_from"`
	PeriodTo          time.Time                   `json:"period_to"`
	IssueDate         time.Time                   `json:"issue_date"`
	DueDate           time.Time                   `json:"due_date"`
	ConsumptionM3     decimal.Decimal             `json:"consumption_m3"`
	MonthlyCharge     decimal.Decimal             `json:"monthly_charge"`
	TotalAmount       decimal.Decimal             `json:"total_amount"`
	SubsidyAmount     decimal.Decimal             `json:"subsidy_amount"`
	Adjustments       []billing.AppliedAdjustment `json:"adjustments,omitempty"`
	AppliedPayments   []billing.AppliedPayment    `json:"applied_payments,omitempty"`
	PaidAmount        decimal.Decimal             `json:"paid_amount"`
	OutstandingAmount decimal.Decimal             `json:"outstanding_amount"`
	Status            billing.InvoiceStatus       `json:"status"`
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		CustomerID:        inv.CustomerID,
		PeriodFrom:        inv.PeriodFrom,
		PeriodTo:          inv.PeriodTo,
		IssueDate:         inv.IssueDate,
		DueDate:           inv.DueDate,
		ConsumptionM3:     inv.ConsumptionM3,
		MonthlyCharge:     inv.MonthlyCharge,
		TotalAmount:       inv.TotalAmount,
		SubsidyAmount:     inv.SubsidyAmount,
		Adjustments:       inv.Adjustments,
		AppliedPayments:   inv.AppliedPayments,
		PaidAmount:        inv.PaidAmount,
		OutstandingAmount: inv.OutstandingAmount,
		Status:            inv.Status,
	}
}

func toInvoiceResponses(invoices []billing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = toInvoiceResponse(&invoices[i])
	}
	return out
}

// AdjustmentResponse is the API shape of a discount or fine
type AdjustmentResponse struct {
	ID        uuid.UUID                   `json:"id"`
	InvoiceID *uuid.UUID                  `json:"invoice_id,omitempty"`
	Kind      billing.AdjustmentKind      `json:"kind"`
	ValueType billing.AdjustmentValueType `json:"value_type"`
	Value     decimal.Decimal             `json:"value"`
	Reason    string                      `json:"reason"`
	AppliedAt time.Time                   `json:"applied_at"`
}

func toAdjustmentResponse(a *billing.Adjustment) AdjustmentResponse {
	return AdjustmentResponse{
		ID:        a.ID,
		InvoiceID: a.InvoiceID,
		Kind:      a.Kind,
		ValueType: a.ValueType,
		Value:     a.Value,
		Reason:    a.Reason,
		AppliedAt: a.AppliedAt,
	}
}

// TariffResponse is the API shape of a tariff schedule
type TariffResponse struct {
	ID            uuid.UUID       `json:"id"`
	EffectiveFrom time.Time       `json:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
	FixedCharge   decimal.Decimal `json:"fixed_charge"`
	DispatchCost  decimal.Decimal `json:"dispatch_cost"`
	WaterRateM3   decimal.Decimal `json:"water_rate_m3"`
	SewageRateM3  decimal.Decimal `json:"sewage_rate_m3"`
}

func toTariffResponse(t *billing.TariffSchedule) TariffResponse {
	return TariffResponse{
		ID:            t.ID,
		EffectiveFrom: t.EffectiveFrom,
		EffectiveTo:   t.EffectiveTo,
		FixedCharge:   t.FixedCharge,
		DispatchCost:  t.DispatchCost,
		WaterRateM3:   t.WaterRateM3,
		SewageRateM3:  t.SewageRateM3,
	}
}

// SubsidyClassResponse is the API shape of a subsidy class
type SubsidyClassResponse struct {
	ID          uuid.UUID       `json:"id"`
	Code        int             `json:"code"`
	Name        string          `json:"name"`
	ThresholdM3 decimal.Decimal `json:"threshold_m3"`
	Multiplier  decimal.Decimal `json:"multiplier"`
}

func toSubsidyClassResponse(sc *billing.SubsidyClass) SubsidyClassResponse {
	return SubsidyClassResponse{
		ID:          sc.ID,
		Code:        sc.Code,
		Name:        sc.Name,
		ThresholdM3: sc.ThresholdM3,
		Multiplier:  sc.Multiplier,
	}
}

// SubsidyAssignmentResponse is the API shape of a subsidy assignment
type SubsidyAssignmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	ClassID       uuid.UUID  `json:"class_id"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
}

func toSubsidyAssignmentResponse(a *billing.SubsidyAssignment) SubsidyAssignmentResponse {
	return SubsidyAssignmentResponse{
		ID:            a.ID,
		CustomerID:    a.CustomerID,
		ClassID:       a.ClassID,
		EffectiveFrom: a.EffectiveFrom,
		EffectiveTo:   a.EffectiveTo,
	}
}

// PlanResponse is the API shape of a repactacion plan
type PlanResponse struct {
	ID                     uuid.UUID        `json:"id"`
	CustomerID             uuid.UUID        `json:"customer_id"`
	StartDate              time.Time        `json:"start_date"`
	TotalInstallments      int              `json:"total_installments"`
	FirstInstallmentAmount *decimal.Decimal `json:"first_installment_amount,omitempty"`
	InstallmentAmount      decimal.Decimal  `json:"installment_amount"`
	OriginalDebt           decimal.Decimal  `json:"original_debt"`
}

func toPlanResponse(p *billing.RepactacionPlan) PlanResponse {
	return PlanResponse{
		ID:                     p.ID,
		CustomerID:             p.CustomerID,
		StartDate:              p.StartDate,
		TotalInstallments:      p.TotalInstallments,
		FirstInstallmentAmount: p.FirstInstallmentAmount,
		InstallmentAmount:      p.InstallmentAmount,
		OriginalDebt:           p.OriginalDebt,
	}
}
