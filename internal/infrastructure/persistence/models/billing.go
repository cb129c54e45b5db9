package models

import (
	"encoding/json"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the Customer aggregate.
type CustomerModel struct {
	AggregateModel
	Code           string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name           string `gorm:"type:varchar(200);not null"`
	ServiceAddress string `gorm:"type:text"`
	Active         bool   `gorm:"not null;default:true;index"`
	AliasesJSON    string `gorm:"column:aliases;type:jsonb;default:'[]'"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *billing.Customer {
	c := &billing.Customer{
		Code:           m.Code,
		Name:           m.Name,
		ServiceAddress: m.ServiceAddress,
		Active:         m.Active,
	}
	m.PopulateAggregateRoot(&c.BaseAggregateRoot)
	if m.AliasesJSON != "" {
		_ = json.Unmarshal([]byte(m.AliasesJSON), &c.Aliases)
	}
	return c
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *billing.Customer) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Code = c.Code
	m.Name = c.Name
	m.ServiceAddress = c.ServiceAddress
	m.Active = c.Active
	m.AliasesJSON = "[]"
	if len(c.Aliases) > 0 {
		if data, err := json.Marshal(c.Aliases); err == nil {
			m.AliasesJSON = string(data)
		}
	}
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer
func CustomerModelFromDomain(c *billing.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate. The
// applied payments, paid amount, outstanding amount and status columns are a
// read projection of the ledger replay.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber       string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID          uuid.UUID             `gorm:"type:uuid;not null;index:idx_invoice_customer_fifo,priority:1"`
	PeriodFrom          time.Time             `gorm:"not null"`
	PeriodTo            time.Time             `gorm:"not null"`
	IssueDate           time.Time             `gorm:"not null;index:idx_invoice_customer_fifo,priority:2"`
	DueDate             time.Time             `gorm:"not null"`
	ConsumptionM3       decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	MonthlyCharge       decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount         decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	SubsidyAmount       decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	AdjustmentsJSON     string                `gorm:"column:adjustments;type:jsonb;default:'[]'"`
	AppliedPaymentsJSON string                `gorm:"column:applied_payments;type:jsonb;default:'[]'"`
	PaidAmount          decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	OutstandingAmount   decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	Status              billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber:     m.InvoiceNumber,
		CustomerID:        m.CustomerID,
		PeriodFrom:        m.PeriodFrom,
		PeriodTo:          m.PeriodTo,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		ConsumptionM3:     m.ConsumptionM3,
		MonthlyCharge:     m.MonthlyCharge,
		TotalAmount:       m.TotalAmount,
		SubsidyAmount:     m.SubsidyAmount,
		PaidAmount:        m.PaidAmount,
		OutstandingAmount: m.OutstandingAmount,
		Status:            m.Status,
	}
	m.PopulateAggregateRoot(&inv.BaseAggregateRoot)
	if m.AdjustmentsJSON != "" {
		_ = json.Unmarshal([]byte(m.AdjustmentsJSON), &inv.Adjustments)
	}
	if m.AppliedPaymentsJSON != "" {
		_ = json.Unmarshal([]byte(m.AppliedPaymentsJSON), &inv.AppliedPayments)
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerID = inv.CustomerID
	m.PeriodFrom = inv.PeriodFrom
	m.PeriodTo = inv.PeriodTo
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.ConsumptionM3 = inv.ConsumptionM3
	m.MonthlyCharge = inv.MonthlyCharge
	m.TotalAmount = inv.TotalAmount
	m.SubsidyAmount = inv.SubsidyAmount
	m.PaidAmount = inv.PaidAmount
	m.OutstandingAmount = inv.OutstandingAmount
	m.Status = inv.Status
	m.AdjustmentsJSON = "[]"
	if len(inv.Adjustments) > 0 {
		if data, err := json.Marshal(inv.Adjustments); err == nil {
			m.AdjustmentsJSON = string(data)
		}
	}
	m.AppliedPaymentsJSON = "[]"
	if len(inv.AppliedPayments) > 0 {
		if data, err := json.Marshal(inv.AppliedPayments); err == nil {
			m.AppliedPaymentsJSON = string(data)
		}
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate.
type PaymentModel struct {
	AggregateModel
	CustomerID       uuid.UUID             `gorm:"type:uuid;not null;index:idx_payment_customer_completed,priority:1"`
	Amount           decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Method           billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	GatewayReference string                `gorm:"type:varchar(100);index"`
	Status           billing.PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	CompletedAt      *time.Time            `gorm:"index:idx_payment_customer_completed,priority:2"`
	ReversedAt       *time.Time
	ReversalReason   string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *billing.Payment {
	p := &billing.Payment{
		CustomerID:       m.CustomerID,
		Amount:           m.Amount,
		Method:           m.Method,
		GatewayReference: m.GatewayReference,
		Status:           m.Status,
		CompletedAt:      m.CompletedAt,
		ReversedAt:       m.ReversedAt,
		ReversalReason:   m.ReversalReason,
	}
	m.PopulateAggregateRoot(&p.BaseAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.CustomerID = p.CustomerID
	m.Amount = p.Amount
	m.Method = p.Method
	m.GatewayReference = p.GatewayReference
	m.Status = p.Status
	m.CompletedAt = p.CompletedAt
	m.ReversedAt = p.ReversedAt
	m.ReversalReason = p.ReversalReason
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// AdjustmentModel is the persistence model for the Adjustment aggregate.
type AdjustmentModel struct {
	AggregateModel
	CustomerID uuid.UUID                   `gorm:"type:uuid;not null;index"`
	InvoiceID  *uuid.UUID                  `gorm:"type:uuid;index"`
	Kind       billing.AdjustmentKind      `gorm:"type:varchar(20);not null"`
	ValueType  billing.AdjustmentValueType `gorm:"type:varchar(20);not null"`
	Value      decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Reason     string                      `gorm:"type:text"`
	AppliedAt  time.Time                   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AdjustmentModel) TableName() string {
	return "adjustments"
}

// ToDomain converts the persistence model to a domain Adjustment
func (m *AdjustmentModel) ToDomain() *billing.Adjustment {
	a := &billing.Adjustment{
		CustomerID: m.CustomerID,
		InvoiceID:  m.InvoiceID,
		Kind:       m.Kind,
		ValueType:  m.ValueType,
		Value:      m.Value,
		Reason:     m.Reason,
		AppliedAt:  m.AppliedAt,
	}
	m.PopulateAggregateRoot(&a.BaseAggregateRoot)
	return a
}

// FromDomain populates the persistence model from a domain Adjustment
func (m *AdjustmentModel) FromDomain(a *billing.Adjustment) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.CustomerID = a.CustomerID
	m.InvoiceID = a.InvoiceID
	m.Kind = a.Kind
	m.ValueType = a.ValueType
	m.Value = a.Value
	m.Reason = a.Reason
	m.AppliedAt = a.AppliedAt
}

// AdjustmentModelFromDomain creates a new persistence model from a domain Adjustment
func AdjustmentModelFromDomain(a *billing.Adjustment) *AdjustmentModel {
	m := &AdjustmentModel{}
	m.FromDomain(a)
	return m
}

// SubsidyClassModel is the persistence model for a SubsidyClass.
type SubsidyClassModel struct {
	BaseModel
	Code        int             `gorm:"not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(100);not null"`
	ThresholdM3 decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Multiplier  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (SubsidyClassModel) TableName() string {
	return "subsidy_classes"
}

// ToDomain converts the persistence model to a domain SubsidyClass
func (m *SubsidyClassModel) ToDomain() *billing.SubsidyClass {
	return &billing.SubsidyClass{
		BaseEntity:  m.BaseModel.ToDomain(),
		Code:        m.Code,
		Name:        m.Name,
		ThresholdM3: m.ThresholdM3,
		Multiplier:  m.Multiplier,
	}
}

// FromDomain populates the persistence model from a domain SubsidyClass
func (m *SubsidyClassModel) FromDomain(c *billing.SubsidyClass) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Code = c.Code
	m.Name = c.Name
	m.ThresholdM3 = c.ThresholdM3
	m.Multiplier = c.Multiplier
}

// SubsidyClassModelFromDomain creates a new persistence model from a domain SubsidyClass
func SubsidyClassModelFromDomain(c *billing.SubsidyClass) *SubsidyClassModel {
	m := &SubsidyClassModel{}
	m.FromDomain(c)
	return m
}

// SubsidyAssignmentModel is the persistence model for a SubsidyAssignment.
type SubsidyAssignmentModel struct {
	BaseModel
	CustomerID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ClassID       uuid.UUID `gorm:"type:uuid;not null"`
	EffectiveFrom time.Time `gorm:"not null"`
	EffectiveTo   *time.Time
}

// TableName returns the table name for GORM
func (SubsidyAssignmentModel) TableName() string {
	return "subsidy_assignments"
}

// ToDomain converts the persistence model to a domain SubsidyAssignment
func (m *SubsidyAssignmentModel) ToDomain() *billing.SubsidyAssignment {
	return &billing.SubsidyAssignment{
		BaseEntity:    m.BaseModel.ToDomain(),
		CustomerID:    m.CustomerID,
		ClassID:       m.ClassID,
		EffectiveFrom: m.EffectiveFrom,
		EffectiveTo:   m.EffectiveTo,
	}
}

// FromDomain populates the persistence model from a domain SubsidyAssignment
func (m *SubsidyAssignmentModel) FromDomain(a *billing.SubsidyAssignment) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.CustomerID = a.CustomerID
	m.ClassID = a.ClassID
	m.EffectiveFrom = a.EffectiveFrom
	m.EffectiveTo = a.EffectiveTo
}

// SubsidyAssignmentModelFromDomain creates a new persistence model from a domain SubsidyAssignment
func SubsidyAssignmentModelFromDomain(a *billing.SubsidyAssignment) *SubsidyAssignmentModel {
	m := &SubsidyAssignmentModel{}
	m.FromDomain(a)
	return m
}

// RepactacionPlanModel is the persistence model for a RepactacionPlan.
type RepactacionPlanModel struct {
	AggregateModel
	CustomerID             uuid.UUID        `gorm:"type:uuid;not null;index"`
	StartDate              time.Time        `gorm:"not null"`
	TotalInstallments      int              `gorm:"not null"`
	FirstInstallmentAmount *decimal.Decimal `gorm:"type:decimal(18,4)"`
	InstallmentAmount      decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	OriginalDebt           decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (RepactacionPlanModel) TableName() string {
	return "repactacion_plans"
}

// ToDomain converts the persistence model to a domain RepactacionPlan
func (m *RepactacionPlanModel) ToDomain() *billing.RepactacionPlan {
	p := &billing.RepactacionPlan{
		CustomerID:             m.CustomerID,
		StartDate:              m.StartDate,
		TotalInstallments:      m.TotalInstallments,
		FirstInstallmentAmount: m.FirstInstallmentAmount,
		InstallmentAmount:      m.InstallmentAmount,
		OriginalDebt:           m.OriginalDebt,
	}
	m.PopulateAggregateRoot(&p.BaseAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain RepactacionPlan
func (m *RepactacionPlanModel) FromDomain(p *billing.RepactacionPlan) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.CustomerID = p.CustomerID
	m.StartDate = p.StartDate
	m.TotalInstallments = p.TotalInstallments
	m.FirstInstallmentAmount = p.FirstInstallmentAmount
	m.InstallmentAmount = p.InstallmentAmount
	m.OriginalDebt = p.OriginalDebt
}

// RepactacionPlanModelFromDomain creates a new persistence model from a domain RepactacionPlan
func RepactacionPlanModelFromDomain(p *billing.RepactacionPlan) *RepactacionPlanModel {
	m := &RepactacionPlanModel{}
	m.FromDomain(p)
	return m
}

// TariffScheduleModel is the persistence model for a TariffSchedule.
type TariffScheduleModel struct {
	BaseModel
	EffectiveFrom time.Time `gorm:"not null;index"`
	EffectiveTo   *time.Time
	FixedCharge   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DispatchCost  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WaterRateM3   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SewageRateM3  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (TariffScheduleModel) TableName() string {
	return "tariff_schedules"
}

// ToDomain converts the persistence model to a domain TariffSchedule
func (m *TariffScheduleModel) ToDomain() *billing.TariffSchedule {
	return &billing.TariffSchedule{
		BaseEntity:    m.BaseModel.ToDomain(),
		EffectiveFrom: m.EffectiveFrom,
		EffectiveTo:   m.EffectiveTo,
		FixedCharge:   m.FixedCharge,
		DispatchCost:  m.DispatchCost,
		WaterRateM3:   m.WaterRateM3,
		SewageRateM3:  m.SewageRateM3,
	}
}

// FromDomain populates the persistence model from a domain TariffSchedule
func (m *TariffScheduleModel) FromDomain(t *billing.TariffSchedule) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.EffectiveFrom = t.EffectiveFrom
	m.EffectiveTo = t.EffectiveTo
	m.FixedCharge = t.FixedCharge
	m.DispatchCost = t.DispatchCost
	m.WaterRateM3 = t.WaterRateM3
	m.SewageRateM3 = t.SewageRateM3
}

// TariffScheduleModelFromDomain creates a new persistence model from a domain TariffSchedule
func TariffScheduleModelFromDomain(t *billing.TariffSchedule) *TariffScheduleModel {
	m := &TariffScheduleModel{}
	m.FromDomain(t)
	return m
}
