package billing

import (
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TariffSchedule is an effective-dated tariff configuration record.
// Rates are never embedded as constants: historical recalculation must use
// the schedule that was in force on the invoice's issue date.
type TariffSchedule struct {
	shared.BaseEntity
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	FixedCharge   decimal.Decimal // cargo fijo per period
	DispatchCost  decimal.Decimal // costo de despacho (invoice delivery)
	WaterRateM3   decimal.Decimal // per cubic meter of potable water
	SewageRateM3  decimal.Decimal // per cubic meter of sewage/treatment
}

// NewTariffSchedule creates a tariff schedule effective from the given date
func NewTariffSchedule(effectiveFrom time.Time, fixedCharge, dispatchCost, waterRate, sewageRate decimal.Decimal) (*TariffSchedule, error) {
	t := &TariffSchedule{
		BaseEntity:    shared.NewBaseEntity(),
		EffectiveFrom: effectiveFrom,
		FixedCharge:   fixedCharge,
		DispatchCost:  dispatchCost,
		WaterRateM3:   waterRate,
		SewageRateM3:  sewageRate,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that all rate components are in range
func (t *TariffSchedule) Validate() error {
	if t.FixedCharge.IsNegative() || t.DispatchCost.IsNegative() ||
		t.WaterRateM3.IsNegative() || t.SewageRateM3.IsNegative() {
		return shared.NewDomainError("INVALID_TARIFF", "Tariff rates cannot be negative")
	}
	if t.EffectiveTo != nil && !t.EffectiveTo.After(t.EffectiveFrom) {
		return shared.NewDomainError("INVALID_TARIFF", "Tariff effective range is empty")
	}
	return nil
}

// ActiveOn reports whether the schedule is in force on the given date
func (t *TariffSchedule) ActiveOn(d time.Time) bool {
	if d.Before(t.EffectiveFrom) {
		return false
	}
	return t.EffectiveTo == nil || d.Before(*t.EffectiveTo)
}

// Close ends the schedule's effective range before a replacement takes over
func (t *TariffSchedule) Close(end time.Time) error {
	if t.EffectiveTo != nil {
		return shared.NewDomainError("INVALID_STATE", "Tariff schedule is already closed")
	}
	if !end.After(t.EffectiveFrom) {
		return shared.NewDomainError("INVALID_TARIFF", "Tariff end date must be after its start")
	}
	t.EffectiveTo = &end
	return nil
}

// ChargeBreakdown itemizes the charges of one billing period. Every item is
// CLP Money; boletas carry no sub-unit amounts.
type ChargeBreakdown struct {
	FixedCharge  valueobject.Money `json:"fixed_charge"`
	DispatchCost valueobject.Money `json:"dispatch_cost"`
	WaterCost    valueobject.Money `json:"water_cost"`
	SewageCost   valueobject.Money `json:"sewage_cost"`
	Subsidy      valueobject.Money `json:"subsidy"`
	Total        valueobject.Money `json:"total"`
}

// CalculateCharges computes the itemized charges for a period's consumption
// under the given tariff, minus the subsidy for the customer's class (nil
// class means no subsidy). Amounts are rounded to whole currency units.
func CalculateCharges(consumptionM3 decimal.Decimal, tariff *TariffSchedule, class *SubsidyClass) (*ChargeBreakdown, error) {
	if tariff == nil {
		return nil, shared.NewDomainError("INVALID_TARIFF", "Tariff schedule is required")
	}
	if err := tariff.Validate(); err != nil {
		return nil, err
	}
	if consumptionM3.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CONSUMPTION", "Consumption cannot be negative")
	}

	fixedCharge := valueobject.NewMoneyCLP(tariff.FixedCharge)
	dispatchCost := valueobject.NewMoneyCLP(tariff.DispatchCost)
	waterCost := valueobject.NewMoneyCLP(consumptionM3.Mul(tariff.WaterRateM3)).RoundToUnit()
	sewageCost := valueobject.NewMoneyCLP(consumptionM3.Mul(tariff.SewageRateM3)).RoundToUnit()

	subsidy := valueobject.ZeroCLP()
	if class != nil {
		subsidy = valueobject.NewMoneyCLP(class.AmountFor(consumptionM3, tariff))
	}

	total := fixedCharge.
		MustAdd(dispatchCost).
		MustAdd(waterCost).
		MustAdd(sewageCost).
		MustSubtract(subsidy)

	return &ChargeBreakdown{
		FixedCharge:  fixedCharge,
		DispatchCost: dispatchCost,
		WaterCost:    waterCost,
		SewageCost:   sewageCost,
		Subsidy:      subsidy,
		Total:        total,
	}, nil
}
