package billing

import (
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubsidyClass is a benefit tier reducing charges below a consumption
// threshold. The cooperative operates two classes.
type SubsidyClass struct {
	shared.BaseEntity
	Code        int // 1 or 2
	Name        string
	ThresholdM3 decimal.Decimal
	Multiplier  decimal.Decimal // fraction of the subsidized base covered
}

// NewSubsidyClass creates a subsidy class
func NewSubsidyClass(code int, name string, thresholdM3, multiplier decimal.Decimal) (*SubsidyClass, error) {
	c := &SubsidyClass{
		BaseEntity:  shared.NewBaseEntity(),
		Code:        code,
		Name:        name,
		ThresholdM3: thresholdM3,
		Multiplier:  multiplier,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the class parameters are in range
func (c *SubsidyClass) Validate() error {
	if c.Code < 1 || c.Code > 2 {
		return shared.NewDomainError("INVALID_SUBSIDY_CLASS", "Subsidy class code must be 1 or 2")
	}
	if !c.ThresholdM3.IsPositive() {
		return shared.NewDomainError("INVALID_SUBSIDY_CLASS", "Subsidy threshold must be positive")
	}
	if !c.Multiplier.IsPositive() || c.Multiplier.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError("INVALID_SUBSIDY_CLASS", "Subsidy multiplier must be in (0, 1]")
	}
	return nil
}

// AmountFor computes the subsidy for a period's consumption under a tariff.
//
// The formula is piecewise on the class threshold, with a strict `>`:
//
//	consumption >  threshold: round(((water+sewage)*threshold + fixed) / 2 * multiplier)
//	consumption <= threshold: round(((consumption/2)*(water+sewage) + fixed/2) * multiplier)
//
// The consumption/2 factor in the second branch assumes the benefit covers
// exactly half of the consumption band. That assumption comes from the
// regulator's tariff decree as applied historically; it is reproduced as
// observed and flagged for review with the domain expert, not reinterpreted.
// Result is rounded to the nearest whole currency unit.
func (c *SubsidyClass) AmountFor(consumptionM3 decimal.Decimal, tariff *TariffSchedule) decimal.Decimal {
	if consumptionM3.IsNegative() || tariff == nil {
		return decimal.Zero
	}
	two := decimal.NewFromInt(2)
	rateSum := tariff.WaterRateM3.Add(tariff.SewageRateM3)

	if consumptionM3.GreaterThan(c.ThresholdM3) {
		base := rateSum.Mul(c.ThresholdM3).Add(tariff.FixedCharge).Div(two)
		return base.Mul(c.Multiplier).Round(0)
	}
	base := consumptionM3.Div(two).Mul(rateSum).Add(tariff.FixedCharge.Div(two))
	return base.Mul(c.Multiplier).Round(0)
}

// SubsidyAssignment is a time-ranged association between a customer and a
// subsidy class. At most one assignment may be active per customer on any
// given date; the old range must be closed before a new one opens.
type SubsidyAssignment struct {
	shared.BaseEntity
	CustomerID    uuid.UUID
	ClassID       uuid.UUID
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// NewSubsidyAssignment creates an open-ended assignment starting at the given date
func NewSubsidyAssignment(customerID, classID uuid.UUID, effectiveFrom time.Time) *SubsidyAssignment {
	return &SubsidyAssignment{
		BaseEntity:    shared.NewBaseEntity(),
		CustomerID:    customerID,
		ClassID:       classID,
		EffectiveFrom: effectiveFrom,
	}
}

// ActiveOn reports whether the assignment is in force on the given date
func (a *SubsidyAssignment) ActiveOn(d time.Time) bool {
	if d.Before(a.EffectiveFrom) {
		return false
	}
	return a.EffectiveTo == nil || d.Before(*a.EffectiveTo)
}

// Close ends the assignment's effective range
func (a *SubsidyAssignment) Close(end time.Time) error {
	if a.EffectiveTo != nil {
		return shared.NewDomainError("INVALID_STATE", "Subsidy assignment is already closed")
	}
	if !end.After(a.EffectiveFrom) {
		return shared.NewDomainError("INVALID_INPUT", "Assignment end date must be after its start")
	}
	a.EffectiveTo = &end
	return nil
}

// Overlaps reports whether two assignment ranges intersect
func (a *SubsidyAssignment) Overlaps(other *SubsidyAssignment) bool {
	if other == nil {
		return false
	}
	aOpen := a.EffectiveTo == nil
	bOpen := other.EffectiveTo == nil
	if aOpen && bOpen {
		return true
	}
	if aOpen {
		return other.EffectiveTo.After(a.EffectiveFrom)
	}
	if bOpen {
		return a.EffectiveTo.After(other.EffectiveFrom)
	}
	return a.EffectiveFrom.Before(*other.EffectiveTo) && other.EffectiveFrom.Before(*a.EffectiveTo)
}

// ValidateAssignment rejects a candidate that would overlap an existing
// assignment for the same customer
func ValidateAssignment(existing []SubsidyAssignment, candidate *SubsidyAssignment) error {
	for i := range existing {
		if existing[i].ID == candidate.ID {
			continue
		}
		if existing[i].CustomerID == candidate.CustomerID && candidate.Overlaps(&existing[i]) {
			return shared.NewDomainError("SUBSIDY_OVERLAP",
				"Customer already has a subsidy assignment active in this date range")
		}
	}
	return nil
}
