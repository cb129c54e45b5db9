package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogService manages the configuration aggregates that parameterize
// billing: tariff schedules, subsidy classes and assignments, and debt
// restructuring plans
type CatalogService struct {
	scope TransactionScope
}

// NewCatalogService creates a CatalogService
func NewCatalogService(scope TransactionScope) *CatalogService {
	return &CatalogService{scope: scope}
}

// CreateTariffRequest describes a new tariff schedule
type CreateTariffRequest struct {
	EffectiveFrom time.Time
	FixedCharge   decimal.Decimal
	DispatchCost  decimal.Decimal
	WaterRateM3   decimal.Decimal
	SewageRateM3  decimal.Decimal
}

// CreateTariff introduces a new tariff schedule and closes the one it
// replaces. Old schedules stay queryable for historical recalculation.
func (s *CatalogService) CreateTariff(ctx context.Context, req CreateTariffRequest) (*billing.TariffSchedule, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "create_tariff")
	defer span.End()

	var schedule *billing.TariffSchedule
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if current, err := repos.TariffRepo().FindEffectiveOn(ctx, req.EffectiveFrom); err == nil && current != nil {
			if err := current.Close(req.EffectiveFrom); err != nil {
				return err
			}
			if err := repos.TariffRepo().Save(ctx, current); err != nil {
				return fmt.Errorf("failed to close previous tariff: %w", err)
			}
		}

		var err error
		schedule, err = billing.NewTariffSchedule(
			req.EffectiveFrom, req.FixedCharge, req.DispatchCost, req.WaterRateM3, req.SewageRateM3)
		if err != nil {
			return err
		}
		return repos.TariffRepo().Save(ctx, schedule)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return schedule, nil
}

// CreateSubsidyClassRequest describes a new subsidy class
type CreateSubsidyClassRequest struct {
	Code        int
	Name        string
	ThresholdM3 decimal.Decimal
	Multiplier  decimal.Decimal
}

// CreateSubsidyClass registers a subsidy class from the municipal decree
func (s *CatalogService) CreateSubsidyClass(ctx context.Context, req CreateSubsidyClassRequest) (*billing.SubsidyClass, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "create_subsidy_class")
	defer span.End()

	var class *billing.SubsidyClass
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if existing, err := repos.SubsidyRepo().FindClassByCode(ctx, req.Code); err == nil && existing != nil {
			return shared.NewDomainError("ALREADY_EXISTS",
				fmt.Sprintf("subsidy class %d already exists", req.Code))
		}

		var err error
		class, err = billing.NewSubsidyClass(req.Code, req.Name, req.ThresholdM3, req.Multiplier)
		if err != nil {
			return err
		}
		return repos.SubsidyRepo().SaveClass(ctx, class)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return class, nil
}

// AssignSubsidy puts the customer on a subsidy class from the given date,
// closing any currently open assignment first
func (s *CatalogService) AssignSubsidy(ctx context.Context, customerID uuid.UUID, classCode int, from time.Time) (*billing.SubsidyAssignment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "assign_subsidy")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, customerID.String(),
		"class_code", classCode,
	)

	var assignment *billing.SubsidyAssignment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		class, err := repos.SubsidyRepo().FindClassByCode(ctx, classCode)
		if err != nil {
			return fmt.Errorf("failed to load subsidy class: %w", err)
		}

		existing, err := repos.SubsidyRepo().FindAssignmentsByCustomer(ctx, customerID)
		if err != nil {
			return fmt.Errorf("failed to load assignments: %w", err)
		}
		for i := range existing {
			if existing[i].EffectiveTo == nil {
				if err := existing[i].Close(from); err != nil {
					return err
				}
				if err := repos.SubsidyRepo().SaveAssignment(ctx, &existing[i]); err != nil {
					return fmt.Errorf("failed to close previous assignment: %w", err)
				}
			}
		}

		assignment = billing.NewSubsidyAssignment(customerID, class.ID, from)
		if err := billing.ValidateAssignment(existing, assignment); err != nil {
			return err
		}
		return repos.SubsidyRepo().SaveAssignment(ctx, assignment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return assignment, nil
}

// RemoveSubsidy ends the customer's current subsidy assignment
func (s *CatalogService) RemoveSubsidy(ctx context.Context, customerID uuid.UUID, at time.Time) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		assignment, err := repos.SubsidyRepo().FindActiveAssignment(ctx, customerID, at)
		if err != nil {
			return fmt.Errorf("no active subsidy assignment: %w", err)
		}
		if err := assignment.Close(at); err != nil {
			return err
		}
		return repos.SubsidyRepo().SaveAssignment(ctx, assignment)
	})
}

// CreatePlanRequest describes a new debt restructuring agreement
type CreatePlanRequest struct {
	CustomerID             uuid.UUID
	StartDate              time.Time
	TotalInstallments      int
	FirstInstallmentAmount *decimal.Decimal
	InstallmentAmount      decimal.Decimal
	OriginalDebt           decimal.Decimal
}

// CreateRepactacionPlan records a restructuring agreement that spreads a
// customer's accumulated debt over monthly installments
func (s *CatalogService) CreateRepactacionPlan(ctx context.Context, req CreatePlanRequest) (*billing.RepactacionPlan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "create_plan")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, req.CustomerID.String())

	var plan *billing.RepactacionPlan
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.CustomerRepo().FindByID(ctx, req.CustomerID); err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}

		var err error
		plan, err = billing.NewRepactacionPlan(
			req.CustomerID, req.StartDate, req.TotalInstallments,
			req.FirstInstallmentAmount, req.InstallmentAmount, req.OriginalDebt)
		if err != nil {
			return err
		}
		return repos.RepactacionRepo().Save(ctx, plan)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return plan, nil
}
