package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountService manages member accounts and their identity history
type AccountService struct {
	scope TransactionScope
}

// NewAccountService creates an AccountService
func NewAccountService(scope TransactionScope) *AccountService {
	return &AccountService{scope: scope}
}

// CreateCustomerRequest describes a new member account
type CreateCustomerRequest struct {
	Code           string
	Name           string
	ServiceAddress string
}

// CreateCustomer registers a new member account
func (s *AccountService) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*billing.Customer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "create")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerCode, req.Code)

	var customer *billing.Customer
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		customer, err = billing.NewCustomer(req.Code, req.Name, req.ServiceAddress)
		if err != nil {
			return err
		}
		return repos.CustomerRepo().Save(ctx, customer)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return customer, nil
}

// RecordIdentityChange renames a customer's code, preserving the old code as
// a dated alias so historical documents still resolve
func (s *AccountService) RecordIdentityChange(ctx context.Context, customerID uuid.UUID, newCode string, effectiveAt time.Time) (*billing.Customer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "identity_change")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, customerID.String())

	var customer *billing.Customer
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		customer, err = repos.CustomerRepo().FindByID(ctx, customerID)
		if err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}

		// The previous identity runs from the account's creation, or from
		// the end of the latest alias when one exists
		from := customer.CreatedAt
		for _, alias := range customer.Aliases {
			if alias.EffectiveTo != nil && alias.EffectiveTo.After(from) {
				from = *alias.EffectiveTo
			}
		}
		if err := customer.AddAlias(billing.IdentityAlias{
			Code:          customer.Code,
			EffectiveFrom: from,
			EffectiveTo:   &effectiveAt,
		}); err != nil {
			return err
		}
		customer.Code = newCode
		customer.UpdatedAt = time.Now()

		return repos.CustomerRepo().Save(ctx, customer)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return customer, nil
}

// DeactivateCustomer marks the account inactive; history is preserved
func (s *AccountService) DeactivateCustomer(ctx context.Context, customerID uuid.UUID) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		customer, err := repos.CustomerRepo().FindByID(ctx, customerID)
		if err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		customer.Deactivate()
		return repos.CustomerRepo().Save(ctx, customer)
	})
}

// GrantAdjustmentRequest describes a discount or fine to issue
type GrantAdjustmentRequest struct {
	CustomerID uuid.UUID
	InvoiceID  *uuid.UUID // nil attaches to the next billing run
	Kind       billing.AdjustmentKind
	ValueType  billing.AdjustmentValueType
	Value      decimal.Decimal
	Reason     string
}

// GrantAdjustment issues a discount or fine. With an invoice ID it applies
// to that boleta immediately; without one it waits for the next billing run.
func (s *AccountService) GrantAdjustment(ctx context.Context, req GrantAdjustmentRequest) (*billing.Adjustment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "grant_adjustment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		"kind", string(req.Kind),
	)

	var adjustment *billing.Adjustment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		adjustment, err = billing.NewAdjustment(
			req.CustomerID, req.InvoiceID, req.Kind, req.ValueType, req.Value, req.Reason)
		if err != nil {
			return err
		}

		if req.InvoiceID != nil {
			invoice, err := repos.InvoiceRepo().FindByID(ctx, *req.InvoiceID)
			if err != nil {
				return fmt.Errorf("failed to load invoice: %w", err)
			}
			if err := invoice.ApplyAdjustment(adjustment); err != nil {
				return err
			}
			if err := repos.InvoiceRepo().Save(ctx, invoice); err != nil {
				return fmt.Errorf("failed to save invoice: %w", err)
			}
		}
		return repos.AdjustmentRepo().Save(ctx, adjustment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return adjustment, nil
}
