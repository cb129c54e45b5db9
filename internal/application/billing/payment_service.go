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

// PaymentService registers incoming payments and routes gateway
// notifications into the reconciliation flow
type PaymentService struct {
	scope          TransactionScope
	reconciliation *ReconciliationService
	idempotency    shared.IdempotencyStore
	idempotencyCfg shared.IdempotencyConfig
}

// NewPaymentService creates a PaymentService. The idempotency store may be
// nil, in which case duplicate gateway notifications are not filtered.
func NewPaymentService(
	scope TransactionScope,
	reconciliation *ReconciliationService,
	idempotency shared.IdempotencyStore,
	idempotencyCfg shared.IdempotencyConfig,
) *PaymentService {
	return &PaymentService{
		scope:          scope,
		reconciliation: reconciliation,
		idempotency:    idempotency,
		idempotencyCfg: idempotencyCfg,
	}
}

// RegisterPaymentRequest describes a payment entered at the counter or
// initiated through the portal
type RegisterPaymentRequest struct {
	CustomerCode     string
	Amount           decimal.Decimal
	Method           billing.PaymentMethod
	GatewayReference string
}

// RegisterPayment records a pending payment for the customer resolved by
// code (current code or historical alias)
func (s *PaymentService) RegisterPayment(ctx context.Context, req RegisterPaymentRequest) (*billing.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "register")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerCode, req.CustomerCode,
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	var payment *billing.Payment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		customer, err := repos.CustomerRepo().FindByCode(ctx, req.CustomerCode)
		if err != nil {
			return fmt.Errorf("failed to resolve customer: %w", err)
		}

		payment, err = billing.NewPayment(customer.ID, req.Amount, req.Method)
		if err != nil {
			return err
		}
		payment.GatewayReference = req.GatewayReference

		if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return payment, nil
}

// RegisterAndComplete records a payment and immediately confirms it. This is
// the counter flow: the clerk takes cash, the payment is final on entry.
func (s *PaymentService) RegisterAndComplete(ctx context.Context, req RegisterPaymentRequest, at time.Time) (*ReconciliationSummary, error) {
	payment, err := s.RegisterPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.reconciliation.CompletePayment(ctx, payment.ID, at)
}

// GatewayNotification is the outcome reported by the card gateway for a
// previously registered payment
type GatewayNotification struct {
	Reference string
	Succeeded bool
	PaidAt    time.Time
}

// HandleGatewayNotification applies a gateway callback. Notifications are
// retried by the gateway, so processing is idempotent per reference: a
// duplicate is acknowledged without touching the ledger.
func (s *PaymentService) HandleGatewayNotification(ctx context.Context, n GatewayNotification) (*ReconciliationSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "gateway_notification")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrGatewayRef, n.Reference)

	if n.Reference == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Gateway notification has no reference")
	}

	var idemKey string
	if s.idempotency != nil && s.idempotencyCfg.Enabled {
		idemKey = "gateway:" + n.Reference
		done, err := s.idempotency.IsProcessed(ctx, idemKey)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if done {
			telemetry.AddEvent(span, "duplicate_notification_skipped")
			return nil, nil
		}
	}

	var paymentID uuid.UUID
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByGatewayReference(ctx, n.Reference)
		if err != nil {
			return fmt.Errorf("failed to resolve payment by reference: %w", err)
		}
		paymentID = payment.ID

		if !n.Succeeded {
			if err := payment.Fail(); err != nil {
				return err
			}
			return repos.PaymentRepo().Save(ctx, payment)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !n.Succeeded {
		s.markNotificationDone(ctx, idemKey)
		return nil, nil
	}

	summary, err := s.reconciliation.CompletePayment(ctx, paymentID, n.PaidAt)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.markNotificationDone(ctx, idemKey)
	return summary, nil
}

// markNotificationDone records the reference only after the notification's
// effect has committed. A failed run leaves the key unmarked so the
// gateway's retry is processed instead of acknowledged as a duplicate.
func (s *PaymentService) markNotificationDone(ctx context.Context, key string) {
	if key == "" {
		return
	}
	// Marking is best-effort: the replayed ledger absorbs a re-delivery unharmed
	_, _ = s.idempotency.MarkProcessed(ctx, key, s.idempotencyCfg.TTL)
}
