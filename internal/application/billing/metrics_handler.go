package billing

import (
	"context"
	"fmt"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// MetricsHandler projects billing domain events onto business metrics
type MetricsHandler struct {
	metrics *telemetry.BusinessMetrics
	logger  *zap.Logger
}

// NewMetricsHandler creates a MetricsHandler
func NewMetricsHandler(metrics *telemetry.BusinessMetrics, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, logger: logger}
}

// EventTypes returns the event types this handler subscribes to
func (h *MetricsHandler) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceIssued,
		billing.EventTypePaymentCompleted,
		billing.EventTypePaymentReversed,
	}
}

// Handle records the metric matching the event type
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *billing.InvoiceIssuedEvent:
		h.metrics.RecordInvoiceIssued(ctx, e.TotalAmount)
	case *billing.PaymentCompletedEvent:
		h.metrics.RecordPayment(ctx, string(e.Method), string(billing.PaymentStatusCompleted), e.Amount)
	case *billing.PaymentReversedEvent:
		h.metrics.RecordPayment(ctx, "", string(billing.PaymentStatusReversed), e.Amount)
	default:
		return fmt.Errorf("unexpected event type %s", event.EventType())
	}
	return nil
}
