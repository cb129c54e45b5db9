package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when metrics are constructed without a meter
var ErrMeterNil = errors.New("meter cannot be nil")

// BusinessMetrics tracks billing activity: invoices issued, payments
// received and reconciliation latency.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	invoiceIssuedTotal    metric.Int64Counter
	invoiceAmountTotal    metric.Int64Counter
	paymentTotal          metric.Int64Counter
	paymentAmountTotal    metric.Int64Counter
	reconciliationSeconds metric.Float64Histogram
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(meter metric.Meter, logger *zap.Logger) (*BusinessMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{meter: meter, logger: logger}

	var err error
	bm.invoiceIssuedTotal, err = meter.Int64Counter(
		"billing_invoice_issued_total",
		metric.WithDescription("Total number of invoices issued"),
		metric.WithUnit("{invoices}"),
	)
	if err != nil {
		return nil, err
	}

	bm.invoiceAmountTotal, err = meter.Int64Counter(
		"billing_invoice_amount_total",
		metric.WithDescription("Total invoiced amount in pesos"),
		metric.WithUnit("{clp}"),
	)
	if err != nil {
		return nil, err
	}

	bm.paymentTotal, err = meter.Int64Counter(
		"billing_payment_total",
		metric.WithDescription("Total number of payments by method and status"),
		metric.WithUnit("{payments}"),
	)
	if err != nil {
		return nil, err
	}

	bm.paymentAmountTotal, err = meter.Int64Counter(
		"billing_payment_amount_total",
		metric.WithDescription("Total paid amount in pesos"),
		metric.WithUnit("{clp}"),
	)
	if err != nil {
		return nil, err
	}

	bm.reconciliationSeconds, err = meter.Float64Histogram(
		"billing_reconciliation_duration_seconds",
		metric.WithDescription("Duration of customer ledger reconciliation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordInvoiceIssued records one issued invoice and its charge amount
func (bm *BusinessMetrics) RecordInvoiceIssued(ctx context.Context, amount decimal.Decimal) {
	bm.invoiceIssuedTotal.Add(ctx, 1)
	bm.invoiceAmountTotal.Add(ctx, amount.IntPart())
}

// RecordPayment records one payment with its method and final status
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, method, status string, amount decimal.Decimal) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	)
	bm.paymentTotal.Add(ctx, 1, attrs)
	bm.paymentAmountTotal.Add(ctx, amount.IntPart(), attrs)
}

// RecordReconciliation records the wall time of one reconciliation run
func (bm *BusinessMetrics) RecordReconciliation(ctx context.Context, elapsed time.Duration, invoicesAffected int) {
	bm.reconciliationSeconds.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.Int("invoices_affected", invoicesAffected)))
}
