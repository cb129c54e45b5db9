package handler

import (
	"io"
	"net/http"
	"time"

	appbilling "github.com/coopaguas/backend/internal/application/billing"
	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/infrastructure/gateway"
	"github.com/coopaguas/backend/internal/infrastructure/logger"
	"github.com/coopaguas/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentHandler serves payment registration, completion, reversal and
// gateway callback endpoints
type PaymentHandler struct {
	BaseHandler
	payments       *appbilling.PaymentService
	reconciliation *appbilling.ReconciliationService
	cardGateway    *gateway.CardGateway
	paymentRepo    billing.PaymentRepository
}

// NewPaymentHandler creates a PaymentHandler. The card gateway may be nil
// when the cooperative runs counter payments only.
func NewPaymentHandler(
	payments *appbilling.PaymentService,
	reconciliation *appbilling.ReconciliationService,
	cardGateway *gateway.CardGateway,
	paymentRepo billing.PaymentRepository,
) *PaymentHandler {
	return &PaymentHandler{
		payments:       payments,
		reconciliation: reconciliation,
		cardGateway:    cardGateway,
		paymentRepo:    paymentRepo,
	}
}

// RegisterPaymentRequest is the request body for recording a payment
type RegisterPaymentRequest struct {
	CustomerCode     string          `json:"customer_code" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	Method           string          `json:"method" binding:"required,oneof=CASH TRANSFER CARD PORTAL OTHER"`
	GatewayReference string          `json:"gateway_reference"`
	// Complete settles the payment immediately, the counter flow
	Complete bool `json:"complete"`
}

// Register records a payment. With complete=true the payment settles and
// the ledger reconciles in the same transaction, which is how the counter
// operates: cash is in hand, no gateway round trip pending.
func (h *PaymentHandler) Register(c *gin.Context) {
	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	appReq := appbilling.RegisterPaymentRequest{
		CustomerCode:     req.CustomerCode,
		Amount:           req.Amount,
		Method:           billing.PaymentMethod(req.Method),
		GatewayReference: req.GatewayReference,
	}

	if req.Complete {
		summary, err := h.payments.RegisterAndComplete(c.Request.Context(), appReq, time.Now())
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Created(c, summary)
		return
	}

	payment, err := h.payments.RegisterPayment(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPaymentResponse(payment))
}

// GetByID returns one payment
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	payment, err := h.paymentRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResponse(payment))
}

// ListByCustomer returns an account's payments, optionally filtered
func (h *PaymentHandler) ListByCustomer(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	var filter billing.PaymentFilter
	if s := c.Query("status"); s != "" {
		status := billing.PaymentStatus(s)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid payment status")
			return
		}
		filter.Status = &status
	}
	if m := c.Query("method"); m != "" {
		method := billing.PaymentMethod(m)
		filter.Method = &method
	}

	payments, err := h.paymentRepo.FindByCustomer(c.Request.Context(), customerID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = toPaymentResponse(&payments[i])
	}
	h.Success(c, out)
}

// Complete settles a pending payment and reconciles the ledger
func (h *PaymentHandler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	summary, err := h.reconciliation.CompletePayment(c.Request.Context(), id, time.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ReversePaymentRequest is the request body for a reversal
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reverse administratively reverses a completed payment. The ledger is
// replayed without it, so later payments shift onto older invoices.
func (h *PaymentHandler) Reverse(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	var req ReversePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	summary, err := h.reconciliation.ReversePayment(c.Request.Context(), id, req.Reason, time.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// CheckoutRequest is the request body for starting a card payment
type CheckoutRequest struct {
	CustomerCode string          `json:"customer_code" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	ReturnURL    string          `json:"return_url" binding:"required,url"`
}

// Checkout registers a pending card payment and opens a gateway
// transaction. The payment completes later through the webhook.
func (h *PaymentHandler) Checkout(c *gin.Context) {
	if h.cardGateway == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInvalidState, "Card payments are not configured")
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	reference := uuid.NewString()
	payment, err := h.payments.RegisterPayment(c.Request.Context(), appbilling.RegisterPaymentRequest{
		CustomerCode:     req.CustomerCode,
		Amount:           req.Amount,
		Method:           billing.PaymentMethodCard,
		GatewayReference: reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	tx, err := h.cardGateway.CreateTransaction(c.Request.Context(), gateway.CreateTransactionRequest{
		Reference: reference,
		Amount:    req.Amount,
		ReturnURL: req.ReturnURL,
	})
	if err != nil {
		logger.GetGinLogger(c).Error("Gateway transaction creation failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		h.Error(c, http.StatusBadGateway, dto.ErrCodeInternal, "Payment gateway unavailable")
		return
	}

	h.Created(c, gin.H{
		"payment":      toPaymentResponse(payment),
		"redirect_url": tx.RedirectURL,
		"token":        tx.Token,
	})
}

// GatewayWebhook receives asynchronous gateway notifications. The
// signature is verified before anything touches the ledger, and the
// response is always 200 for valid signatures so the gateway stops
// retrying: duplicates are absorbed by the idempotency store.
func (h *PaymentHandler) GatewayWebhook(c *gin.Context) {
	if h.cardGateway == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInvalidState, "Card payments are not configured")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	payload, err := h.cardGateway.ParseWebhook(body, c.GetHeader(h.cardGateway.SignatureHeader()))
	if err != nil {
		logger.GetGinLogger(c).Warn("Rejected gateway webhook", zap.Error(err))
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeInvalidSignature, "Invalid webhook signature")
		return
	}

	paidAt := time.Now()
	if payload.AuthorizedAt != nil {
		paidAt = *payload.AuthorizedAt
	}

	summary, err := h.payments.HandleGatewayNotification(c.Request.Context(), appbilling.GatewayNotification{
		Reference: payload.Reference,
		Succeeded: payload.Authorized(),
		PaidAt:    paidAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
