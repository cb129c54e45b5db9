package handler

import (
	"time"

	appbilling "github.com/coopaguas/backend/internal/application/billing"
	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountHandler serves member account endpoints
type AccountHandler struct {
	BaseHandler
	service        *appbilling.AccountService
	customerRepo   billing.CustomerRepository
	adjustmentRepo billing.AdjustmentRepository
}

// NewAccountHandler creates an AccountHandler
func NewAccountHandler(
	service *appbilling.AccountService,
	customerRepo billing.CustomerRepository,
	adjustmentRepo billing.AdjustmentRepository,
) *AccountHandler {
	return &AccountHandler{
		service:        service,
		customerRepo:   customerRepo,
		adjustmentRepo: adjustmentRepo,
	}
}

// CreateAccountRequest is the request body for account creation
type CreateAccountRequest struct {
	Code           string `json:"code" binding:"required"`
	Name           string `json:"name" binding:"required"`
	ServiceAddress string `json:"service_address"`
}

// Create registers a new member account
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	customer, err := h.service.CreateCustomer(c.Request.Context(), appbilling.CreateCustomerRequest{
		Code:           req.Code,
		Name:           req.Name,
		ServiceAddress: req.ServiceAddress,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toCustomerResponse(customer))
}

// List returns accounts with pagination
func (h *AccountHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	req.Normalize()

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
		Filters:  map[string]interface{}{},
	}
	if active := c.Query("active"); active != "" {
		filter.Filters["active"] = active == "true"
	}

	customers, err := h.customerRepo.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	total, err := h.customerRepo.Count(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, toCustomerResponses(customers), total, req.Page, req.PageSize)
}

// GetByID returns one account by its ID
func (h *AccountHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	customer, err := h.customerRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerResponse(customer))
}

// GetByCode resolves an account by its current code or a historical alias
func (h *AccountHandler) GetByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		h.BadRequest(c, "Account code is required")
		return
	}

	customer, err := h.customerRepo.FindByCode(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerResponse(customer))
}

// ChangeCodeRequest is the request body for an identity change
type ChangeCodeRequest struct {
	NewCode     string    `json:"new_code" binding:"required"`
	EffectiveAt time.Time `json:"effective_at" binding:"required"`
}

// ChangeCode records an identity change. The old code stays resolvable as
// an alias so historical payments keep matching.
func (h *AccountHandler) ChangeCode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	var req ChangeCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	customer, err := h.service.RecordIdentityChange(c.Request.Context(), id, req.NewCode, req.EffectiveAt)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerResponse(customer))
}

// Deactivate closes an account
func (h *AccountHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	if err := h.service.DeactivateCustomer(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GrantAdjustmentRequest is the request body for a discount or fine
type GrantAdjustmentRequest struct {
	InvoiceID *uuid.UUID      `json:"invoice_id"`
	Kind      string          `json:"kind" binding:"required,oneof=DISCOUNT FINE"`
	ValueType string          `json:"value_type" binding:"required,oneof=FIXED PERCENT"`
	Value     decimal.Decimal `json:"value" binding:"required"`
	Reason    string          `json:"reason" binding:"required"`
}

// GrantAdjustment issues a discount or fine for the account
func (h *AccountHandler) GrantAdjustment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	var req GrantAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	adjustment, err := h.service.GrantAdjustment(c.Request.Context(), appbilling.GrantAdjustmentRequest{
		CustomerID: id,
		InvoiceID:  req.InvoiceID,
		Kind:       billing.AdjustmentKind(req.Kind),
		ValueType:  billing.AdjustmentValueType(req.ValueType),
		Value:      req.Value,
		Reason:     req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toAdjustmentResponse(adjustment))
}

// ListUnbilledAdjustments returns adjustments waiting for the next billing run
func (h *AccountHandler) ListUnbilledAdjustments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	adjustments, err := h.adjustmentRepo.FindUnbilledByCustomer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]AdjustmentResponse, len(adjustments))
	for i := range adjustments {
		out[i] = toAdjustmentResponse(&adjustments[i])
	}
	h.Success(c, out)
}
