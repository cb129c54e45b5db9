package handler

import (
	"time"

	appbilling "github.com/coopaguas/backend/internal/application/billing"
	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingRunHandler serves the monthly billing run endpoint
type BillingRunHandler struct {
	BaseHandler
	service     *appbilling.BillingRunService
	invoiceRepo billing.InvoiceRepository
	dueDays     int
}

// NewBillingRunHandler creates a BillingRunHandler. dueDays is the default
// issue-to-due interval applied when a run omits the due date.
func NewBillingRunHandler(service *appbilling.BillingRunService, invoiceRepo billing.InvoiceRepository, dueDays int) *BillingRunHandler {
	return &BillingRunHandler{service: service, invoiceRepo: invoiceRepo, dueDays: dueDays}
}

// MeterReadingRequest is one customer's consumption for the period
type MeterReadingRequest struct {
	CustomerID    uuid.UUID       `json:"customer_id" binding:"required"`
	ConsumptionM3 decimal.Decimal `json:"consumption_m3"`
}

// BillingRunRequest is the request body for a billing run
type BillingRunRequest struct {
	Period    time.Time             `json:"period" binding:"required"`
	IssueDate time.Time             `json:"issue_date" binding:"required"`
	DueDate   time.Time             `json:"due_date"`
	Readings  []MeterReadingRequest `json:"readings" binding:"required,min=1,dive"`
}

// Run executes a monthly billing run over the submitted meter readings
func (h *BillingRunHandler) Run(c *gin.Context) {
	var req BillingRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.DueDate.IsZero() {
		req.DueDate = req.IssueDate.AddDate(0, 0, h.dueDays)
	}

	readings := make([]appbilling.MeterReading, len(req.Readings))
	for i, r := range req.Readings {
		readings[i] = appbilling.MeterReading{
			CustomerID:    r.CustomerID,
			ConsumptionM3: r.ConsumptionM3,
		}
	}

	result, err := h.service.Run(c.Request.Context(), appbilling.BillingRunRequest{
		Period:    req.Period,
		IssueDate: req.IssueDate,
		DueDate:   req.DueDate,
		Readings:  readings,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetInvoice returns one invoice by ID
func (h *BillingRunHandler) GetInvoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.invoiceRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(invoice))
}

// ListInvoices returns invoices filtered by query parameters
func (h *BillingRunHandler) ListInvoices(c *gin.Context) {
	var filter billing.InvoiceFilter

	if s := c.Query("customer_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.BadRequest(c, "Invalid customer_id")
			return
		}
		filter.CustomerID = &id
	}
	if s := c.Query("status"); s != "" {
		status := billing.InvoiceStatus(s)
		filter.Status = &status
	}
	if c.Query("overdue") == "true" {
		overdue := true
		filter.Overdue = &overdue
	}

	invoices, err := h.invoiceRepo.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponses(invoices))
}
