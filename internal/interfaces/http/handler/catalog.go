package handler

import (
	"time"

	appbilling "github.com/coopaguas/backend/internal/application/billing"
	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogHandler serves tariff, subsidy and repactacion plan endpoints
type CatalogHandler struct {
	BaseHandler
	service         *appbilling.CatalogService
	tariffRepo      billing.TariffRepository
	subsidyRepo     billing.SubsidyRepository
	repactacionRepo billing.RepactacionRepository
}

// NewCatalogHandler creates a CatalogHandler
func NewCatalogHandler(
	service *appbilling.CatalogService,
	tariffRepo billing.TariffRepository,
	subsidyRepo billing.SubsidyRepository,
	repactacionRepo billing.RepactacionRepository,
) *CatalogHandler {
	return &CatalogHandler{
		service:         service,
		tariffRepo:      tariffRepo,
		subsidyRepo:     subsidyRepo,
		repactacionRepo: repactacionRepo,
	}
}

// CreateTariffRequest is the request body for a new tariff schedule
type CreateTariffRequest struct {
	EffectiveFrom time.Time       `json:"effective_from" binding:"required"`
	FixedCharge   decimal.Decimal `json:"fixed_charge" binding:"required"`
	DispatchCost  decimal.Decimal `json:"dispatch_cost" binding:"required"`
	WaterRateM3   decimal.Decimal `json:"water_rate_m3" binding:"required"`
	SewageRateM3  decimal.Decimal `json:"sewage_rate_m3" binding:"required"`
}

// CreateTariff introduces a tariff schedule, closing the previous one
func (h *CatalogHandler) CreateTariff(c *gin.Context) {
	var req CreateTariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	schedule, err := h.service.CreateTariff(c.Request.Context(), appbilling.CreateTariffRequest{
		EffectiveFrom: req.EffectiveFrom,
		FixedCharge:   req.FixedCharge,
		DispatchCost:  req.DispatchCost,
		WaterRateM3:   req.WaterRateM3,
		SewageRateM3:  req.SewageRateM3,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toTariffResponse(schedule))
}

// ListTariffs returns all tariff schedules, historical included
func (h *CatalogHandler) ListTariffs(c *gin.Context) {
	schedules, err := h.tariffRepo.FindAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]TariffResponse, len(schedules))
	for i := range schedules {
		out[i] = toTariffResponse(&schedules[i])
	}
	h.Success(c, out)
}

// GetEffectiveTariff returns the schedule in force on a date (default today)
func (h *CatalogHandler) GetEffectiveTariff(c *gin.Context) {
	on := time.Now()
	if s := c.Query("on"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			h.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		on = parsed
	}

	schedule, err := h.tariffRepo.FindEffectiveOn(c.Request.Context(), on)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTariffResponse(schedule))
}

// CreateSubsidyClassRequest is the request body for a new subsidy class
type CreateSubsidyClassRequest struct {
	Code        int             `json:"code" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	ThresholdM3 decimal.Decimal `json:"threshold_m3" binding:"required"`
	Multiplier  decimal.Decimal `json:"multiplier" binding:"required"`
}

// CreateSubsidyClass registers a subsidy class
func (h *CatalogHandler) CreateSubsidyClass(c *gin.Context) {
	var req CreateSubsidyClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	class, err := h.service.CreateSubsidyClass(c.Request.Context(), appbilling.CreateSubsidyClassRequest{
		Code:        req.Code,
		Name:        req.Name,
		ThresholdM3: req.ThresholdM3,
		Multiplier:  req.Multiplier,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toSubsidyClassResponse(class))
}

// ListSubsidyClasses returns all subsidy classes
func (h *CatalogHandler) ListSubsidyClasses(c *gin.Context) {
	classes, err := h.subsidyRepo.FindAllClasses(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]SubsidyClassResponse, len(classes))
	for i := range classes {
		out[i] = toSubsidyClassResponse(&classes[i])
	}
	h.Success(c, out)
}

// AssignSubsidyRequest is the request body for a subsidy assignment
type AssignSubsidyRequest struct {
	ClassCode     int       `json:"class_code" binding:"required"`
	EffectiveFrom time.Time `json:"effective_from" binding:"required"`
}

// AssignSubsidy puts the account on a subsidy class
func (h *CatalogHandler) AssignSubsidy(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	var req AssignSubsidyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	assignment, err := h.service.AssignSubsidy(c.Request.Context(), customerID, req.ClassCode, req.EffectiveFrom)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toSubsidyAssignmentResponse(assignment))
}

// RemoveSubsidyRequest is the request body for ending a subsidy
type RemoveSubsidyRequest struct {
	At time.Time `json:"at" binding:"required"`
}

// RemoveSubsidy closes the account's current subsidy assignment
func (h *CatalogHandler) RemoveSubsidy(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	var req RemoveSubsidyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.service.RemoveSubsidy(c.Request.Context(), customerID, req.At); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListSubsidyAssignments returns the account's assignment history
func (h *CatalogHandler) ListSubsidyAssignments(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	assignments, err := h.subsidyRepo.FindAssignmentsByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]SubsidyAssignmentResponse, len(assignments))
	for i := range assignments {
		out[i] = toSubsidyAssignmentResponse(&assignments[i])
	}
	h.Success(c, out)
}

// CreatePlanRequest is the request body for a repactacion plan
type CreatePlanRequest struct {
	CustomerID             uuid.UUID        `json:"customer_id" binding:"required"`
	StartDate              time.Time        `json:"start_date" binding:"required"`
	TotalInstallments      int              `json:"total_installments" binding:"required,min=1"`
	FirstInstallmentAmount *decimal.Decimal `json:"first_installment_amount"`
	InstallmentAmount      decimal.Decimal  `json:"installment_amount" binding:"required"`
	OriginalDebt           decimal.Decimal  `json:"original_debt" binding:"required"`
}

// CreatePlan records a debt restructuring agreement
func (h *CatalogHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	plan, err := h.service.CreateRepactacionPlan(c.Request.Context(), appbilling.CreatePlanRequest{
		CustomerID:             req.CustomerID,
		StartDate:              req.StartDate,
		TotalInstallments:      req.TotalInstallments,
		FirstInstallmentAmount: req.FirstInstallmentAmount,
		InstallmentAmount:      req.InstallmentAmount,
		OriginalDebt:           req.OriginalDebt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPlanResponse(plan))
}

// ListPlans returns the account's repactacion plans
func (h *CatalogHandler) ListPlans(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	plans, err := h.repactacionRepo.FindByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]PlanResponse, len(plans))
	for i := range plans {
		out[i] = toPlanResponse(&plans[i])
	}
	h.Success(c, out)
}
