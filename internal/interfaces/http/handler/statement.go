package handler

import (
	appbilling "github.com/coopaguas/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatementHandler serves ledger statement and reconciliation endpoints
type StatementHandler struct {
	BaseHandler
	statements     *appbilling.StatementService
	reconciliation *appbilling.ReconciliationService
}

// NewStatementHandler creates a StatementHandler
func NewStatementHandler(
	statements *appbilling.StatementService,
	reconciliation *appbilling.ReconciliationService,
) *StatementHandler {
	return &StatementHandler{
		statements:     statements,
		reconciliation: reconciliation,
	}
}

// GetStatement returns the replayed ledger view for an account
func (h *StatementHandler) GetStatement(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	statement, err := h.statements.GetStatement(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statement)
}

// GetStatementByCode resolves the account by code or alias first
func (h *StatementHandler) GetStatementByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		h.BadRequest(c, "Account code is required")
		return
	}

	statement, err := h.statements.GetStatementByCode(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statement)
}

// GetOutstanding returns the unpaid invoices in FIFO order
func (h *StatementHandler) GetOutstanding(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	balances, err := h.statements.GetOutstanding(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balances)
}

// Reconcile forces a full ledger replay for the account. The replay is
// idempotent, so operators can run it after manual data fixes.
func (h *StatementHandler) Reconcile(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	summary, err := h.reconciliation.Reconcile(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
