package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/application/service"
	"github.com/ledgerflow/approval-engine/internal/application/tx"
	engine "github.com/ledgerflow/approval-engine/internal/application/workflow"
	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/permission"
	"github.com/ledgerflow/approval-engine/internal/domain/rule"
	domainwf "github.com/ledgerflow/approval-engine/internal/domain/workflow"
	"github.com/ledgerflow/approval-engine/pkg/utils"
)

// Error codes returned in response bodies. Stable; clients switch on these.
const (
	CodeUnauthenticated        = "UNAUTHENTICATED"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeRuleViolation          = "RULE_VIOLATION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeSagaFailed             = "SAGA_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInternal               = "INTERNAL"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflowService service.WorkflowService
	ruleService     service.RuleService
	auditService    service.AuditService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflowService service.WorkflowService,
	ruleService service.RuleService,
	auditService service.AuditService,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflowService: workflowService,
		ruleService:     ruleService,
		auditService:    auditService,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateInvoiceRequest is the POST /invoices payload
type CreateInvoiceRequest struct {
	CompanyID        int64   `json:"company_id" binding:"required"`
	Number           string  `json:"number" binding:"required"`
	CustomerName     string  `json:"customer_name" binding:"required"`
	Amount           int64   `json:"amount" binding:"required,gt=0"`
	Currency         string  `json:"currency" binding:"required,len=3"`
	DueDate          *string `json:"due_date,omitempty"`
	RequiresApproval bool    `json:"requires_approval"`
}

// CreateExpenseRequest is the POST /expenses payload
type CreateExpenseRequest struct {
	CompanyID        int64   `json:"company_id" binding:"required"`
	Description      string  `json:"description" binding:"required"`
	Amount           int64   `json:"amount" binding:"required,gt=0"`
	Currency         string  `json:"currency" binding:"required,len=3"`
	Category         string  `json:"category" binding:"required"`
	ReceiptURL       *string `json:"receipt_url,omitempty"`
	RequiresApproval bool    `json:"requires_approval"`
}

// RejectRequest is the POST /:type/:id/reject payload
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// TransitionRequest is the POST /:type/:id/transition payload
type TransitionRequest struct {
	To     string `json:"to" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

// TestRuleRequest is the POST /rules/:id/test payload
type TestRuleRequest struct {
	Sample map[string]interface{} `json:"sample" binding:"required"`
}

// CreateResponse wraps a newly created document and any rule warnings
type CreateResponse struct {
	Entity   interface{} `json:"entity"`
	Warnings []string    `json:"warnings,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateInvoice handles POST /api/v1/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	currency := strings.ToUpper(req.Currency)
	if err := utils.ValidateCurrency(currency); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	inv := &entity.Invoice{
		CompanyID:        req.CompanyID,
		Number:           req.Number,
		CustomerName:     utils.SanitizeString(req.CustomerName),
		Amount:           req.Amount,
		Currency:         currency,
		RequiresApproval: req.RequiresApproval,
		CreatedBy:        actor.UserID,
	}
	if req.DueDate != nil {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			h.badRequest(c, "invalid due_date, expected RFC3339")
			return
		}
		inv.DueDate = &due
	}

	warnings, err := h.workflowService.CreateInvoice(c.Request.Context(), actor, inv)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    CreateResponse{Entity: inv, Warnings: warnings},
	})
}

// CreateExpense handles POST /api/v1/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	currency := strings.ToUpper(req.Currency)
	if err := utils.ValidateCurrency(currency); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	exp := &entity.Expense{
		CompanyID:        req.CompanyID,
		Description:      utils.SanitizeString(req.Description),
		Amount:           req.Amount,
		Currency:         currency,
		Category:         req.Category,
		ReceiptURL:       req.ReceiptURL,
		RequiresApproval: req.RequiresApproval,
		CreatedBy:        actor.UserID,
	}

	warnings, err := h.workflowService.CreateExpense(c.Request.Context(), actor, exp)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    CreateResponse{Entity: exp, Warnings: warnings},
	})
}

// Submit handles POST /api/v1/:type/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	h.runTransition(c, func(actor service.Actor, et entity.EntityType, id int64) (*service.TransitionOutcome, error) {
		return h.workflowService.SubmitForApproval(c.Request.Context(), actor, et, id)
	})
}

// Approve handles POST /api/v1/:type/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.runTransition(c, func(actor service.Actor, et entity.EntityType, id int64) (*service.TransitionOutcome, error) {
		return h.workflowService.Approve(c.Request.Context(), actor, et, id)
	})
}

// Reject handles POST /api/v1/:type/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "reason is required")
		return
	}

	h.runTransition(c, func(actor service.Actor, et entity.EntityType, id int64) (*service.TransitionOutcome, error) {
		return h.workflowService.Reject(c.Request.Context(), actor, et, id, req.Reason)
	})
}

// Transition handles POST /api/v1/:type/:id/transition
func (h *Handlers) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "target status is required")
		return
	}

	h.runTransition(c, func(actor service.Actor, et entity.EntityType, id int64) (*service.TransitionOutcome, error) {
		return h.workflowService.Transition(c.Request.Context(), actor, et, id, domainwf.Status(req.To), req.Reason)
	})
}

// runTransition factors the shared actor/path handling of the four
// transition endpoints
func (h *Handlers) runTransition(c *gin.Context, op func(service.Actor, entity.EntityType, int64) (*service.TransitionOutcome, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	et, id, ok := h.entityRef(c)
	if !ok {
		return
	}

	outcome, err := op(actor, et, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    outcome,
	})
}

// AvailableActions handles GET /api/v1/:type/:id/actions
func (h *Handlers) AvailableActions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	et, id, ok := h.entityRef(c)
	if !ok {
		return
	}

	actions, err := h.workflowService.AvailableActions(c.Request.Context(), actor, et, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    actions,
	})
}

// History handles GET /api/v1/:type/:id/history
func (h *Handlers) History(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	et, id, ok := h.entityRef(c)
	if !ok {
		return
	}

	history, err := h.workflowService.WorkflowHistory(c.Request.Context(), actor, et, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    history,
	})
}

// AuditTrail handles GET /api/v1/:type/:id/audit
func (h *Handlers) AuditTrail(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	et, id, ok := h.entityRef(c)
	if !ok {
		return
	}

	entries, err := h.auditService.EntityHistory(c.Request.Context(), et, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// ListRules handles GET /api/v1/rules
func (h *Handlers) ListRules(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	rules, err := h.ruleService.List(c.Request.Context(), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    rules,
	})
}

// GetRule handles GET /api/v1/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	r, err := h.ruleService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    r,
	})
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var input service.RuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	r, err := h.ruleService.Create(c.Request.Context(), actor, input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    r,
	})
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	var input service.RuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	r, err := h.ruleService.Update(c.Request.Context(), actor, id, input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    r,
	})
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	if err := h.ruleService.Delete(c.Request.Context(), actor, id); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// TestRule handles POST /api/v1/rules/:id/test
func (h *Handlers) TestRule(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	var req TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "sample entity is required")
		return
	}

	result, err := h.ruleService.Test(c.Request.Context(), actor, id, req.Sample)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// ComplianceReport handles GET /api/v1/reports/compliance.
// ?format=xlsx streams a spreadsheet; the default is JSON.
func (h *Handlers) ComplianceReport(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.badRequest(c, "invalid from, expected RFC3339")
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.badRequest(c, "invalid to, expected RFC3339")
			return
		}
		to = parsed
	}

	if c.Query("format") == "xlsx" {
		data, err := h.auditService.ExportReport(c.Request.Context(), from, to)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="compliance-report.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
		return
	}

	report, err := h.auditService.Report(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    report,
	})
}

// actor extracts the caller identity from the gateway-provided headers.
// Authentication itself happens upstream; an absent user ID is rejected.
func (h *Handlers) actor(c *gin.Context) (service.Actor, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Code:    CodeUnauthenticated,
			Error:   "X-User-ID header is required",
		})
		return service.Actor{}, false
	}

	var roles []string
	if raw := c.GetHeader("X-User-Roles"); raw != "" {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}

	return service.Actor{UserID: userID, Roles: roles}, true
}

// entityRef parses the :type/:id path segments
func (h *Handlers) entityRef(c *gin.Context) (entity.EntityType, int64, bool) {
	et := entity.EntityType(c.Param("type"))
	if !et.IsValid() {
		h.badRequest(c, "unknown entity type: "+c.Param("type"))
		return "", 0, false
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.badRequest(c, "invalid entity ID")
		return "", 0, false
	}

	return et, id, true
}

// ruleID parses the :id path segment of rule endpoints
func (h *Handlers) ruleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.badRequest(c, "invalid rule ID")
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Code:    CodeInvalidRequest,
		Error:   msg,
	})
}

// writeError maps service errors to HTTP status codes and stable error
// codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	var (
		invalidTransition *engine.InvalidTransitionError
		ruleViolation     *service.RuleViolationError
		sagaErr           *tx.SagaError
		validationErrs    validator.ValidationErrors
	)

	switch {
	case errors.Is(err, permission.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Code:    CodePermissionDenied,
			Error:   err.Error(),
		})

	case errors.As(err, &invalidTransition) || errors.Is(err, domainwf.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Code:    CodeInvalidTransition,
			Error:   err.Error(),
		})

	case errors.As(err, &ruleViolation):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Code:    CodeRuleViolation,
			Error:   err.Error(),
			Details: ruleViolation.Messages(),
		})

	case errors.Is(err, tx.ErrConcurrentModification):
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Code:    CodeConcurrentModification,
			Error:   "the document was modified concurrently, reload and retry",
		})

	case errors.Is(err, port.ErrNotFound), errors.Is(err, rule.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Code:    CodeNotFound,
			Error:   err.Error(),
		})

	case errors.Is(err, rule.ErrInvalidCondition),
		errors.Is(err, rule.ErrDepthExceeded),
		errors.Is(err, rule.ErrUnknownOperator),
		errors.As(err, &validationErrs):
		h.badRequest(c, err.Error())

	case errors.As(err, &sagaErr):
		h.logger.Error("Saga failed", "step", sagaErr.Step, "error", sagaErr)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Code:    CodeSagaFailed,
			Error:   "operation failed and was rolled back",
		})

	default:
		h.logger.Error("Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Code:    CodeInternal,
			Error:   "internal error",
		})
	}
}
