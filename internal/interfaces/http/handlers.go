package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/application/workflow"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/export"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine   workflow.Engine
	reporter *export.AuditReporter
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine workflow.Engine, reporter *export.AuditReporter, logger Logger) *Handlers {
	return &Handlers{
		engine:   engine,
		reporter: reporter,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CancelRequest is the body for the cancel endpoint.
type CancelRequest struct {
	CancelledBy string `json:"cancelled_by" binding:"required"`
	Reason      string `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// Submit handles POST /api/v1/workflows/submit
func (h *Handlers) Submit(c *gin.Context) {
	var req workflow.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", port.ErrValidation, err))
		return
	}

	result, err := h.engine.Submit(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// SubmitBulkInvoiceRun handles POST /api/v1/workflows/submit/bulk-invoice
func (h *Handlers) SubmitBulkInvoiceRun(c *gin.Context) {
	var req workflow.BulkSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", port.ErrValidation, err))
		return
	}

	result, err := h.engine.SubmitBulkInvoiceRun(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// Act handles POST /api/v1/workflows/action
func (h *Handlers) Act(c *gin.Context) {
	var req workflow.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", port.ErrValidation, err))
		return
	}

	inst, err := h.engine.Act(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// BulkAct handles POST /api/v1/workflows/action/bulk
func (h *Handlers) BulkAct(c *gin.Context) {
	var req workflow.BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", port.ErrValidation, err))
		return
	}

	result, err := h.engine.BulkAct(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Cancel handles POST /api/v1/workflows/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", port.ErrValidation, err))
		return
	}

	inst, err := h.engine.Cancel(c.Request.Context(), c.Param("id"), req.CancelledBy, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// GetInstance handles GET /api/v1/workflows/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	inst, err := h.engine.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// History handles GET /api/v1/workflows/:id/history
func (h *Handlers) History(c *gin.Context) {
	entries, err := h.engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ListPending handles GET /api/v1/workflows/pending/:approverId
func (h *Handlers) ListPending(c *gin.Context) {
	workflowType := entity.WorkflowType(c.Query("workflow_type"))
	if workflowType != "" && !workflowType.IsValid() {
		h.respondError(c, fmt.Errorf("%w: unknown workflow type %q", port.ErrValidation, workflowType))
		return
	}

	instances, err := h.engine.ListPending(c.Request.Context(), c.Param("approverId"), workflowType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instances})
}

// AuditReport handles GET /api/v1/workflows/:id/audit-report
func (h *Handlers) AuditReport(c *gin.Context) {
	id := c.Param("id")

	var buf bytes.Buffer
	if err := h.reporter.Build(c.Request.Context(), id, &buf); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="audit-%s.xlsx"`, id))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// respondError maps the engine's sentinel errors to HTTP status codes.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, port.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, port.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, port.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, port.ErrInvalidState):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, port.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, port.ErrDependency):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Unclassified handler error", "error", err.Error())
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
