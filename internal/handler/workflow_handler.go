package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umsys/account-api/internal/service"
	appErrors "github.com/umsys/account-api/pkg/errors"
	"github.com/umsys/account-api/pkg/response"
)

// WorkflowHandler wires workflow-history endpoints.
type WorkflowHandler struct {
	service *service.WorkflowService
}

// NewWorkflowHandler creates a new handler.
func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: svc}
}

// ListByEmployee godoc
// @Summary List an employee's workflow history
// @Tags Workflows
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /workflows/employee/{id} [get]
func (h *WorkflowHandler) ListByEmployee(c *gin.Context) {
	workflows, err := h.service.ListByEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workflows, nil)
}

// Create godoc
// @Summary Record workflow step
// @Tags Workflows
// @Accept json
// @Produce json
// @Param payload body service.CreateWorkflowRequest true "Workflow payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workflows [post]
func (h *WorkflowHandler) Create(c *gin.Context) {
	var req service.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workflow payload"))
		return
	}

	workflow, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, workflow)
}

// UpdateStatus godoc
// @Summary Transition workflow step
// @Tags Workflows
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param payload body service.UpdateWorkflowStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workflows/{id}/status [put]
func (h *WorkflowHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateWorkflowStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	workflow, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, workflow, nil)
}

// Delete godoc
// @Summary Delete workflow step
// @Tags Workflows
// @Param id path string true "Workflow ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /workflows/{id} [delete]
func (h *WorkflowHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
