package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/umsys/account-api/internal/models"
	appErrors "github.com/umsys/account-api/pkg/errors"
)

type workflowRepository interface {
	ListByEmployee(ctx context.Context, employeeID string) ([]models.Workflow, error)
	FindByID(ctx context.Context, id string) (*models.Workflow, error)
	Create(ctx context.Context, workflow *models.Workflow) error
	UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// CreateWorkflowRequest adds a manual workflow step to an employee history.
type CreateWorkflowRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	RequestID  *string `json:"request_id,omitempty"`
	Type       string  `json:"type" validate:"required"`
	Details    string  `json:"details"`
}

// UpdateWorkflowStatusRequest transitions a workflow step.
type UpdateWorkflowStatusRequest struct {
	Status models.WorkflowStatus `json:"status" validate:"required,oneof=Pending Approved Rejected ForReview"`
}

// WorkflowService manages per-employee workflow histories.
type WorkflowService struct {
	repo      workflowRepository
	employees employeeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkflowService constructs a WorkflowService instance.
func NewWorkflowService(repo workflowRepository, employees employeeRepository, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WorkflowService{repo: repo, employees: employees, validator: validate, logger: logger}
}

// ListByEmployee returns an employee's workflow history, newest first.
func (s *WorkflowService) ListByEmployee(ctx context.Context, employeeID string) ([]models.Workflow, error) {
	if _, err := s.employees.FindByID(ctx, employeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch employee")
	}

	workflows, err := s.repo.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workflows")
	}
	return workflows, nil
}

// Create records a manual workflow step.
func (s *WorkflowService) Create(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workflow payload")
	}

	if _, err := s.employees.FindByID(ctx, req.EmployeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch employee")
	}

	workflow := &models.Workflow{
		EmployeeID: req.EmployeeID,
		RequestID:  req.RequestID,
		Type:       req.Type,
		Details:    req.Details,
		Status:     models.WorkflowPending,
	}
	if err := s.repo.Create(ctx, workflow); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create workflow")
	}
	return workflow, nil
}

// UpdateStatus transitions a workflow step.
func (s *WorkflowService) UpdateStatus(ctx context.Context, id string, req UpdateWorkflowStatusRequest) (*models.Workflow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	workflow, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch workflow")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, req.Status, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update workflow status")
	}
	workflow.Status = req.Status
	workflow.UpdatedAt = now
	return workflow, nil
}

// Delete removes a workflow step.
func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "workflow not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch workflow")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete workflow")
	}
	return nil
}
