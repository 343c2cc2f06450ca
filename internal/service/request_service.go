package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/umsys/account-api/internal/models"
	appErrors "github.com/umsys/account-api/pkg/errors"
)

type requestRepository interface {
	List(ctx context.Context) ([]models.Request, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]models.Request, error)
	FindByID(ctx context.Context, id string) (*models.Request, error)
	Create(ctx context.Context, request *models.Request) error
	Update(ctx context.Context, request *models.Request) error
	Delete(ctx context.Context, id string) error
}

// RequestItemInput is one line of a request payload.
type RequestItemInput struct {
	Name        string `json:"name" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
	Description string `json:"description"`
}

// CreateRequestRequest submits a new employee request.
type CreateRequestRequest struct {
	EmployeeID  string             `json:"employee_id" validate:"required"`
	Type        string             `json:"type" validate:"required"`
	Description string             `json:"description"`
	Items       []RequestItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateRequestRequest edits a pending request. Items replace the existing
// set wholesale.
type UpdateRequestRequest struct {
	Type        *string            `json:"type,omitempty"`
	Description *string            `json:"description,omitempty"`
	Items       []RequestItemInput `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// UpdateRequestStatusRequest approves or rejects a request.
type UpdateRequestStatusRequest struct {
	Status models.RequestStatus `json:"status" validate:"required,oneof=Approved Rejected"`
}

// RequestService manages employee requests and their approval lifecycle.
type RequestService struct {
	repo      requestRepository
	employees employeeRepository
	workflows employeeWorkflowRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs a RequestService instance.
func NewRequestService(repo requestRepository, employees employeeRepository, workflows employeeWorkflowRepository, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{repo: repo, employees: employees, workflows: workflows, validator: validate, logger: logger}
}

// List returns all requests, newest first.
func (s *RequestService) List(ctx context.Context) ([]models.Request, error) {
	requests, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// ListByEmployee returns one employee's requests.
func (s *RequestService) ListByEmployee(ctx context.Context, employeeID string) ([]models.Request, error) {
	requests, err := s.repo.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// Get returns one request with its items.
func (s *RequestService) Get(ctx context.Context, id string) (*models.Request, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch request")
	}
	return request, nil
}

// Create submits a request with at least one item and records a workflow
// step for the owning employee.
func (s *RequestService) Create(ctx context.Context, req CreateRequestRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	if _, err := s.employees.FindByID(ctx, req.EmployeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch employee")
	}

	request := &models.Request{
		EmployeeID:  req.EmployeeID,
		Type:        req.Type,
		Description: req.Description,
		Status:      models.RequestPending,
		Items:       toItems(req.Items),
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.recordWorkflow(ctx, &models.Workflow{
		EmployeeID: request.EmployeeID,
		RequestID:  &request.ID,
		Type:       "Request Submitted",
		Details:    fmt.Sprintf("%s request with %d item(s)", request.Type, len(request.Items)),
		Status:     models.WorkflowForReview,
	})

	return request, nil
}

// Update edits a request. Only pending requests can change.
func (s *RequestService) Update(ctx context.Context, id string, req UpdateRequestRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending requests can be edited")
	}

	if req.Type != nil {
		request.Type = *req.Type
	}
	if req.Description != nil {
		request.Description = *req.Description
	}
	if req.Items != nil {
		request.Items = toItems(req.Items)
	}

	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	return request, nil
}

// UpdateStatus approves or rejects a pending request, recording the approver
// and the outcome as a workflow step.
func (s *RequestService) UpdateStatus(ctx context.Context, id string, req UpdateRequestStatusRequest, approverID string) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request has already been decided")
	}

	request.Status = req.Status
	request.ApproverID = &approverID
	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}

	workflowStatus := models.WorkflowApproved
	if req.Status == models.RequestRejected {
		workflowStatus = models.WorkflowRejected
	}
	s.recordWorkflow(ctx, &models.Workflow{
		EmployeeID: request.EmployeeID,
		RequestID:  &request.ID,
		Type:       "Request Decision",
		Details:    fmt.Sprintf("%s request %s", request.Type, req.Status),
		Status:     workflowStatus,
	})

	return request, nil
}

// Delete removes a request and its items.
func (s *RequestService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	return nil
}

func (s *RequestService) recordWorkflow(ctx context.Context, workflow *models.Workflow) {
	if s.workflows == nil {
		return
	}
	if err := s.workflows.Create(ctx, workflow); err != nil {
		s.logger.Warn("failed to record workflow step", zap.String("employee_id", workflow.EmployeeID), zap.Error(err))
	}
}

func toItems(inputs []RequestItemInput) []models.RequestItem {
	items := make([]models.RequestItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, models.RequestItem{
			Name:        in.Name,
			Quantity:    in.Quantity,
			Description: in.Description,
		})
	}
	return items
}
