package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/umsys/account-api/internal/models"
	appErrors "github.com/umsys/account-api/pkg/errors"
	"github.com/umsys/account-api/pkg/export"
)

type employeeRepository interface {
	List(ctx context.Context) ([]models.Employee, error)
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	FindByAccountID(ctx context.Context, accountID string) (*models.Employee, error)
	NextEmployeeCode(ctx context.Context) (string, error)
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	Delete(ctx context.Context, id string) error
}

type employeeWorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
}

// CreateEmployeeRequest onboards an existing account as an employee.
type CreateEmployeeRequest struct {
	AccountID    string    `json:"account_id" validate:"required"`
	DepartmentID string    `json:"department_id" validate:"required"`
	Position     string    `json:"position" validate:"required"`
	HireDate     time.Time `json:"hire_date" validate:"required"`
}

// UpdateEmployeeRequest carries partial employee updates.
type UpdateEmployeeRequest struct {
	DepartmentID *string                `json:"department_id,omitempty"`
	Position     *string                `json:"position,omitempty"`
	HireDate     *time.Time             `json:"hire_date,omitempty"`
	Status       *models.EmployeeStatus `json:"status,omitempty" validate:"omitempty,oneof=Active Inactive"`
}

// TransferEmployeeRequest moves an employee between departments.
type TransferEmployeeRequest struct {
	DepartmentID string `json:"department_id" validate:"required"`
}

// EmployeeService manages employee records. Onboarding and transfers leave a
// workflow trail behind them.
type EmployeeService struct {
	repo        employeeRepository
	departments departmentRepository
	workflows   employeeWorkflowRepository
	pdf         *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEmployeeService constructs an EmployeeService instance.
func NewEmployeeService(repo employeeRepository, departments departmentRepository, workflows employeeWorkflowRepository, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EmployeeService{
		repo:        repo,
		departments: departments,
		workflows:   workflows,
		pdf:         export.NewPDFExporter(),
		validator:   validate,
		logger:      logger,
	}
}

// List returns all employees with account and department context.
func (s *EmployeeService) List(ctx context.Context) ([]models.Employee, error) {
	employees, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	return employees, nil
}

// Get returns one employee.
func (s *EmployeeService) Get(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch employee")
	}
	return employee, nil
}

// Create onboards an account into a department with a sequential employee
// code and an Onboarding workflow step.
func (s *EmployeeService) Create(ctx context.Context, req CreateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee payload")
	}

	if _, err := s.repo.FindByAccountID(ctx, req.AccountID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account already has an employee record")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing employee")
	}

	department, err := s.departments.FindByID(ctx, req.DepartmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
	}

	code, err := s.repo.NextEmployeeCode(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate employee code")
	}

	employee := &models.Employee{
		EmployeeCode: code,
		AccountID:    req.AccountID,
		DepartmentID: req.DepartmentID,
		Position:     req.Position,
		HireDate:     req.HireDate,
		Status:       models.EmployeeActive,
	}
	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
	}

	s.recordWorkflow(ctx, &models.Workflow{
		EmployeeID: employee.ID,
		Type:       "Onboarding",
		Details:    fmt.Sprintf("Onboarded to %s as %s", department.Name, req.Position),
		Status:     models.WorkflowPending,
	})

	return s.Get(ctx, employee.ID)
}

// Update applies partial changes to an employee.
func (s *EmployeeService) Update(ctx context.Context, id string, req UpdateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee payload")
	}

	employee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DepartmentID != nil && *req.DepartmentID != employee.DepartmentID {
		if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
		}
		employee.DepartmentID = *req.DepartmentID
	}
	if req.Position != nil {
		employee.Position = *req.Position
	}
	if req.HireDate != nil {
		employee.HireDate = *req.HireDate
	}
	if req.Status != nil {
		employee.Status = *req.Status
	}

	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}
	return s.Get(ctx, id)
}

// Transfer moves an employee to another department and records the move as
// a workflow step.
func (s *EmployeeService) Transfer(ctx context.Context, id string, req TransferEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	employee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if employee.DepartmentID == req.DepartmentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee is already in that department")
	}

	target, err := s.departments.FindByID(ctx, req.DepartmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
	}

	from := employee.DepartmentName
	employee.DepartmentID = req.DepartmentID
	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer employee")
	}

	s.recordWorkflow(ctx, &models.Workflow{
		EmployeeID: employee.ID,
		Type:       "Department Transfer",
		Details:    fmt.Sprintf("Transferred from %s to %s", from, target.Name),
		Status:     models.WorkflowPending,
	})

	return s.Get(ctx, id)
}

// Delete removes an employee record.
func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete employee")
	}
	return nil
}

// ExportPDF renders the employee roster as a PDF table.
func (s *EmployeeService) ExportPDF(ctx context.Context) ([]byte, error) {
	employees, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Headers: []string{"Code", "Name", "Email", "Department", "Position", "Status", "Hire Date"},
	}
	for i := range employees {
		e := &employees[i]
		table.Rows = append(table.Rows, []string{
			e.EmployeeCode,
			fmt.Sprintf("%s %s", e.AccountFirstName, e.AccountLastName),
			e.AccountEmail,
			e.DepartmentName,
			e.Position,
			string(e.Status),
			e.HireDate.Format("2006-01-02"),
		})
	}

	data, err := s.pdf.Render(table, "Employee Roster")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return data, nil
}

func (s *EmployeeService) recordWorkflow(ctx context.Context, workflow *models.Workflow) {
	if s.workflows == nil {
		return
	}
	if err := s.workflows.Create(ctx, workflow); err != nil {
		s.logger.Warn("failed to record workflow step", zap.String("employee_id", workflow.EmployeeID), zap.Error(err))
	}
}
