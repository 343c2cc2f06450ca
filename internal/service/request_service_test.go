package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umsys/account-api/internal/models"
	appErrors "github.com/umsys/account-api/pkg/errors"
)

type mockRequestRepo struct {
	requests map[string]*models.Request
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*models.Request)}
}

func (m *mockRequestRepo) List(ctx context.Context) ([]models.Request, error) {
	var out []models.Request
	for _, r := range m.requests {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockRequestRepo) ListByEmployee(ctx context.Context, employeeID string) ([]models.Request, error) {
	var out []models.Request
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *r
	return &copied, nil
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = "req-1"
	}
	m.requests[request.ID] = request
	return nil
}

func (m *mockRequestRepo) Update(ctx context.Context, request *models.Request) error {
	m.requests[request.ID] = request
	return nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id string) error {
	delete(m.requests, id)
	return nil
}

type mockEmployeeRepo struct {
	employees map[string]*models.Employee
}

func newMockEmployeeRepo() *mockEmployeeRepo {
	return &mockEmployeeRepo{employees: make(map[string]*models.Employee)}
}

func (m *mockEmployeeRepo) List(ctx context.Context) ([]models.Employee, error) {
	var out []models.Employee
	for _, e := range m.employees {
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockEmployeeRepo) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	e, ok := m.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (m *mockEmployeeRepo) FindByAccountID(ctx context.Context, accountID string) (*models.Employee, error) {
	for _, e := range m.employees {
		if e.AccountID == accountID {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEmployeeRepo) NextEmployeeCode(ctx context.Context) (string, error) {
	return "EMP001", nil
}

func (m *mockEmployeeRepo) Create(ctx context.Context, employee *models.Employee) error {
	if employee.ID == "" {
		employee.ID = "e-" + employee.EmployeeCode
	}
	m.employees[employee.ID] = employee
	return nil
}

func (m *mockEmployeeRepo) Update(ctx context.Context, employee *models.Employee) error {
	m.employees[employee.ID] = employee
	return nil
}

func (m *mockEmployeeRepo) Delete(ctx context.Context, id string) error {
	delete(m.employees, id)
	return nil
}

type mockWorkflowWriter struct {
	created []*models.Workflow
}

func (m *mockWorkflowWriter) Create(ctx context.Context, workflow *models.Workflow) error {
	m.created = append(m.created, workflow)
	return nil
}

func newTestRequestService(requests *mockRequestRepo, employees *mockEmployeeRepo, workflows *mockWorkflowWriter) *RequestService {
	return NewRequestService(requests, employees, workflows, validator.New(), zap.NewNop())
}

func TestRequestCreateRequiresItems(t *testing.T) {
	employees := newMockEmployeeRepo()
	employees.employees["e1"] = &models.Employee{ID: "e1"}
	svc := newTestRequestService(newMockRequestRepo(), employees, &mockWorkflowWriter{})

	_, err := svc.Create(context.Background(), CreateRequestRequest{
		EmployeeID: "e1",
		Type:       "Equipment",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRequestCreateRecordsWorkflow(t *testing.T) {
	requests := newMockRequestRepo()
	employees := newMockEmployeeRepo()
	employees.employees["e1"] = &models.Employee{ID: "e1"}
	workflows := &mockWorkflowWriter{}
	svc := newTestRequestService(requests, employees, workflows)

	created, err := svc.Create(context.Background(), CreateRequestRequest{
		EmployeeID: "e1",
		Type:       "Equipment",
		Items: []RequestItemInput{
			{Name: "Laptop", Quantity: 1},
			{Name: "Monitor", Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, created.Status)
	assert.Len(t, created.Items, 2)

	require.Len(t, workflows.created, 1)
	assert.Equal(t, "e1", workflows.created[0].EmployeeID)
	assert.Equal(t, models.WorkflowForReview, workflows.created[0].Status)
	require.NotNil(t, workflows.created[0].RequestID)
	assert.Equal(t, created.ID, *workflows.created[0].RequestID)
}

func TestRequestCreateUnknownEmployee(t *testing.T) {
	svc := newTestRequestService(newMockRequestRepo(), newMockEmployeeRepo(), &mockWorkflowWriter{})

	_, err := svc.Create(context.Background(), CreateRequestRequest{
		EmployeeID: "missing",
		Type:       "Equipment",
		Items:      []RequestItemInput{{Name: "Laptop", Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRequestDecisionRecordsApprover(t *testing.T) {
	requests := newMockRequestRepo()
	requests.requests["req-1"] = &models.Request{
		ID:         "req-1",
		EmployeeID: "e1",
		Type:       "Equipment",
		Status:     models.RequestPending,
	}
	workflows := &mockWorkflowWriter{}
	svc := newTestRequestService(requests, newMockEmployeeRepo(), workflows)

	decided, err := svc.UpdateStatus(context.Background(), "req-1", UpdateRequestStatusRequest{Status: models.RequestApproved}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, decided.Status)
	require.NotNil(t, decided.ApproverID)
	assert.Equal(t, "admin-1", *decided.ApproverID)

	require.Len(t, workflows.created, 1)
	assert.Equal(t, models.WorkflowApproved, workflows.created[0].Status)
}

func TestRequestDecisionIsFinal(t *testing.T) {
	requests := newMockRequestRepo()
	approver := "admin-1"
	requests.requests["req-1"] = &models.Request{
		ID:         "req-1",
		EmployeeID: "e1",
		Status:     models.RequestApproved,
		ApproverID: &approver,
	}
	svc := newTestRequestService(requests, newMockEmployeeRepo(), &mockWorkflowWriter{})

	_, err := svc.UpdateStatus(context.Background(), "req-1", UpdateRequestStatusRequest{Status: models.RequestRejected}, "admin-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRequestEditOnlyWhilePending(t *testing.T) {
	requests := newMockRequestRepo()
	requests.requests["req-1"] = &models.Request{
		ID:         "req-1",
		EmployeeID: "e1",
		Status:     models.RequestRejected,
	}
	svc := newTestRequestService(requests, newMockEmployeeRepo(), &mockWorkflowWriter{})

	newType := "Leave"
	_, err := svc.Update(context.Background(), "req-1", UpdateRequestRequest{Type: &newType})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRequestItemQuantityValidated(t *testing.T) {
	employees := newMockEmployeeRepo()
	employees.employees["e1"] = &models.Employee{ID: "e1"}
	svc := newTestRequestService(newMockRequestRepo(), employees, &mockWorkflowWriter{})

	_, err := svc.Create(context.Background(), CreateRequestRequest{
		EmployeeID: "e1",
		Type:       "Equipment",
		Items:      []RequestItemInput{{Name: "Laptop", Quantity: 0}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEmployeeTransferRecordsWorkflow(t *testing.T) {
	employees := newMockEmployeeRepo()
	employees.employees["e1"] = &models.Employee{
		ID:             "e1",
		EmployeeCode:   "EMP001",
		DepartmentID:   "d1",
		DepartmentName: "Engineering",
		Status:         models.EmployeeActive,
		HireDate:       time.Now(),
	}
	departments := newMockDepartmentRepo()
	departments.departments["d1"] = &models.Department{ID: "d1", Name: "Engineering"}
	departments.departments["d2"] = &models.Department{ID: "d2", Name: "Sales"}
	workflows := &mockWorkflowWriter{}
	svc := NewEmployeeService(employees, departments, workflows, validator.New(), zap.NewNop())

	moved, err := svc.Transfer(context.Background(), "e1", TransferEmployeeRequest{DepartmentID: "d2"})
	require.NoError(t, err)
	assert.Equal(t, "d2", moved.DepartmentID)

	require.Len(t, workflows.created, 1)
	assert.Equal(t, "Department Transfer", workflows.created[0].Type)
	assert.Contains(t, workflows.created[0].Details, "Sales")
}

func TestEmployeeTransferSameDepartment(t *testing.T) {
	employees := newMockEmployeeRepo()
	employees.employees["e1"] = &models.Employee{ID: "e1", DepartmentID: "d1"}
	departments := newMockDepartmentRepo()
	departments.departments["d1"] = &models.Department{ID: "d1", Name: "Engineering"}
	svc := NewEmployeeService(employees, departments, &mockWorkflowWriter{}, validator.New(), zap.NewNop())

	_, err := svc.Transfer(context.Background(), "e1", TransferEmployeeRequest{DepartmentID: "d1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEmployeeOnboardingAssignsCodeAndWorkflow(t *testing.T) {
	employees := newMockEmployeeRepo()
	departments := newMockDepartmentRepo()
	departments.departments["d1"] = &models.Department{ID: "d1", Name: "Engineering"}
	workflows := &mockWorkflowWriter{}
	svc := NewEmployeeService(employees, departments, workflows, validator.New(), zap.NewNop())

	created, err := svc.Create(context.Background(), CreateEmployeeRequest{
		AccountID:    "a1",
		DepartmentID: "d1",
		Position:     "Engineer",
		HireDate:     time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "EMP001", created.EmployeeCode)
	assert.Equal(t, models.EmployeeActive, created.Status)

	require.Len(t, workflows.created, 1)
	assert.Equal(t, "Onboarding", workflows.created[0].Type)
}

func TestEmployeeOnboardingDuplicateAccount(t *testing.T) {
	employees := newMockEmployeeRepo()
	employees.employees["e1"] = &models.Employee{ID: "e1", AccountID: "a1"}
	departments := newMockDepartmentRepo()
	departments.departments["d1"] = &models.Department{ID: "d1", Name: "Engineering"}
	svc := NewEmployeeService(employees, departments, &mockWorkflowWriter{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateEmployeeRequest{
		AccountID:    "a1",
		DepartmentID: "d1",
		Position:     "Engineer",
		HireDate:     time.Now(),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}
