package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umsys/account-api/internal/models"
	appErrors "github.com/umsys/account-api/pkg/errors"
)

type mockDepartmentRepo struct {
	departments map[string]*models.Department
	employees   map[string]int
}

func newMockDepartmentRepo() *mockDepartmentRepo {
	return &mockDepartmentRepo{
		departments: make(map[string]*models.Department),
		employees:   make(map[string]int),
	}
}

func (m *mockDepartmentRepo) List(ctx context.Context) ([]models.Department, error) {
	var out []models.Department
	for _, d := range m.departments {
		out = append(out, *d)
	}
	return out, nil
}

func (m *mockDepartmentRepo) FindByID(ctx context.Context, id string) (*models.Department, error) {
	d, ok := m.departments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

func (m *mockDepartmentRepo) FindByName(ctx context.Context, name string) (*models.Department, error) {
	for _, d := range m.departments {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockDepartmentRepo) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = department.Name
	}
	m.departments[department.ID] = department
	return nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, department *models.Department) error {
	m.departments[department.ID] = department
	return nil
}

func (m *mockDepartmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.departments, id)
	return nil
}

func (m *mockDepartmentRepo) CountEmployees(ctx context.Context, id string) (int, error) {
	return m.employees[id], nil
}

func newTestDepartmentService(repo *mockDepartmentRepo) *DepartmentService {
	return NewDepartmentService(repo, nil, validator.New(), zap.NewNop())
}

func TestDepartmentCreateDuplicateName(t *testing.T) {
	repo := newMockDepartmentRepo()
	svc := newTestDepartmentService(repo)

	_, err := svc.Create(context.Background(), DepartmentRequest{Name: "Engineering"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), DepartmentRequest{Name: "Engineering"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestDepartmentDeleteWithEmployees(t *testing.T) {
	repo := newMockDepartmentRepo()
	repo.departments["d1"] = &models.Department{ID: "d1", Name: "Engineering"}
	repo.employees["d1"] = 3
	svc := newTestDepartmentService(repo)

	err := svc.Delete(context.Background(), "d1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Contains(t, repo.departments, "d1")
}

func TestDepartmentDeleteEmpty(t *testing.T) {
	repo := newMockDepartmentRepo()
	repo.departments["d1"] = &models.Department{ID: "d1", Name: "Engineering"}
	svc := newTestDepartmentService(repo)

	require.NoError(t, svc.Delete(context.Background(), "d1"))
	assert.NotContains(t, repo.departments, "d1")
}

func TestDepartmentUpdateRenameConflict(t *testing.T) {
	repo := newMockDepartmentRepo()
	repo.departments["d1"] = &models.Department{ID: "d1", Name: "Engineering"}
	repo.departments["d2"] = &models.Department{ID: "d2", Name: "Sales"}
	svc := newTestDepartmentService(repo)

	_, err := svc.Update(context.Background(), "d1", DepartmentRequest{Name: "Sales"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	updated, err := svc.Update(context.Background(), "d1", DepartmentRequest{Name: "Platform", Description: "Infra"})
	require.NoError(t, err)
	assert.Equal(t, "Platform", updated.Name)
}

func TestDepartmentGetMissing(t *testing.T) {
	svc := newTestDepartmentService(newMockDepartmentRepo())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
