package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umsys/account-api/internal/models"
)

const employeeSelect = `SELECT e.id, e.employee_code, e.account_id, e.department_id, e.position, e.hire_date, e.status, e.created_at, e.updated_at,
	a.email AS account_email, a.first_name AS account_first_name, a.last_name AS account_last_name,
	d.name AS department_name
	FROM employees e
	JOIN accounts a ON a.id = e.account_id
	JOIN departments d ON d.id = e.department_id`

// EmployeeRepository provides database access for employees.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository creates a new instance of EmployeeRepository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// List returns all employees with account and department context.
func (r *EmployeeRepository) List(ctx context.Context) ([]models.Employee, error) {
	query := employeeSelect + ` ORDER BY e.employee_code ASC`
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query); err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return employees, nil
}

// FindByID returns an employee by identifier.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := employeeSelect + ` WHERE e.id = $1 LIMIT 1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by id: %w", err)
	}
	return &employee, nil
}

// FindByAccountID returns the employee record linked to an account.
func (r *EmployeeRepository) FindByAccountID(ctx context.Context, accountID string) (*models.Employee, error) {
	query := employeeSelect + ` WHERE e.account_id = $1 LIMIT 1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, accountID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by account: %w", err)
	}
	return &employee, nil
}

// NextEmployeeCode produces the next sequential code (EMP001, EMP002, ...).
func (r *EmployeeRepository) NextEmployeeCode(ctx context.Context) (string, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM employees`); err != nil {
		return "", fmt.Errorf("count employees: %w", err)
	}
	return fmt.Sprintf("EMP%03d", total+1), nil
}

// Create inserts a new employee.
func (r *EmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	employee.UpdatedAt = now

	const query = `INSERT INTO employees (id, employee_code, account_id, department_id, position, hire_date, status, created_at, updated_at)
		VALUES (:id, :employee_code, :account_id, :department_id, :position, :hire_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// Update persists mutable employee fields.
func (r *EmployeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	employee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE employees SET department_id = :department_id, position = :position, hire_date = :hire_date, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return nil
}

// Delete removes an employee.
func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	return nil
}
