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

const workflowColumns = `id, employee_id, request_id, type, details, status, created_at, updated_at`

// WorkflowRepository provides database access for workflow steps.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository creates a new instance of WorkflowRepository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// ListByEmployee returns an employee's workflow history, newest first.
func (r *WorkflowRepository) ListByEmployee(ctx context.Context, employeeID string) ([]models.Workflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflows WHERE employee_id = $1 ORDER BY created_at DESC`, workflowColumns)
	var workflows []models.Workflow
	if err := r.db.SelectContext(ctx, &workflows, query, employeeID); err != nil {
		return nil, fmt.Errorf("list workflows by employee: %w", err)
	}
	return workflows, nil
}

// FindByID returns a workflow step by identifier.
func (r *WorkflowRepository) FindByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflows WHERE id = $1 LIMIT 1`, workflowColumns)
	var workflow models.Workflow
	if err := r.db.GetContext(ctx, &workflow, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find workflow by id: %w", err)
	}
	return &workflow, nil
}

// Create inserts a workflow step.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}
	workflow.UpdatedAt = now

	const query = `INSERT INTO workflows (id, employee_id, request_id, type, details, status, created_at, updated_at)
		VALUES (:id, :employee_id, :request_id, :type, :details, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, workflow); err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

// UpdateStatus transitions a workflow step.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus, now time.Time) error {
	const query = `UPDATE workflows SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, now); err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	return nil
}

// Delete removes a workflow step.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	return nil
}
