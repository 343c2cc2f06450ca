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

const requestColumns = `id, employee_id, type, description, status, approver_id, created_at, updated_at`

// RequestRepository provides database access for employee requests and
// their line items.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new instance of RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// List returns all requests, newest first, with their items attached.
func (r *RequestRepository) List(ctx context.Context) ([]models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests ORDER BY created_at DESC`, requestColumns)
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if err := r.attachItems(ctx, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// ListByEmployee returns requests submitted for one employee.
func (r *RequestRepository) ListByEmployee(ctx context.Context, employeeID string) ([]models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE employee_id = $1 ORDER BY created_at DESC`, requestColumns)
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, employeeID); err != nil {
		return nil, fmt.Errorf("list requests by employee: %w", err)
	}
	if err := r.attachItems(ctx, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// FindByID returns a request with its items.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1 LIMIT 1`, requestColumns)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request by id: %w", err)
	}

	items, err := r.findItems(ctx, id)
	if err != nil {
		return nil, err
	}
	request.Items = items
	return &request, nil
}

// Create inserts a request together with its line items in one transaction.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO requests (id, employee_id, type, description, status, approver_id, created_at, updated_at)
		VALUES (:id, :employee_id, :type, :description, :status, :approver_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if err := insertItems(ctx, tx, request.ID, request.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	return nil
}

// Update persists request fields and replaces its items wholesale.
func (r *RequestRepository) Update(ctx context.Context, request *models.Request) error {
	request.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE requests SET type = :type, description = :description, status = :status, approver_id = :approver_id, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, request); err != nil {
		return fmt.Errorf("update request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM request_items WHERE request_id = $1`, request.ID); err != nil {
		return fmt.Errorf("clear request items: %w", err)
	}
	if err := insertItems(ctx, tx, request.ID, request.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update request: %w", err)
	}
	return nil
}

// Delete removes a request and its items.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM request_items WHERE request_id = $1`, id); err != nil {
		return fmt.Errorf("delete request items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete request: %w", err)
	}
	return nil
}

func (r *RequestRepository) findItems(ctx context.Context, requestID string) ([]models.RequestItem, error) {
	const query = `SELECT id, request_id, name, quantity, description FROM request_items WHERE request_id = $1 ORDER BY name ASC`
	var items []models.RequestItem
	if err := r.db.SelectContext(ctx, &items, query, requestID); err != nil {
		return nil, fmt.Errorf("find request items: %w", err)
	}
	return items, nil
}

func (r *RequestRepository) attachItems(ctx context.Context, requests []models.Request) error {
	for i := range requests {
		items, err := r.findItems(ctx, requests[i].ID)
		if err != nil {
			return err
		}
		requests[i].Items = items
	}
	return nil
}

func insertItems(ctx context.Context, tx *sqlx.Tx, requestID string, items []models.RequestItem) error {
	const insert = `INSERT INTO request_items (id, request_id, name, quantity, description)
		VALUES (:id, :request_id, :name, :quantity, :description)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].RequestID = requestID
		if _, err := tx.NamedExecContext(ctx, insert, items[i]); err != nil {
			return fmt.Errorf("insert request item: %w", err)
		}
	}
	return nil
}
