package models

import "time"

// Department groups employees under a named unit.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// EmployeeCount is computed by the list query, not stored.
	EmployeeCount int `db:"employee_count" json:"employee_count"`
}
