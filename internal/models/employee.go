package models

import "time"

// EmployeeStatus enumerates employment states.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "Active"
	EmployeeInactive EmployeeStatus = "Inactive"
)

// Employee links an account to an organizational position.
type Employee struct {
	ID           string         `db:"id" json:"id"`
	EmployeeCode string         `db:"employee_code" json:"employee_code"`
	AccountID    string         `db:"account_id" json:"account_id"`
	DepartmentID string         `db:"department_id" json:"department_id"`
	Position     string         `db:"position" json:"position"`
	HireDate     time.Time      `db:"hire_date" json:"hire_date"`
	Status       EmployeeStatus `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`

	// Joined account columns for list/detail responses.
	AccountEmail     string `db:"account_email" json:"account_email,omitempty"`
	AccountFirstName string `db:"account_first_name" json:"account_first_name,omitempty"`
	AccountLastName  string `db:"account_last_name" json:"account_last_name,omitempty"`
	DepartmentName   string `db:"department_name" json:"department_name,omitempty"`
}
