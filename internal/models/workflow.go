package models

import "time"

// WorkflowStatus enumerates workflow step states.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "Pending"
	WorkflowApproved  WorkflowStatus = "Approved"
	WorkflowRejected  WorkflowStatus = "Rejected"
	WorkflowForReview WorkflowStatus = "ForReview"
)

// Workflow records one step in an employee's history: onboarding, department
// transfers, request submissions and their approval outcomes.
type Workflow struct {
	ID         string         `db:"id" json:"id"`
	EmployeeID string         `db:"employee_id" json:"employee_id"`
	RequestID  *string        `db:"request_id" json:"request_id,omitempty"`
	Type       string         `db:"type" json:"type"`
	Details    string         `db:"details" json:"details"`
	Status     WorkflowStatus `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}
