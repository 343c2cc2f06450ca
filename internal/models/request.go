package models

import "time"

// RequestStatus enumerates the approval states of an employee request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

// Request is an employee-submitted request (equipment, leave, resources)
// with one or more line items.
type Request struct {
	ID          string        `db:"id" json:"id"`
	EmployeeID  string        `db:"employee_id" json:"employee_id"`
	Type        string        `db:"type" json:"type"`
	Description string        `db:"description" json:"description"`
	Status      RequestStatus `db:"status" json:"status"`
	ApproverID  *string       `db:"approver_id" json:"approver_id,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`

	Items []RequestItem `json:"items"`
}

// RequestItem is one line of a request. Items are replaced wholesale on
// update rather than patched individually.
type RequestItem struct {
	ID          string `db:"id" json:"id"`
	RequestID   string `db:"request_id" json:"request_id"`
	Name        string `db:"name" json:"name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Description string `db:"description" json:"description"`
}
