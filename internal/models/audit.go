package models

import "time"

// AuditAction labels for security-relevant events.
const (
	AuditActionLogin       = "LOGIN"
	AuditActionRotate      = "TOKEN_ROTATE"
	AuditActionRevoke      = "TOKEN_REVOKE"
	AuditActionRegister    = "REGISTER"
	AuditActionStatus      = "STATUS_CHANGE"
	AuditActionPasswordSet = "PASSWORD_RESET"
)

// AuditLog records a security-relevant event against an account.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	AccountID *string   `db:"account_id" json:"account_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Detail    string    `db:"detail" json:"detail"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
