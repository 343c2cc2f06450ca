package models

import "time"

// RefreshToken is one link in an account's session lineage. Rotation revokes
// the old row and records the replacement token string, so a chain can be
// audited forward via ReplacedByToken.
type RefreshToken struct {
	ID              string     `db:"id" json:"id"`
	AccountID       string     `db:"account_id" json:"account_id"`
	Token           string     `db:"token" json:"token"`
	ExpiresAt       time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	CreatedByIP     string     `db:"created_by_ip" json:"created_by_ip"`
	RevokedAt       *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedByIP     *string    `db:"revoked_by_ip" json:"revoked_by_ip,omitempty"`
	ReplacedByToken *string    `db:"replaced_by_token" json:"replaced_by_token,omitempty"`
}

// IsExpired reports whether the token passed its expiry.
func (t *RefreshToken) IsExpired() bool {
	return !time.Now().UTC().Before(t.ExpiresAt)
}

// IsActive reports whether the token can still be rotated or revoked.
// Derived at read time, never persisted.
func (t *RefreshToken) IsActive() bool {
	return t.RevokedAt == nil && !t.IsExpired()
}
