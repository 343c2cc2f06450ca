package models

import "time"

// Role represents the available roles for authorization.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// Account represents a registered user stored in the accounts table. The
// password hash never leaves the store layer in API responses; handlers
// return BasicDetails instead.
type Account struct {
	ID                  string     `db:"id" json:"id"`
	Title               string     `db:"title" json:"title"`
	FirstName           string     `db:"first_name" json:"first_name"`
	LastName            string     `db:"last_name" json:"last_name"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	Role                Role       `db:"role" json:"role"`
	Active              bool       `db:"active" json:"active"`
	VerificationToken   *string    `db:"verification_token" json:"-"`
	VerifiedAt          *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	ResetToken          *string    `db:"reset_token" json:"-"`
	ResetTokenExpiresAt *time.Time `db:"reset_token_expires_at" json:"-"`
	PasswordResetAt     *time.Time `db:"password_reset_at" json:"password_reset_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// IsVerified reports whether the account completed email verification. A
// completed password reset also counts, matching the long-standing behaviour
// of the signup flow.
func (a *Account) IsVerified() bool {
	return a.VerifiedAt != nil || a.PasswordResetAt != nil
}

// AccountDetails is the non-sensitive subset of Account fields safe to
// return to clients.
type AccountDetails struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"is_verified"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BasicDetails projects the account into its client-facing shape.
func (a *Account) BasicDetails() AccountDetails {
	return AccountDetails{
		ID:         a.ID,
		Title:      a.Title,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Email:      a.Email,
		Role:       a.Role,
		IsVerified: a.IsVerified(),
		Active:     a.Active,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// AccountFilter captures filtering criteria for listing accounts.
type AccountFilter struct {
	Role      *Role
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
