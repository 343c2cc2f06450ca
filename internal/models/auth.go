package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthenticateRequest holds credentials for authenticating an account.
type AuthenticateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IP       string `json:"-"`
}

// AuthResult returns the issued tokens plus the account's basic details.
// RefreshToken is set as an HTTP-only cookie by the handler, never echoed in
// the JSON body.
type AuthResult struct {
	AccountDetails
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"-"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Title           string `json:"title" validate:"required"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `json:"accept_terms" validate:"required"`
}

// VerifyEmailRequest carries the emailed verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ValidateResetTokenRequest checks a reset token without consuming it.
type ValidateResetTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// AccessTokenClaims is the JWT payload for access tokens. Only the subject
// matters for authorization: role and active status are re-read from the
// store on every request.
type AccessTokenClaims struct {
	AccountID string `json:"id"`
	jwt.RegisteredClaims
}

// AuthContext is attached to a request after the authorization gate passes.
// OwnsToken reports whether a refresh-token string was ever issued to this
// account, letting downstream handlers authorize self-service revocation
// without another store round trip.
type AuthContext struct {
	AccountID string
	Role      Role
	OwnsToken func(token string) bool
}
