package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/umsys/account-api/internal/models"
	appErrors "github.com/umsys/account-api/pkg/errors"
	"github.com/umsys/account-api/pkg/export"
)

const resetTokenTTL = 24 * time.Hour

type accountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	FindByResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error
	SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error
	CompleteReset(ctx context.Context, id, passwordHash string, now time.Time) error
	UpdateStatus(ctx context.Context, id string, active bool, now time.Time) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type accountMailer interface {
	SendVerificationEmail(to, token string)
	SendAlreadyRegisteredEmail(to string)
	SendPasswordResetEmail(to, token string)
}

// CreateAccountRequest is the admin-side account creation payload. Accounts
// created this way skip email verification.
type CreateAccountRequest struct {
	Title     string      `json:"title" validate:"required"`
	FirstName string      `json:"first_name" validate:"required"`
	LastName  string      `json:"last_name" validate:"required"`
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=6"`
	Role      models.Role `json:"role" validate:"required,oneof=Admin User"`
}

// UpdateAccountRequest carries partial profile updates. Nil means unchanged.
type UpdateAccountRequest struct {
	Title     *string      `json:"title,omitempty"`
	FirstName *string      `json:"first_name,omitempty"`
	LastName  *string      `json:"last_name,omitempty"`
	Email     *string      `json:"email,omitempty" validate:"omitempty,email"`
	Password  *string      `json:"password,omitempty" validate:"omitempty,min=6"`
	Role      *models.Role `json:"role,omitempty" validate:"omitempty,oneof=Admin User"`
}

// AccountService implements registration, verification, password-reset and
// admin CRUD over accounts.
type AccountService struct {
	repo      accountRepository
	mail      accountMailer
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(repo accountRepository, mail accountMailer, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AccountService{repo: repo, mail: mail, csv: export.NewCSVExporter(), validator: validate, logger: logger}
}

// Register creates an unverified account and mails a verification link. If
// the email is already taken the call still succeeds and a courtesy email is
// sent instead, so the response never reveals whether an account exists. The
// first account ever registered becomes an Admin.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest, ip string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		if s.mail != nil {
			s.mail.SendAlreadyRegisteredEmail(req.Email)
		}
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count accounts")
	}
	role := models.RoleUser
	if total == 0 {
		role = models.RoleAdmin
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	token, err := randomTokenString()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification token")
	}

	account := &models.Account{
		Title:             req.Title,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		PasswordHash:      string(hash),
		Role:              role,
		Active:            true,
		VerificationToken: &token,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	if s.mail != nil {
		s.mail.SendVerificationEmail(account.Email, token)
	}

	s.auditAccount(ctx, &account.ID, models.AuditActionRegister, "account registered", ip)
	return nil
}

// VerifyEmail consumes a verification token, enabling login.
func (s *AccountService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verify payload")
	}

	account, err := s.repo.FindByVerificationToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "verification failed")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up verification token")
	}

	if err := s.repo.MarkVerified(ctx, account.ID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify account")
	}
	return nil
}

// ForgotPassword starts the reset flow. It always succeeds from the caller's
// perspective: an unknown email sends nothing but returns no error.
func (s *AccountService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forgot-password payload")
	}

	account, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up account")
	}

	token, err := randomTokenString()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate reset token")
	}

	now := time.Now().UTC()
	if err := s.repo.SetResetToken(ctx, account.ID, token, now.Add(resetTokenTTL), now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset token")
	}

	if s.mail != nil {
		s.mail.SendPasswordResetEmail(account.Email, token)
	}
	return nil
}

// ValidateResetToken checks a reset token without consuming it.
func (s *AccountService) ValidateResetToken(ctx context.Context, req models.ValidateResetTokenRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token payload")
	}

	if _, err := s.repo.FindByResetToken(ctx, req.Token, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "invalid token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up reset token")
	}
	return nil
}

// ResetPassword consumes a reset token and installs the new password. A
// completed reset also counts as email verification.
func (s *AccountService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest, ip string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}

	account, err := s.repo.FindByResetToken(ctx, req.Token, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "invalid token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.CompleteReset(ctx, account.ID, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset password")
	}

	s.auditAccount(ctx, &account.ID, models.AuditActionPasswordSet, "password reset completed", ip)
	return nil
}

// List returns paginated accounts.
func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) ([]models.AccountDetails, *models.Pagination, error) {
	accounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}

	details := make([]models.AccountDetails, 0, len(accounts))
	for i := range accounts {
		details = append(details, accounts[i].BasicDetails())
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return details, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one account's details.
func (s *AccountService) Get(ctx context.Context, id string) (*models.AccountDetails, error) {
	account, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	details := account.BasicDetails()
	return &details, nil
}

// Create adds an account directly, pre-verified, for administrators.
func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (*models.AccountDetails, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("email %q is already registered", req.Email))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	account := &models.Account{
		Title:        req.Title,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
		VerifiedAt:   &now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	details := account.BasicDetails()
	return &details, nil
}

// Update applies partial changes to an account. Changing the email to one
// already in use is a conflict.
func (s *AccountService) Update(ctx context.Context, id string, req UpdateAccountRequest) (*models.AccountDetails, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	account, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != account.Email {
		if _, err := s.repo.FindByEmail(ctx, *req.Email); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("email %q is already registered", *req.Email))
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
		}
		account.Email = *req.Email
	}
	if req.Title != nil {
		account.Title = *req.Title
	}
	if req.FirstName != nil {
		account.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		account.LastName = *req.LastName
	}
	if req.Role != nil {
		account.Role = *req.Role
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		account.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}

	details := account.BasicDetails()
	return &details, nil
}

// UpdateStatus activates or deactivates an account. Admin accounts cannot be
// deactivated.
func (s *AccountService) UpdateStatus(ctx context.Context, id string, active bool, ip string) (*models.AccountDetails, error) {
	account, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !active && account.Role == models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrator accounts cannot be deactivated")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, account.ID, active, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account status")
	}
	account.Active = active
	account.UpdatedAt = now

	s.auditAccount(ctx, &account.ID, models.AuditActionStatus, fmt.Sprintf("active set to %t", active), ip)

	details := account.BasicDetails()
	return &details, nil
}

// Delete removes an account and, via schema cascade, its refresh tokens.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if _, err := s.findByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete account")
	}
	return nil
}

// ExportCSV renders the filtered account list as CSV.
func (s *AccountService) ExportCSV(ctx context.Context, filter models.AccountFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 100
	accounts, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}

	table := export.Table{
		Headers: []string{"ID", "Title", "First Name", "Last Name", "Email", "Role", "Verified", "Active", "Created At"},
	}
	for i := range accounts {
		a := &accounts[i]
		table.Rows = append(table.Rows, []string{
			a.ID,
			a.Title,
			a.FirstName,
			a.LastName,
			a.Email,
			string(a.Role),
			fmt.Sprintf("%t", a.IsVerified()),
			fmt.Sprintf("%t", a.Active),
			a.CreatedAt.Format(time.RFC3339),
		})
	}

	data, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

func (s *AccountService) findByID(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}
	return account, nil
}

func (s *AccountService) auditAccount(ctx context.Context, accountID *string, action, detail, ip string) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		AccountID: accountID,
		Action:    action,
		Detail:    detail,
		IPAddress: ip,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
