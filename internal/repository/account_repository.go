package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umsys/account-api/internal/models"
)

const accountColumns = `id, title, first_name, last_name, email, password_hash, role, active, verification_token, verified_at, reset_token, reset_token_expires_at, password_reset_at, created_at, updated_at`

// AccountRepository provides database access for accounts, refresh tokens
// and audit logs.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByEmail returns an account by email address. Email matching is exact,
// case-sensitive as stored.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE email = $1 LIMIT 1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return &account, nil
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1 LIMIT 1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// FindByVerificationToken returns the account holding an unconsumed
// verification token.
func (r *AccountRepository) FindByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE verification_token = $1 LIMIT 1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by verification token: %w", err)
	}
	return &account, nil
}

// FindByResetToken returns the account holding a reset token that has not
// expired as of now. Expired tokens are indistinguishable from absent ones.
func (r *AccountRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE reset_token = $1 AND reset_token_expires_at > $2 LIMIT 1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, token, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by reset token: %w", err)
	}
	return &account, nil
}

// Count returns the total number of accounts.
func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM accounts`); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return total, nil
}

// List returns accounts based on filters with total count.
func (r *AccountRepository) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	baseQuery := `FROM accounts WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"created_at": true,
		"updated_at": true,
		"last_name":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", accountColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	return accounts, total, nil
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	const query = `INSERT INTO accounts (id, title, first_name, last_name, email, password_hash, role, active, verification_token, verified_at, reset_token, reset_token_expires_at, password_reset_at, created_at, updated_at)
		VALUES (:id, :title, :first_name, :last_name, :email, :password_hash, :role, :active, :verification_token, :verified_at, :reset_token, :reset_token_expires_at, :password_reset_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// Update persists mutable profile and security fields of an account.
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now().UTC()
	const query = `UPDATE accounts SET title = :title, first_name = :first_name, last_name = :last_name, email = :email, password_hash = :password_hash, role = :role, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// MarkVerified records email verification and consumes the token.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	const query = `UPDATE accounts SET verified_at = $2, verification_token = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, verifiedAt); err != nil {
		return fmt.Errorf("mark account verified: %w", err)
	}
	return nil
}

// SetResetToken stores a password-reset token with its expiry.
func (r *AccountRepository) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	const query = `UPDATE accounts SET reset_token = $2, reset_token_expires_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, expiresAt, now); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// CompleteReset installs the new password hash, clears the reset token and
// stamps password_reset_at.
func (r *AccountRepository) CompleteReset(ctx context.Context, id, passwordHash string, now time.Time) error {
	const query = `UPDATE accounts SET password_hash = $2, password_reset_at = $3, reset_token = NULL, reset_token_expires_at = NULL, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, now); err != nil {
		return fmt.Errorf("complete password reset: %w", err)
	}
	return nil
}

// UpdateStatus flips the active flag.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, active bool, now time.Time) error {
	const query = `UPDATE accounts SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, now); err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	return nil
}

// Delete removes an account. Refresh tokens cascade at the schema level.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

const refreshTokenColumns = `id, account_id, token, expires_at, created_at, created_by_ip, revoked_at, revoked_by_ip, replaced_by_token`

// CreateRefreshToken persists a refresh token entry.
func (r *AccountRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, account_id, token, expires_at, created_at, created_by_ip, revoked_at, revoked_by_ip, replaced_by_token)
		VALUES (:id, :account_id, :token, :expires_at, :created_at, :created_by_ip, :revoked_at, :revoked_by_ip, :replaced_by_token)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by exact token string.
func (r *AccountRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM refresh_tokens WHERE token = $1 LIMIT 1`, refreshTokenColumns)
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// FindRefreshTokensByAccount returns every token ever issued to an account,
// active or not. Ownership checks rely on the full historical set.
func (r *AccountRepository) FindRefreshTokensByAccount(ctx context.Context, accountID string) ([]models.RefreshToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM refresh_tokens WHERE account_id = $1 ORDER BY created_at DESC`, refreshTokenColumns)
	var tokens []models.RefreshToken
	if err := r.db.SelectContext(ctx, &tokens, query, accountID); err != nil {
		return nil, fmt.Errorf("find refresh tokens by account: %w", err)
	}
	return tokens, nil
}

// RotateRefreshToken atomically revokes the old token and inserts its
// replacement. The revocation is conditional on the old row still being
// unrevoked and unexpired, so of two concurrent rotations presenting the
// same token exactly one commits; the loser gets sql.ErrNoRows.
func (r *AccountRepository) RotateRefreshToken(ctx context.Context, oldToken string, revokedAt time.Time, revokedByIP string, next *models.RefreshToken) error {
	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = revokedAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2, revoked_by_ip = $3, replaced_by_token = $4 WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2`,
		oldToken, revokedAt, revokedByIP, next.Token)
	if err != nil {
		return fmt.Errorf("revoke rotated token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotation rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	const insert = `INSERT INTO refresh_tokens (id, account_id, token, expires_at, created_at, created_by_ip, revoked_at, revoked_by_ip, replaced_by_token)
		VALUES (:id, :account_id, :token, :expires_at, :created_at, :created_by_ip, :revoked_at, :revoked_by_ip, :replaced_by_token)`
	if _, err := tx.NamedExecContext(ctx, insert, next); err != nil {
		return fmt.Errorf("insert replacement token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

// RevokeRefreshToken marks a token revoked without a replacement. Returns
// sql.ErrNoRows when the token is already revoked or missing.
func (r *AccountRepository) RevokeRefreshToken(ctx context.Context, token string, revokedAt time.Time, revokedByIP string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2, revoked_by_ip = $3 WHERE token = $1 AND revoked_at IS NULL`,
		token, revokedAt, revokedByIP)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *AccountRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, account_id, action, detail, ip_address, created_at)
		VALUES (:id, :account_id, :action, :detail, :ip_address, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
