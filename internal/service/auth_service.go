package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/umsys/account-api/internal/models"
	appErrors "github.com/umsys/account-api/pkg/errors"
)

type authAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	FindRefreshTokensByAccount(ctx context.Context, accountID string) ([]models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldToken string, revokedAt time.Time, revokedByIP string, next *models.RefreshToken) error
	RevokeRefreshToken(ctx context.Context, token string, revokedAt time.Time, revokedByIP string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig defines configuration for authentication flows. A missing
// signing secret is a fatal startup condition, checked in main, never a
// per-call error.
type AuthConfig struct {
	Secret             string
	Issuer             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// AuthService is the sole authority over the refresh-token lifecycle:
// issuance on login, rotation, revocation and the account lookup behind the
// authorization gate.
type AuthService struct {
	repo      authAccountRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authAccountRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config}
}

// Authenticate verifies credentials and opens a new session lineage.
// Unknown email, unverified account and wrong password all collapse into
// the same InvalidCredentials error so callers cannot enumerate accounts.
func (s *AuthService) Authenticate(ctx context.Context, req models.AuthenticateRequest) (*models.AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid authenticate payload")
	}

	account, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}

	if !account.IsVerified() {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if account.Role != models.RoleAdmin && !account.Active {
		return nil, appErrors.Clone(appErrors.ErrAccountDeactivated, "your account has been deactivated, please contact an administrator")
	}

	accessToken, err := s.IssueAccessToken(account)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshToken, err := s.issueRefreshToken(account.ID, req.IP)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	if err := s.repo.CreateRefreshToken(ctx, refreshToken); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	s.audit(ctx, &account.ID, models.AuditActionLogin, "login succeeded", req.IP)

	return s.authResult(account, accessToken, refreshToken.Token), nil
}

// Rotate exchanges a refresh token for its successor. A token that is
// absent, expired or already revoked fails with the same InvalidToken
// error, so replaying a rotated token is indistinguishable from presenting
// garbage. The revoke-old/create-new pair commits atomically: of two
// concurrent rotations with the same token exactly one succeeds.
func (s *AuthService) Rotate(ctx context.Context, token, ip string) (*models.AuthResult, error) {
	current, err := s.repo.FindRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}
	if !current.IsActive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}

	account, err := s.repo.FindByID(ctx, current.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	next, err := s.issueRefreshToken(account.ID, ip)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	now := time.Now().UTC()
	if err := s.repo.RotateRefreshToken(ctx, current.Token, now, ip, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// lost a concurrent rotation race: the token is already revoked
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
	}

	accessToken, err := s.IssueAccessToken(account)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.audit(ctx, &account.ID, models.AuditActionRotate, "refresh token rotated", ip)

	return s.authResult(account, accessToken, next.Token), nil
}

// Revoke terminates a session lineage without replacement. The requester
// must own the token (any token ever issued to their account) or hold the
// Admin role.
func (s *AuthService) Revoke(ctx context.Context, token, ip string, requester *models.AuthContext) error {
	if requester == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if requester.Role != models.RoleAdmin && (requester.OwnsToken == nil || !requester.OwnsToken(token)) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	current, err := s.repo.FindRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}
	if !current.IsActive() {
		return appErrors.Clone(appErrors.ErrInvalidToken, "")
	}

	if err := s.repo.RevokeRefreshToken(ctx, current.Token, time.Now().UTC(), ip); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	s.audit(ctx, &current.AccountID, models.AuditActionRevoke, "refresh token revoked", ip)
	return nil
}

// Identify backs the authorization gate. It verifies the access token, then
// re-reads the account so role changes and deactivation take effect on the
// very next request, and attaches an ownership capability over the
// account's full refresh-token history.
func (s *AuthService) Identify(ctx context.Context, accessToken string) (*models.AuthContext, error) {
	claims, err := s.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if account.Role != models.RoleAdmin && !account.Active {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account deactivated")
	}

	tokens, err := s.repo.FindRefreshTokensByAccount(ctx, account.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh tokens")
	}
	owned := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		owned[t.Token] = struct{}{}
	}

	return &models.AuthContext{
		AccountID: account.ID,
		Role:      account.Role,
		OwnsToken: func(token string) bool {
			_, ok := owned[token]
			return ok
		},
	}, nil
}

// ValidateAccessToken parses and validates an access token returning the
// claims.
func (s *AuthService) ValidateAccessToken(tokenString string) (*models.AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, "invalid or expired access token")
	}

	claims, ok := token.Claims.(*models.AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid token claims")
	}
	if claims.AccountID == "" {
		claims.AccountID = claims.Subject
	}

	return claims, nil
}

// IssueAccessToken mints a signed, short-lived token whose subject is the
// account id. Stateless: no persistence side effect.
func (s *AuthService) IssueAccessToken(account *models.Account) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.AccessTokenClaims{
		AccountID: account.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// issueRefreshToken constructs an unpersisted refresh token row. Issuance
// and persistence stay separate so rotation can stage old and new rows in
// one transaction.
func (s *AuthService) issueRefreshToken(accountID, ip string) (*models.RefreshToken, error) {
	value, err := randomTokenString()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &models.RefreshToken{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Token:       value,
		ExpiresAt:   now.Add(s.config.RefreshTokenExpiry),
		CreatedAt:   now,
		CreatedByIP: ip,
	}, nil
}

func (s *AuthService) authResult(account *models.Account, accessToken, refreshToken string) *models.AuthResult {
	return &models.AuthResult{
		AccountDetails: account.BasicDetails(),
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		ExpiresIn:      int64(s.config.AccessTokenExpiry.Seconds()),
	}
}

func (s *AuthService) audit(ctx context.Context, accountID *string, action, detail, ip string) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		AccountID: accountID,
		Action:    action,
		Detail:    detail,
		IPAddress: ip,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// randomTokenString returns 40 bytes of entropy, hex encoded. Used for
// refresh, verification and reset tokens.
func randomTokenString() (string, error) {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
