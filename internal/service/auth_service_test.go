package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/umsys/account-api/internal/models"
	appErrors "github.com/umsys/account-api/pkg/errors"
)

type mockAuthRepo struct {
	accounts      map[string]*models.Account
	refreshTokens map[string]*models.RefreshToken
	rotateErr     error
	auditLogs     []*models.AuditLog
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		accounts:      make(map[string]*models.Account),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return a, nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) FindRefreshTokensByAccount(ctx context.Context, accountID string) ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	for _, rt := range m.refreshTokens {
		if rt.AccountID == accountID {
			tokens = append(tokens, *rt)
		}
	}
	return tokens, nil
}

func (m *mockAuthRepo) RotateRefreshToken(ctx context.Context, oldToken string, revokedAt time.Time, revokedByIP string, next *models.RefreshToken) error {
	if m.rotateErr != nil {
		return m.rotateErr
	}
	rt, ok := m.refreshTokens[oldToken]
	if !ok || rt.RevokedAt != nil || !rt.ExpiresAt.After(revokedAt) {
		return sql.ErrNoRows
	}
	rt.RevokedAt = &revokedAt
	rt.RevokedByIP = &revokedByIP
	rt.ReplacedByToken = &next.Token
	m.refreshTokens[next.Token] = next
	return nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, token string, revokedAt time.Time, revokedByIP string) error {
	rt, ok := m.refreshTokens[token]
	if !ok || rt.RevokedAt != nil {
		return sql.ErrNoRows
	}
	rt.RevokedAt = &revokedAt
	rt.RevokedByIP = &revokedByIP
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		Secret:             "secret",
		Issuer:             "account-api",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	})
}

func verifiedAccount(id, email, password string) *models.Account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	verifiedAt := time.Now().Add(-time.Hour)
	return &models.Account{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Active:       true,
		VerifiedAt:   &verifiedAt,
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newMockAuthRepo()
	repo.accounts["a1"] = verifiedAccount("a1", "user@example.com", "password")
	svc := newTestAuthService(repo)

	res, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "user@example.com", Password: "password", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Len(t, res.RefreshToken, 80)
	assert.Equal(t, "a1", res.ID)
	require.Len(t, repo.refreshTokens, 1)
	assert.Equal(t, "10.0.0.1", repo.refreshTokens[res.RefreshToken].CreatedByIP)
	assert.NotEmpty(t, repo.auditLogs)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "nobody@example.com", Password: "password"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthenticateUnverified(t *testing.T) {
	repo := newMockAuthRepo()
	account := verifiedAccount("a1", "user@example.com", "password")
	account.VerifiedAt = nil
	repo.accounts["a1"] = account
	svc := newTestAuthService(repo)

	_, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	// indistinguishable from a wrong password
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthenticatePasswordResetCountsAsVerified(t *testing.T) {
	repo := newMockAuthRepo()
	account := verifiedAccount("a1", "user@example.com", "password")
	account.VerifiedAt = nil
	resetAt := time.Now().Add(-time.Minute)
	account.PasswordResetAt = &resetAt
	repo.accounts["a1"] = account
	svc := newTestAuthService(repo)

	_, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	repo.accounts["a1"] = verifiedAccount("a1", "user@example.com", "password")
	svc := newTestAuthService(repo)

	_, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthenticateDeactivated(t *testing.T) {
	repo := newMockAuthRepo()
	account := verifiedAccount("a1", "user@example.com", "password")
	account.Active = false
	repo.accounts["a1"] = account
	svc := newTestAuthService(repo)

	_, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAccountDeactivated))
}

func TestAuthenticateDeactivatedAdminStillLogsIn(t *testing.T) {
	repo := newMockAuthRepo()
	account := verifiedAccount("a1", "admin@example.com", "password")
	account.Role = models.RoleAdmin
	account.Active = false
	repo.accounts["a1"] = account
	svc := newTestAuthService(repo)

	_, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
}

func TestRotateChainsTokens(t *testing.T) {
	repo := newMockAuthRepo()
	repo.accounts["a1"] = verifiedAccount("a1", "user@example.com", "password")
	svc := newTestAuthService(repo)

	login, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	first := login.RefreshToken

	rotated, err := svc.Rotate(context.Background(), first, "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, first, rotated.RefreshToken)
	assert.NotEmpty(t, rotated.AccessToken)

	old := repo.refreshTokens[first]
	require.NotNil(t, old.RevokedAt)
	require.NotNil(t, old.ReplacedByToken)
	assert.Equal(t, rotated.RefreshToken, *old.ReplacedByToken)

	// the replacement stays usable
	_, err = svc.Rotate(context.Background(), rotated.RefreshToken, "10.0.0.2")
	require.NoError(t, err)
}

func TestRotateReplayedTokenRejected(t *testing.T) {
	repo := newMockAuthRepo()
	repo.accounts["a1"] = verifiedAccount("a1", "user@example.com", "password")
	svc := newTestAuthService(repo)

	login, err := svc.Authenticate(context.Background(), models.AuthenticateRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	_, err = svc.Rotate(context.Background(), login.RefreshToken, "10.0.0.2")
	require.NoError(t, err)

	_, err = svc.Rotate(context.Background(), login.RefreshToken, "10.0.0.3")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}

func TestRotateUnknownToken(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	_, err := svc.Rotate(context.Background(), "garbage", "10.0.0.1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}

func TestRotateExpiredToken(t *testing.T) {
	repo := newMockAuthRepo()
	repo.accounts["a1"] = verifiedAccount("a1", "user@example.com", "password")
	repo.refreshTokens["old"] = &models.RefreshToken{
		ID:        "rt1",
		AccountID: "a1",
		Token:     "old",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	svc := newTestAuthService(repo)

	_, err := svc.Rotate(context.Background(), "old", "10.0.0.1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}

func TestRotateConcurrentLoser(t *testing.T) {
	repo := newMockAuthRepo()
	repo.accounts["a1"] = verifiedAccount("a1", "user@example.com", "password")
	repo.refreshTokens["current"] = &models.RefreshToken{
		ID:        "rt1",
		AccountID: "a1",
		Token:     "current",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	// the conditional update finds no unrevoked row: another rotation won
	repo.rotateErr = sql.ErrNoRows
	svc := newTestAuthService(repo)

	_, err := svc.Rotate(context.Background(), "current", "10.0.0.1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}

func TestRevokeByOwner(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["tok"] = &models.RefreshToken{
		ID:        "rt1",
		AccountID: "a1",
		Token:     "tok",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newTestAuthService(repo)

	auth := &models.AuthContext{
		AccountID: "a1",
		Role:      models.RoleUser,
		OwnsToken: func(token string) bool { return token == "tok" },
	}
	require.NoError(t, svc.Revoke(context.Background(), "tok", "10.0.0.1", auth))
	assert.NotNil(t, repo.refreshTokens["tok"].RevokedAt)
}

func TestRevokeForeignTokenRejected(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["tok"] = &models.RefreshToken{
		ID:        "rt1",
		AccountID: "a1",
		Token:     "tok",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newTestAuthService(repo)

	auth := &models.AuthContext{
		AccountID: "a2",
		Role:      models.RoleUser,
		OwnsToken: func(string) bool { return false },
	}
	err := svc.Revoke(context.Background(), "tok", "10.0.0.1", auth)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
	assert.Nil(t, repo.refreshTokens["tok"].RevokedAt)
}

func TestRevokeAnyTokenAsAdmin(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["tok"] = &models.RefreshToken{
		ID:        "rt1",
		AccountID: "a1",
		Token:     "tok",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newTestAuthService(repo)

	auth := &models.AuthContext{
		AccountID: "admin",
		Role:      models.RoleAdmin,
		OwnsToken: func(string) bool { return false },
	}
	require.NoError(t, svc.Revoke(context.Background(), "tok", "10.0.0.1", auth))
}

func TestRevokeAlreadyRevoked(t *testing.T) {
	repo := newMockAuthRepo()
	revokedAt := time.Now().Add(-time.Minute)
	repo.refreshTokens["tok"] = &models.RefreshToken{
		ID:        "rt1",
		AccountID: "a1",
		Token:     "tok",
		ExpiresAt: time.Now().Add(time.Hour),
		RevokedAt: &revokedAt,
	}
	svc := newTestAuthService(repo)

	auth := &models.AuthContext{
		AccountID: "a1",
		Role:      models.RoleUser,
		OwnsToken: func(string) bool { return true },
	}
	err := svc.Revoke(context.Background(), "tok", "10.0.0.1", auth)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}

func TestIdentifyReturnsOwnership(t *testing.T) {
	repo := newMockAuthRepo()
	account := verifiedAccount("a1", "user@example.com", "password")
	repo.accounts["a1"] = account
	repo.refreshTokens["mine"] = &models.RefreshToken{ID: "rt1", AccountID: "a1", Token: "mine", ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens["theirs"] = &models.RefreshToken{ID: "rt2", AccountID: "a2", Token: "theirs", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo)

	token, err := svc.IssueAccessToken(account)
	require.NoError(t, err)

	auth, err := svc.Identify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "a1", auth.AccountID)
	assert.Equal(t, models.RoleUser, auth.Role)
	assert.True(t, auth.OwnsToken("mine"))
	assert.False(t, auth.OwnsToken("theirs"))
}

func TestIdentifyDeactivatedAccount(t *testing.T) {
	repo := newMockAuthRepo()
	account := verifiedAccount("a1", "user@example.com", "password")
	repo.accounts["a1"] = account
	svc := newTestAuthService(repo)

	token, err := svc.IssueAccessToken(account)
	require.NoError(t, err)

	// deactivation takes effect on the very next request
	account.Active = false
	_, err = svc.Identify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestIdentifyDeletedAccount(t *testing.T) {
	repo := newMockAuthRepo()
	account := verifiedAccount("a1", "user@example.com", "password")
	repo.accounts["a1"] = account
	svc := newTestAuthService(repo)

	token, err := svc.IssueAccessToken(account)
	require.NoError(t, err)

	delete(repo.accounts, "a1")
	_, err = svc.Identify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestIdentifyGarbageToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Identify(context.Background(), "not-a-jwt")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}

func TestIdentifyWrongSigningKey(t *testing.T) {
	repo := newMockAuthRepo()
	account := verifiedAccount("a1", "user@example.com", "password")
	repo.accounts["a1"] = account

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		Secret:            "different",
		AccessTokenExpiry: time.Hour,
	})
	token, err := other.IssueAccessToken(account)
	require.NoError(t, err)

	svc := newTestAuthService(repo)
	_, err = svc.Identify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}
