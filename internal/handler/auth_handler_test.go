package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/umsys/account-api/internal/models"
	"github.com/umsys/account-api/internal/service"
)

type stubAuthRepo struct {
	account       *models.Account
	refreshTokens map[string]*models.RefreshToken
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if s.account != nil && s.account.Email == email {
		return s.account, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAuthRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if s.account != nil && s.account.ID == id {
		return s.account, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := s.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (s *stubAuthRepo) FindRefreshTokensByAccount(ctx context.Context, accountID string) ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	for _, rt := range s.refreshTokens {
		if rt.AccountID == accountID {
			tokens = append(tokens, *rt)
		}
	}
	return tokens, nil
}

func (s *stubAuthRepo) RotateRefreshToken(ctx context.Context, oldToken string, revokedAt time.Time, revokedByIP string, next *models.RefreshToken) error {
	rt, ok := s.refreshTokens[oldToken]
	if !ok || rt.RevokedAt != nil {
		return sql.ErrNoRows
	}
	rt.RevokedAt = &revokedAt
	rt.ReplacedByToken = &next.Token
	s.refreshTokens[next.Token] = next
	return nil
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, token string, revokedAt time.Time, revokedByIP string) error {
	rt, ok := s.refreshTokens[token]
	if !ok || rt.RevokedAt != nil {
		return sql.ErrNoRows
	}
	rt.RevokedAt = &revokedAt
	return nil
}

func (s *stubAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func newAuthTestRouter(t *testing.T) (*gin.Engine, *stubAuthRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	verifiedAt := time.Now().Add(-time.Hour)
	repo := &stubAuthRepo{
		account: &models.Account{
			ID:           "a1",
			Email:        "user@example.com",
			PasswordHash: string(hash),
			Role:         models.RoleUser,
			Active:       true,
			VerifiedAt:   &verifiedAt,
		},
		refreshTokens: make(map[string]*models.RefreshToken),
	}

	svc := service.NewAuthService(repo, nil, nil, service.AuthConfig{
		Secret:             "secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	})
	h := NewAuthHandler(svc, 7*24*time.Hour)

	r := gin.New()
	r.POST("/accounts/authenticate", h.Authenticate)
	r.POST("/accounts/refresh-token", h.RefreshToken)
	return r, repo
}

func TestAuthenticateSetsRefreshCookie(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/accounts/authenticate",
		strings.NewReader(`{"email":"user@example.com","password":"password"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.NotEmpty(t, cookie.Value)

	// the refresh token never appears in the body
	assert.NotContains(t, w.Body.String(), cookie.Value)
	assert.Contains(t, w.Body.String(), "access_token")
}

func TestAuthenticateBadCredentials(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/accounts/authenticate",
		strings.NewReader(`{"email":"user@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestRefreshTokenRotatesCookie(t *testing.T) {
	r, repo := newAuthTestRouter(t)

	repo.refreshTokens["current"] = &models.RefreshToken{
		ID:        "rt1",
		AccountID: "a1",
		Token:     "current",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/accounts/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "current"})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.NotEqual(t, "current", cookie.Value)
	assert.NotNil(t, repo.refreshTokens["current"].RevokedAt)
}

func TestRefreshTokenMissingCookie(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/accounts/refresh-token", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
