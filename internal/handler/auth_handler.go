package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/umsys/account-api/internal/models"
	"github.com/umsys/account-api/internal/service"
	appErrors "github.com/umsys/account-api/pkg/errors"
	"github.com/umsys/account-api/pkg/response"
)

const refreshCookieName = "refreshToken"

// AuthHandler wires the session endpoints to the auth service. The refresh
// token travels in an HTTP-only cookie; only the short-lived access token
// appears in response bodies.
type AuthHandler struct {
	service   *service.AuthService
	cookieTTL time.Duration
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, cookieTTL time.Duration) *AuthHandler {
	return &AuthHandler{service: svc, cookieTTL: cookieTTL}
}

// Authenticate godoc
// @Summary Authenticate account
// @Description Authenticate by email and password, opening a refresh-token session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.AuthenticateRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /accounts/authenticate [post]
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req models.AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid authenticate payload"))
		return
	}
	req.IP = c.ClientIP()

	res, err := h.service.Authenticate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	response.JSON(c, http.StatusOK, res, nil)
}

// RefreshToken godoc
// @Summary Rotate refresh token
// @Description Exchange the refresh-token cookie for a new token pair
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /accounts/refresh-token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookieName)
	if err != nil || token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidToken, "refresh token required"))
		return
	}

	res, err := h.service.Rotate(c.Request.Context(), token, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	response.JSON(c, http.StatusOK, res, nil)
}

// RevokeToken godoc
// @Summary Revoke refresh token
// @Description Revoke a refresh token owned by the caller, or any token for administrators
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body object false "Token (falls back to cookie)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /accounts/revoke-token [post]
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	auth := authFromContext(c)
	if auth == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Token string `json:"token"`
	}
	// Body is optional: the cookie is the usual carrier.
	_ = c.ShouldBindJSON(&payload)
	token := payload.Token
	if token == "" {
		token, _ = c.Cookie(refreshCookieName)
	}
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	if err := h.service.Revoke(c.Request.Context(), token, c.ClientIP(), auth); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "token revoked"}, nil)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, int(h.cookieTTL.Seconds()), "/", "", false, true)
}
