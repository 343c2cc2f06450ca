package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/umsys/account-api/internal/models"
)

func performRBAC(t *testing.T, auth *models.AuthContext, path string, allowed ...string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/resource/:id", func(c *gin.Context) {
		if auth != nil {
			c.Set(ContextUserKey, auth)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRBACAllowsRole(t *testing.T) {
	auth := &models.AuthContext{AccountID: "a1", Role: models.RoleAdmin}
	w := performRBAC(t, auth, "/resource/other", string(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsRole(t *testing.T) {
	auth := &models.AuthContext{AccountID: "a1", Role: models.RoleUser}
	w := performRBAC(t, auth, "/resource/other", string(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACAllowsSelf(t *testing.T) {
	auth := &models.AuthContext{AccountID: "a1", Role: models.RoleUser}
	w := performRBAC(t, auth, "/resource/a1", string(models.RoleAdmin), "SELF")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsOtherAccount(t *testing.T) {
	auth := &models.AuthContext{AccountID: "a1", Role: models.RoleUser}
	w := performRBAC(t, auth, "/resource/a2", string(models.RoleAdmin), "SELF")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRequiresIdentity(t *testing.T) {
	w := performRBAC(t, nil, "/resource/a1", string(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
