package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coopaguas/backend/internal/infrastructure/auth"
	"github.com/coopaguas/backend/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-jwt-signing-0123456789",
		AccessTokenExpiration: time.Hour,
		Issuer:                "coopaguas-backend",
	})
}

func setupEngine(svc *auth.JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{
		JWTService: svc,
		SkipPaths:  []string{"/public"},
	}))
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": GetJWTOperatorID(c), "role": GetJWTRole(c)})
	})
	engine.GET("/protected", handlers...)
	engine.GET("/public", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newJWTService(t)

	t.Run("accepts a valid bearer token", func(t *testing.T) {
		engine := setupEngine(svc)
		token, _, err := svc.GenerateToken(uuid.New(), "M. Soto", auth.RoleCashier)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "cashier")
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		engine := setupEngine(svc)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects a malformed header", func(t *testing.T) {
		engine := setupEngine(svc)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, "Basic abc")
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("skips configured paths", func(t *testing.T) {
		engine := setupEngine(svc)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	svc := newJWTService(t)

	t.Run("admin passes", func(t *testing.T) {
		engine := setupEngine(svc, RequireAdmin())
		token, _, err := svc.GenerateToken(uuid.New(), "Admin", auth.RoleAdmin)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("cashier is forbidden", func(t *testing.T) {
		engine := setupEngine(svc, RequireAdmin())
		token, _, err := svc.GenerateToken(uuid.New(), "Cashier", auth.RoleCashier)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
