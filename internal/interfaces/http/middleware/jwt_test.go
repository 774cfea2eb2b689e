package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/auth"
	"github.com/wholesale/backend/internal/infrastructure/config"
	"github.com/wholesale/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		Issuer:                "test-issuer",
		AccessTokenExpiration: expiration,
	})
}

func newActorRouter(t *testing.T, cfg JWTMiddlewareConfig, seen *shared.Actor) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	handler := func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		require.True(t, ok)
		if seen != nil {
			*seen = actor
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/test", handler)
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func do(router http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestJWTAuthMiddleware_PlacesActor(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	actor := shared.NewAdmin(uuid.New(), shared.AdminDisputeManager)
	token, err := svc.Issue(actor)
	require.NoError(t, err)

	var seen shared.Actor
	rec := do(newActorRouter(t, DefaultJWTConfig(svc), &seen), "/test", "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, actor, seen)
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	router := newActorRouter(t, DefaultJWTConfig(svc), nil)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"wrong scheme", "Basic abc", dto.ErrCodeUnauthorized},
		{"empty token", "Bearer ", dto.ErrCodeUnauthorized},
		{"garbage token", "Bearer not.a.token", dto.ErrCodeTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, "/test", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestJWTAuthMiddleware_ExpiredToken(t *testing.T) {
	svc := newTestJWTService(-time.Minute)
	token, err := svc.Issue(shared.NewActor(uuid.New(), shared.RoleSeller))
	require.NoError(t, err)

	rec := do(newActorRouter(t, DefaultJWTConfig(svc), nil), "/test", "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, dto.ErrCodeTokenExpired, errorCode(t, rec))
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	svc := newTestJWTService(time.Minute)
	rec := do(newActorRouter(t, DefaultJWTConfig(svc), nil), "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthMiddleware_Blacklist(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	blacklist := auth.NewInMemoryTokenBlacklist()
	cfg := DefaultJWTConfig(svc)
	cfg.TokenBlacklist = blacklist
	router := newActorRouter(t, cfg, nil)

	seller := shared.NewActor(uuid.New(), shared.RoleSeller)
	token, err := svc.Issue(seller)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(router, "/test", "Bearer "+token).Code)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.NoError(t, blacklist.RevokeToken(context.Background(), claims.ID, time.Minute))
	assert.Equal(t, http.StatusUnauthorized, do(router, "/test", "Bearer "+token).Code)

	other := shared.NewActor(uuid.New(), shared.RoleCustomer)
	otherToken, err := svc.Issue(other)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, blacklist.RevokeActor(context.Background(), other.ID.String(), time.Minute))
	assert.Equal(t, http.StatusUnauthorized, do(router, "/test", "Bearer "+otherToken).Code)
}

func TestActorFrom_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := ActorFrom(c)
	assert.False(t, ok)
	assert.Nil(t, GetJWTClaims(c))
}
