package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/infrastructure/auth"
)

type validatorFunc func(ctx context.Context, raw string) (*auth.PrincipalClaims, error)

func (f validatorFunc) Validate(ctx context.Context, raw string) (*auth.PrincipalClaims, error) {
	return f(ctx, raw)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthEngine(opts AuthOptions) (*gin.Engine, *domain.Principal) {
	var seen domain.Principal
	engine := gin.New()
	engine.Use(AuthMiddleware(opts, zerolog.Nop()))
	engine.GET("/whoami", func(c *gin.Context) {
		seen, _ = PrincipalFromContext(c)
		c.Status(http.StatusOK)
	})
	return engine, &seen
}

func TestAuthMiddleware(t *testing.T) {
	validator := validatorFunc(func(_ context.Context, raw string) (*auth.PrincipalClaims, error) {
		if raw != "good" {
			return nil, errors.New("bad signature")
		}
		return &auth.PrincipalClaims{Subject: "alice", Roles: []string{"manager"}}, nil
	})

	tests := []struct {
		name       string
		opts       AuthOptions
		headers    map[string]string
		wantStatus int
		wantID     string
		wantRole   permission.SystemRole
	}{
		{
			name:       "no credentials",
			opts:       AuthOptions{Validator: validator, TrustGatewayHeaders: true},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid bearer",
			opts:       AuthOptions{Validator: validator},
			headers:    map[string]string{"Authorization": "Bearer good"},
			wantStatus: http.StatusOK,
			wantID:     "alice",
			wantRole:   permission.SystemRoleManager,
		},
		{
			name:       "invalid bearer",
			opts:       AuthOptions{Validator: validator, TrustGatewayHeaders: true},
			headers:    map[string]string{"Authorization": "Bearer forged", "X-User-ID": "alice"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "gateway headers with trusted roles",
			opts:       AuthOptions{TrustGatewayHeaders: true, TrustGatewayRoles: true},
			headers:    map[string]string{"X-User-ID": "bob", "X-User-Roles": "offline_access, Admin"},
			wantStatus: http.StatusOK,
			wantID:     "bob",
			wantRole:   permission.SystemRoleAdmin,
		},
		{
			name:       "forged superadmin headers without a token",
			opts:       AuthOptions{Validator: validator},
			headers:    map[string]string{"X-User-ID": "x", "X-User-Roles": "superadmin"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "gateway roles ignored unless trusted",
			opts:       AuthOptions{Validator: validator, TrustGatewayHeaders: true},
			headers:    map[string]string{"X-User-ID": "x", "X-User-Roles": "superadmin"},
			wantStatus: http.StatusOK,
			wantID:     "x",
			wantRole:   permission.SystemRoleEmployee,
		},
		{
			name:       "gateway headers ignored when untrusted",
			opts:       AuthOptions{},
			headers:    map[string]string{"X-User-ID": "bob"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "subject mismatch",
			opts:       AuthOptions{Validator: validator, TrustGatewayHeaders: true},
			headers:    map[string]string{"Authorization": "Bearer good", "X-User-ID": "mallory"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "matching jwt and gateway",
			opts:       AuthOptions{Validator: validator, TrustGatewayHeaders: true},
			headers:    map[string]string{"Authorization": "Bearer good", "X-User-ID": "alice"},
			wantStatus: http.StatusOK,
			wantID:     "alice",
			wantRole:   permission.SystemRoleManager,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, seen := newAuthEngine(tt.opts)
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantID, seen.ID)
				assert.Equal(t, tt.wantRole, seen.SystemRole)
			}
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	var fromCtx string
	engine.GET("/", func(c *gin.Context) {
		fromCtx = RequestIDFromContext(c)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	engine.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", fromCtx)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRateLimitPerPrincipal(t *testing.T) {
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		SetPrincipal(c, domain.Principal{ID: c.GetHeader("X-Test-User")})
		c.Next()
	})
	engine.Use(RateLimitMiddleware(60, 2, 16))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Test-User", userID)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("alice").Code)
	assert.Equal(t, http.StatusOK, call("alice").Code)
	limited := call("alice")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("bob").Code)
}

func TestCORSPreflight(t *testing.T) {
	engine := gin.New()
	engine.Use(CORSMiddleware([]string{"https://app.example.com"}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
