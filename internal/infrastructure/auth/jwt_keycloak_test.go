package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worknest/messaging-api/internal/domain/permission"
)

func newTestValidator(now time.Time) *KeycloakValidator {
	return &KeycloakValidator{
		issuer:    "https://sso.example.com/realms/worknest",
		audience:  "messaging-api",
		clockSkew: time.Minute,
		now:       func() time.Time { return now },
	}
}

func TestClaimsFromMap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":                "https://sso.example.com/realms/worknest",
			"aud":                []interface{}{"account", "messaging-api"},
			"sub":                "user-1",
			"preferred_username": "alice",
			"exp":                float64(now.Add(time.Hour).Unix()),
			"realm_access":       map[string]any{"roles": []interface{}{"offline_access"}},
			"resource_access": map[string]any{
				"messaging-api": map[string]any{"roles": []interface{}{"manager"}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(jwt.MapClaims)
		wantErr string
	}{
		{name: "valid", mutate: func(jwt.MapClaims) {}},
		{name: "wrong issuer", mutate: func(m jwt.MapClaims) { m["iss"] = "other" }, wantErr: "issuer mismatch"},
		{name: "wrong audience", mutate: func(m jwt.MapClaims) { m["aud"] = "account" }, wantErr: "audience mismatch"},
		{name: "missing subject", mutate: func(m jwt.MapClaims) { delete(m, "sub") }, wantErr: "sub claim missing"},
		{name: "expired beyond skew", mutate: func(m jwt.MapClaims) { m["exp"] = float64(now.Add(-2 * time.Minute).Unix()) }, wantErr: "token expired"},
		{name: "expired within skew", mutate: func(m jwt.MapClaims) { m["exp"] = float64(now.Add(-30 * time.Second).Unix()) }},
		{name: "not yet valid", mutate: func(m jwt.MapClaims) { m["nbf"] = float64(now.Add(5 * time.Minute).Unix()) }, wantErr: "not yet valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := base()
			tt.mutate(claims)
			got, err := newTestValidator(now).claimsFromMap(claims)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", got.Subject)
			assert.ElementsMatch(t, []string{"offline_access", "manager"}, got.Roles)
		})
	}
}

func TestPrincipalFromClaims(t *testing.T) {
	claims := &PrincipalClaims{Subject: "user-1", PreferredUsername: "alice", Roles: []string{"admin"}}
	p := claims.Principal()
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, "alice", p.DisplayName())
	assert.Equal(t, permission.SystemRoleAdmin, p.SystemRole)
}

func TestReadyWithoutJWKS(t *testing.T) {
	v := newTestValidator(time.Now())
	v.lastErr.Store(lastErrWrap{})
	assert.False(t, v.Ready())
}
