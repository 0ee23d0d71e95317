package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/permission"
)

// TokenValidator turns a bearer token into verified claims.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*PrincipalClaims, error)
}

// PrincipalClaims represent the subset of JWT claims the service relies on.
type PrincipalClaims struct {
	Subject           string
	Issuer            string
	PreferredUsername string
	Email             string
	Name              string
	Picture           string
	Roles             []string
	ExpiresAt         time.Time
	NotBefore         time.Time
}

// Principal maps the claims onto a caller identity.
func (c *PrincipalClaims) Principal() domain.Principal {
	return domain.Principal{
		ID:         c.Subject,
		AuthMethod: domain.AuthMethodJWT,
		Subject:    c.Subject,
		Issuer:     c.Issuer,
		Username:   c.PreferredUsername,
		Email:      c.Email,
		Name:       c.Name,
		Picture:    c.Picture,
		Roles:      c.Roles,
		SystemRole: permission.SystemRoleFromClaims(c.Roles),
	}
}

// KeycloakValidator validates JWT tokens against Keycloak JWKS.
type KeycloakValidator struct {
	issuer       string
	audience     string
	jwksURL      string
	logger       zerolog.Logger
	refreshEvery time.Duration
	clockSkew    time.Duration
	now          func() time.Time
	jwks         atomic.Pointer[keyfunc.JWKS]
	lastErr      atomic.Value // lastErrWrap
}

var _ TokenValidator = (*KeycloakValidator)(nil)

// lastErrWrap avoids storing a bare nil in atomic.Value.
type lastErrWrap struct{ Err error }

const (
	jwksInitialRetryInterval   = time.Second
	jwksInitialRetryMaxBackoff = 10 * time.Second
	jwksInitialRetryTimeout    = 2 * time.Minute
)

// NewKeycloakValidator fetches the JWKS, retrying with backoff, and returns a validator.
func NewKeycloakValidator(
	ctx context.Context,
	jwksURL,
	issuer,
	audience string,
	refreshEvery,
	clockSkew time.Duration,
	logger zerolog.Logger,
) (*KeycloakValidator, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}

	validator := &KeycloakValidator{
		issuer:       issuer,
		audience:     audience,
		jwksURL:      jwksURL,
		logger:       logger.With().Str("component", "jwt-validator").Logger(),
		refreshEvery: refreshEvery,
		clockSkew:    clockSkew,
		now:          time.Now,
	}
	validator.lastErr.Store(lastErrWrap{Err: nil})

	if err := validator.initJWKS(ctx); err != nil {
		return nil, err
	}
	return validator, nil
}

func (v *KeycloakValidator) initJWKS(ctx context.Context) error {
	options := keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			v.lastErr.Store(lastErrWrap{Err: err})
			if err != nil {
				v.logger.Error().Err(err).Msg("jwks refresh failed")
			}
		},
		RefreshInterval:   v.refreshEvery,
		RefreshUnknownKID: true,
	}

	backoff := jwksInitialRetryInterval
	deadline := time.Now().Add(jwksInitialRetryTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for attempt := 1; ; attempt++ {
		jwks, err := keyfunc.Get(v.jwksURL, options)
		if err == nil {
			v.lastErr.Store(lastErrWrap{Err: nil})
			v.jwks.Store(jwks)
			return nil
		}

		v.logger.Warn().
			Err(err).
			Str("jwks_url", v.jwksURL).
			Int("attempt", attempt).
			Msg("initial jwks fetch failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("fetch jwks: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("fetch jwks: %w", err)
		}
		backoff = min(backoff*2, jwksInitialRetryMaxBackoff)
	}
}

// Validate parses and validates the given JWT returning principal claims.
func (v *KeycloakValidator) Validate(_ context.Context, rawToken string) (*PrincipalClaims, error) {
	jwks := v.jwks.Load()
	if jwks == nil {
		return nil, errors.New("jwks not initialised")
	}

	// Time-based claims are checked below with the configured skew.
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(rawToken, jwt.MapClaims{}, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return v.claimsFromMap(mapClaims)
}

func (v *KeycloakValidator) claimsFromMap(mapClaims jwt.MapClaims) (*PrincipalClaims, error) {
	iss := claimString(mapClaims["iss"])
	if iss != v.issuer {
		return nil, fmt.Errorf("issuer mismatch %s", iss)
	}
	if err := checkAudience(mapClaims["aud"], v.audience); err != nil {
		return nil, err
	}

	sub := claimString(mapClaims["sub"])
	if sub == "" {
		return nil, errors.New("sub claim missing")
	}

	expires := jwtNumericTime(mapClaims["exp"])
	notBefore := jwtNumericTime(mapClaims["nbf"])
	now := v.now().UTC()
	if !expires.IsZero() && now.After(expires.Add(v.clockSkew)) {
		return nil, errors.New("token expired")
	}
	if !notBefore.IsZero() && now.Add(v.clockSkew).Before(notBefore) {
		return nil, errors.New("token not yet valid")
	}

	return &PrincipalClaims{
		Subject:           sub,
		Issuer:            iss,
		PreferredUsername: claimString(mapClaims["preferred_username"]),
		Email:             claimString(mapClaims["email"]),
		Name:              claimString(mapClaims["name"]),
		Picture:           claimString(mapClaims["picture"]),
		Roles:             collectRoles(mapClaims, v.audience),
		ExpiresAt:         expires,
		NotBefore:         notBefore,
	}, nil
}

// Ready indicates whether JWKS has been successfully loaded.
func (v *KeycloakValidator) Ready() bool {
	if v.jwks.Load() == nil {
		return false
	}
	if wrap, ok := v.lastErr.Load().(lastErrWrap); ok && wrap.Err != nil {
		return false
	}
	return true
}

func checkAudience(raw any, audience string) error {
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		if val != audience {
			return errors.New("audience mismatch")
		}
		return nil
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok && s == audience {
				return nil
			}
		}
		return errors.New("audience mismatch")
	default:
		return fmt.Errorf("aud claim unsupported type %T", val)
	}
}

// collectRoles merges realm roles with the client roles granted for audience.
func collectRoles(mapClaims jwt.MapClaims, audience string) []string {
	var roles []string
	if realmAccess, ok := mapClaims["realm_access"].(map[string]any); ok {
		roles = appendStrings(roles, realmAccess["roles"])
	}
	if resourceAccess, ok := mapClaims["resource_access"].(map[string]any); ok {
		if client, ok := resourceAccess[audience].(map[string]any); ok {
			roles = appendStrings(roles, client["roles"])
		}
	}
	return roles
}

func appendStrings(dst []string, raw any) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return dst
	}
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			dst = append(dst, s)
		}
	}
	return dst
}

func jwtNumericTime(value any) time.Time {
	switch timeValue := value.(type) {
	case float64:
		return time.Unix(int64(timeValue), 0).UTC()
	case int64:
		return time.Unix(timeValue, 0).UTC()
	case json.Number:
		if unixTime, err := timeValue.Int64(); err == nil {
			return time.Unix(unixTime, 0).UTC()
		}
	}
	return time.Time{}
}

func claimString(value any) string {
	if str, ok := value.(string); ok {
		return str
	}
	return ""
}
