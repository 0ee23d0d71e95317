package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/domain/user"
	"github.com/worknest/messaging-api/internal/infrastructure/auth"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

const principalContextKey = "principal"

// AuthOptions selects the accepted credential sources.
type AuthOptions struct {
	// Validator checks bearer tokens. Nil disables JWT authentication.
	Validator auth.TokenValidator
	// TrustGatewayHeaders accepts X-User-* identity headers injected by the API gateway.
	TrustGatewayHeaders bool
	// TrustGatewayRoles also derives the system role from X-User-Roles.
	// Without it gateway callers are always EMPLOYEE.
	TrustGatewayRoles bool
	Issuer            string
}

// AuthMiddleware authenticates the caller from a bearer token or gateway headers.
// When both are present their subjects must agree.
func AuthMiddleware(opts AuthOptions, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		jwtPrincipal, hasJWT, jwtErr := principalFromJWT(c, opts.Validator)
		if jwtErr != nil {
			logger.Warn().Err(jwtErr).Str("path", c.FullPath()).Msg("jwt validation failed")
			platformerrors.WriteUnauthorized(c, "invalid or expired token")
			return
		}

		var gatewayPrincipal domain.Principal
		hasGateway := false
		if opts.TrustGatewayHeaders {
			gatewayPrincipal, hasGateway = principalFromGatewayHeaders(c.Request.Header, opts.Issuer, opts.TrustGatewayRoles)
		}

		switch {
		case hasJWT && hasGateway:
			if !strings.EqualFold(jwtPrincipal.Subject, gatewayPrincipal.Subject) {
				logger.Warn().
					Str("jwt_subject", jwtPrincipal.Subject).
					Str("gateway_subject", gatewayPrincipal.Subject).
					Msg("principal mismatch between JWT and gateway headers")
				platformerrors.WriteUnauthorized(c, "conflicting credentials")
				return
			}
			setPrincipal(c, jwtPrincipal)
		case hasJWT:
			setPrincipal(c, jwtPrincipal)
		case hasGateway:
			setPrincipal(c, gatewayPrincipal)
		default:
			logger.Debug().
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unauthenticated request")
			platformerrors.WriteUnauthorized(c, "authentication required")
			return
		}

		c.Next()
	}
}

// UserSyncMiddleware records the caller in the user directory. Failures are
// logged and do not block the request.
func UserSyncMiddleware(users user.Service, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal, ok := PrincipalFromContext(c); ok {
			if _, err := users.Sync(c.Request.Context(), principal); err != nil {
				logger.Warn().Err(err).Str("user_id", principal.ID).Msg("user directory sync failed")
			}
		}
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

// SetPrincipal stores principal on the gin context.
func SetPrincipal(c *gin.Context, principal domain.Principal) {
	setPrincipal(c, principal)
}

func setPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalContextKey, principal)
	c.Set("user_id", principal.ID)
	c.Writer.Header().Set("X-Principal-Id", principal.ID)
	c.Writer.Header().Set("X-Auth-Method", string(principal.AuthMethod))
}

func principalFromJWT(c *gin.Context, validator auth.TokenValidator) (domain.Principal, bool, error) {
	if validator == nil {
		return domain.Principal{}, false, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return domain.Principal{}, false, nil
	}
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return domain.Principal{}, false, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, false, errors.New("empty bearer token")
	}
	claims, err := validator.Validate(c.Request.Context(), token)
	if err != nil {
		return domain.Principal{}, false, err
	}
	return claims.Principal(), true, nil
}

func principalFromGatewayHeaders(headers http.Header, fallbackIssuer string, trustRoles bool) (domain.Principal, bool) {
	userID := strings.TrimSpace(headers.Get("X-User-ID"))
	subject := strings.TrimSpace(headers.Get("X-User-Subject"))

	principalID := firstNonEmpty(userID, subject)
	if principalID == "" {
		return domain.Principal{}, false
	}

	var roles []string
	if trustRoles {
		roles = parseList(headers.Get("X-User-Roles"))
	}
	return domain.Principal{
		ID:         principalID,
		AuthMethod: domain.AuthMethodGateway,
		Subject:    firstNonEmpty(subject, principalID),
		Issuer:     fallbackIssuer,
		Username:   strings.TrimSpace(headers.Get("X-User-Username")),
		Email:      strings.TrimSpace(headers.Get("X-User-Email")),
		Name:       strings.TrimSpace(headers.Get("X-User-Name")),
		Picture:    strings.TrimSpace(headers.Get("X-User-Picture")),
		Roles:      roles,
		SystemRole: permission.SystemRoleFromClaims(roles),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
