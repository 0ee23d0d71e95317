package domain

import (
	"context"

	"github.com/worknest/messaging-api/internal/domain/permission"
)

// AuthMethod describes how a caller authenticated with the API.
type AuthMethod string

const (
	AuthMethodJWT     AuthMethod = "jwt"
	AuthMethodGateway AuthMethod = "gateway"
)

// Principal captures normalized caller identity independent of auth mechanism.
type Principal struct {
	ID         string
	AuthMethod AuthMethod
	Subject    string
	Issuer     string
	Username   string
	Email      string
	Name       string
	Picture    string
	Roles      []string
	SystemRole permission.SystemRole
}

// DisplayName returns the best human-readable name for the principal.
func (p Principal) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Username != "":
		return p.Username
	case p.Email != "":
		return p.Email
	default:
		return p.ID
	}
}

// Transactor runs fn inside a single store transaction carried by the context.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
