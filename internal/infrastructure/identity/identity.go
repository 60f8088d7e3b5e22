// Package identity verifies bearer tokens issued by the external identity
// provider and turns them into a Principal.
package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnavailable means the provider could not be reached; the token may
	// well be valid.
	ErrUnavailable = errors.New("identity provider unavailable")
)

const ServiceRole = "service_role"

// Principal is the authenticated caller. ID is the provider's subject and
// doubles as the ledger account identifier.
type Principal struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
