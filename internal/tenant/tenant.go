// Package tenant carries multi-tenant scoping through request contexts.
//
// Every API request and every store operation is scoped to a tenant. The
// tenant travels on the context; handlers never pass tenant IDs as loose
// strings, which is how cross-tenant leaks happened historically.
package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Tenant identifies the organization (and optionally the client account
// within it) that owns the data touched by a request.
type Tenant struct {
	TenantID        string `json:"tenant_id"`
	ClientAccountID string `json:"client_account_id,omitempty"`
}

type contextKey struct{}

// NewContext returns a context carrying the tenant.
func NewContext(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext extracts the tenant from the context.
func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(Tenant)
	return t, ok
}

// MustFromContext extracts the tenant or returns an error suitable for
// surfacing as a 500: a missing tenant at this depth is a programming bug,
// the middleware rejects untenanted requests before handlers run.
func MustFromContext(ctx context.Context) (Tenant, error) {
	t, ok := FromContext(ctx)
	if !ok {
		return Tenant{}, fmt.Errorf("no tenant on context")
	}
	return t, nil
}

// Validate checks that the tenant ID (and client account ID, if present)
// are well-formed UUIDs.
func (t Tenant) Validate() error {
	if _, err := uuid.Parse(t.TenantID); err != nil {
		return fmt.Errorf("invalid tenant id %q: %w", t.TenantID, err)
	}
	if t.ClientAccountID != "" {
		if _, err := uuid.Parse(t.ClientAccountID); err != nil {
			return fmt.Errorf("invalid client account id %q: %w", t.ClientAccountID, err)
		}
	}
	return nil
}
