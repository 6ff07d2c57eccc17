package auth

import (
	"context"
	"strings"
)

// Roles recognised on the "role" custom claim.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Identity is the verified principal behind a request.
type Identity struct {
	UID   string
	Email string
	Roles []string
}

// HasAnyRole reports whether the identity holds one of roles (case-insensitive).
func (i *Identity) HasAnyRole(roles ...string) bool {
	if i == nil {
		return false
	}
	for _, want := range roles {
		for _, have := range i.Roles {
			if strings.EqualFold(strings.TrimSpace(want), have) {
				return true
			}
		}
	}
	return false
}

// CanEditCatalog reports whether the identity may mutate catalog content.
func (i *Identity) CanEditCatalog() bool {
	return i.HasAnyRole(RoleAdmin, RoleEditor)
}

type identityKey struct{}

// WithIdentity stores identity on ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
