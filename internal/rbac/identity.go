package rbac

import "context"

// Identity is the authenticated principal a request acts on behalf of.
type Identity struct {
	ID    int64
	Email string
	Role  Role
}

// Authenticated reports whether the identity refers to a stored principal.
func (i Identity) Authenticated() bool {
	return i.ID > 0 && i.Role.Valid()
}

// Owned is implemented by resources that belong to a single identity.
type Owned interface {
	OwnerID() int64
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity resolved for the current request.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by the middleware, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || !id.Authenticated() {
		return Identity{}, false
	}
	return id, true
}
