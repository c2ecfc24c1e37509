package auth

import "context"

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID   int64
	Username string
	Roles    []string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity installed by the gate, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.Username == "" {
		return Identity{}, false
	}
	return id, true
}
