package auth

import "context"

type ctxKey struct{}

// Identity is the caller as established by the bearer token, if any.
type Identity struct {
	IsAuth bool
	UserID string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the zero Identity (unauthenticated) when none was set.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}
