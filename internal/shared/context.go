package shared

import "context"

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal id in context.
func ContextWithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principalID)
}

// PrincipalFromContext extracts the authenticated principal id from context.
// Returns an empty string when the request is unauthenticated.
func PrincipalFromContext(ctx context.Context) string {
	id, _ := ctx.Value(principalContextKey{}).(string)
	return id
}
