package httpx

import "context"

// userIDKey is an unexported context key type to avoid collisions across packages.
type userIDKey struct{}

// SetUserInContext returns a child context carrying the authenticated user ID.
// If userID is empty, the original ctx is returned unchanged.
func SetUserInContext(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user ID and whether one is present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(userIDKey{}).(string); ok && id != "" {
		return id, true
	}
	return "", false
}
