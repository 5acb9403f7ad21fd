// Package contexthelpers carries the authenticated user through request contexts.
package contexthelpers

import (
	"context"
	"net/http"
)

type contextKey string

const authenticatedUserIDContextKey = contextKey("authenticatedUserID")

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, authenticatedUserIDContextKey, userID)
}

// AuthenticateRequest returns r with the user id stored in its context.
func AuthenticateRequest(r *http.Request, userID string) *http.Request {
	return r.WithContext(WithUserID(r.Context(), userID))
}

// AuthenticatedUserID returns the user id stored in ctx or an empty string.
func AuthenticatedUserID(ctx context.Context) string {
	userID, ok := ctx.Value(authenticatedUserIDContextKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// IsAuthenticated reports whether ctx carries a user id.
func IsAuthenticated(ctx context.Context) bool {
	return AuthenticatedUserID(ctx) != ""
}
