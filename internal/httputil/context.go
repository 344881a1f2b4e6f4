package httputil

import (
	"context"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "userID"

// WithUserID returns r with the authenticated user attached
func WithUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
}

// UserIDFromContext returns the authenticated user, if any
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// GetUserID returns the authenticated user, or "" for anonymous requests
func GetUserID(r *http.Request) string {
	userID, _ := UserIDFromContext(r.Context())
	return userID
}
