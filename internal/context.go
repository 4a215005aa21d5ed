package internal

import (
	"context"
	"time"
)

type ctxKey string

// ContextUserKey carries the id of the authenticated actor, set by the auth
// middleware and read when mutations need to record who performed them.
const ContextUserKey ctxKey = "actorID"

// UserIDFromContext returns the acting user's id, or "" for anonymous or
// CLI-originated calls.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(ContextUserKey).(string); ok {
		return userID
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

// WithTimeout bounds an operation, defaulting to 5 seconds when the caller
// passes a zero or negative duration.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
