package accountctx

import (
	"context"
	"strings"
)

// AccountContextKey is the request context key for the calling account.
type AccountContextKey struct{}

// WithAccountID stores the caller's account ID in the context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountContextKey{}, strings.TrimSpace(accountID))
}

// AccountIDFromContext returns the caller's account ID from context, if set.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(AccountContextKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
