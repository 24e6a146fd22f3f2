package session

import "context"

type userIDKey struct{}

// WithUserID binds an authenticated user id to ctx.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFrom returns the user id bound by Authenticator, if any.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok && id > 0
}
