package auth

import "context"

type contextKey struct{}

// ActorContext identifies the already-authenticated caller of a request.
// Authentication itself happens at the identity provider; this service
// only consumes validated sessions.
type ActorContext struct {
	UserID    int64
	SessionID int64
}

func WithActor(ctx context.Context, ac ActorContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (ActorContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(ActorContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}
