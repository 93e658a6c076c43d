package service

import "context"

// SystemActor is recorded when no authenticated user is attached to the context.
const SystemActor = "system"

type actorKey struct{}

// WithActor attaches the authenticated user id to ctx for audit and rate limiting.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the user id attached by WithActor, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return SystemActor
}
