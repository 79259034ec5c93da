// ABOUTME: Request context helpers carrying the authenticated actor through handlers
// ABOUTME: A missing actor means the request is anonymous

package auth

import (
	"context"

	"github.com/2389/commons/internal/policy"
)

// actorContextKey is the key type for storing the actor in context.Context.
type actorContextKey struct{}

// WithActor returns a new context with the actor attached.
func WithActor(ctx context.Context, actor *policy.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext retrieves the actor from the context, returning nil for
// anonymous requests.
func ActorFromContext(ctx context.Context) *policy.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*policy.Actor)
	return actor
}
