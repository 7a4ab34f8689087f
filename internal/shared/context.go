package shared

import "context"

// Actor identifies who performs an operation and on behalf of which entity.
type Actor struct {
	EntityID int64
	UserID   int64
	Role     string
}

// Validate rejects actors without an entity tag.
func (a Actor) Validate() error {
	if a.EntityID <= 0 {
		return Validation("entity", "is required")
	}
	return nil
}

// Owns reports an AuthorizationError when a record belongs to another entity.
func (a Actor) Owns(entityID int64) error {
	if entityID != a.EntityID {
		return &AuthorizationError{EntityID: a.EntityID, Reason: "record belongs to another entity"}
	}
	return nil
}

type actorContextKey struct{}

// ContextWithActor stores the actor resolved by the authentication layer.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor; ok is false when none was installed.
// Only HTTP edges read it, services receive the actor explicitly.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
