package authctx

import (
	"context"
	"strings"

	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// WithActor stores the verified actor on ctx using go-auth helpers.
func WithActor(ctx context.Context, actor *auth.ActorContext) context.Context {
	return auth.WithActorContext(ctx, actor)
}

// ActorFromContext is a thin wrapper around go-auth helpers so callers do not
// need to import auth directly when they only need the actor payload.
func ActorFromContext(ctx context.Context) (*auth.ActorContext, bool) {
	return auth.ActorFromContext(ctx)
}

// ResolveActorContext returns the actor stored by the identity middleware or
// rebuilds it from JWT claims placed on the context by go-auth.
func ResolveActorContext(ctx context.Context) (*auth.ActorContext, error) {
	if ctx == nil {
		return nil, types.NewAuthMissingError("go-profilesync: missing request context")
	}

	if actor, ok := auth.ActorFromContext(ctx); ok && actor != nil {
		return actor, nil
	}

	if claims, ok := auth.GetClaims(ctx); ok && claims != nil {
		if actor := auth.ActorContextFromClaims(claims); actor != nil {
			return actor, nil
		}
	}

	return nil, types.NewAuthMissingError("go-profilesync: auth actor context not found on request")
}

// ResolveActor returns the actor reference consumed by commands together with
// the go-auth payload it was derived from.
func ResolveActor(ctx context.Context) (types.ActorRef, *auth.ActorContext, error) {
	actorCtx, err := ResolveActorContext(ctx)
	if err != nil {
		return types.ActorRef{}, nil, err
	}
	ref, err := ActorRefFromActorContext(actorCtx)
	if err != nil {
		return types.ActorRef{}, nil, err
	}
	return ref, actorCtx, nil
}

// ActorRefFromActorContext converts the auth payload into an ActorRef. The
// subject carries the profile key; when absent the actor id is used.
func ActorRefFromActorContext(actor *auth.ActorContext) (types.ActorRef, error) {
	if actor == nil {
		return types.ActorRef{}, types.NewAuthInvalidError(nil, "go-profilesync: actor context is nil")
	}
	if actor.ActorID == "" {
		return types.ActorRef{}, types.NewAuthInvalidError(nil, "go-profilesync: actor context missing actor_id")
	}

	actorID, err := uuid.Parse(actor.ActorID)
	if err != nil {
		return types.ActorRef{}, types.NewAuthInvalidError(err, "go-profilesync: invalid actor_id on auth context")
	}

	key := strings.TrimSpace(actor.Subject)
	if key == "" || key == actor.ActorID {
		key = actorID.String()
	}
	return types.ActorRef{ID: actorID, Key: key}, nil
}

// IsAuthError reports whether err is one of the authentication failures.
func IsAuthError(err error) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.Category == errors.CategoryAuth
}
