package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgauth "github.com/muhamadhazim/fishit-marketplace/pkg/auth"
	"github.com/muhamadhazim/fishit-marketplace/pkg/enums"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor stores the authenticated caller on ctx.
func WithActor(ctx context.Context, actor pkgauth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the caller set by Auth.
func ActorFromContext(ctx context.Context) (pkgauth.Actor, bool) {
	if ctx == nil {
		return pkgauth.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(pkgauth.Actor)
	if !ok || actor.UserID == uuid.Nil {
		return pkgauth.Actor{}, false
	}
	return actor, true
}

func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}
