package auth

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// Principal is the authenticated actor extracted from a bearer token.
// The settlement core never reads ambient session state; handlers pull
// the principal out of the request context and pass its ID explicitly.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
