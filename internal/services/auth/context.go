package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
)

type identityContextKey string

const identityKey identityContextKey = "auth_identity"

// Identity is the acting employee behind a request.
type Identity struct {
	EmployeeID uuid.UUID
	Role       enums.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == enums.RoleAdmin
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
