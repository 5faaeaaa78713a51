package domain

import (
	"sol-backend/internal/pkg/constants"

	"github.com/google/uuid"
)

// Actor is the already-resolved caller identity passed into every core operation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the actor may act as fund administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == constants.Admin || a.Role == constants.Superadmin
}

// Authenticated reports whether the actor carries a user id.
func (a Actor) Authenticated() bool {
	return a.UserID != uuid.Nil
}

// RequireAdmin returns ErrForbidden unless the actor is an administrator.
func (a Actor) RequireAdmin(op string) error {
	if !a.Authenticated() || !a.IsAdmin() {
		return NewError(ErrForbidden, a.UserID.String(), "%s requires an administrator", op)
	}
	return nil
}
