package policies

import (
	"sol-backend/internal/domain"
)

// RequireSteward allows the Sol's founder or any administrator to perform action.
func RequireSteward(actor domain.Actor, sol *domain.Sol, action string) error {
	if actor.IsAdmin() || (actor.Authenticated() && actor.UserID == sol.FounderID) {
		return nil
	}
	return domain.NewError(domain.ErrForbidden, actor.UserID.String(), "only the founder or an administrator may %s", action)
}

// ValidateRemoval checks who may remove target from sol. Members may leave on their own; the founder never leaves.
func ValidateRemoval(actor domain.Actor, sol *domain.Sol, target *domain.Participant) error {
	if !actor.IsAdmin() && actor.UserID != sol.FounderID && actor.UserID != target.UserID {
		return domain.NewError(domain.ErrForbidden, actor.UserID.String(),
			"only the founder, an administrator or the participant may remove a participant")
	}
	if target.UserID == sol.FounderID {
		return domain.NewError(domain.ErrForbidden, target.ParticipantID.String(), "the founder cannot leave the sol")
	}
	return nil
}
