package service

import (
	"github.com/danuartha/kabarkita/internal/model"
	"github.com/google/uuid"
)

// CanModify reports whether the actor may mutate or delete a resource owned
// by ownerID: the owner themselves, or an admin. Callers must check the
// resource exists first, so a missing resource reports not-found even to a
// non-owner.
func CanModify(actor *model.User, ownerID uuid.UUID) bool {
	if actor == nil {
		return false
	}
	return actor.ID == ownerID || actor.IsAdmin()
}
