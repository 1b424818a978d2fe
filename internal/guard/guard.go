// Package guard enforces the cooperative edit-lock contract shared by
// events, planning items, and assignments.
package guard

import (
	"github.com/nhle/newsroom-planning/internal/model"
)

// Lockable is any entity carrying cooperative lock fields.
type Lockable interface {
	HeldByOther(userID string) bool
}

// Check returns a forbidden error when the entity is locked by a user
// other than userID. An unlocked entity or one locked by userID passes.
func Check(entity Lockable, userID, itemID string) error {
	if entity.HeldByOther(userID) {
		return model.Forbiddenf("item %s is locked by another user", itemID)
	}
	return nil
}
