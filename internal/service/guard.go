package service

import (
	"fmt"
	"time"

	"github.com/Skotchmaster/tasktracker/internal/models"
)

// Identity is the authenticated caller, resolved once per request from a
// verified token and threaded explicitly into every access decision.
type Identity struct {
	UserID    uint
	Username  string
	Role      models.Role
	JTI       string
	ExpiresAt time.Time
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

func RequireAdmin(id Identity) error {
	if !id.IsAdmin() {
		return fmt.Errorf("%w: administrator role required", ErrForbidden)
	}
	return nil
}

// RequireOwnerOrAdmin allows administrators on any resource and everyone
// else only on resources they own.
func RequireOwnerOrAdmin(id Identity, ownerID uint) error {
	if id.IsAdmin() {
		return nil
	}
	if id.UserID != 0 && id.UserID == ownerID {
		return nil
	}
	return fmt.Errorf("%w: resource belongs to another user", ErrForbidden)
}
