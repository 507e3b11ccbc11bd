package post

import (
	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
)

type Action string

const (
	ActionUpdate           Action = "update"
	ActionSetStatus        Action = "set_status"
	ActionDelete           Action = "delete"
	ActionLike             Action = "like"
	ActionCreateWithStatus Action = "create_with_status"
)

var (
	ErrForbidden      = core.NewAuthorizationError("permission denied")
	ErrAdminOnly      = core.NewAuthorizationError("only admins can change a post status")
	ErrNotInteractive = core.NewAuthorizationError("post is not open for interaction")
)

// Authorize decides whether actor may perform action on p.
// Every mutating Service operation goes through it.
func Authorize(actor user.User, action Action, p Post) error {
	if actor.ID == "" {
		return ErrForbidden
	}
	switch action {
	case ActionUpdate, ActionDelete:
		if actor.IsAdmin() || p.IsOwnedBy(actor) {
			return nil
		}
		return ErrForbidden
	case ActionSetStatus, ActionCreateWithStatus:
		if actor.IsAdmin() {
			return nil
		}
		return ErrAdminOnly
	case ActionLike:
		if CanInteract(p) {
			return nil
		}
		return ErrNotInteractive
	}
	return ErrForbidden
}
