package post

import (
	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
)

// Status is the moderation state of a Post.
type Status string

const (
	StatusPending    Status = "pending"
	StatusComingSoon Status = "coming_soon"
	StatusApproved   Status = "approved"
)

var Statuses = []Status{StatusPending, StatusComingSoon, StatusApproved}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusComingSoon, StatusApproved:
		return true
	}
	return false
}

var errInvalidStatus = core.NewValidationError(
	nil, core.FieldError{Field: "status", Error: "status must be one of pending, coming_soon, approved"},
)

// initialStatus picks the status of a newly created Post.
// Only admins may choose it; anything sent by a non-admin is ignored.
func initialStatus(actor user.User, requested Status) (Status, error) {
	if requested == "" || Authorize(actor, ActionCreateWithStatus, Post{}) != nil {
		return StatusPending, nil
	}
	if !requested.IsValid() {
		return "", errInvalidStatus
	}
	return requested, nil
}

// transition moves p to status `to`. Any state may reach any other; only admins may move it.
func transition(actor user.User, p *Post, to Status) error {
	if err := Authorize(actor, ActionSetStatus, *p); err != nil {
		return err
	}
	if !to.IsValid() {
		return errInvalidStatus
	}
	p.Status = to
	return nil
}
