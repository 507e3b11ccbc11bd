package post

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
)

var (
	admin   = user.User{ID: "a1", Name: "Ada", Email: "ada@quantum.test", Role: user.RoleAdmin}
	owner   = user.User{ID: "u1", Name: "Olu", Email: "olu@quantum.test", Role: user.RoleUser}
	other   = user.User{ID: "u2", Name: "Ivy", Email: "ivy@quantum.test", Role: user.RoleUser}
	anonUsr = user.User{}
)

func postWith(status Status) Post {
	return Post{ID: "p1", Title: "Graphs", User: OwnerOf(owner), Status: status}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		actor   user.User
		action  Action
		post    Post
		wantErr error
	}{
		{"owner can update", owner, ActionUpdate, postWith(StatusPending), nil},
		{"admin can update", admin, ActionUpdate, postWith(StatusPending), nil},
		{"other cannot update", other, ActionUpdate, postWith(StatusApproved), ErrForbidden},
		{"anonymous cannot update", anonUsr, ActionUpdate, postWith(StatusApproved), ErrForbidden},
		{"owner can delete", owner, ActionDelete, postWith(StatusApproved), nil},
		{"admin can delete", admin, ActionDelete, postWith(StatusApproved), nil},
		{"other cannot delete", other, ActionDelete, postWith(StatusApproved), ErrForbidden},
		{"admin can set status", admin, ActionSetStatus, postWith(StatusPending), nil},
		{"owner cannot set status", owner, ActionSetStatus, postWith(StatusPending), ErrAdminOnly},
		{"admin can create with status", admin, ActionCreateWithStatus, Post{}, nil},
		{"user cannot create with status", other, ActionCreateWithStatus, Post{}, ErrAdminOnly},
		{"like approved", other, ActionLike, postWith(StatusApproved), nil},
		{"like coming soon", other, ActionLike, postWith(StatusComingSoon), nil},
		{"like pending", other, ActionLike, postWith(StatusPending), ErrNotInteractive},
		{"admin cannot like pending", admin, ActionLike, postWith(StatusPending), ErrNotInteractive},
		{"anonymous cannot like", anonUsr, ActionLike, postWith(StatusApproved), ErrForbidden},
		{"unknown action", admin, Action("archive"), postWith(StatusApproved), ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.action, tt.post)
			if err != tt.wantErr {
				t.Errorf("failed! err = %v; wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				assert.True(t, core.IsAuthorizationError(err))
			}
		})
	}
}

func TestVisibility(t *testing.T) {
	pending, soon, approved := postWith(StatusPending), postWith(StatusComingSoon), postWith(StatusApproved)

	assert.False(t, CanInteract(pending))
	assert.True(t, CanInteract(soon))
	assert.True(t, CanInteract(approved))

	assert.True(t, IsVisibleTo(admin, pending))
	assert.False(t, IsVisibleTo(owner, pending))
	assert.True(t, IsVisibleTo(other, soon))

	assert.Equal(t, user.RoleUser, ViewFor(admin, approved).User.Role)
	assert.Empty(t, ViewFor(other, approved).User.Role)
	assert.Empty(t, ViewFor(anonUsr, approved).User.Role)

	assert.Equal(t, QueryFilter{}, listFilterFor(admin))
	assert.Equal(t, QueryFilter{Statuses: PublicStatuses}, listFilterFor(owner))

	visible := filterVisible(other, []Post{pending, soon, approved})
	if assert.Len(t, visible, 2) {
		assert.Equal(t, StatusComingSoon, visible[0].Status)
		assert.Equal(t, StatusApproved, visible[1].Status)
		assert.Empty(t, visible[0].User.Role)
	}
	assert.Len(t, filterVisible(admin, []Post{pending, soon, approved}), 3)
}

func TestStatusTransitions(t *testing.T) {
	// any state reaches any other, admins only
	for _, from := range Statuses {
		for _, to := range Statuses {
			p := postWith(from)
			if err := transition(admin, &p, to); err != nil {
				t.Errorf("failed! transition(%s -> %s) err = %v", from, to, err)
			}
			assert.Equal(t, to, p.Status)

			p = postWith(from)
			assert.Equal(t, ErrAdminOnly, transition(owner, &p, to))
			assert.Equal(t, from, p.Status)
		}
	}

	p := postWith(StatusPending)
	err := transition(admin, &p, Status("archived"))
	assert.Equal(t, errInvalidStatus, err)
	assert.Equal(t, StatusPending, p.Status)
}

func TestInitialStatus(t *testing.T) {
	tests := []struct {
		name      string
		actor     user.User
		requested Status
		want      Status
		wantErr   bool
	}{
		{"user default", owner, "", StatusPending, false},
		{"user request ignored", owner, StatusApproved, StatusPending, false},
		{"user invalid request ignored", owner, Status("bogus"), StatusPending, false},
		{"admin default", admin, "", StatusPending, false},
		{"admin approved", admin, StatusApproved, StatusApproved, false},
		{"admin coming soon", admin, StatusComingSoon, StatusComingSoon, false},
		{"admin invalid", admin, Status("bogus"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := initialStatus(tt.actor, tt.requested)
			if (err != nil) != tt.wantErr {
				t.Errorf("failed! err = %v; wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdatePost_Clean(t *testing.T) {
	str := func(s string) *string { return &s }
	cat := func(c Category) *Category { return &c }

	up := UpdatePost{Title: str("  "), Content: str(" New notes "), Category: cat(" MCA "), Link: str(" ")}
	up.Clean()

	assert.Nil(t, up.Title)
	if assert.NotNil(t, up.Content) {
		assert.Equal(t, "New notes", *up.Content)
	}
	if assert.NotNil(t, up.Category) {
		assert.Equal(t, CategoryMCA, *up.Category)
	}
	if assert.NotNil(t, up.Link) {
		assert.Equal(t, "", *up.Link)
	}
	assert.False(t, up.IsEmpty())

	p := Post{Title: "Old", Content: "old", Category: CategoryBCA, Link: "https://quantum.test"}
	up.apply(&p)
	assert.Equal(t, Post{Title: "Old", Content: "New notes", Category: CategoryMCA}, p)

	assert.True(t, UpdatePost{}.IsEmpty())
}
