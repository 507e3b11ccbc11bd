package post

import "github.com/quantumqp/portal/core/user"

// PublicStatuses are the statuses non-admin users may see in listings.
var PublicStatuses = []Status{StatusApproved, StatusComingSoon}

// CanInteract reports whether likes and downloads are open on p.
func CanInteract(p Post) bool {
	return p.Status == StatusApproved || p.Status == StatusComingSoon
}

// IsVisibleTo reports whether actor may read p in the general listing or by id.
func IsVisibleTo(actor user.User, p Post) bool {
	return actor.IsAdmin() || CanInteract(p)
}

// ViewFor returns the representation of p that actor may read.
// Only admins see the owner's role.
func ViewFor(actor user.User, p Post) Post {
	if !actor.IsAdmin() {
		p.User.Role = ""
	}
	return p
}

func listFilterFor(actor user.User) QueryFilter {
	if actor.IsAdmin() {
		return QueryFilter{}
	}
	return QueryFilter{Statuses: PublicStatuses}
}

func filterVisible(actor user.User, posts []Post) []Post {
	visible := make([]Post, 0, len(posts))
	for _, p := range posts {
		if IsVisibleTo(actor, p) {
			visible = append(visible, ViewFor(actor, p))
		}
	}
	return visible
}
