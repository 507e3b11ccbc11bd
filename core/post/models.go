package post

import (
	"io"
	"time"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
)

type Category string

const (
	CategoryBTech Category = "btech"
	CategoryBCA   Category = "bca"
	CategoryMCA   Category = "mca"
	CategoryMBA   Category = "mba"
	CategoryOther Category = "other"
)

var Categories = []Category{CategoryBTech, CategoryBCA, CategoryMCA, CategoryMBA, CategoryOther}

func (c Category) IsValid() bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Owner is the embedded view of the user who created a Post.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func OwnerOf(usr user.User) Owner {
	return Owner{ID: usr.ID, Name: usr.Name, Email: usr.Email, Role: usr.Role}
}

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  Category  `json:"category"`
	User      Owner     `json:"user"`
	File      string    `json:"file,omitempty"` // storage key, served under the uploads URL
	Link      string    `json:"link,omitempty"`
	Status    Status    `json:"status"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// IsOwnedBy reports whether usr created the Post.
func (p Post) IsOwnedBy(usr user.User) bool {
	return usr.ID != "" && p.User.ID == usr.ID
}

// NewPost contains information needed to create a new Post.
type NewPost struct {
	Title    string   `json:"title" form:"title" validate:"required,max=200"`
	Content  string   `json:"content" form:"content" validate:"required"`
	Category Category `json:"category" form:"category" validate:"required,postcategory"`
	Link     string   `json:"link" form:"link" validate:"omitempty,url"`
	Status   Status   `json:"status" form:"status" validate:"omitempty,poststatus"`
}

func (np *NewPost) Clean() {
	np.Title = core.CleanString(np.Title)
	np.Content = core.CleanString(np.Content)
	np.Category = Category(core.CleanString(string(np.Category), true /* lower */))
	np.Link = core.CleanString(np.Link)
	np.Status = Status(core.CleanString(string(np.Status), true /* lower */))
}

// UpdatePost defines what information may be provided to modify an existing Post.
// nil fields are left untouched; an empty Link clears the link.
type UpdatePost struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Category *Category `json:"category"`
	Link     *string   `json:"link"`
}

func (up *UpdatePost) Clean() {
	clean := func(s *string, lower bool) *string {
		if s == nil {
			return nil
		}
		v := core.CleanString(*s, lower)
		if v == "" {
			return nil
		}
		return &v
	}
	up.Title = clean(up.Title, false)
	up.Content = clean(up.Content, false)
	if up.Category != nil {
		if c := clean((*string)(up.Category), true); c != nil {
			cat := Category(*c)
			up.Category = &cat
		} else {
			up.Category = nil
		}
	}
	if up.Link != nil {
		link := core.CleanString(*up.Link)
		up.Link = &link
	}
}

// IsEmpty reports whether no field was provided.
func (up UpdatePost) IsEmpty() bool {
	return up.Title == nil && up.Content == nil && up.Category == nil && up.Link == nil
}

// apply merges provided fields into p.
func (up UpdatePost) apply(p *Post) {
	if up.Title != nil {
		p.Title = *up.Title
	}
	if up.Content != nil {
		p.Content = *up.Content
	}
	if up.Category != nil {
		p.Category = *up.Category
	}
	if up.Link != nil {
		p.Link = *up.Link
	}
}

// Upload is a file attached to a create or update request.
type Upload struct {
	Filename string
	Content  io.Reader
}

// QueryFilter restricts a post query. Zero values mean no restriction.
type QueryFilter struct {
	UserID   string
	Statuses []Status
}
