package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
)

type postRepository struct {
	db *DB
}

var _ post.Repository = (*postRepository)(nil)

func NewPostRepository(db *DB) *postRepository {
	return &postRepository{db: db}
}

// withOwner populates the owner view. Caller holds the lock.
func (repo *postRepository) withOwner(p post.Post) post.Post {
	if usr, ok := repo.db.users[p.User.ID]; ok {
		p.User = post.OwnerOf(*usr)
	}
	return p
}

func (repo *postRepository) CreatePost(_ context.Context, p post.Post) (post.Post, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := p
	stored.User = post.Owner{ID: p.User.ID}
	repo.db.posts[p.ID] = &stored
	return repo.withOwner(stored), nil
}

func (repo *postRepository) GetPost(_ context.Context, id string) (post.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.posts[id]; ok {
		return repo.withOwner(*p), nil
	}
	return post.Post{}, post.ErrNotFound
}

func (repo *postRepository) QueryPosts(_ context.Context, filter post.QueryFilter, ordering []core.DBOrdering) ([]post.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	posts := make([]post.Post, 0, len(repo.db.posts))
	for _, p := range repo.db.posts {
		if filter.UserID != "" && p.User.ID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, p.Status) {
			continue
		}
		posts = append(posts, repo.withOwner(*p))
	}
	sortPosts(posts, ordering)
	return posts, nil
}

func (repo *postRepository) UpdatePost(_ context.Context, p post.Post) (post.Post, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.posts[p.ID]
	if !ok {
		return post.Post{}, post.ErrNotFound
	}
	orig.Title = p.Title
	orig.Content = p.Content
	orig.Category = p.Category
	orig.File = p.File
	orig.Link = p.Link
	orig.Status = p.Status
	orig.UpdatedAt = p.UpdatedAt
	return repo.withOwner(*orig), nil
}

func (repo *postRepository) AddLikes(_ context.Context, id string, delta int) (post.Post, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.posts[id]
	if !ok {
		return post.Post{}, post.ErrNotFound
	}
	p.Likes += delta
	if p.Likes < 0 {
		p.Likes = 0
	}
	return repo.withOwner(*p), nil
}

func (repo *postRepository) DeletePost(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.posts[id]; !ok {
		return post.ErrNotFound
	}
	delete(repo.db.posts, id)
	return nil
}

func hasStatus(statuses []post.Status, s post.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// sortPosts orders posts the way the SQL repository does; unknown fields are ignored.
func sortPosts(posts []post.Post, ordering []core.DBOrdering) {
	less := func(a, b post.Post, ord core.DBOrdering) (bool, bool) {
		var cmp int
		switch ord.Field {
		case "created_at":
			cmp = compareInt64(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
		case "likes":
			cmp = compareInt64(int64(a.Likes), int64(b.Likes))
		case "title":
			cmp = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		default:
			return false, false
		}
		if cmp == 0 {
			return false, false
		}
		if ord.Ascending {
			return cmp < 0, true
		}
		return cmp > 0, true
	}

	ordering = append(append([]core.DBOrdering{}, ordering...), core.DBOrdering{Field: "created_at"}) // newest first
	sort.SliceStable(posts, func(i, j int) bool {
		for _, ord := range ordering {
			if l, decided := less(posts[i], posts[j], ord); decided {
				return l
			}
		}
		return posts[i].ID < posts[j].ID
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
