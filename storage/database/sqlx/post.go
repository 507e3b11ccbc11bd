package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
)

type postRow struct {
	ID         string      `db:"id"`
	Title      string      `db:"title"`
	Content    string      `db:"content"`
	Category   string      `db:"category"`
	UserID     string      `db:"user_id"`
	File       null.String `db:"file"`
	Link       null.String `db:"link"`
	Status     string      `db:"status"`
	Likes      int         `db:"likes"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
	OwnerName  string      `db:"owner_name"`
	OwnerEmail string      `db:"owner_email"`
	OwnerRole  string      `db:"owner_role"`
}

func (r postRow) toPost() post.Post {
	return post.Post{
		ID:       r.ID,
		Title:    r.Title,
		Content:  r.Content,
		Category: post.Category(r.Category),
		User: post.Owner{
			ID:    r.UserID,
			Name:  r.OwnerName,
			Email: r.OwnerEmail,
			Role:  r.OwnerRole,
		},
		File:      r.File.String,
		Link:      r.Link.String,
		Status:    post.Status(r.Status),
		Likes:     r.Likes,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toPosts(rows []postRow) []post.Post {
	posts := make([]post.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.toPost())
	}
	return posts
}

func optString(s string) null.String {
	return null.NewString(s, s != "")
}

// selectPosts reads from `p` (posts or a CTE over it) joined with the owner.
const selectPosts = `SELECT p.id, p.title, p.content, p.category, p.user_id, p.file, p.link, p.status, p.likes,
	p.created_at, p.updated_at, u.name AS owner_name, u.email AS owner_email, u.role AS owner_role
	FROM p JOIN users u ON u.id = p.user_id`

var postOrderings = map[string]string{
	"created_at": "p.created_at",
	"likes":      "p.likes",
	"title":      "lower(p.title)",
}

type postRepository struct {
	db *sqlx.DB
}

var _ post.Repository = (*postRepository)(nil)

func NewPostRepository(db *sqlx.DB) *postRepository {
	return &postRepository{db: db}
}

func (repo *postRepository) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	var row postRow
	q := `WITH p AS (
		INSERT INTO posts (id, title, content, category, user_id, file, link, status, likes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING *
	) ` + selectPosts
	err := repo.db.GetContext(ctx, &row, q,
		p.ID, p.Title, p.Content, string(p.Category), p.User.ID, optString(p.File), optString(p.Link),
		string(p.Status), p.Likes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return post.Post{}, core.NewPersistenceError("inserting post", err)
	}
	return row.toPost(), nil
}

func (repo *postRepository) GetPost(ctx context.Context, id string) (post.Post, error) {
	var row postRow
	q := `WITH p AS (SELECT * FROM posts WHERE id = $1) ` + selectPosts
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return post.Post{}, trapNoRowsErr(err, post.ErrNotFound, "selecting post")
	}
	return row.toPost(), nil
}

func (repo *postRepository) QueryPosts(ctx context.Context, filter post.QueryFilter, ordering []core.DBOrdering) ([]post.Post, error) {
	where := "TRUE"
	args := make([]interface{}, 0, 2)
	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		where += " AND status IN (?)"
		args = append(args, statuses)
	}

	q := `WITH p AS (SELECT * FROM posts WHERE ` + where + `) ` + selectPosts +
		` ORDER BY ` + core.OrderBy(ordering, postOrderings, "p.created_at DESC") + `, p.id`
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, core.NewPersistenceError("building posts query", err)
	}

	var rows []postRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, core.NewPersistenceError("selecting posts", err)
	}
	return toPosts(rows), nil
}

func (repo *postRepository) UpdatePost(ctx context.Context, p post.Post) (post.Post, error) {
	var row postRow
	q := `WITH p AS (
		UPDATE posts SET title = $2, content = $3, category = $4, file = $5, link = $6, status = $7, updated_at = $8
		WHERE id = $1
		RETURNING *
	) ` + selectPosts
	err := repo.db.GetContext(ctx, &row, q,
		p.ID, p.Title, p.Content, string(p.Category), optString(p.File), optString(p.Link), string(p.Status), p.UpdatedAt)
	if err != nil {
		return post.Post{}, trapNoRowsErr(err, post.ErrNotFound, "updating post")
	}
	return row.toPost(), nil
}

func (repo *postRepository) AddLikes(ctx context.Context, id string, delta int) (post.Post, error) {
	var row postRow
	q := `WITH p AS (
		UPDATE posts SET likes = GREATEST(likes + $2, 0) WHERE id = $1 RETURNING *
	) ` + selectPosts
	if err := repo.db.GetContext(ctx, &row, q, id, delta); err != nil {
		return post.Post{}, trapNoRowsErr(err, post.ErrNotFound, "updating likes")
	}
	return row.toPost(), nil
}

func (repo *postRepository) DeletePost(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return trapNoRowsErr(err, post.ErrNotFound, "deleting post")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewPersistenceError("deleting post", err)
	}
	if n == 0 {
		return post.ErrNotFound
	}
	return nil
}
