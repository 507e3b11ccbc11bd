package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/search"
)

type searchRepository struct {
	db *sqlx.DB
}

var _ search.Repository = (*searchRepository)(nil)

func NewSearchRepository(db *sqlx.DB) *searchRepository {
	return &searchRepository{db: db}
}

func (repo *searchRepository) CreateSearch(ctx context.Context, s search.Search) (search.Search, error) {
	q := `INSERT INTO searches (id, query, user_id, created_at) VALUES ($1, $2, $3, $4)`
	userID := null.NewString(s.UserID, s.UserID != "")
	if _, err := repo.db.ExecContext(ctx, q, s.ID, s.Query, userID, s.CreatedAt); err != nil {
		return search.Search{}, core.NewPersistenceError("inserting search", err)
	}
	return s, nil
}

func (repo *searchRepository) MostSearched(ctx context.Context, limit int) ([]search.Count, error) {
	var counts []search.Count
	q := `SELECT query, COUNT(*) AS count FROM searches GROUP BY query ORDER BY count DESC, query ASC LIMIT $1`
	if err := repo.db.SelectContext(ctx, &counts, q, limit); err != nil {
		return nil, core.NewPersistenceError("aggregating searches", err)
	}
	return counts, nil
}
