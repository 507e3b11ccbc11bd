package inmemdb

import (
	"context"
	"sort"

	"github.com/quantumqp/portal/core/search"
)

type searchRepository struct {
	db *DB
}

var _ search.Repository = (*searchRepository)(nil)

func NewSearchRepository(db *DB) *searchRepository {
	return &searchRepository{db: db}
}

func (repo *searchRepository) CreateSearch(_ context.Context, s search.Search) (search.Search, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.searches = append(repo.db.searches, s)
	return s, nil
}

func (repo *searchRepository) MostSearched(_ context.Context, limit int) ([]search.Count, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, s := range repo.db.searches {
		counts[s.Query]++
	}
	result := make([]search.Count, 0, len(counts))
	for q, n := range counts {
		result = append(result, search.Count{Query: q, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
