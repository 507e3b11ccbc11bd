package search

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
)

// DefaultLimit is the size of the most-searched ranking.
const DefaultLimit = 10

type (
	Search struct {
		ID        string    `json:"id"`
		Query     string    `json:"query"`
		UserID    string    `json:"user_id"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// Count is an aggregated search query with the number of times it was recorded.
	Count struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}

	NewSearch struct {
		Query string `json:"query" validate:"required,max=200"`
	}

	Repository interface {
		CreateSearch(ctx context.Context, s Search) (Search, error)
		// MostSearched groups searches by query, most frequent first (ties: alphabetical).
		MostSearched(ctx context.Context, limit int) ([]Count, error)
	}

	Service interface {
		Record(ctx context.Context, actor user.User, ns NewSearch) (Search, error)
		MostSearched(ctx context.Context, limit int) ([]Count, error)
	}

	service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) Service {
	return &service{repo: repo, validate: validate, translator: translator}
}

func (svc *service) Record(ctx context.Context, actor user.User, ns NewSearch) (Search, error) {
	ns.Query = core.CleanString(ns.Query, true /* lower */)
	if err := svc.validate.Struct(ns); err != nil {
		return Search{}, core.TranslateErrors(err, svc.translator)
	}
	s, err := svc.repo.CreateSearch(ctx, Search{
		ID:        uuid.NewString(),
		Query:     ns.Query,
		UserID:    actor.ID,
		CreatedAt: time.Now().UTC(),
	})
	return s, errors.Wrap(err, "recording search")
}

func (svc *service) MostSearched(ctx context.Context, limit int) ([]Count, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	counts, err := svc.repo.MostSearched(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating searches")
	}
	if counts == nil {
		counts = []Count{}
	}
	return counts, nil
}
