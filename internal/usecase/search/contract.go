package search

import (
	"context"

	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
	"github.com/sitly-nl/matchsearch/internal/domain/search/query"
	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
	domscoring "github.com/sitly-nl/matchsearch/internal/domain/search/scoring"
	"github.com/sitly-nl/matchsearch/internal/usecase/normalize"
	"github.com/sitly-nl/matchsearch/internal/usecase/scoring"
	"github.com/sitly-nl/matchsearch/internal/usecase/sideeffects"
)

// Repository executes compiled searches against the user index.
type Repository interface {
	Page(ctx context.Context, tenant string, c *query.Compiled) ([]result.Hit, error)
	Count(ctx context.Context, tenant string, f filter.Expression) (int, error)
	Clusters(ctx context.Context, tenant string, c *query.Compiled) ([]result.Cluster, error)
}

// Normalizer turns raw input into criteria.
type Normalizer interface {
	Normalize(ctx context.Context, tenant string, raw request.RawInput, actor request.Actor) (normalize.Result, error)
}

// SpecBuilder assembles the relevance factors for a searcher.
type SpecBuilder interface {
	Build(in scoring.Input) (domscoring.Spec, error)
}

// SideEffects receives finished page searches.
type SideEffects interface {
	Dispatch(ev sideeffects.Event)
}
