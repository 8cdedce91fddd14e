package search

import (
	"context"
	"testing"

	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/search/query"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	aggregateFn   func(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
	searchCountFn func(ctx context.Context, q *db.CountQuery) (int, error)
}

func (m *mockStore) Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, q)
	}
	return &db.AggregateResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, q *db.CountQuery) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, q)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, domain.NewKeyspace("")), ms
}

func mustCompile(t *testing.T, p query.Params) *query.Compiled {
	t.Helper()
	c, err := query.New(p)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return c
}
