package place

import (
	"context"
	"testing"

	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn    func(ctx context.Context, key string) (map[string]string, error)
	hsetFn       func(ctx context.Context, key string, fields map[string]string) error
	searchListFn func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, domain.NewKeyspace("")), ms
}

func placeFields(id, name string, users int) map[string]string {
	return map[string]string{
		"place_id":     id,
		"canonical_id": id,
		"locale_id":    "2",
		"name":         name,
		"slug":         id,
		"lat":          "52.37",
		"lon":          "4.9",
		"user_count":   itoa(users),
	}
}

func itoa(n int) string {
	return formatFloat(float64(n))
}
