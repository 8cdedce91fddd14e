package user

import (
	"context"
	"testing"

	"github.com/sitly-nl/matchsearch/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	hsetFn    func(ctx context.Context, key string, fields map[string]string) error
	hsetCalls int
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.hsetCalls++
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, domain.NewKeyspace("")), ms
}

func parentHash() map[string]string {
	return map[string]string{
		"user_id":              "42",
		"role":                 "parent",
		"gender":               "f",
		"lat":                  "52.37",
		"lon":                  "4.9",
		"location":             "4.9,52.37",
		"premium":              "1",
		"premium_since":        "1700000000",
		"created":              "1600000000",
		"last_active":          "1710000000",
		"children_count":       "2",
		"youngest_child_birth": "1690000000",
		"availability":         "monday_morning,friday_evening",
		"excluded":             "7, 9",
		"pref_max_distance":    "15",
		"pref_gender":          "m",
		"pref_remote_tutor":    "0",
		"pref_after_school":    "1",
		"pref_languages":       "nl,en",
	}
}
