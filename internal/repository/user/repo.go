package user

import (
	"context"
	"fmt"

	"github.com/sitly-nl/matchsearch/internal/domain"
	domuser "github.com/sitly-nl/matchsearch/internal/domain/user"
)

// store is the consumer interface for user profiles (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
}

// Repo reads searcher profiles and writes back their search preferences.
type Repo struct {
	store store
	keys  domain.Keyspace
}

// New creates a user repository.
func New(s store, keys domain.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Get loads a user profile. Missing users yield domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, tenant string, id int64) (*domuser.User, error) {
	m, err := r.store.HGetAll(ctx, r.keys.User(tenant, id))
	if err != nil {
		return nil, fmt.Errorf("hgetall user %d: %w", id, err)
	}
	if len(m) == 0 {
		return nil, domain.ErrNotFound
	}
	u, err := userFromHash(m)
	if err != nil {
		return nil, fmt.Errorf("decode user %d: %w", id, err)
	}
	return u, nil
}

// UpdatePreferences writes the changed preference fields in a single HSET.
// Empty change sets issue no command.
func (r *Repo) UpdatePreferences(
	ctx context.Context, tenant string, u *domuser.User, changes domuser.PreferenceChanges,
) error {
	if changes.IsEmpty() {
		return nil
	}
	fields := preferencesToHash(u.Role, changes)
	if err := r.store.HSet(ctx, r.keys.User(tenant, u.ID), fields); err != nil {
		return fmt.Errorf("hset preferences of user %d: %w", u.ID, err)
	}
	return nil
}

// Import writes a profile hash as produced by the profile owner. The hash
// must decode as a user; the key is derived from its user_id field.
func (r *Repo) Import(ctx context.Context, tenant string, fields map[string]string) (int64, error) {
	u, err := userFromHash(fields)
	if err != nil {
		return 0, fmt.Errorf("decode profile: %w", err)
	}
	if err := r.store.HSet(ctx, r.keys.User(tenant, u.ID), fields); err != nil {
		return 0, fmt.Errorf("hset user %d: %w", u.ID, err)
	}
	return u.ID, nil
}
