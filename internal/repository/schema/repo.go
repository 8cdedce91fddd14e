package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain"
)

// store is the consumer interface for index management (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo creates and inspects the per-tenant search indexes.
type Repo struct {
	store store
	keys  domain.Keyspace
}

// New creates a schema repository.
func New(s store, keys domain.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Definitions returns every index a tenant needs.
func (r *Repo) Definitions(tenant string) ([]*db.IndexDefinition, error) {
	builders := []func(domain.Keyspace, string) (*db.IndexDefinition, error){
		userIndex, placeIndex, postalRangeIndex,
	}
	defs := make([]*db.IndexDefinition, 0, len(builders))
	for _, build := range builders {
		def, err := build(r.keys, tenant)
		if err != nil {
			return nil, fmt.Errorf("build index for %s: %w", tenant, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Ensure creates missing indexes for tenant and returns the names it created.
// Existing indexes are left untouched.
func (r *Repo) Ensure(ctx context.Context, tenant string) ([]string, error) {
	defs, err := r.Definitions(tenant)
	if err != nil {
		return nil, err
	}
	var created []string
	for _, def := range defs {
		exists, err := r.store.IndexExists(ctx, def.Name)
		if err != nil {
			return created, fmt.Errorf("check index %s: %w", def.Name, err)
		}
		if exists {
			continue
		}
		if err := r.store.CreateIndex(ctx, def); err != nil {
			// another replica won the race
			if errors.Is(err, db.ErrIndexExists) {
				continue
			}
			return created, fmt.Errorf("create index %s: %w", def.Name, err)
		}
		created = append(created, def.Name)
	}
	return created, nil
}

// UserIndexExists reports whether the tenant's user index is present.
func (r *Repo) UserIndexExists(ctx context.Context, tenant string) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.keys.UserIndex(tenant))
	if err != nil {
		return false, fmt.Errorf("check user index %s: %w", tenant, err)
	}
	return ok, nil
}
