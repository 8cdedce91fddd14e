package place

import (
	"context"

	domplace "github.com/sitly-nl/matchsearch/internal/domain/place"
)

// Repository is the place/postal storage contract.
type Repository interface {
	Get(ctx context.Context, tenant, id string) (domplace.Place, error)
	FindBySlug(ctx context.Context, tenant, slug string, localeID int) ([]domplace.Place, error)
	FindByNamePrefix(ctx context.Context, tenant, prefix string, localeID, limit int) ([]domplace.Place, error)
	FindWithin(ctx context.Context, tenant, polygonWKT string, minUsers, localeID int) ([]domplace.Place, error)
	PostalCode(ctx context.Context, tenant, code string) (domplace.PostalCode, error)
	PostalRange(ctx context.Context, tenant string, n int) (domplace.PostalRange, error)
}
