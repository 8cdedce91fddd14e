package normalize

import (
	"context"

	domplace "github.com/sitly-nl/matchsearch/internal/domain/place"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// UserReader loads the requesting user's profile and preferences.
type UserReader interface {
	Get(ctx context.Context, tenant string, id int64) (*user.User, error)
}

// PlaceResolver turns keywords and postal codes into places and areas.
type PlaceResolver interface {
	ResolveByURLSlug(ctx context.Context, tenant, slug string, localeID int, merge bool) (*domplace.Place, error)
	ResolveByPostalCode(ctx context.Context, tenant, code string) (*domplace.PostalCode, error)
	ResolveByPostalRange(ctx context.Context, tenant, code string) (*domplace.PostalRange, error)
}
