package sideeffects

import (
	"context"

	domtracking "github.com/sitly-nl/matchsearch/internal/domain/tracking"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// TrackingRepository persists top-hit snapshots.
type TrackingRepository interface {
	Latest(ctx context.Context, tenant string, userID int64) (*domtracking.Record, error)
	Create(ctx context.Context, tenant string, rec domtracking.Record) error
	Delete(ctx context.Context, tenant, searchID string) error
}

// PreferenceWriter stores changed search preferences on the searcher's profile.
type PreferenceWriter interface {
	UpdatePreferences(ctx context.Context, tenant string, u *user.User, changes user.PreferenceChanges) error
}
