package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain"
	domtracking "github.com/sitly-nl/matchsearch/internal/domain/tracking"
)

// store is the consumer interface for tracking records (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Repo stores search tracking records as JSON documents with a per-user
// pointer to the latest one.
type Repo struct {
	store store
	keys  domain.Keyspace
}

// New creates a tracking repository.
func New(s store, keys domain.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Latest returns the user's most recent record, nil if there is none.
// A dangling pointer is treated as no record.
func (r *Repo) Latest(ctx context.Context, tenant string, userID int64) (*domtracking.Record, error) {
	id, err := r.store.Get(ctx, r.keys.TrackingLatest(tenant, userID))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest tracking pointer of user %d: %w", userID, err)
	}
	searchID := strings.TrimSpace(string(id))
	if searchID == "" {
		return nil, nil
	}

	data, err := r.store.JSONGet(ctx, r.keys.Tracking(tenant, searchID))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracking record %s: %w", searchID, err)
	}

	var rec domtracking.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode tracking record %s: %w", searchID, err)
	}
	return &rec, nil
}

// Create stores rec and points the user's latest pointer at it.
func (r *Repo) Create(ctx context.Context, tenant string, rec domtracking.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode tracking record %s: %w", rec.SearchID, err)
	}
	if err := r.store.JSONSet(ctx, r.keys.Tracking(tenant, rec.SearchID), "$", data); err != nil {
		return fmt.Errorf("store tracking record %s: %w", rec.SearchID, err)
	}
	if err := r.store.Set(ctx, r.keys.TrackingLatest(tenant, rec.UserID), []byte(rec.SearchID)); err != nil {
		return fmt.Errorf("point latest tracking of user %d: %w", rec.UserID, err)
	}
	return nil
}

// Delete removes a record. The latest pointer is overwritten by the next Create.
func (r *Repo) Delete(ctx context.Context, tenant, searchID string) error {
	if err := r.store.Del(ctx, r.keys.Tracking(tenant, searchID)); err != nil {
		return fmt.Errorf("delete tracking record %s: %w", searchID, err)
	}
	return nil
}
