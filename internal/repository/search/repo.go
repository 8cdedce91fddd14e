package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
	"github.com/sitly-nl/matchsearch/internal/domain/search/query"
	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
	SearchCount(ctx context.Context, q *db.CountQuery) (int, error)
}

// Repo runs compiled user searches against the per-tenant user index.
type Repo struct {
	store store
	keys  domain.Keyspace
}

// New creates a search repository.
func New(s store, keys domain.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Page returns one page of ranked hits.
func (r *Repo) Page(ctx context.Context, tenant string, c *query.Compiled) ([]result.Hit, error) {
	if c.Group() != nil {
		return nil, fmt.Errorf("page called with a grouped query")
	}
	ar, err := r.store.Aggregate(ctx, r.aggregateQuery(tenant, c))
	if err != nil {
		return nil, fmt.Errorf("aggregate users %s: %w", tenant, err)
	}
	return parseHits(ar.Rows)
}

// Count returns the number of users matching the hard filter.
func (r *Repo) Count(ctx context.Context, tenant string, f filter.Expression) (int, error) {
	n, err := r.store.SearchCount(ctx, &db.CountQuery{IndexName: r.keys.UserIndex(tenant), Filters: f})
	if err != nil {
		return 0, fmt.Errorf("count users %s: %w", tenant, err)
	}
	return n, nil
}

// Clusters buckets matching users into geographic cells.
func (r *Repo) Clusters(ctx context.Context, tenant string, c *query.Compiled) ([]result.Cluster, error) {
	if c.Group() == nil {
		return nil, fmt.Errorf("clusters called without grouping")
	}
	ar, err := r.store.Aggregate(ctx, r.aggregateQuery(tenant, c))
	if err != nil {
		return nil, fmt.Errorf("aggregate clusters %s: %w", tenant, err)
	}
	out := make([]result.Cluster, 0, len(ar.Groups))
	for _, g := range ar.Groups {
		out = append(out, result.Cluster{Count: g.Count, Latitude: g.Latitude, Longitude: g.Longitude})
	}
	return out, nil
}

func (r *Repo) aggregateQuery(tenant string, c *query.Compiled) *db.AggregateQuery {
	return &db.AggregateQuery{
		IndexName: r.keys.UserIndex(tenant),
		Query:     c,
		KeyField:  user.FieldUserID,
		GeoField:  user.FieldLocation,
		LatField:  user.FieldLat,
		LonField:  user.FieldLon,
	}
}

// parseHits converts aggregate rows into hits, preserving order.
func parseHits(rows []db.AggregateRow) ([]result.Hit, error) {
	hits := make([]result.Hit, 0, len(rows))
	for _, row := range rows {
		id, err := strconv.ParseInt(row.Key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q in search hit: %w", row.Key, err)
		}
		hits = append(hits, result.Hit{
			UserID:      id,
			Score:       row.Score,
			DistanceKm:  row.Distance,
			Explanation: toExplanation(row.Explanation),
		})
	}
	return hits, nil
}

func toExplanation(e *db.Explanation) *result.Explanation {
	if e == nil {
		return nil
	}
	out := convertExplanation(*e)
	return &out
}

func convertExplanation(e db.Explanation) result.Explanation {
	out := result.Explanation{Value: e.Value, Description: e.Description}
	if len(e.Details) > 0 {
		out.Details = make([]result.Explanation, len(e.Details))
		for i, d := range e.Details {
			out.Details[i] = convertExplanation(d)
		}
	}
	return out
}
