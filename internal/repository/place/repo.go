package place

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain"
	domplace "github.com/sitly-nl/matchsearch/internal/domain/place"
	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
)

// maxCandidates caps FT.SEARCH pages for place lookups.
const maxCandidates = 100

// store is the consumer interface for places and postal codes (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

// Repo reads localized places and postal areas.
type Repo struct {
	store store
	keys  domain.Keyspace
}

// New creates a place repository.
func New(s store, keys domain.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Get loads one place record by id. Missing places yield domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, tenant, id string) (domplace.Place, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Place(tenant, id))
	if err != nil {
		return domplace.Place{}, fmt.Errorf("hgetall place %s: %w", id, err)
	}
	if len(m) == 0 {
		return domplace.Place{}, domain.ErrNotFound
	}
	return placeFromHash(m)
}

// Save writes a place hash; the place index picks it up.
func (r *Repo) Save(ctx context.Context, tenant string, p domplace.Place) error {
	if err := r.store.HSet(ctx, r.keys.Place(tenant, p.ID), placeToHash(p)); err != nil {
		return fmt.Errorf("hset place %s: %w", p.ID, err)
	}
	return nil
}

// FindBySlug returns records whose localized or English slug equals slug.
// localeID 0 searches every locale.
func (r *Repo) FindBySlug(ctx context.Context, tenant, slug string, localeID int) ([]domplace.Place, error) {
	slug = domplace.NormalizeSlug(slug)
	if slug == "" {
		return nil, nil
	}
	bySlug, err := filter.NewMatch(FieldSlug, slug)
	if err != nil {
		return nil, err
	}
	byEnglish, err := filter.NewMatch(FieldSlugEnglish, slug)
	if err != nil {
		return nil, err
	}
	must, err := localeConditions(localeID)
	if err != nil {
		return nil, err
	}
	expr, err := filter.NewExpression(must, []filter.Condition{bySlug, byEnglish}, nil)
	if err != nil {
		return nil, fmt.Errorf("build slug filter: %w", err)
	}
	return r.list(ctx, &db.ListQuery{
		IndexName: r.keys.PlaceIndex(tenant),
		Filters:   expr,
		SortBy:    FieldUserCount,
		SortDesc:  true,
		Limit:     maxCandidates,
		Fields:    returnFields,
	})
}

// FindByNamePrefix returns records whose folded name starts with prefix,
// densest first.
func (r *Repo) FindByNamePrefix(
	ctx context.Context, tenant, prefix string, localeID, limit int,
) ([]domplace.Place, error) {
	folded := domplace.Fold(prefix)
	words := strings.Fields(folded)
	if len(words) == 0 {
		return nil, nil
	}
	// The index tokenizes names, so match the first word and check the
	// whole prefix on the way back.
	byName, err := filter.NewPrefix(FieldNameFolded, words[0])
	if err != nil {
		return nil, err
	}
	must, err := localeConditions(localeID)
	if err != nil {
		return nil, err
	}
	expr, err := filter.NewExpression(append(must, byName), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("build name filter: %w", err)
	}
	found, err := r.list(ctx, &db.ListQuery{
		IndexName: r.keys.PlaceIndex(tenant),
		Filters:   expr,
		SortBy:    FieldUserCount,
		SortDesc:  true,
		Limit:     maxCandidates,
		Fields:    returnFields,
	})
	if err != nil {
		return nil, err
	}

	out := found[:0]
	for _, p := range found {
		if strings.HasPrefix(domplace.Fold(p.Name), folded) {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindWithin returns records located inside the WKT polygon that have at
// least minUsers users. Order is unspecified.
func (r *Repo) FindWithin(
	ctx context.Context, tenant, polygonWKT string, minUsers, localeID int,
) ([]domplace.Place, error) {
	must, err := localeConditions(localeID)
	if err != nil {
		return nil, err
	}
	if minUsers > 0 {
		dense, err := filter.AtLeast(FieldUserCount, float64(minUsers))
		if err != nil {
			return nil, err
		}
		must = append(must, dense)
	}
	expr, err := filter.NewExpression(must, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("build proximity filter: %w", err)
	}
	return r.list(ctx, &db.ListQuery{
		IndexName: r.keys.PlaceIndex(tenant),
		Filters:   expr,
		Within:    &db.Shape{Field: FieldPoint, WKT: polygonWKT},
		Limit:     maxCandidates,
		Fields:    returnFields,
	})
}

// PostalCode loads an exact postal code. Missing codes yield domain.ErrNotFound.
func (r *Repo) PostalCode(ctx context.Context, tenant, code string) (domplace.PostalCode, error) {
	code = domplace.NormalizeCode(code)
	m, err := r.store.HGetAll(ctx, r.keys.Postal(tenant, code))
	if err != nil {
		return domplace.PostalCode{}, fmt.Errorf("hgetall postal code %s: %w", code, err)
	}
	if len(m) == 0 {
		return domplace.PostalCode{}, domain.ErrNotFound
	}
	pc, err := postalCodeFromHash(m)
	if err != nil {
		return domplace.PostalCode{}, fmt.Errorf("decode postal code %s: %w", code, err)
	}
	if pc.Code == "" {
		pc.Code = code
	}
	return pc, nil
}

// PostalRange finds the range containing n; the narrowest wins when ranges
// overlap. No match yields domain.ErrNotFound.
func (r *Repo) PostalRange(ctx context.Context, tenant string, n int) (domplace.PostalRange, error) {
	v := float64(n)
	fromOK, err := filter.AtMost(FieldFrom, v)
	if err != nil {
		return domplace.PostalRange{}, err
	}
	toOK, err := filter.AtLeast(FieldTo, v)
	if err != nil {
		return domplace.PostalRange{}, err
	}
	expr, err := filter.NewExpression([]filter.Condition{fromOK, toOK}, nil, nil)
	if err != nil {
		return domplace.PostalRange{}, fmt.Errorf("build postal range filter: %w", err)
	}
	sr, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName: r.keys.PostalRangeIndex(tenant),
		Filters:   expr,
		Limit:     maxCandidates,
	})
	if err != nil {
		return domplace.PostalRange{}, fmt.Errorf("search postal ranges: %w", err)
	}

	var best *domplace.PostalRange
	for _, e := range sr.Entries {
		pr, err := postalRangeFromHash(e.Fields)
		if err != nil {
			return domplace.PostalRange{}, fmt.Errorf("decode postal range %s: %w", e.Key, err)
		}
		if !pr.Contains(n) {
			continue
		}
		if best == nil || pr.To-pr.From < best.To-best.From {
			best = &pr
		}
	}
	if best == nil {
		return domplace.PostalRange{}, domain.ErrNotFound
	}
	return *best, nil
}

// SavePostalCode writes an exact postal code hash.
func (r *Repo) SavePostalCode(ctx context.Context, tenant string, pc domplace.PostalCode) error {
	code := domplace.NormalizeCode(pc.Code)
	fields := areaToHash(pc.PlaceID, pc.Center, pc.Bounds)
	fields[FieldCode] = code
	if err := r.store.HSet(ctx, r.keys.Postal(tenant, code), fields); err != nil {
		return fmt.Errorf("hset postal code %s: %w", code, err)
	}
	return nil
}

// SavePostalRange writes a postal range hash under a from-to key.
func (r *Repo) SavePostalRange(ctx context.Context, tenant string, pr domplace.PostalRange) error {
	fields := areaToHash(pr.PlaceID, pr.Center, pr.Bounds)
	fields[FieldFrom] = strconv.Itoa(pr.From)
	fields[FieldTo] = strconv.Itoa(pr.To)
	key := r.keys.PostalRangePrefix(tenant) + strconv.Itoa(pr.From) + "-" + strconv.Itoa(pr.To)
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset postal range %d-%d: %w", pr.From, pr.To, err)
	}
	return nil
}

func (r *Repo) list(ctx context.Context, q *db.ListQuery) ([]domplace.Place, error) {
	sr, err := r.store.SearchList(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}
	out := make([]domplace.Place, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		p, err := placeFromHash(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func localeConditions(localeID int) ([]filter.Condition, error) {
	if localeID <= 0 {
		return nil, nil
	}
	c, err := filter.Between(FieldLocaleID, float64(localeID), float64(localeID))
	if err != nil {
		return nil, err
	}
	return []filter.Condition{c}, nil
}
