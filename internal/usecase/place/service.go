package place

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	domplace "github.com/sitly-nl/matchsearch/internal/domain/place"
	"github.com/sitly-nl/matchsearch/internal/metrics"
)

// DefaultKeywordLimit caps keyword results when the caller passes no limit.
const DefaultKeywordLimit = 10

// Config tunes place resolution.
type Config struct {
	// MinUsers is the density a place needs to show up in proximity results.
	MinUsers int
	// CircleSegments is the vertex count of the proximity polygon.
	CircleSegments int
	// EnglishLocales maps tenant to the locale whose slugs are the English names.
	EnglishLocales map[string]int
}

// Service resolves slugs, keywords, coordinates and postal codes to places.
// Absent places are reported as nil results, never as errors.
type Service struct {
	repo Repository
	cfg  Config
}

// New creates a place resolution service.
func New(repo Repository, cfg Config) *Service {
	if cfg.MinUsers <= 0 {
		cfg.MinUsers = 5
	}
	if cfg.CircleSegments <= 0 {
		cfg.CircleSegments = geo.DefaultCircleSegments
	}
	return &Service{repo: repo, cfg: cfg}
}

func (s *Service) englishLocale(tenant string) int {
	if id, ok := s.cfg.EnglishLocales[tenant]; ok {
		return id
	}
	return 1
}

// ResolveByURLSlug finds the place whose URL slug equals slug. localeID 0
// matches localized slugs of any locale. Only the tenant's English locale
// also matches English-name slugs.
func (s *Service) ResolveByURLSlug(
	ctx context.Context, tenant, slug string, localeID int, merge bool,
) (*domplace.Place, error) {
	slug = domplace.NormalizeSlug(slug)
	if slug == "" {
		return nil, nil
	}
	english := localeID != 0 && localeID == s.englishLocale(tenant)

	// English slugs live on the native-locale records.
	queryLocale := localeID
	if english {
		queryLocale = 0
	}
	found, err := s.repo.FindBySlug(ctx, tenant, slug, queryLocale)
	if err != nil {
		observe("slug", "error")
		return nil, fmt.Errorf("find place by slug %q: %w", slug, err)
	}

	var match *domplace.Place
	for i := range found {
		p := found[i]
		localized := p.Slug == slug && (localeID == 0 || p.LocaleID == localeID)
		if localized || (english && p.SlugEnglish == slug) {
			match = &p
			break
		}
	}
	if match == nil {
		observe("slug", "missing")
		return nil, nil
	}
	observe("slug", "found")

	if !merge {
		return match, nil
	}
	merged, err := s.mergeCanonical(ctx, tenant, *match)
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

// ResolveByKeyword prefix-matches place names, one result per display
// name, densest first. A locale with no matches falls back to all locales.
func (s *Service) ResolveByKeyword(
	ctx context.Context, tenant, keyword string, limit, localeID int,
) ([]domplace.Place, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}

	found, err := s.repo.FindByNamePrefix(ctx, tenant, keyword, localeID, 0)
	if err != nil {
		observe("keyword", "error")
		return nil, fmt.Errorf("find places by keyword %q: %w", keyword, err)
	}
	if len(found) == 0 && localeID > 0 {
		found, err = s.repo.FindByNamePrefix(ctx, tenant, keyword, 0, 0)
		if err != nil {
			observe("keyword", "error")
			return nil, fmt.Errorf("find places by keyword %q: %w", keyword, err)
		}
	}

	out := groupByName(found)
	if len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		observe("keyword", "missing")
	} else {
		observe("keyword", "found")
	}
	return out, nil
}

// groupByName keeps the densest place per display name, densest first.
func groupByName(places []domplace.Place) []domplace.Place {
	best := make(map[string]domplace.Place, len(places))
	for _, p := range places {
		key := domplace.Fold(p.Name)
		if cur, ok := best[key]; !ok || p.UserCount > cur.UserCount {
			best[key] = p
		}
	}
	out := make([]domplace.Place, 0, len(best))
	for _, p := range best {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserCount != out[j].UserCount {
			return out[i].UserCount > out[j].UserCount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ResolveByProximity lists sufficiently dense places inside the circle,
// nearest first. Places whose id or canonical id is in exclude are skipped.
func (s *Service) ResolveByProximity(
	ctx context.Context, tenant string, center geo.Point, radiusKm float64,
	limit int, exclude []string, localeID int, merge bool,
) ([]domplace.Place, error) {
	wkt, err := geo.CircleWKT(center, radiusKm, s.cfg.CircleSegments)
	if err != nil {
		return nil, err
	}
	found, err := s.repo.FindWithin(ctx, tenant, wkt, s.cfg.MinUsers, localeID)
	if err != nil {
		observe("proximity", "error")
		return nil, fmt.Errorf("find places near %v: %w", center, err)
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]domplace.Place, 0, len(found))
	for _, p := range found {
		if p.UserCount < s.cfg.MinUsers {
			continue
		}
		if _, ok := skip[p.ID]; ok {
			continue
		}
		if _, ok := skip[p.CanonicalID]; ok && p.CanonicalID != "" {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		di := geo.HaversineKm(center, out[i].Location)
		dj := geo.HaversineKm(center, out[j].Location)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		observe("proximity", "missing")
		return nil, nil
	}
	observe("proximity", "found")

	if !merge {
		return out, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		g.Go(func() error {
			merged, err := s.mergeCanonical(gctx, tenant, out[i])
			if err != nil {
				return err
			}
			out[i] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveByPostalCode looks up an exact postal code.
func (s *Service) ResolveByPostalCode(ctx context.Context, tenant, code string) (*domplace.PostalCode, error) {
	if domplace.NormalizeCode(code) == "" {
		return nil, nil
	}
	pc, err := s.repo.PostalCode(ctx, tenant, code)
	if errors.Is(err, domain.ErrNotFound) {
		observe("postal_code", "missing")
		return nil, nil
	}
	if err != nil {
		observe("postal_code", "error")
		return nil, fmt.Errorf("find postal code %q: %w", code, err)
	}
	observe("postal_code", "found")
	return &pc, nil
}

// ResolveByPostalRange finds the postal range containing the numeric part
// of code. Codes without leading digits resolve to nothing.
func (s *Service) ResolveByPostalRange(ctx context.Context, tenant, code string) (*domplace.PostalRange, error) {
	n, ok := domplace.PostalNumber(code)
	if !ok {
		observe("postal_range", "missing")
		return nil, nil
	}
	pr, err := s.repo.PostalRange(ctx, tenant, n)
	if errors.Is(err, domain.ErrNotFound) {
		observe("postal_range", "missing")
		return nil, nil
	}
	if err != nil {
		observe("postal_range", "error")
		return nil, fmt.Errorf("find postal range for %d: %w", n, err)
	}
	observe("postal_range", "found")
	return &pr, nil
}

// mergeCanonical overlays an alternate-locale record on its canonical one.
// A dangling canonical reference leaves the record as is.
func (s *Service) mergeCanonical(ctx context.Context, tenant string, p domplace.Place) (domplace.Place, error) {
	if p.IsCanonical() {
		return p, nil
	}
	canonical, err := s.repo.Get(ctx, tenant, p.CanonicalID)
	if errors.Is(err, domain.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return domplace.Place{}, fmt.Errorf("get canonical place %s: %w", p.CanonicalID, err)
	}
	return canonical.MergeAlternate(p), nil
}

func observe(strategy, result string) {
	metrics.PlaceLookupsTotal.WithLabelValues(strategy, result).Inc()
}
