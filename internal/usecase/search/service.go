package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/search/criteria"
	"github.com/sitly-nl/matchsearch/internal/domain/search/query"
	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
	domscoring "github.com/sitly-nl/matchsearch/internal/domain/search/scoring"
	"github.com/sitly-nl/matchsearch/internal/logger"
	"github.com/sitly-nl/matchsearch/internal/metrics"
	"github.com/sitly-nl/matchsearch/internal/usecase/normalize"
	"github.com/sitly-nl/matchsearch/internal/usecase/scoring"
	"github.com/sitly-nl/matchsearch/internal/usecase/sideeffects"
)

// Search modes, also used as metric labels.
const (
	ModePage     = "page"
	ModeCount    = "count"
	ModeClusters = "clusters"
)

// Service runs user searches end to end: normalize, score, compile, execute.
type Service struct {
	normalizer Normalizer
	builder    SpecBuilder
	compiler   *Compiler
	repo       Repository
	counts     *CountCache
	effects    SideEffects
}

// New creates a search service. effects may be nil.
func New(
	normalizer Normalizer, builder SpecBuilder, compiler *Compiler,
	repo Repository, counts *CountCache, effects SideEffects,
) *Service {
	return &Service{
		normalizer: normalizer,
		builder:    builder,
		compiler:   compiler,
		repo:       repo,
		counts:     counts,
		effects:    effects,
	}
}

// Search returns a page, a cluster list or a count. Invalid input yields a
// *domain.SearchParseError; index failures a *domain.SearchExecutionError.
func (s *Service) Search(
	ctx context.Context, tenant string, raw request.RawInput, actor request.Actor,
) (result.SearchResult, error) {
	start := time.Now()

	res, q, err := s.prepare(ctx, tenant, raw, actor)
	if err != nil {
		s.observe(requestedMode(raw), err, start)
		return result.SearchResult{}, err
	}
	cr := res.Criteria
	mode := modeOf(cr)

	logger.AddFields(ctx,
		zap.String("search_mode", mode),
		zap.String("search_sort", string(cr.Sort())),
		zap.Bool("search_scored", q.IsScored()),
	)

	var out result.SearchResult
	switch mode {
	case ModeCount:
		out, err = s.count(ctx, tenant, countKey(raw, actor), q)
	case ModeClusters:
		out, err = s.clusters(ctx, tenant, q)
	default:
		out, err = s.page(ctx, tenant, cr, q)
	}
	if err != nil {
		logger.FromContext(ctx).Error("search execution failed",
			zap.String("tenant", tenant),
			zap.String("query", q.String()),
			zap.Error(err),
		)
		err = &domain.SearchExecutionError{Err: err}
		s.observe(mode, err, start)
		return result.SearchResult{}, err
	}

	if mode == ModePage && s.effects != nil {
		s.effects.Dispatch(sideeffects.Event{
			Tenant:                tenant,
			Actor:                 actor,
			Searcher:              res.Requester,
			Criteria:              cr,
			IsTest:                res.IsTest,
			Hits:                  out.Page.Hits,
			RequestedAvailability: res.RequestedAvailability,
		})
	}

	s.observe(mode, nil, start)
	return out, nil
}

// Compile normalizes raw and returns the query Search would run.
func (s *Service) Compile(
	ctx context.Context, tenant string, raw request.RawInput, actor request.Actor,
) (*query.Compiled, error) {
	_, q, err := s.prepare(ctx, tenant, raw, actor)
	return q, err
}

func (s *Service) prepare(
	ctx context.Context, tenant string, raw request.RawInput, actor request.Actor,
) (normalize.Result, *query.Compiled, error) {
	res, err := s.normalizer.Normalize(ctx, tenant, raw, actor)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSearch) {
			return normalize.Result{}, nil, err
		}
		return normalize.Result{}, nil, &domain.SearchExecutionError{Err: fmt.Errorf("normalize: %w", err)}
	}

	spec, err := s.spec(ctx, res)
	if err != nil {
		return normalize.Result{}, nil, err
	}

	q, err := s.compiler.Compile(res.Criteria, spec)
	if err != nil {
		return normalize.Result{}, nil, &domain.SearchExecutionError{Err: fmt.Errorf("compile: %w", err)}
	}
	return res, q, nil
}

// spec builds the relevance factors; nil when the search is not ranked by relevance.
func (s *Service) spec(ctx context.Context, res normalize.Result) (*domscoring.Spec, error) {
	cr := res.Criteria
	if cr.Sort() != criteria.SortRelevance || res.Requester == nil || cr.Grouped() || cr.CountOnly() {
		return nil, nil
	}

	grid := res.Requester.Availability
	if res.RequestedAvailability != nil {
		grid = *res.RequestedAvailability
	}
	spec, err := s.builder.Build(scoring.Input{
		Searcher:     res.Requester,
		Availability: grid,
		Location:     cr.Origin(),
		Override:     res.Weights,
		IsTest:       res.IsTest,
	})
	if errors.Is(err, scoring.ErrNoWeight) {
		return nil, domain.NewParseError("weights", err)
	}
	if err != nil {
		return nil, &domain.SearchExecutionError{Err: fmt.Errorf("build scoring: %w", err)}
	}
	if ignored := ignoredWeights(spec, res.Weights); len(ignored) > 0 {
		logger.AddFields(ctx, zap.Strings("ignored_weights", ignored))
	}
	return &spec, nil
}

// ignoredWeights lists override names the searcher's catalogue does not
// score, such as distance without an origin.
func ignoredWeights(spec domscoring.Spec, override map[domscoring.FactorName]float64) []string {
	var out []string
	for name := range override {
		if _, ok := spec.Weight(name); !ok {
			out = append(out, string(name))
		}
	}
	slices.Sort(out)
	return out
}

func (s *Service) count(ctx context.Context, tenant, key string, q *query.Compiled) (result.SearchResult, error) {
	n, err := s.counts.Get(ctx, tenant, key, func(ctx context.Context) (int, error) {
		return s.repo.Count(ctx, tenant, q.Filter())
	})
	if err != nil {
		return result.SearchResult{}, fmt.Errorf("count: %w", err)
	}
	return result.SearchResult{Count: &n}, nil
}

func (s *Service) clusters(ctx context.Context, tenant string, q *query.Compiled) (result.SearchResult, error) {
	groups, err := s.repo.Clusters(ctx, tenant, q)
	if err != nil {
		return result.SearchResult{}, fmt.Errorf("clusters: %w", err)
	}
	total := 0
	for _, g := range groups {
		total += g.Count
	}
	return result.SearchResult{Clusters: &result.Clusters{Groups: groups, Total: total}}, nil
}

// page fetches the hits and the total concurrently.
func (s *Service) page(
	ctx context.Context, tenant string, cr criteria.Criteria, q *query.Compiled,
) (result.SearchResult, error) {
	var (
		hits  []result.Hit
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hits, err = s.repo.Page(gctx, tenant, q)
		if err != nil {
			return fmt.Errorf("page: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, tenant, q.Filter())
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return result.SearchResult{}, err
	}

	if q.Explain() {
		explainHits(hits)
	}
	p := cr.Page()
	return result.SearchResult{Page: &result.Page{
		Hits:       hits,
		Pagination: result.NewPagination(p.Number, p.Size, total),
	}}, nil
}

func (s *Service) observe(mode string, err error, start time.Time) {
	status := "ok"
	switch {
	case errors.Is(err, domain.ErrInvalidSearch):
		status = "parse_error"
	case err != nil:
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(mode, status).Inc()
	metrics.SearchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

// modeOf picks the execution mode. Clustering wins over counting and paging.
func modeOf(cr criteria.Criteria) string {
	switch {
	case cr.Grouped():
		return ModeClusters
	case cr.CountOnly():
		return ModeCount
	}
	return ModePage
}

// countKey scopes the request key to the actor, whose profile shapes the
// counterpart roles, exclusions and cutoffs of the count.
func countKey(raw request.RawInput, actor request.Actor) string {
	if raw.CacheKey == "" {
		return ""
	}
	return fmt.Sprintf("%d|%s|%s", actor.UserID, actor.Context, raw.CacheKey)
}

// requestedMode labels requests that failed before normalization finished.
func requestedMode(raw request.RawInput) string {
	switch {
	case raw.Group != nil:
		return ModeClusters
	case raw.IsCountOnly():
		return ModeCount
	}
	return ModePage
}
