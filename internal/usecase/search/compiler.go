package search

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/sitly-nl/matchsearch/internal/domain/search/criteria"
	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
	"github.com/sitly-nl/matchsearch/internal/domain/search/query"
	"github.com/sitly-nl/matchsearch/internal/domain/search/scoring"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// kmPerDegree approximates one degree of latitude.
const kmPerDegree = 111.0

// CompilerConfig tunes query compilation.
type CompilerConfig struct {
	// ClusterCells is how many grid cells span the search area per axis.
	ClusterCells int
	// MaxExplainPageSize is the largest page that may carry explanations.
	MaxExplainPageSize int
}

// Compiler turns criteria and an optional scoring spec into an executable query.
type Compiler struct {
	cfg CompilerConfig
}

// NewCompiler creates a Compiler.
func NewCompiler(cfg CompilerConfig) *Compiler {
	if cfg.ClusterCells <= 0 {
		cfg.ClusterCells = 8
	}
	if cfg.MaxExplainPageSize <= 0 {
		cfg.MaxExplainPageSize = 10
	}
	return &Compiler{cfg: cfg}
}

// Compile builds the query. With a spec, hits are ranked by the weighted
// factor sum and availability tagged as a soft factor is not filtered on;
// without one, the criteria's explicit sort applies. user_id is always the
// last sort key.
func (c *Compiler) Compile(cr criteria.Criteria, spec *scoring.Spec) (*query.Compiled, error) {
	if spec != nil && spec.TotalWeight() <= 0 {
		return nil, fmt.Errorf("relevance needs a positive total weight")
	}
	// Counts and clusters of a relevance search must match its unfiltered list.
	softAvailability := cr.AvailabilityUsage() == criteria.UsageSoftFactor &&
		(spec != nil || cr.Grouped() || cr.CountOnly())

	expr, err := hardFilter(cr, !softAvailability)
	if err != nil {
		return nil, err
	}

	p := query.Params{Filter: expr}
	if spec != nil {
		p.IsTest = spec.IsTest()
	}

	if cr.Grouped() {
		// Clusters only need the filter; ranking is irrelevant.
		p.Group = &query.Grouping{CellDeg: c.cellSize(cr)}
		return query.New(p)
	}

	p.Origin = cr.Origin()
	p.Offset = cr.Page().Offset()
	p.Limit = cr.Page().Size

	if spec != nil {
		for _, f := range spec.Enabled() {
			if f.Params.Field == scoring.DistanceField && p.Origin == nil {
				continue
			}
			p.Scoring = append(p.Scoring, f)
		}
		p.Sort = []query.SortKey{{Field: query.ScoreField, Desc: true}}
		p.Explain = cr.Explain() && cr.Page().Size <= c.cfg.MaxExplainPageSize
	} else {
		key, err := explicitSort(cr)
		if err != nil {
			return nil, err
		}
		p.Sort = []query.SortKey{key}
	}
	p.Sort = append(p.Sort, query.SortKey{Field: user.FieldUserID})

	return query.New(p)
}

func explicitSort(cr criteria.Criteria) (query.SortKey, error) {
	switch cr.Sort() {
	case criteria.SortDistance:
		if cr.Origin() == nil {
			return query.SortKey{}, fmt.Errorf("distance sort needs a center or bounds")
		}
		return query.SortKey{Field: scoring.DistanceField}, nil
	case criteria.SortLastActive:
		return query.SortKey{Field: user.FieldLastActive, Desc: true}, nil
	default:
		return query.SortKey{Field: user.FieldCreated, Desc: true}, nil
	}
}

// conditions collects clauses and keeps the first construction error.
type conditions struct {
	list []filter.Condition
	err  error
}

func (c *conditions) add(cond filter.Condition, err error) {
	if c.err != nil {
		return
	}
	if err != nil {
		c.err = err
		return
	}
	c.list = append(c.list, cond)
}

// hardFilter renders every must-match criterion.
func hardFilter(cr criteria.Criteria, availabilityAsFilter bool) (filter.Expression, error) {
	var must, should, mustNot conditions

	must.add(filter.NewMatch(user.FieldStatus, user.StatusActive))
	if roles := cr.Roles(); len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		must.add(filter.NewMatchAny(user.FieldRole, names))
	}

	flags := cr.Flags()
	names := make([]string, 0, len(flags))
	for f := range flags {
		names = append(names, string(f))
	}
	sort.Strings(names)
	for _, name := range names {
		v := 0.0
		if flags[user.Flag(name)] {
			v = 1
		}
		must.add(filter.Between(name, v, v))
	}

	if cr.HasRadius() {
		must.add(filter.NewRadius(user.FieldLocation, *cr.Center(), cr.DistanceKm()))
	}
	if b := cr.Bounds(); b != nil {
		must.add(filter.Between(user.FieldLat, b.South, b.North))
		if b.CrossesAntimeridian() {
			should.add(filter.AtLeast(user.FieldLon, b.West))
			should.add(filter.AtMost(user.FieldLon, b.East))
		} else {
			must.add(filter.Between(user.FieldLon, b.West, b.East))
		}
	}

	if age := cr.Age(); !age.IsZero() {
		switch {
		case age.Min > 0 && age.Max > 0:
			must.add(filter.Between(user.FieldAge, float64(age.Min), float64(age.Max)))
		case age.Min > 0:
			must.add(filter.AtLeast(user.FieldAge, float64(age.Min)))
		default:
			must.add(filter.AtMost(user.FieldAge, float64(age.Max)))
		}
	}

	if availabilityAsFilter {
		if keys := cr.Availability().Keys(); len(keys) > 0 {
			must.add(filter.NewMatchAny(user.FieldAvailability, keys))
		}
	}
	if g := cr.Gender(); g != "" {
		must.add(filter.NewMatch(user.FieldGender, g))
	}
	for _, chore := range cr.Chores() {
		must.add(filter.NewMatch(user.FieldChores, chore))
	}
	if rates := cr.HourlyRates(); len(rates) > 0 {
		must.add(filter.NewMatchAny(user.FieldHourlyRate, rates))
	}
	if langs := cr.Languages(); len(langs) > 0 {
		must.add(filter.NewMatchAny(user.FieldLanguages, langs))
	}
	if lang := cr.NativeLanguage(); lang != "" {
		must.add(filter.NewMatch(user.FieldNativeLanguage, lang))
	}
	if id := cr.PlaceID(); id != "" {
		must.add(filter.NewMatch(user.FieldPlaceID, id))
	}

	if t := cr.CreatedBefore(); !t.IsZero() {
		must.add(filter.Below(user.FieldCreated, float64(t.Unix())))
	}
	if t := cr.CreatedAfter(); !t.IsZero() {
		must.add(filter.Above(user.FieldCreated, float64(t.Unix())))
	}
	if t := cr.ActiveAfter(); !t.IsZero() {
		must.add(filter.Above(user.FieldLastActive, float64(t.Unix())))
	}

	if ids := cr.Exclude(); len(ids) > 0 {
		vals := make([]string, len(ids))
		for i, id := range ids {
			vals[i] = strconv.FormatInt(id, 10)
		}
		mustNot.add(filter.NewMatchAny(user.FieldUserTag, vals))
	}

	for _, c := range []*conditions{&must, &should, &mustNot} {
		if c.err != nil {
			return filter.Expression{}, fmt.Errorf("build hard filter: %w", c.err)
		}
	}
	expr, err := filter.NewExpression(must.list, should.list, mustNot.list)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("build hard filter: %w", err)
	}
	return expr, nil
}

// cellSize splits the searched area into ClusterCells cells per axis.
func (c *Compiler) cellSize(cr criteria.Criteria) float64 {
	var span float64
	switch {
	case cr.Bounds() != nil:
		b := cr.Bounds()
		lon := b.East - b.West
		if b.CrossesAntimeridian() {
			lon += 360
		}
		span = math.Max(b.North-b.South, lon)
	case cr.HasRadius():
		span = 2 * cr.DistanceKm() / kmPerDegree
	default:
		return 1
	}
	if span <= 0 {
		return 1
	}
	return span / float64(c.cfg.ClusterCells)
}
