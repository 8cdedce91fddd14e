package redis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
	"github.com/sitly-nl/matchsearch/internal/domain/search/query"
	"github.com/sitly-nl/matchsearch/internal/domain/search/scoring"
)

// MaxGroups caps the number of clusters returned by a grouped aggregate.
const MaxGroups = 1000

const (
	cellLat = "__cell_lat"
	cellLon = "__cell_lon"
)

// Aggregate runs a compiled search through FT.AGGREGATE: hard filters in the
// query string, one APPLY per scoring factor, a weighted-sum APPLY, then
// either SORTBY+LIMIT or a geo cell GROUPBY.
func (s *Store) Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
	args, err := buildAggregateArgs(q)
	if err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, searchErr(db.OpAggregate, err)
	}

	if q.Query.Group() != nil {
		return &db.AggregateResult{Groups: parseGroupRows(raw)}, nil
	}
	return &db.AggregateResult{Rows: parseAggregateRows(raw, q)}, nil
}

func buildAggregateArgs(q *db.AggregateQuery) ([]string, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Query == nil {
		return nil, fmt.Errorf("query is required")
	}
	if q.KeyField == "" {
		return nil, fmt.Errorf("key field is required")
	}
	c := q.Query

	args := []string{q.IndexName, buildFilter(c.Filter())}

	load := loadFields(q)
	args = append(args, "LOAD", strconv.Itoa(len(load)))
	args = append(args, load...)

	if o := c.Origin(); o != nil {
		if q.GeoField == "" {
			return nil, fmt.Errorf("geo field is required for distance")
		}
		args = append(args, "APPLY",
			fmt.Sprintf("geodistance(@%s, %s, %s) / 1000", q.GeoField, num(o.Lon), num(o.Lat)),
			"AS", scoring.DistanceField)
	}

	if c.IsScored() {
		factors := c.Scoring()
		terms := make([]string, 0, len(factors))
		for _, f := range factors {
			expr, err := factorExpr(f.Params)
			if err != nil {
				return nil, fmt.Errorf("factor %s: %w", f.Name, err)
			}
			field := query.FactorField(f.Name)
			args = append(args, "APPLY", expr, "AS", field)
			terms = append(terms, fmt.Sprintf("%s * @%s", num(f.Weight), field))
		}
		args = append(args, "APPLY", strings.Join(terms, " + "), "AS", query.ScoreField)
	}

	if g := c.Group(); g != nil {
		if q.LatField == "" || q.LonField == "" {
			return nil, fmt.Errorf("lat/lon fields are required for grouping")
		}
		cell := num(g.CellDeg)
		args = append(args,
			"APPLY", fmt.Sprintf("floor(@%s / %s)", q.LatField, cell), "AS", cellLat,
			"APPLY", fmt.Sprintf("floor(@%s / %s)", q.LonField, cell), "AS", cellLon,
			"GROUPBY", "2", "@"+cellLat, "@"+cellLon,
			"REDUCE", "COUNT", "0", "AS", "count",
			"REDUCE", "AVG", "1", "@"+q.LatField, "AS", "latitude",
			"REDUCE", "AVG", "1", "@"+q.LonField, "AS", "longitude",
			"SORTBY", "2", "@count", "DESC",
			"LIMIT", "0", strconv.Itoa(MaxGroups),
		)
		return append(args, "DIALECT", "2"), nil
	}

	if keys := c.Sort(); len(keys) > 0 {
		args = append(args, "SORTBY", strconv.Itoa(len(keys)*2))
		for _, k := range keys {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			args = append(args, "@"+k.Field, dir)
		}
	}
	args = append(args, "LIMIT", strconv.Itoa(c.Offset()), strconv.Itoa(c.Limit()))

	return append(args, "DIALECT", "2"), nil
}

// loadFields lists every document field the pipeline reads, deduplicated.
func loadFields(q *db.AggregateQuery) []string {
	c := q.Query
	seen := make(map[string]struct{})
	var out []string
	add := func(f string) {
		if f == "" || strings.HasPrefix(f, "__") {
			return
		}
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		out = append(out, "@"+f)
	}

	add(q.KeyField)
	for _, f := range c.Fields() {
		add(f)
	}
	if c.Origin() != nil {
		add(q.GeoField)
	}
	for _, f := range c.Scoring() {
		add(f.Params.Field)
		if f.Params.Kind == scoring.KindCondition {
			add(f.Params.Condition.Key())
		}
	}
	for _, k := range c.Sort() {
		add(k.Field)
	}
	if c.Group() != nil {
		add(q.LatField)
		add(q.LonField)
	}
	return out
}

// factorExpr renders one factor as an APPLY expression evaluating to [0, 1].
func factorExpr(p scoring.Params) (string, error) {
	switch p.Kind {
	case scoring.KindDecay:
		d := fmt.Sprintf("abs(@%s - %s)", p.Field, num(p.Origin))
		if p.Offset > 0 {
			d = fmt.Sprintf("((%[1]s > %[2]s) * (%[1]s - %[2]s))", d, num(p.Offset))
		}
		k := num(-math.Log(p.Decay))
		scale := num(p.Scale)
		return fmt.Sprintf("exp(-%s * (%s / %s) * (%s / %s))", k, d, scale, d, scale), nil

	case scoring.KindCondition:
		return conditionExpr(p.Condition)

	case scoring.KindOverlap:
		parts := make([]string, len(p.Values))
		for i, v := range p.Values {
			parts[i] = fmt.Sprintf("(contains(@%s, %s) > 0)", p.Field, quote(v))
		}
		return fmt.Sprintf("(%s) / %d", strings.Join(parts, " + "), len(p.Values)), nil

	case scoring.KindRatio:
		pivot := num(p.Pivot)
		return fmt.Sprintf("((@%[1]s >= %[2]s) + (@%[1]s < %[2]s) * @%[1]s / %[2]s)", p.Field, pivot), nil
	}
	return "", fmt.Errorf("unsupported factor kind %s", p.Kind)
}

// conditionExpr renders a filter condition as a 0/1 APPLY expression.
func conditionExpr(c filter.Condition) (string, error) {
	switch {
	case c.IsMatch():
		return fmt.Sprintf("(contains(@%s, %s) > 0)", c.Key(), quote(c.Match())), nil
	case c.IsMatchAny():
		vals := c.AnyOf()
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fmt.Sprintf("contains(@%s, %s)", c.Key(), quote(v))
		}
		return fmt.Sprintf("((%s) > 0)", strings.Join(parts, " + ")), nil
	case c.IsRange():
		r := c.Range()
		var parts []string
		if r.GT() != nil {
			parts = append(parts, fmt.Sprintf("(@%s > %s)", c.Key(), num(*r.GT())))
		}
		if r.GTE() != nil {
			parts = append(parts, fmt.Sprintf("(@%s >= %s)", c.Key(), num(*r.GTE())))
		}
		if r.LT() != nil {
			parts = append(parts, fmt.Sprintf("(@%s < %s)", c.Key(), num(*r.LT())))
		}
		if r.LTE() != nil {
			parts = append(parts, fmt.Sprintf("(@%s <= %s)", c.Key(), num(*r.LTE())))
		}
		return "(" + strings.Join(parts, " && ") + ")", nil
	case c.IsRadius():
		r := c.Radius()
		return fmt.Sprintf("(geodistance(@%s, %s, %s) <= %s)",
			c.Key(), num(r.Center.Lon), num(r.Center.Lat), num(r.Km*1000)), nil
	case c.IsPrefix():
		return fmt.Sprintf("startswith(@%s, %s)", c.Key(), quote(c.Prefix())), nil
	}
	return "", fmt.Errorf("empty condition")
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// --- Result parsing ---

// parseAggregateRows reads [count, [k, v, ...], [k, v, ...], ...].
func parseAggregateRows(raw []rueidis.RedisMessage, q *db.AggregateQuery) []db.AggregateRow {
	if len(raw) < 2 {
		return nil
	}
	c := q.Query
	rows := make([]db.AggregateRow, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		pairs, err := msg.ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(pairs)
		row := db.AggregateRow{Key: fields[q.KeyField], Fields: fields}
		if v, ok := parseFloat(fields[query.ScoreField]); ok {
			row.Score = v
		}
		if v, ok := parseFloat(fields[scoring.DistanceField]); ok {
			row.Distance = &v
		}
		if c.Explain() && c.IsScored() {
			row.Explanation = explain(c, fields)
		}
		rows = append(rows, row)
	}
	return rows
}

func parseGroupRows(raw []rueidis.RedisMessage) []db.GroupRow {
	if len(raw) < 2 {
		return nil
	}
	groups := make([]db.GroupRow, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		pairs, err := msg.ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(pairs)
		count, ok := parseFloat(fields["count"])
		if !ok {
			continue
		}
		lat, _ := parseFloat(fields["latitude"])
		lon, _ := parseFloat(fields["longitude"])
		groups = append(groups, db.GroupRow{Count: int(count), Latitude: lat, Longitude: lon})
	}
	return groups
}

// explain rebuilds a score tree from the per-factor APPLY outputs.
func explain(c *query.Compiled, fields map[string]string) *db.Explanation {
	factors := c.Scoring()
	root := &db.Explanation{Description: "sum of:", Details: make([]db.Explanation, 0, len(factors))}
	for _, f := range factors {
		raw, _ := parseFloat(fields[query.FactorField(f.Name)])
		weighted := raw * f.Weight
		root.Value += weighted
		root.Details = append(root.Details, db.Explanation{
			Value:       weighted,
			Description: "weight(" + string(f.Name) + ")",
			Details: []db.Explanation{
				{Value: raw, Description: f.Params.Kind.String() + "(" + describeField(f.Params) + ")"},
				{Value: f.Weight, Description: "boost"},
			},
		})
	}
	return root
}

func describeField(p scoring.Params) string {
	if p.Kind == scoring.KindCondition {
		return p.Condition.Key()
	}
	return p.Field
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
