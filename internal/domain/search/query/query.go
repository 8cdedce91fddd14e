// Package query is the backend-neutral compiled form of a search: hard
// filters, weighted relevance functions, sort keys and paging.
package query

import (
	"fmt"
	"strings"

	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
	"github.com/sitly-nl/matchsearch/internal/domain/search/scoring"
)

// ScoreField holds the weighted relevance sum of a hit.
const ScoreField = "__score"

// FactorField returns the field holding the raw value of one factor.
func FactorField(name scoring.FactorName) string {
	return "__f_" + string(name)
}

// SortKey orders hits by one field.
type SortKey struct {
	Field string
	Desc  bool
}

func (k SortKey) String() string {
	if k.Desc {
		return k.Field + " desc"
	}
	return k.Field + " asc"
}

// Grouping buckets hits into square lat/lon cells of CellDeg degrees.
type Grouping struct {
	CellDeg float64
}

// Params is the mutable input to New.
type Params struct {
	Filter  filter.Expression
	Origin  *geo.Point
	Scoring []scoring.Factor
	Sort    []SortKey
	Offset  int
	Limit   int
	Group   *Grouping
	Explain bool
	Fields  []string
	IsTest  bool
}

// Compiled is an immutable, executable search.
type Compiled struct {
	p Params
}

// New validates and freezes p.
func New(p Params) (*Compiled, error) {
	if p.Offset < 0 || p.Limit < 0 {
		return nil, fmt.Errorf("offset and limit must not be negative")
	}
	for _, f := range p.Scoring {
		if f.Weight <= 0 {
			return nil, fmt.Errorf("factor %s has non-positive weight", f.Name)
		}
		if f.Params.Field == scoring.DistanceField && p.Origin == nil {
			return nil, fmt.Errorf("factor %s needs an origin", f.Name)
		}
	}
	for _, k := range p.Sort {
		if k.Field == scoring.DistanceField && p.Origin == nil {
			return nil, fmt.Errorf("distance sort needs an origin")
		}
	}
	if p.Group != nil && p.Group.CellDeg <= 0 {
		return nil, fmt.Errorf("group cell size must be positive")
	}
	if p.Origin != nil {
		o := *p.Origin
		p.Origin = &o
	}
	if p.Group != nil {
		g := *p.Group
		p.Group = &g
	}
	p.Scoring = append([]scoring.Factor(nil), p.Scoring...)
	p.Sort = append([]SortKey(nil), p.Sort...)
	p.Fields = append([]string(nil), p.Fields...)
	return &Compiled{p: p}, nil
}

// Filter returns the hard filter.
func (c *Compiled) Filter() filter.Expression { return c.p.Filter }

// Origin returns the point distances are measured from.
func (c *Compiled) Origin() *geo.Point {
	if c.p.Origin == nil {
		return nil
	}
	o := *c.p.Origin
	return &o
}

// Scoring returns every enabled factor.
func (c *Compiled) Scoring() []scoring.Factor {
	return append([]scoring.Factor(nil), c.p.Scoring...)
}

// Boosts returns the constant-boost should clauses.
func (c *Compiled) Boosts() []scoring.Factor {
	var out []scoring.Factor
	for _, f := range c.p.Scoring {
		if f.Params.Kind == scoring.KindCondition {
			out = append(out, f)
		}
	}
	return out
}

// Functions returns the decay, overlap and ratio functions.
func (c *Compiled) Functions() []scoring.Factor {
	var out []scoring.Factor
	for _, f := range c.p.Scoring {
		if f.Params.Kind != scoring.KindCondition {
			out = append(out, f)
		}
	}
	return out
}

// IsScored reports whether hits carry a relevance score.
func (c *Compiled) IsScored() bool { return len(c.p.Scoring) > 0 }

// Sort returns the sort keys, tie-breaker last.
func (c *Compiled) Sort() []SortKey { return append([]SortKey(nil), c.p.Sort...) }

// Offset is the number of hits to skip.
func (c *Compiled) Offset() int { return c.p.Offset }

// Limit is the page size.
func (c *Compiled) Limit() int { return c.p.Limit }

// Group returns the clustering config; nil for paginated searches.
func (c *Compiled) Group() *Grouping {
	if c.p.Group == nil {
		return nil
	}
	g := *c.p.Group
	return &g
}

// Explain reports whether per-hit score breakdowns are requested.
func (c *Compiled) Explain() bool { return c.p.Explain }

// Fields returns extra document fields to return with each hit.
func (c *Compiled) Fields() []string { return append([]string(nil), c.p.Fields...) }

// IsTest marks staff ranking experiments.
func (c *Compiled) IsTest() bool { return c.p.IsTest }

// String renders a compact description for logs.
func (c *Compiled) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "must=%d should=%d must_not=%d",
		len(c.p.Filter.Must()), len(c.p.Filter.Should()), len(c.p.Filter.MustNot()))
	if len(c.p.Scoring) > 0 {
		names := make([]string, len(c.p.Scoring))
		for i, f := range c.p.Scoring {
			names[i] = fmt.Sprintf("%s:%g", f.Name, f.Weight)
		}
		fmt.Fprintf(&b, " scoring=[%s]", strings.Join(names, ","))
	}
	if c.p.Group != nil {
		fmt.Fprintf(&b, " group=%g", c.p.Group.CellDeg)
	} else {
		keys := make([]string, len(c.p.Sort))
		for i, k := range c.p.Sort {
			keys[i] = k.String()
		}
		fmt.Fprintf(&b, " sort=[%s] offset=%d limit=%d", strings.Join(keys, ","), c.p.Offset, c.p.Limit)
	}
	return b.String()
}
