// Package filter holds the backend-neutral boolean filter model used for
// hard search criteria and soft scoring clauses.
package filter

import (
	"fmt"

	"github.com/sitly-nl/matchsearch/internal/domain/geo"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 64

// Expression is a structured filter with must/should/must_not boolean semantics.
// Should conditions form a single OR group: at least one must hold.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{
		must:    clone(must),
		should:  clone(should),
		mustNot: clone(mustNot),
	}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return clone(e.must) }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return clone(e.should) }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return clone(e.mustNot) }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Keys returns every field referenced by the expression, first-seen order.
func (e Expression) Keys() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]Condition{e.must, e.should, e.mustNot} {
		for _, c := range group {
			if _, ok := seen[c.key]; ok {
				continue
			}
			seen[c.key] = struct{}{}
			out = append(out, c.key)
		}
	}
	return out
}

// Condition is a single filter clause on one field.
type Condition struct {
	key       string
	match     string
	anyOf     []string
	prefix    string
	rangeExpr *Range
	radius    *Radius
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewMatchAny matches when the field carries at least one of values.
func NewMatchAny(key string, values []string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty value for key %q", key)
		}
	}
	return Condition{key: key, anyOf: clone(values)}, nil
}

// NewPrefix matches text fields starting with prefix.
func NewPrefix(key, prefix string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if prefix == "" {
		return Condition{}, fmt.Errorf("prefix is required for key %q", key)
	}
	return Condition{key: key, prefix: prefix}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// NewRadius matches geo points within radiusKm of center.
func NewRadius(key string, center geo.Point, radiusKm float64) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if err := center.Validate(); err != nil {
		return Condition{}, err
	}
	if radiusKm <= 0 {
		return Condition{}, geo.ErrInvalidRadius
	}
	return Condition{key: key, radius: &Radius{Center: center, Km: radiusKm}}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// AnyOf returns the accepted values of a match-any condition.
func (c Condition) AnyOf() []string { return clone(c.anyOf) }

// Prefix returns the prefix of a prefix condition.
func (c Condition) Prefix() string { return c.prefix }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// Radius returns the geo radius.
func (c Condition) Radius() *Radius { return c.radius }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsMatchAny reports whether this is a match-any condition.
func (c Condition) IsMatchAny() bool { return len(c.anyOf) > 0 }

// IsPrefix reports whether this is a prefix condition.
func (c Condition) IsPrefix() bool { return c.prefix != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// IsRadius reports whether this is a geo radius condition.
func (c Condition) IsRadius() bool { return c.radius != nil }

// Radius is a circle around a point.
type Radius struct {
	Center geo.Point
	Km     float64
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// Between is an inclusive range [lo, hi].
func Between(key string, lo, hi float64) (Condition, error) {
	if lo > hi {
		return Condition{}, fmt.Errorf("range for %q is inverted: %v > %v", key, lo, hi)
	}
	r, _ := NewRangeFilter(nil, &lo, nil, &hi)
	return NewRange(key, r)
}

// AtLeast is an inclusive lower bound.
func AtLeast(key string, lo float64) (Condition, error) {
	r, _ := NewRangeFilter(nil, &lo, nil, nil)
	return NewRange(key, r)
}

// AtMost is an inclusive upper bound.
func AtMost(key string, hi float64) (Condition, error) {
	r, _ := NewRangeFilter(nil, nil, nil, &hi)
	return NewRange(key, r)
}

// Below is an exclusive upper bound.
func Below(key string, hi float64) (Condition, error) {
	r, _ := NewRangeFilter(nil, nil, &hi, nil)
	return NewRange(key, r)
}

// Above is an exclusive lower bound.
func Above(key string, lo float64) (Condition, error) {
	r, _ := NewRangeFilter(&lo, nil, nil, nil)
	return NewRange(key, r)
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v satisfies every bound.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}

func clone[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
