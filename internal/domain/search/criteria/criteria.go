// Package criteria is the validated, immutable description of what a user
// search asks for, independent of how the index is queried.
package criteria

import (
	"errors"
	"fmt"
	"time"

	"github.com/sitly-nl/matchsearch/internal/domain/availability"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// SortMode orders search results.
type SortMode string

// Sort modes.
const (
	SortRelevance  SortMode = "relevance"
	SortDistance   SortMode = "distance"
	SortCreated    SortMode = "created"
	SortLastActive SortMode = "last-active"
)

// ParseSortMode parses a sort request value.
func ParseSortMode(s string) (SortMode, bool) {
	switch SortMode(s) {
	case SortRelevance, SortDistance, SortCreated, SortLastActive:
		return SortMode(s), true
	case "lastActive", "last_active":
		return SortLastActive, true
	}
	return "", false
}

// Usage says how availability takes part in a search.
type Usage int

// Availability usages.
const (
	UsageHardFilter Usage = iota
	UsageSoftFactor
)

var (
	// ErrConflictingGeo is returned when both a center and bounds are given.
	ErrConflictingGeo = errors.New("center and bounds are mutually exclusive")
	// ErrNegativeDistance is returned for distance < 0.
	ErrNegativeDistance = errors.New("distance must not be negative")
	// ErrDistanceWithoutCenter is returned for a radius with nothing to center on.
	ErrDistanceWithoutCenter = errors.New("distance requires a center")
)

// AgeRange bounds candidate age in years; zero means unbounded.
type AgeRange struct {
	Min int
	Max int
}

// IsZero reports whether neither bound is set.
func (a AgeRange) IsZero() bool { return a.Min == 0 && a.Max == 0 }

// Page is 1-based pagination.
type Page struct {
	Number int
	Size   int
}

// Offset returns the zero-based index of the first hit.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Params is the mutable input to New.
type Params struct {
	Roles []user.Role

	Center     *geo.Point
	Bounds     *geo.Bounds
	DistanceKm float64

	Age               AgeRange
	Availability      availability.Grid
	AvailabilityUsage Usage
	Flags             map[user.Flag]bool
	Gender            string
	Chores            []string
	HourlyRates       []string
	Languages         []string
	NativeLanguage    string
	PlaceID           string
	Exclude           []int64

	CreatedBefore time.Time
	CreatedAfter  time.Time
	ActiveAfter   time.Time

	Page      Page
	Sort      SortMode
	Group     bool
	Explain   bool
	CountOnly bool
}

// Criteria is immutable once built; getters return copies.
type Criteria struct {
	p Params
}

// New validates p and returns a Criteria that owns copies of its inputs.
func New(p Params) (Criteria, error) {
	if p.Center != nil && p.Bounds != nil {
		return Criteria{}, ErrConflictingGeo
	}
	if p.DistanceKm < 0 {
		return Criteria{}, ErrNegativeDistance
	}
	if p.DistanceKm > 0 && p.Center == nil {
		return Criteria{}, ErrDistanceWithoutCenter
	}
	if p.Center != nil {
		if err := p.Center.Validate(); err != nil {
			return Criteria{}, fmt.Errorf("center: %w", err)
		}
		c := *p.Center
		p.Center = &c
	}
	if p.Bounds != nil {
		if err := p.Bounds.Validate(); err != nil {
			return Criteria{}, fmt.Errorf("bounds: %w", err)
		}
		b := *p.Bounds
		p.Bounds = &b
	}
	if p.Age.Min > 0 && p.Age.Max > 0 && p.Age.Min > p.Age.Max {
		return Criteria{}, fmt.Errorf("age range %d-%d is inverted", p.Age.Min, p.Age.Max)
	}
	if p.Sort == "" {
		p.Sort = SortCreated
	}

	p.Roles = append([]user.Role(nil), p.Roles...)
	p.Chores = append([]string(nil), p.Chores...)
	p.HourlyRates = append([]string(nil), p.HourlyRates...)
	p.Languages = append([]string(nil), p.Languages...)
	p.Exclude = append([]int64(nil), p.Exclude...)
	if p.Flags != nil {
		flags := make(map[user.Flag]bool, len(p.Flags))
		for k, v := range p.Flags {
			flags[k] = v
		}
		p.Flags = flags
	}
	return Criteria{p: p}, nil
}

// Params returns a copy of the inputs, for deriving a modified Criteria.
func (c Criteria) Params() Params {
	p := c.p
	p.Roles = c.Roles()
	p.Chores = c.Chores()
	p.HourlyRates = c.HourlyRates()
	p.Languages = c.Languages()
	p.Exclude = c.Exclude()
	p.Flags = c.Flags()
	p.Center = c.Center()
	p.Bounds = c.Bounds()
	return p
}

func (c Criteria) Roles() []user.Role { return append([]user.Role(nil), c.p.Roles...) }

// Center returns the search center, nil when searching by bounds or not by location.
func (c Criteria) Center() *geo.Point {
	if c.p.Center == nil {
		return nil
	}
	v := *c.p.Center
	return &v
}

func (c Criteria) Bounds() *geo.Bounds {
	if c.p.Bounds == nil {
		return nil
	}
	v := *c.p.Bounds
	return &v
}

func (c Criteria) DistanceKm() float64 { return c.p.DistanceKm }

// HasRadius reports whether a center+distance circle restricts results.
func (c Criteria) HasRadius() bool { return c.p.Center != nil && c.p.DistanceKm > 0 }

// Origin is the point distances are measured from: the center, else the bounds midpoint.
func (c Criteria) Origin() *geo.Point {
	if c.p.Center != nil {
		return c.Center()
	}
	if c.p.Bounds != nil {
		o := c.p.Bounds.Center()
		return &o
	}
	return nil
}

func (c Criteria) Age() AgeRange { return c.p.Age }
func (c Criteria) Availability() availability.Grid { return c.p.Availability }
func (c Criteria) AvailabilityUsage() Usage { return c.p.AvailabilityUsage }
func (c Criteria) Gender() string { return c.p.Gender }
func (c Criteria) Chores() []string { return append([]string(nil), c.p.Chores...) }
func (c Criteria) HourlyRates() []string { return append([]string(nil), c.p.HourlyRates...) }
func (c Criteria) Languages() []string { return append([]string(nil), c.p.Languages...) }
func (c Criteria) NativeLanguage() string { return c.p.NativeLanguage }
func (c Criteria) PlaceID() string { return c.p.PlaceID }
func (c Criteria) Exclude() []int64 { return append([]int64(nil), c.p.Exclude...) }
func (c Criteria) CreatedBefore() time.Time { return c.p.CreatedBefore }
func (c Criteria) CreatedAfter() time.Time { return c.p.CreatedAfter }
func (c Criteria) ActiveAfter() time.Time { return c.p.ActiveAfter }
func (c Criteria) Page() Page { return c.p.Page }
func (c Criteria) Sort() SortMode { return c.p.Sort }
func (c Criteria) Grouped() bool { return c.p.Group }
func (c Criteria) Explain() bool { return c.p.Explain }
func (c Criteria) CountOnly() bool { return c.p.CountOnly }

// Flags returns required flag values: true requires 1, false requires 0.
func (c Criteria) Flags() map[user.Flag]bool {
	if c.p.Flags == nil {
		return nil
	}
	out := make(map[user.Flag]bool, len(c.p.Flags))
	for k, v := range c.p.Flags {
		out[k] = v
	}
	return out
}
