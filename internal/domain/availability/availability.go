// Package availability models the weekly day-part grid users fill in to say
// when they need care or can provide it.
package availability

import (
	"fmt"
	"sort"
	"strings"
)

// Weekdays in grid order.
var Weekdays = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Dayparts in grid order.
var Dayparts = [3]string{"morning", "afternoon", "evening"}

// Cell is one weekday/day-part slot.
type Cell struct {
	Day  int
	Part int
}

// Key renders the cell as "monday_morning".
func (c Cell) Key() string {
	return Weekdays[c.Day] + "_" + Dayparts[c.Part]
}

// ParseCell parses a weekday and a day-part name.
func ParseCell(day, part string) (Cell, error) {
	d, ok := index(Weekdays[:], day)
	if !ok {
		return Cell{}, fmt.Errorf("unknown weekday %q", day)
	}
	p, ok := index(Dayparts[:], part)
	if !ok {
		return Cell{}, fmt.Errorf("unknown daypart %q", part)
	}
	return Cell{Day: d, Part: p}, nil
}

// ParseKey is the inverse of Cell.Key.
func ParseKey(key string) (Cell, error) {
	day, part, ok := strings.Cut(key, "_")
	if !ok {
		return Cell{}, fmt.Errorf("malformed availability key %q", key)
	}
	return ParseCell(day, part)
}

// Grid is an immutable value: mutators return a modified copy.
type Grid [7][3]bool

// With returns a copy of g with cell set to v.
func (g Grid) With(c Cell, v bool) Grid {
	g[c.Day][c.Part] = v
	return g
}

// Has reports whether the cell is marked.
func (g Grid) Has(c Cell) bool {
	return g[c.Day][c.Part]
}

// IsEmpty reports whether no cell is marked.
func (g Grid) IsEmpty() bool {
	return g == Grid{}
}

// Cells returns the marked cells in grid order.
func (g Grid) Cells() []Cell {
	var out []Cell
	for d := range g {
		for p := range g[d] {
			if g[d][p] {
				out = append(out, Cell{Day: d, Part: p})
			}
		}
	}
	return out
}

// Keys returns the marked cells rendered with Cell.Key.
func (g Grid) Keys() []string {
	cells := g.Cells()
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Key()
	}
	return out
}

// Overlap counts cells marked in both grids.
func (g Grid) Overlap(o Grid) int {
	n := 0
	for d := range g {
		for p := range g[d] {
			if g[d][p] && o[d][p] {
				n++
			}
		}
	}
	return n
}

// FromKeys builds a grid from cell keys, ignoring duplicates.
func FromKeys(keys []string) (Grid, error) {
	var g Grid
	for _, k := range keys {
		c, err := ParseKey(k)
		if err != nil {
			return Grid{}, err
		}
		g = g.With(c, true)
	}
	return g, nil
}

// FromDays builds a grid from a weekday -> day-parts mapping.
func FromDays(days map[string][]string) (Grid, error) {
	names := make([]string, 0, len(days))
	for d := range days {
		names = append(names, d)
	}
	sort.Strings(names)

	var g Grid
	for _, day := range names {
		for _, part := range days[day] {
			c, err := ParseCell(day, part)
			if err != nil {
				return Grid{}, err
			}
			g = g.With(c, true)
		}
	}
	return g, nil
}

func index(list []string, s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, v := range list {
		if v == s {
			return i, true
		}
	}
	return 0, false
}
