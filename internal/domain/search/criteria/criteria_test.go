package criteria

import (
	"errors"
	"testing"

	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

func TestNew_CenterAndBoundsConflict(t *testing.T) {
	_, err := New(Params{
		Center: &geo.Point{Lat: 52, Lon: 5},
		Bounds: &geo.Bounds{North: 53, South: 51, East: 6, West: 4},
	})
	if !errors.Is(err, ErrConflictingGeo) {
		t.Fatalf("want ErrConflictingGeo, got %v", err)
	}
}

func TestNew_DistanceRequiresCenter(t *testing.T) {
	if _, err := New(Params{DistanceKm: 10}); !errors.Is(err, ErrDistanceWithoutCenter) {
		t.Fatalf("want ErrDistanceWithoutCenter, got %v", err)
	}
	if _, err := New(Params{DistanceKm: -1, Center: &geo.Point{}}); !errors.Is(err, ErrNegativeDistance) {
		t.Fatalf("want ErrNegativeDistance, got %v", err)
	}
}

func TestNew_InvertedAge(t *testing.T) {
	if _, err := New(Params{Age: AgeRange{Min: 40, Max: 20}}); err == nil {
		t.Fatal("expected error for inverted age range")
	}
}

func TestNew_DefaultSort(t *testing.T) {
	c, err := New(Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Sort() != SortCreated {
		t.Fatalf("want created, got %s", c.Sort())
	}
}

func TestCriteria_Immutable(t *testing.T) {
	center := &geo.Point{Lat: 52, Lon: 5}
	chores := []string{"cooking"}
	flags := map[user.Flag]bool{user.FlagSmoker: false}

	c, err := New(Params{Center: center, DistanceKm: 5, Chores: chores, Flags: flags})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	center.Lat = 0
	chores[0] = "ironing"
	flags[user.FlagSmoker] = true

	if c.Center().Lat != 52 {
		t.Error("center must be copied on construction")
	}
	if c.Chores()[0] != "cooking" {
		t.Error("chores must be copied on construction")
	}
	if c.Flags()[user.FlagSmoker] {
		t.Error("flags must be copied on construction")
	}

	got := c.Chores()
	got[0] = "x"
	if c.Chores()[0] != "cooking" {
		t.Error("getter must return a copy")
	}
}

func TestCriteria_Origin(t *testing.T) {
	c, _ := New(Params{Bounds: &geo.Bounds{North: 52, South: 50, East: 6, West: 4}})
	o := c.Origin()
	if o == nil || o.Lat != 51 || o.Lon != 5 {
		t.Fatalf("want bounds midpoint, got %+v", o)
	}
	if c.HasRadius() {
		t.Fatal("bounds search has no radius")
	}
	none, _ := New(Params{})
	if none.Origin() != nil {
		t.Fatal("want nil origin")
	}
}

func TestPage_Offset(t *testing.T) {
	if got := (Page{Number: 3, Size: 20}).Offset(); got != 40 {
		t.Fatalf("want 40, got %d", got)
	}
	if got := (Page{Number: 0, Size: 20}).Offset(); got != 0 {
		t.Fatalf("want 0, got %d", got)
	}
}

func TestParseSortMode(t *testing.T) {
	for in, want := range map[string]SortMode{
		"relevance": SortRelevance, "distance": SortDistance,
		"created": SortCreated, "last-active": SortLastActive, "lastActive": SortLastActive,
	} {
		got, ok := ParseSortMode(in)
		if !ok || got != want {
			t.Errorf("ParseSortMode(%q) = %q,%v", in, got, ok)
		}
	}
	if _, ok := ParseSortMode("random"); ok {
		t.Error("random must be rejected")
	}
}
