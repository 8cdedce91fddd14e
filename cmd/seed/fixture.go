package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	domplace "github.com/sitly-nl/matchsearch/internal/domain/place"
)

// fixture is a seed file: places, postal areas and raw profile hashes for one tenant.
type fixture struct {
	Tenant       string               `yaml:"tenant"`
	Places       []placeFixture       `yaml:"places"`
	PostalCodes  []postalCodeFixture  `yaml:"postal_codes"`
	PostalRanges []postalRangeFixture `yaml:"postal_ranges"`
	Users        []map[string]string  `yaml:"users"`
}

type pointFixture struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

type boundsFixture struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

type placeFixture struct {
	ID          string       `yaml:"id"`
	CanonicalID string       `yaml:"canonical_id"`
	LocaleID    int          `yaml:"locale_id"`
	Name        string       `yaml:"name"`
	Slug        string       `yaml:"slug"`
	SlugEnglish string       `yaml:"slug_english"`
	Location    pointFixture `yaml:"location"`
	UserCount   int          `yaml:"user_count"`
}

type postalCodeFixture struct {
	Code    string        `yaml:"code"`
	PlaceID string        `yaml:"place_id"`
	Center  pointFixture  `yaml:"center"`
	Bounds  boundsFixture `yaml:"bounds"`
}

type postalRangeFixture struct {
	From    int           `yaml:"from"`
	To      int           `yaml:"to"`
	PlaceID string        `yaml:"place_id"`
	Center  pointFixture  `yaml:"center"`
	Bounds  boundsFixture `yaml:"bounds"`
}

func loadFixture(path string) (fixture, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fixture{}, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return parseFixture(data)
}

func parseFixture(data []byte) (fixture, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Tenant == "" {
		return fixture{}, fmt.Errorf("fixture: tenant is required")
	}
	for i, p := range f.Places {
		if p.ID == "" {
			return fixture{}, fmt.Errorf("fixture: places[%d]: id is required", i)
		}
		if err := p.Location.point().Validate(); err != nil {
			return fixture{}, fmt.Errorf("fixture: place %s: %w", p.ID, err)
		}
	}
	for i, r := range f.PostalRanges {
		if r.From > r.To {
			return fixture{}, fmt.Errorf("fixture: postal_ranges[%d]: from %d exceeds to %d", i, r.From, r.To)
		}
		if err := r.Bounds.bounds().Validate(); err != nil {
			return fixture{}, fmt.Errorf("fixture: postal_ranges[%d]: %w", i, err)
		}
	}
	for i, pc := range f.PostalCodes {
		if err := pc.Bounds.bounds().Validate(); err != nil {
			return fixture{}, fmt.Errorf("fixture: postal_codes[%d]: %w", i, err)
		}
	}
	return f, nil
}

func (p pointFixture) point() geo.Point { return geo.Point{Lat: p.Lat, Lon: p.Lon} }

func (b boundsFixture) bounds() geo.Bounds {
	return geo.Bounds{North: b.North, South: b.South, East: b.East, West: b.West}
}

func (p placeFixture) place() domplace.Place {
	return domplace.Place{
		ID:          p.ID,
		CanonicalID: p.CanonicalID,
		LocaleID:    p.LocaleID,
		Name:        p.Name,
		Slug:        p.Slug,
		SlugEnglish: p.SlugEnglish,
		Location:    p.Location.point(),
		UserCount:   p.UserCount,
	}
}

func (pc postalCodeFixture) postalCode() domplace.PostalCode {
	return domplace.PostalCode{
		Code:    pc.Code,
		PlaceID: pc.PlaceID,
		Center:  pc.Center.point(),
		Bounds:  pc.Bounds.bounds(),
	}
}

func (r postalRangeFixture) postalRange() domplace.PostalRange {
	return domplace.PostalRange{
		From:    r.From,
		To:      r.To,
		PlaceID: r.PlaceID,
		Center:  r.Center.point(),
		Bounds:  r.Bounds.bounds(),
	}
}
