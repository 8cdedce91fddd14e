package main

import (
	"errors"
	"testing"

	"github.com/sitly-nl/matchsearch/internal/domain/geo"
)

func TestLoadFixture_Amsterdam(t *testing.T) {
	fx, err := loadFixture("testdata/amsterdam.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.Tenant != "nl" {
		t.Errorf("tenant: got %q", fx.Tenant)
	}
	if len(fx.Places) != 5 || len(fx.PostalCodes) != 1 || len(fx.PostalRanges) != 2 || len(fx.Users) != 3 {
		t.Fatalf("unexpected sizes: %d places, %d codes, %d ranges, %d users",
			len(fx.Places), len(fx.PostalCodes), len(fx.PostalRanges), len(fx.Users))
	}

	alt := fx.Places[4].place()
	if alt.IsCanonical() || alt.CanonicalID != "100" {
		t.Errorf("expected alternate-locale record, got %+v", alt)
	}
	if fx.Users[0]["user_id"] != "1001" || fx.Users[0]["availability"] == "" {
		t.Errorf("unexpected first user: %v", fx.Users[0])
	}
	pr := fx.PostalRanges[0].postalRange()
	if !pr.Contains(1017) || pr.Contains(1180) {
		t.Errorf("unexpected range %d-%d", pr.From, pr.To)
	}
}

func TestParseFixture_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"missing tenant", "places: []", nil},
		{"place without id", "tenant: nl\nplaces:\n  - name: x\n", nil},
		{"place off the map", "tenant: nl\nplaces:\n  - id: a\n    location: {lat: 95, lon: 4}\n", geo.ErrInvalidPoint},
		{"inverted range", "tenant: nl\npostal_ranges:\n  - from: 20\n    to: 10\n", nil},
		{"inverted bounds", "tenant: nl\npostal_codes:\n  - code: x\n    bounds: {north: 1, south: 2}\n", geo.ErrInvalidBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFixture([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
