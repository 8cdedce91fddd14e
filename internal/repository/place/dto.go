package place

import (
	"fmt"
	"strconv"

	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	domplace "github.com/sitly-nl/matchsearch/internal/domain/place"
)

// Place index and hash fields.
const (
	FieldPlaceID     = "place_id"
	FieldCanonicalID = "canonical_id"
	FieldLocaleID    = "locale_id"
	FieldName        = "name"
	FieldNameFolded  = "name_folded"
	FieldSlug        = "slug"
	FieldSlugEnglish = "slug_en"
	FieldLat         = "lat"
	FieldLon         = "lon"
	FieldPoint       = "point"
	FieldUserCount   = "user_count"

	FieldCode  = "code"
	FieldFrom  = "from"
	FieldTo    = "to"
	FieldNorth = "north"
	FieldSouth = "south"
	FieldEast  = "east"
	FieldWest  = "west"
)

// returnFields are fetched for every place hit.
var returnFields = []string{
	FieldPlaceID, FieldCanonicalID, FieldLocaleID, FieldName,
	FieldSlug, FieldSlugEnglish, FieldLat, FieldLon, FieldUserCount,
}

// placeFromHash hydrates a Place from hash fields.
func placeFromHash(m map[string]string) (domplace.Place, error) {
	id := m[FieldPlaceID]
	if id == "" {
		return domplace.Place{}, fmt.Errorf("missing %s", FieldPlaceID)
	}
	loc, err := pointFromHash(m)
	if err != nil {
		return domplace.Place{}, fmt.Errorf("place %s: %w", id, err)
	}
	locale, err := atoiOrZero(m[FieldLocaleID])
	if err != nil {
		return domplace.Place{}, fmt.Errorf("place %s: invalid %s: %w", id, FieldLocaleID, err)
	}
	users, err := atoiOrZero(m[FieldUserCount])
	if err != nil {
		return domplace.Place{}, fmt.Errorf("place %s: invalid %s: %w", id, FieldUserCount, err)
	}
	return domplace.Place{
		ID:          id,
		CanonicalID: m[FieldCanonicalID],
		LocaleID:    locale,
		Name:        m[FieldName],
		Slug:        m[FieldSlug],
		SlugEnglish: m[FieldSlugEnglish],
		Location:    loc,
		UserCount:   users,
	}, nil
}

// placeToHash is the indexable representation of a place.
func placeToHash(p domplace.Place) map[string]string {
	return map[string]string{
		FieldPlaceID:     p.ID,
		FieldCanonicalID: p.CanonicalID,
		FieldLocaleID:    strconv.Itoa(p.LocaleID),
		FieldName:        p.Name,
		FieldNameFolded:  domplace.Fold(p.Name),
		FieldSlug:        domplace.NormalizeSlug(p.Slug),
		FieldSlugEnglish: domplace.NormalizeSlug(p.SlugEnglish),
		FieldLat:         formatFloat(p.Location.Lat),
		FieldLon:         formatFloat(p.Location.Lon),
		FieldPoint:       fmt.Sprintf("POINT(%s %s)", formatFloat(p.Location.Lon), formatFloat(p.Location.Lat)),
		FieldUserCount:   strconv.Itoa(p.UserCount),
	}
}

func postalCodeFromHash(m map[string]string) (domplace.PostalCode, error) {
	center, err := pointFromHash(m)
	if err != nil {
		return domplace.PostalCode{}, err
	}
	bounds, err := boundsFromHash(m)
	if err != nil {
		return domplace.PostalCode{}, err
	}
	return domplace.PostalCode{
		Code:    m[FieldCode],
		PlaceID: m[FieldPlaceID],
		Center:  center,
		Bounds:  bounds,
	}, nil
}

func postalRangeFromHash(m map[string]string) (domplace.PostalRange, error) {
	from, err := strconv.Atoi(m[FieldFrom])
	if err != nil {
		return domplace.PostalRange{}, fmt.Errorf("invalid %s: %w", FieldFrom, err)
	}
	to, err := strconv.Atoi(m[FieldTo])
	if err != nil {
		return domplace.PostalRange{}, fmt.Errorf("invalid %s: %w", FieldTo, err)
	}
	center, err := pointFromHash(m)
	if err != nil {
		return domplace.PostalRange{}, err
	}
	bounds, err := boundsFromHash(m)
	if err != nil {
		return domplace.PostalRange{}, err
	}
	return domplace.PostalRange{
		From:    from,
		To:      to,
		PlaceID: m[FieldPlaceID],
		Center:  center,
		Bounds:  bounds,
	}, nil
}

func areaToHash(placeID string, center geo.Point, b geo.Bounds) map[string]string {
	return map[string]string{
		FieldPlaceID: placeID,
		FieldLat:     formatFloat(center.Lat),
		FieldLon:     formatFloat(center.Lon),
		FieldNorth:   formatFloat(b.North),
		FieldSouth:   formatFloat(b.South),
		FieldEast:    formatFloat(b.East),
		FieldWest:    formatFloat(b.West),
	}
}

func pointFromHash(m map[string]string) (geo.Point, error) {
	lat, err := strconv.ParseFloat(m[FieldLat], 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid %s: %w", FieldLat, err)
	}
	lon, err := strconv.ParseFloat(m[FieldLon], 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid %s: %w", FieldLon, err)
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}

func boundsFromHash(m map[string]string) (geo.Bounds, error) {
	var vals [4]float64
	for i, f := range []string{FieldNorth, FieldSouth, FieldEast, FieldWest} {
		v, err := strconv.ParseFloat(m[f], 64)
		if err != nil {
			return geo.Bounds{}, fmt.Errorf("invalid %s: %w", f, err)
		}
		vals[i] = v
	}
	b := geo.Bounds{North: vals[0], South: vals[1], East: vals[2], West: vals[3]}
	if err := b.Validate(); err != nil {
		return geo.Bounds{}, err
	}
	return b, nil
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
