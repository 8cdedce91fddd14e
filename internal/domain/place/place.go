// Package place models localized places (cities, neighbourhoods) and
// postal-code areas used to anchor geographic searches.
package place

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sitly-nl/matchsearch/internal/domain/geo"
)

// Place is a localized place record. Alternate-locale records point at
// their canonical record through CanonicalID.
type Place struct {
	ID          string
	CanonicalID string
	LocaleID    int
	Name        string
	Slug        string
	SlugEnglish string
	Location    geo.Point
	UserCount   int
}

// IsCanonical reports whether p is the canonical record.
func (p Place) IsCanonical() bool {
	return p.CanonicalID == "" || p.CanonicalID == p.ID
}

// MergeAlternate keeps canonical identity and location and takes the
// display fields of the alternate-locale record.
func (p Place) MergeAlternate(alt Place) Place {
	merged := p
	merged.LocaleID = alt.LocaleID
	if alt.Name != "" {
		merged.Name = alt.Name
	}
	if alt.Slug != "" {
		merged.Slug = alt.Slug
	}
	if alt.SlugEnglish != "" {
		merged.SlugEnglish = alt.SlugEnglish
	}
	return merged
}

// PostalCode is a postal area with a center and a bounding box.
type PostalCode struct {
	Code    string
	PlaceID string
	Center  geo.Point
	Bounds  geo.Bounds
}

// PostalRange maps a numeric range of postal codes to a place.
type PostalRange struct {
	From    int
	To      int
	PlaceID string
	Center  geo.Point
	Bounds  geo.Bounds
}

// Contains reports whether n falls in the range, both ends inclusive.
func (r PostalRange) Contains(n int) bool {
	return n >= r.From && n <= r.To
}

// PostalNumber returns the leading digits of a postal code, e.g. 1017 for
// "1017 AB". Codes without leading digits report false.
func PostalNumber(code string) (int, bool) {
	code = strings.TrimSpace(code)
	end := 0
	for end < len(code) && code[end] >= '0' && code[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(code[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeCode uppercases and strips spaces: "1017 ab" -> "1017AB".
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

// Fold lowercases s and strips diacritics so "Zürich" and "zurich" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// NormalizeSlug folds a URL slug and collapses separators to single dashes.
func NormalizeSlug(slug string) string {
	slug = Fold(slug)
	var b strings.Builder
	dash := false
	for _, r := range slug {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
