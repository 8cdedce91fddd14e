package geo

import "math"

// Bounds is an axis-aligned lat/lon box. West > East means the box crosses
// the antimeridian.
type Bounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Validate rejects inverted latitudes and out-of-range values.
func (b Bounds) Validate() error {
	if b.South > b.North {
		return ErrInvalidBounds
	}
	if !ValidateCoordinates(b.North, b.East) || !ValidateCoordinates(b.South, b.West) {
		return ErrInvalidBounds
	}
	return nil
}

// CrossesAntimeridian reports whether the box wraps around longitude 180.
func (b Bounds) CrossesAntimeridian() bool {
	return b.West > b.East
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p Point) bool {
	if p.Lat < b.South || p.Lat > b.North {
		return false
	}
	if b.CrossesAntimeridian() {
		return p.Lon >= b.West || p.Lon <= b.East
	}
	return p.Lon >= b.West && p.Lon <= b.East
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point {
	lat := (b.North + b.South) / 2
	if !b.CrossesAntimeridian() {
		return Point{Lat: lat, Lon: (b.East + b.West) / 2}
	}
	return Point{Lat: lat, Lon: normalizeLon((b.West + b.East + 360) / 2)}
}

// ExtendBounds grows the box by marginKm on every side. Latitudes clamp at
// a single pole; a box grown past both poles is ErrInvalidBounds. If the
// grown box spans every longitude it becomes [-180, 180].
func ExtendBounds(b Bounds, marginKm float64) (Bounds, error) {
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	if marginKm < 0 || math.IsNaN(marginKm) {
		return Bounds{}, ErrInvalidBounds
	}

	dLat := degrees(marginKm / EarthRadiusKm)
	if b.North+dLat > 90 && b.South-dLat < -90 {
		return Bounds{}, ErrInvalidBounds
	}
	out := Bounds{
		North: math.Min(b.North+dLat, 90),
		South: math.Max(b.South-dLat, -90),
	}

	// Longitude degrees shrink towards the poles, so widen by the
	// narrowest spacing inside the grown box.
	maxLat := math.Max(math.Abs(out.North), math.Abs(out.South))
	cos := math.Cos(radians(maxLat))
	if cos < 1e-9 {
		out.West, out.East = -180, 180
		return out, nil
	}
	dLon := dLat / cos

	span := b.East - b.West
	if b.CrossesAntimeridian() {
		span += 360
	}
	if span+2*dLon >= 360 {
		out.West, out.East = -180, 180
		return out, nil
	}

	out.West = normalizeLon(b.West - dLon)
	out.East = normalizeLon(b.East + dLon)
	return out, nil
}
