package geo

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean radius of Earth used for great-circle math.
const EarthRadiusKm = 6371.0

var (
	// ErrInvalidBounds is returned when a bounding box is inverted or out of range.
	ErrInvalidBounds = errors.New("invalid bounds")
	// ErrInvalidRadius is returned for non-positive circle radii.
	ErrInvalidRadius = errors.New("invalid radius")
	// ErrInvalidPoint is returned for coordinates outside the WGS84 range.
	ErrInvalidPoint = errors.New("invalid coordinates")
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Validate checks that latitude is in [-90,90] and longitude in [-180,180].
func (p Point) Validate() error {
	if !ValidateCoordinates(p.Lat, p.Lon) {
		return ErrInvalidPoint
	}
	return nil
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// HaversineKm returns the great-circle distance in kilometers between two points.
func HaversineKm(a, b Point) float64 {
	lat1r := radians(a.Lat)
	lat2r := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Destination returns the point reached by travelling distKm from p along
// the initial bearing (degrees clockwise from north).
func Destination(p Point, bearingDeg, distKm float64) Point {
	lat1 := radians(p.Lat)
	lon1 := radians(p.Lon)
	brng := radians(bearingDeg)
	ang := distKm / EarthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(ang)*math.Cos(lat1),
		math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Point{Lat: degrees(lat2), Lon: normalizeLon(degrees(lon2))}
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

// normalizeLon wraps a longitude into [-180, 180].
func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
