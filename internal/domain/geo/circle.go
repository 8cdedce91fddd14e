package geo

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// DefaultCircleSegments is the vertex count used when callers pass zero.
const DefaultCircleSegments = 32

// CircleRing approximates a circle with a closed ring of segments+1 points.
// Vertices run clockwise starting due north; the last point repeats the first.
func CircleRing(center Point, radiusKm float64, segments int) ([]Point, error) {
	if radiusKm <= 0 {
		return nil, ErrInvalidRadius
	}
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if segments < 3 {
		segments = DefaultCircleSegments
	}

	ring := make([]Point, 0, segments+1)
	for i := 0; i < segments; i++ {
		bearing := 360 * float64(i) / float64(segments)
		ring = append(ring, Destination(center, bearing, radiusKm))
	}
	ring = append(ring, ring[0])
	return ring, nil
}

// CirclePolygon is CircleRing as a go-geom polygon in lon/lat (XY) order.
func CirclePolygon(center Point, radiusKm float64, segments int) (*geom.Polygon, error) {
	ring, err := CircleRing(center, radiusKm, segments)
	if err != nil {
		return nil, err
	}

	coords := make([]geom.Coord, len(ring))
	for i, p := range ring {
		coords[i] = geom.Coord{p.Lon, p.Lat}
	}

	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return nil, fmt.Errorf("build circle polygon: %w", err)
	}
	return poly.SetSRID(4326), nil
}

// CircleWKT renders the circle approximation as a WKT POLYGON.
func CircleWKT(center Point, radiusKm float64, segments int) (string, error) {
	poly, err := CirclePolygon(center, radiusKm, segments)
	if err != nil {
		return "", err
	}
	s, err := wkt.Marshal(poly)
	if err != nil {
		return "", fmt.Errorf("encode circle wkt: %w", err)
	}
	return s, nil
}
