// Package geo holds the polygon model of the parcel search: immutable
// lon/lat polygons with geodesic area, and ordered sets of them.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/paulmach/orb"
	"github.com/twpayne/go-geos"
)

// ErrMalformedGeometry is returned when a ring cannot form a valid polygon.
var ErrMalformedGeometry = errors.New("malformed geometry")

// GeoPolygon is one polygon boundary with optional holes, in degrees,
// longitude first. It is never modified after construction.
type GeoPolygon struct {
	polygon orb.Polygon
	geom    *geos.Geom
	area    float64
}

// NewGeoPolygon builds a polygon from an exterior ring and optional holes.
// Rings that are not closed are closed by repeating their first vertex.
// The area is computed once here, every later call reads the memoized value.
func NewGeoPolygon(exterior orb.Ring, holes ...orb.Ring) (*GeoPolygon, error) {
	polygon := make(orb.Polygon, 0, 1+len(holes))
	for i, r := range append([]orb.Ring{exterior}, holes...) {
		ring, err := closeRing(r)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("exterior ring: %w", err)
			}
			return nil, fmt.Errorf("hole %d: %w", i-1, err)
		}
		polygon = append(polygon, ring)
	}

	geom := geos.NewPolygon(toCoords(polygon))
	if !geom.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrMalformedGeometry, geom.IsValidReason())
	}

	area := GRS80.RingArea(polygon[0])
	for _, hole := range polygon[1:] {
		area -= GRS80.RingArea(hole)
	}

	return &GeoPolygon{
		polygon: polygon,
		geom:    geom,
		area:    math.Abs(area),
	}, nil
}

// closeRing copies r, appending the first vertex when the ring is open.
func closeRing(r orb.Ring) (orb.Ring, error) {
	distinct := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return nil, fmt.Errorf("%w: non-finite coordinate %v", ErrMalformedGeometry, p)
		}
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, fmt.Errorf("%w: ring has %d distinct vertices, need at least 3",
			ErrMalformedGeometry, len(distinct))
	}

	ring := make(orb.Ring, len(r), len(r)+1)
	copy(ring, r)
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

func toCoords(p orb.Polygon) [][][]float64 {
	coords := make([][][]float64, len(p))
	for i, ring := range p {
		coords[i] = make([][]float64, len(ring))
		for j, pt := range ring {
			coords[i][j] = []float64{pt[0], pt[1]}
		}
	}
	return coords
}

// Area returns the geodesic area on the GRS80 ellipsoid in square meters:
// exterior area minus the area of every hole. Always non-negative.
func (p *GeoPolygon) Area() float64 {
	return p.area
}

// Contains reports whether other lies entirely within p.
//
// GEOS semantics apply: other may touch the boundary of p, including sharing
// edges with it, and still be contained, as long as no point of other lies
// outside p. A polygon contains an identical copy of itself.
func (p *GeoPolygon) Contains(other *GeoPolygon) bool {
	return p.geom.Contains(other.geom)
}

// Intersects reports whether p and other share at least one point.
// Touching boundaries count.
func (p *GeoPolygon) Intersects(other *GeoPolygon) bool {
	return p.geom.Intersects(other.geom)
}

// Centroid returns the planar centroid of the polygon, holes accounted for.
func (p *GeoPolygon) Centroid() models.Location {
	c := p.geom.Centroid()
	return models.Location{Lon: c.X(), Lat: c.Y()}
}

// Bounds returns the lon/lat bounding box of the exterior ring.
func (p *GeoPolygon) Bounds() models.BoundingBox {
	b := p.polygon.Bound()
	return models.BoundingBox{
		BottomLeft: models.Location{Lon: b.Min[0], Lat: b.Min[1]},
		TopRight:   models.Location{Lon: b.Max[0], Lat: b.Max[1]},
	}
}

// Exterior returns a copy of the closed exterior ring.
func (p *GeoPolygon) Exterior() orb.Ring {
	return p.polygon[0].Clone()
}

// Holes returns the number of interior rings.
func (p *GeoPolygon) Holes() int {
	return len(p.polygon) - 1
}

// Polygon returns a copy of the underlying orb polygon.
func (p *GeoPolygon) Polygon() orb.Polygon {
	return p.polygon.Clone()
}
