package cadastre

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrUnexpectedGeometry is returned for features that are neither Polygon
// nor MultiPolygon
var ErrUnexpectedGeometry = fmt.Errorf("%w: unexpected geometry type", geo.ErrMalformedGeometry)

// ParseFile reads a GeoJSON feature collection from path
func ParseFile(path string) ([]*geo.GeoPolygon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	polygons, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return polygons, nil
}

// Parse decodes a feature collection. A Polygon feature yields one polygon,
// a MultiPolygon one polygon per member. Anything else fails the whole parse.
func Parse(r io.Reader) ([]*geo.GeoPolygon, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GeoJSON: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		if errors.Is(err, geojson.ErrInvalidGeometry) {
			return nil, fmt.Errorf("%w: %v", geo.ErrMalformedGeometry, err)
		}
		return nil, fmt.Errorf("failed to decode GeoJSON: %w", err)
	}

	var polygons []*geo.GeoPolygon
	for i, feature := range fc.Features {
		ps, err := Polygons(feature.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		polygons = append(polygons, ps...)
	}
	return polygons, nil
}

// Polygons converts one decoded geometry, expanding multipolygons
func Polygons(g orb.Geometry) ([]*geo.GeoPolygon, error) {
	records, err := polygonRecords(g)
	if err != nil {
		return nil, err
	}
	polygons := make([]*geo.GeoPolygon, 0, len(records))
	for _, record := range records {
		p, err := FromRecord(record)
		if err != nil {
			return nil, err
		}
		polygons = append(polygons, p)
	}
	return polygons, nil
}

// FromRecord builds a polygon from an exterior ring followed by its holes
func FromRecord(record orb.Polygon) (*geo.GeoPolygon, error) {
	if len(record) == 0 {
		return nil, fmt.Errorf("%w: polygon without rings", geo.ErrMalformedGeometry)
	}
	return geo.NewGeoPolygon(record[0], record[1:]...)
}

func polygonRecords(g orb.Geometry) ([]orb.Polygon, error) {
	switch g := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}, nil
	case orb.MultiPolygon:
		return []orb.Polygon(g), nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", ErrUnexpectedGeometry)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedGeometry, g.GeoJSONType())
	}
}
