package geo

import (
	"iter"

	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/rs/zerolog/log"
)

// PolygonSet is an ordered collection of polygons sharing one category.
type PolygonSet struct {
	category models.Category
	polygons []*GeoPolygon
}

// NewPolygonSet creates a set holding polygons, in order. The slice is
// copied. Use Add during ingestion only.
func NewPolygonSet(category models.Category, polygons ...*GeoPolygon) *PolygonSet {
	return &PolygonSet{
		category: category,
		polygons: append([]*GeoPolygon(nil), polygons...),
	}
}

// Add appends polygons in order.
func (s *PolygonSet) Add(polygons ...*GeoPolygon) {
	s.polygons = append(s.polygons, polygons...)
}

// Category labels every member
func (s *PolygonSet) Category() models.Category {
	return s.category
}

// Len returns the number of members
func (s *PolygonSet) Len() int {
	return len(s.polygons)
}

// At returns the i-th polygon in set order.
func (s *PolygonSet) At(i int) *GeoPolygon {
	return s.polygons[i]
}

// All iterates the polygons with their position in the set.
func (s *PolygonSet) All() iter.Seq2[int, *GeoPolygon] {
	return func(yield func(int, *GeoPolygon) bool) {
		for i, p := range s.polygons {
			if !yield(i, p) {
				return
			}
		}
	}
}

// FilterAreaRange returns a new set with the members whose area lies in
// [min, max], in their original order. The receiver is left untouched.
// The number of survivors is logged.
func (s *PolygonSet) FilterAreaRange(min, max float64) *PolygonSet {
	filtered := &PolygonSet{category: s.category}
	for _, p := range s.polygons {
		if a := p.Area(); min <= a && a <= max {
			filtered.polygons = append(filtered.polygons, p)
		}
	}

	log.Info().
		Str("category", string(s.category)).
		Float64("min", min).
		Float64("max", max).
		Int("kept", len(filtered.polygons)).
		Int("total", len(s.polygons)).
		Msg("Filtered by area")

	return filtered
}

// Pairs enumerates every (s[i], other[j]) combination exactly once,
// s-major, both in set order. The sequence can be ranged over repeatedly.
func (s *PolygonSet) Pairs(other *PolygonSet) iter.Seq2[*GeoPolygon, *GeoPolygon] {
	return func(yield func(*GeoPolygon, *GeoPolygon) bool) {
		for _, a := range s.polygons {
			for _, b := range other.polygons {
				if !yield(a, b) {
					return
				}
			}
		}
	}
}

// Concat returns a new set holding the members of s followed by those of
// other. The category of s is kept; the category of other is not checked.
func (s *PolygonSet) Concat(other *PolygonSet) *PolygonSet {
	polygons := make([]*GeoPolygon, 0, len(s.polygons)+len(other.polygons))
	polygons = append(polygons, s.polygons...)
	polygons = append(polygons, other.polygons...)
	return &PolygonSet{category: s.category, polygons: polygons}
}

// IndexedPairs is Pairs expressed as positions: (i, j) for s.At(i), other.At(j).
func (s *PolygonSet) IndexedPairs(other *PolygonSet) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for i := range s.polygons {
			for j := range other.polygons {
				if !yield(i, j) {
					return
				}
			}
		}
	}
}
