// Package rtree implements a bounding-box prefilter over a polygon set.
// It narrows the candidates of a pairwise scan without changing its result:
// candidates are always returned in set order.
package rtree

import (
	"sort"

	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/dhconnelly/rtreego"
)

const (
	// rtreego treats touching rectangles as disjoint, boxes are padded so
	// polygons that only share a boundary still come out as candidates.
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialPolygon wraps a set member to implement rtreego.Spatial
type spatialPolygon struct {
	index int
	rect  rtreego.Rect
}

func (sp *spatialPolygon) Bounds() rtreego.Rect {
	return sp.rect
}

// BoundsIndex is an R-Tree over the bounding boxes of one polygon set
type BoundsIndex struct {
	tree *rtreego.Rtree
	size int
}

// NewBoundsIndex indexes every member of set, keyed by its position
func NewBoundsIndex(set *geo.PolygonSet) (*BoundsIndex, error) {
	items := make([]rtreego.Spatial, 0, set.Len())
	for i, p := range set.All() {
		rect, err := toRect(p.Bounds())
		if err != nil {
			return nil, err
		}
		items = append(items, &spatialPolygon{index: i, rect: rect})
	}

	return &BoundsIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren, items...),
		size: len(items),
	}, nil
}

// Candidates returns, in ascending order, the positions of members whose
// bounding box intersects box
func (b *BoundsIndex) Candidates(box models.BoundingBox) []int {
	rect, err := toRect(box)
	if err != nil {
		return nil
	}

	results := b.tree.SearchIntersect(rect)
	indices := make([]int, 0, len(results))
	for _, result := range results {
		if item, ok := result.(*spatialPolygon); ok {
			indices = append(indices, item.index)
		}
	}
	sort.Ints(indices)
	return indices
}

// Count returns the number of indexed polygons
func (b *BoundsIndex) Count() int {
	return b.size
}

func toRect(box models.BoundingBox) (rtreego.Rect, error) {
	return rtreego.NewRectFromPoints(
		rtreego.Point{box.BottomLeft.Lon - tolerance, box.BottomLeft.Lat - tolerance},
		rtreego.Point{box.TopRight.Lon + tolerance, box.TopRight.Lat + tolerance},
	)
}
