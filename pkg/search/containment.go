// Package search implements the two parcel matching strategies: buildings
// contained in a parcel, and occupied parcels assembled with an adjacent
// free parcel.
package search

import (
	"sort"

	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/rtree"
	"github.com/rs/zerolog/log"
)

// ContainmentMatch is one parcel and the buildings it fully contains,
// largest first. Buildings of equal area keep their scan order.
type ContainmentMatch struct {
	ParcelIndex int
	Parcel      *geo.GeoPolygon
	ParcelArea  float64
	Buildings   []*geo.GeoPolygon
}

// Largest returns the biggest contained building
func (m ContainmentMatch) Largest() *geo.GeoPolygon {
	return m.Buildings[0]
}

// ContainmentConfig controls a ContainmentMatcher
type ContainmentConfig struct {
	// UseIndex prefilters building candidates with a bounding-box R-Tree.
	// The matches are identical to the exhaustive scan.
	UseIndex bool
	Progress Progress
}

// ContainmentMatcher records every building strictly contained in each parcel
type ContainmentMatcher struct {
	useIndex bool
	progress Progress
}

// NewContainmentMatcher returns a matcher; a nil Progress reports nothing
func NewContainmentMatcher(cfg ContainmentConfig) *ContainmentMatcher {
	p := cfg.Progress
	if p == nil {
		p = NopProgress
	}
	return &ContainmentMatcher{useIndex: cfg.UseIndex, progress: p}
}

// Match scans every parcel against every building. Matches come back in the
// order parcels first received a building, which is parcel order.
func (m *ContainmentMatcher) Match(parcels, buildings *geo.PolygonSet) []ContainmentMatch {
	collector := newContainmentCollector(parcels)

	m.progress.Start(parcels.Len() * buildings.Len())
	defer m.progress.Done()

	var index *rtree.BoundsIndex
	if m.useIndex {
		var err error
		if index, err = rtree.NewBoundsIndex(buildings); err != nil {
			log.Warn().Err(err).Msg("Bounds index unavailable, scanning exhaustively")
			index = nil
		}
	}

	if index == nil {
		for i, j := range parcels.IndexedPairs(buildings) {
			m.progress.Add(1)
			if parcels.At(i).Contains(buildings.At(j)) {
				collector.add(i, buildings.At(j))
			}
		}
	} else {
		for i, parcel := range parcels.All() {
			for _, j := range index.Candidates(parcel.Bounds()) {
				if parcel.Contains(buildings.At(j)) {
					collector.add(i, buildings.At(j))
				}
			}
			m.progress.Add(buildings.Len())
		}
	}

	return collector.sorted()
}

// containmentCollector accumulates matches in first-seen order
type containmentCollector struct {
	parcels  *geo.PolygonSet
	position map[int]int
	matches  []ContainmentMatch
}

func newContainmentCollector(parcels *geo.PolygonSet) *containmentCollector {
	return &containmentCollector{
		parcels:  parcels,
		position: make(map[int]int),
	}
}

func (c *containmentCollector) add(parcelIndex int, building *geo.GeoPolygon) {
	pos, ok := c.position[parcelIndex]
	if !ok {
		parcel := c.parcels.At(parcelIndex)
		pos = len(c.matches)
		c.position[parcelIndex] = pos
		c.matches = append(c.matches, ContainmentMatch{
			ParcelIndex: parcelIndex,
			Parcel:      parcel,
			ParcelArea:  parcel.Area(),
		})
	}
	c.matches[pos].Buildings = append(c.matches[pos].Buildings, building)
}

// sorted returns the matches with a fresh, area-descending building list each
func (c *containmentCollector) sorted() []ContainmentMatch {
	out := make([]ContainmentMatch, len(c.matches))
	for i, match := range c.matches {
		buildings := append([]*geo.GeoPolygon(nil), match.Buildings...)
		sort.SliceStable(buildings, func(a, b int) bool {
			return buildings[a].Area() > buildings[b].Area()
		})
		match.Buildings = buildings
		out[i] = match
	}
	return out
}
