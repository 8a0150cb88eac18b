package search

import (
	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/rtree"
	"github.com/rs/zerolog/log"
)

const (
	DefaultOccupancyThreshold = 50.0
	DefaultTolerance          = 25.0
)

// AssemblyConfig controls an AssemblyMatcher. Zero thresholds take the defaults.
type AssemblyConfig struct {
	TargetArea float64
	// Tolerance is the half-width of the accepted combined area window
	Tolerance float64
	// OccupancyThreshold is the area a contained building must exceed
	// for its parcel to count as occupied
	OccupancyThreshold float64
	UseIndex           bool
	Progress           Progress
}

// Occupancy pairs an occupied parcel with its primary building
type Occupancy struct {
	ParcelIndex int
	Parcel      *geo.GeoPolygon
	Building    *geo.GeoPolygon
}

// Classification splits a parcel population. Every parcel appears in
// exactly one of Occupied and Free, each kept in parcel order.
type Classification struct {
	Occupied []Occupancy
	Free     []int
}

// AssemblyMatch is an occupied parcel combined with an adjacent free parcel
type AssemblyMatch struct {
	Occupied     Occupancy
	FreeIndex    int
	Free         *geo.GeoPolygon
	CombinedArea float64
	Buildings    []*geo.GeoPolygon
}

// Largest returns the building used to locate the match
func (m AssemblyMatch) Largest() *geo.GeoPolygon {
	return m.Buildings[0]
}

// AssemblyMatcher finds occupied parcels that reach the target area once
// merged with a neighbouring parcel that has no building
type AssemblyMatcher struct {
	target    float64
	tolerance float64
	threshold float64
	useIndex  bool
	progress  Progress
}

// NewAssemblyMatcher returns a matcher, replacing a non-positive tolerance
// or threshold with DefaultTolerance and DefaultOccupancyThreshold
func NewAssemblyMatcher(cfg AssemblyConfig) *AssemblyMatcher {
	m := &AssemblyMatcher{
		target:    cfg.TargetArea,
		tolerance: cfg.Tolerance,
		threshold: cfg.OccupancyThreshold,
		useIndex:  cfg.UseIndex,
		progress:  cfg.Progress,
	}
	if m.tolerance <= 0 {
		m.tolerance = DefaultTolerance
	}
	if m.threshold <= 0 {
		m.threshold = DefaultOccupancyThreshold
	}
	if m.progress == nil {
		m.progress = NopProgress
	}
	return m
}

// Classify marks a parcel occupied by the first building, in set order, that
// is larger than the threshold and contained in it. It is not necessarily the
// largest such building. Parcels without one are free.
func (m *AssemblyMatcher) Classify(parcels, buildings *geo.PolygonSet) Classification {
	var index *rtree.BoundsIndex
	if m.useIndex {
		index = m.buildIndex(buildings)
	}

	var c Classification
	for i, parcel := range parcels.All() {
		candidates := allIndices(buildings.Len())
		if index != nil {
			candidates = index.Candidates(parcel.Bounds())
		}

		occupied := false
		for _, j := range candidates {
			building := buildings.At(j)
			if building.Area() > m.threshold && parcel.Contains(building) {
				c.Occupied = append(c.Occupied, Occupancy{ParcelIndex: i, Parcel: parcel, Building: building})
				occupied = true
				break
			}
		}
		if !occupied {
			c.Free = append(c.Free, i)
		}
	}

	log.Debug().
		Int("occupied", len(c.Occupied)).
		Int("free", len(c.Free)).
		Msg("Classified parcels")

	return c
}

// Match classifies the parcels then pairs every occupied parcel with every
// intersecting free parcel whose combined area is within the tolerance of
// the target. Matches are ordered by occupied parcel, then free parcel.
func (m *AssemblyMatcher) Match(parcels, buildings *geo.PolygonSet) []AssemblyMatch {
	c := m.Classify(parcels, buildings)

	free := geo.NewPolygonSet(parcels.Category())
	for _, i := range c.Free {
		free.Add(parcels.At(i))
	}

	var index *rtree.BoundsIndex
	if m.useIndex {
		index = m.buildIndex(free)
	}

	low, high := m.target-m.tolerance, m.target+m.tolerance

	m.progress.Start(len(c.Occupied) * free.Len())
	defer m.progress.Done()

	var matches []AssemblyMatch
	for _, occ := range c.Occupied {
		candidates := allIndices(free.Len())
		if index != nil {
			candidates = index.Candidates(occ.Parcel.Bounds())
		}

		for _, k := range candidates {
			candidate := free.At(k)
			combined := occ.Parcel.Area() + candidate.Area()
			if combined < low || combined > high {
				continue
			}
			if !occ.Parcel.Intersects(candidate) {
				continue
			}
			matches = append(matches, AssemblyMatch{
				Occupied:     occ,
				FreeIndex:    c.Free[k],
				Free:         candidate,
				CombinedArea: combined,
				Buildings:    []*geo.GeoPolygon{occ.Building},
			})
		}
		m.progress.Add(free.Len())
	}

	return matches
}

// Window returns the accepted combined area range, bounds included
func (m *AssemblyMatcher) Window() (float64, float64) {
	return m.target - m.tolerance, m.target + m.tolerance
}

func (m *AssemblyMatcher) buildIndex(set *geo.PolygonSet) *rtree.BoundsIndex {
	index, err := rtree.NewBoundsIndex(set)
	if err != nil {
		log.Warn().Err(err).Str("category", string(set.Category())).
			Msg("Bounds index unavailable, scanning exhaustively")
		return nil
	}
	return index
}

func allIndices(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}
