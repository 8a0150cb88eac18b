package search

import (
	"testing"

	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/1F47E/parcel-finder/pkg/synth"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Progress that remembers what it was told
type recorder struct {
	total int
	added int
	done  int
}

func (r *recorder) Start(total int) { r.total = total }
func (r *recorder) Add(n int)       { r.added += n }
func (r *recorder) Done()           { r.done++ }

func rect(t testing.TB, lon, lat, width, height float64) *geo.GeoPolygon {
	t.Helper()
	p, err := synth.Rect(lon, lat, width, height)
	require.NoError(t, err)
	return p
}

// box builds a rectangle from its corners, so shared edges are exact
func box(t testing.TB, minLon, minLat, maxLon, maxLat float64) *geo.GeoPolygon {
	t.Helper()
	p, err := geo.NewGeoPolygon(orb.Ring{
		{minLon, minLat}, {minLon, maxLat}, {maxLon, maxLat}, {maxLon, minLat}, {minLon, minLat},
	})
	require.NoError(t, err)
	return p
}

func bothModes(t *testing.T, fn func(t *testing.T, useIndex bool)) {
	t.Run("exhaustive", func(t *testing.T) { fn(t, false) })
	t.Run("indexed", func(t *testing.T) { fn(t, true) })
}

func TestContainmentSingleBuilding(t *testing.T) {
	bothModes(t, func(t *testing.T, useIndex bool) {
		parcel, err := geo.NewGeoPolygon(orb.Ring{{0, 0}, {0, 0.001}, {0.001, 0.001}, {0.001, 0}, {0, 0}})
		require.NoError(t, err)
		building := rect(t, 0.0002, 0.0002, 0.0003, 0.0003)

		matches := NewContainmentMatcher(ContainmentConfig{UseIndex: useIndex}).Match(
			geo.NewPolygonSet(models.Parcels, parcel),
			geo.NewPolygonSet(models.Buildings, building),
		)

		require.Len(t, matches, 1)
		assert.Equal(t, 0, matches[0].ParcelIndex)
		assert.Same(t, parcel, matches[0].Parcel)
		assert.Equal(t, parcel.Area(), matches[0].ParcelArea)
		require.Len(t, matches[0].Buildings, 1)
		assert.Same(t, building, matches[0].Largest())
		assert.InDelta(t, 1107.8, matches[0].Largest().Area(), 0.1)
	})
}

func TestContainmentNoMatch(t *testing.T) {
	bothModes(t, func(t *testing.T, useIndex bool) {
		parcels := geo.NewPolygonSet(models.Parcels,
			rect(t, 0, 0, 0.001, 0.001),
			rect(t, 0.002, 0, 0.001, 0.001),
		)
		buildings := geo.NewPolygonSet(models.Buildings, rect(t, 0.005, 0.005, 0.0002, 0.0002))

		matches := NewContainmentMatcher(ContainmentConfig{UseIndex: useIndex}).Match(parcels, buildings)
		assert.Empty(t, matches)
	})
}

func TestContainmentIgnoresPartialAndEnclosing(t *testing.T) {
	bothModes(t, func(t *testing.T, useIndex bool) {
		parcels := geo.NewPolygonSet(models.Parcels, box(t, 0, 0, 0.001, 0.001))
		buildings := geo.NewPolygonSet(models.Buildings,
			box(t, 0.0008, 0.0002, 0.0012, 0.0004), // crosses the east edge
			box(t, -0.001, -0.001, 0.002, 0.002),   // covers the parcel
			box(t, 0.001, 0.0002, 0.0012, 0.0004),  // outside, touching the edge
			box(t, 0.0006, 0.0002, 0.001, 0.0004),  // inside, on the east edge
		)

		matches := NewContainmentMatcher(ContainmentConfig{UseIndex: useIndex}).Match(parcels, buildings)
		require.Len(t, matches, 1)
		require.Len(t, matches[0].Buildings, 1)
		assert.Same(t, buildings.At(3), matches[0].Buildings[0])
	})
}

func TestContainmentOrdersBuildingsByArea(t *testing.T) {
	bothModes(t, func(t *testing.T, useIndex bool) {
		parcel := rect(t, 0, 0, 0.01, 0.01)

		// 15 shapes, 10 identical copies each, interleaved so that equal
		// areas are spread over the scan
		buildings := geo.NewPolygonSet(models.Buildings)
		position := make(map[*geo.GeoPolygon]int)
		for range 10 {
			for shape := range 15 {
				side := 0.0001 * float64(1+shape%5)
				lon := 0.0006 * float64(shape)
				lat := 0.0006 * float64(shape/5)
				b := rect(t, lon, lat, side, side)
				position[b] = buildings.Len()
				buildings.Add(b)
			}
		}
		require.Equal(t, 150, buildings.Len())

		matches := NewContainmentMatcher(ContainmentConfig{UseIndex: useIndex}).Match(
			geo.NewPolygonSet(models.Parcels, parcel), buildings)

		require.Len(t, matches, 1)
		got := matches[0].Buildings
		require.Len(t, got, 150)
		for k := 1; k < len(got); k++ {
			prev, cur := got[k-1], got[k]
			require.GreaterOrEqual(t, prev.Area(), cur.Area())
			if prev.Area() == cur.Area() {
				assert.Less(t, position[prev], position[cur], "ties keep scan order")
			}
		}
		assert.Same(t, got[0], matches[0].Largest())
	})
}

func TestContainmentParcelOrder(t *testing.T) {
	bothModes(t, func(t *testing.T, useIndex bool) {
		parcels := geo.NewPolygonSet(models.Parcels,
			rect(t, 0, 0, 0.001, 0.001),
			rect(t, 0.001, 0, 0.001, 0.001),
			rect(t, 0.002, 0, 0.001, 0.001),
		)
		// buildings listed in reverse parcel order
		buildings := geo.NewPolygonSet(models.Buildings,
			rect(t, 0.0022, 0.0002, 0.0002, 0.0002),
			rect(t, 0.0002, 0.0002, 0.0002, 0.0002),
		)

		matches := NewContainmentMatcher(ContainmentConfig{UseIndex: useIndex}).Match(parcels, buildings)
		require.Len(t, matches, 2)
		assert.Equal(t, 0, matches[0].ParcelIndex)
		assert.Equal(t, 2, matches[1].ParcelIndex)
	})
}

func TestContainmentDistinctParcelsWithEqualArea(t *testing.T) {
	bothModes(t, func(t *testing.T, useIndex bool) {
		a := rect(t, 0, 0, 0.001, 0.001)
		b := rect(t, 0, 0, 0.001, 0.001)
		building := rect(t, 0.0002, 0.0002, 0.0002, 0.0002)

		matches := NewContainmentMatcher(ContainmentConfig{UseIndex: useIndex}).Match(
			geo.NewPolygonSet(models.Parcels, a, b),
			geo.NewPolygonSet(models.Buildings, building),
		)
		require.Len(t, matches, 2)
		assert.Same(t, a, matches[0].Parcel)
		assert.Same(t, b, matches[1].Parcel)
	})
}

func TestContainmentIndexMatchesExhaustive(t *testing.T) {
	parcels, buildings, err := synth.Grid(synth.GridConfig{
		Size:               8,
		ParcelSide:         20,
		BuildingsPerParcel: 3,
		Straddling:         0.25,
		Seed:               42,
	})
	require.NoError(t, err)

	exhaustive := NewContainmentMatcher(ContainmentConfig{}).Match(parcels, buildings)
	indexed := NewContainmentMatcher(ContainmentConfig{UseIndex: true}).Match(parcels, buildings)

	require.NotEmpty(t, exhaustive)
	assert.Equal(t, exhaustive, indexed)

	again := NewContainmentMatcher(ContainmentConfig{}).Match(parcels, buildings)
	assert.Equal(t, exhaustive, again)
}

func TestContainmentProgress(t *testing.T) {
	parcels := geo.NewPolygonSet(models.Parcels,
		rect(t, 0, 0, 0.001, 0.001),
		rect(t, 0.002, 0, 0.001, 0.001),
	)
	buildings := geo.NewPolygonSet(models.Buildings,
		rect(t, 0.0002, 0.0002, 0.0002, 0.0002),
		rect(t, 0.0022, 0.0002, 0.0002, 0.0002),
		rect(t, 0.01, 0.01, 0.0002, 0.0002),
	)

	for _, useIndex := range []bool{false, true} {
		rec := &recorder{}
		NewContainmentMatcher(ContainmentConfig{UseIndex: useIndex, Progress: rec}).Match(parcels, buildings)
		assert.Equal(t, 6, rec.total)
		assert.Equal(t, 6, rec.added)
		assert.Equal(t, 1, rec.done)
	}
}

func BenchmarkContainment(b *testing.B) {
	parcels, buildings, err := synth.Grid(synth.GridConfig{
		Size:               20,
		ParcelSide:         20,
		BuildingsPerParcel: 3,
		Straddling:         0.1,
		Seed:               1,
	})
	require.NoError(b, err)

	for _, mode := range []struct {
		name     string
		useIndex bool
	}{{"exhaustive", false}, {"indexed", true}} {
		b.Run(mode.name, func(b *testing.B) {
			m := NewContainmentMatcher(ContainmentConfig{UseIndex: mode.useIndex})
			for i := 0; i < b.N; i++ {
				_ = m.Match(parcels, buildings)
			}
		})
	}
}
