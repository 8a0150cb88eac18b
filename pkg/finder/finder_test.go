package finder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/1F47E/parcel-finder/pkg/cadastre"
	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/links"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/1F47E/parcel-finder/pkg/report"
	"github.com/1F47E/parcel-finder/pkg/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	sets  map[models.Category]*geo.PolygonSet
	err   error
	calls []models.Category
}

func (m *memorySource) Load(_ context.Context, city string, category models.Category) (*geo.PolygonSet, error) {
	m.calls = append(m.calls, category)
	if m.err != nil {
		return nil, m.err
	}
	set, ok := m.sets[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cadastre.ErrRegionNotFound, city)
	}
	return set, nil
}

// village has a 500 m2 parcel holding a 100 m2 house, a 300 m2 parcel with
// nothing on it next door and a 450 m2 parcel with a 12 m2 shed
func village(t *testing.T) *memorySource {
	t.Helper()
	return &memorySource{sets: map[models.Category]*geo.PolygonSet{
		models.Parcels: geo.NewPolygonSet(models.Parcels,
			synth.MustRectMeters(0, 0, 20, 25),
			synth.MustRectMeters(20, 0, 12, 25),
			synth.MustRectMeters(100, 0, 18, 25),
		),
		models.Buildings: geo.NewPolygonSet(models.Buildings,
			synth.MustRectMeters(5, 5, 10, 10),
			synth.MustRectMeters(102, 2, 4, 3),
		),
	}}
}

func options() Options {
	return Options{Report: report.Config{Links: links.NewBingMaps()}}
}

func TestRun(t *testing.T) {
	for _, useIndex := range []bool{false, true} {
		t.Run(fmt.Sprintf("index=%t", useIndex), func(t *testing.T) {
			opts := options()
			opts.UseIndex = useIndex
			f := New(village(t), opts)

			var buf bytes.Buffer
			r, err := f.Run(context.Background(), Params{
				City:          "Village",
				TargetArea:    495,
				AreaPrecision: 10,
			}, &buf)
			require.NoError(t, err)

			require.Len(t, r.Lines, 1)
			assert.Contains(t, r.Lines[0], "1: 500.0 m2, buildings: ['100'] m2")
			assert.Equal(t, 1, r.Count)
			require.Len(t, r.URLs, 1)
			assert.Contains(t, buf.String(), "matches: 1\n")
		})
	}
}

func TestRunMinBuildingSize(t *testing.T) {
	f := New(village(t), options())

	// only the shed's parcel is in range and the shed is too small
	r, err := f.Run(context.Background(), Params{
		City:            "Village",
		TargetArea:      440,
		AreaPrecision:   20,
		MinBuildingSize: 20,
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, r.Count)

	r, err = f.Run(context.Background(), Params{
		City:          "Village",
		TargetArea:    440,
		AreaPrecision: 20,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count)
}

func TestRunNoMatches(t *testing.T) {
	f := New(village(t), options())

	var buf bytes.Buffer
	r, err := f.Run(context.Background(), Params{City: "Village", TargetArea: 10000}, &buf)
	require.NoError(t, err)
	assert.Empty(t, r.Lines)
	assert.Contains(t, buf.String(), "matches: 0\n")
}

func TestRunRegionNotFound(t *testing.T) {
	src := &memorySource{}
	f := New(src, options())

	_, err := f.Run(context.Background(), Params{City: "Atlantis", TargetArea: 500}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cadastre.ErrRegionNotFound)
	assert.Contains(t, err.Error(), "failed to load parcels")
	assert.Equal(t, []models.Category{models.Parcels}, src.calls)
}

func TestRunSourceError(t *testing.T) {
	boom := errors.New("connection refused")
	f := New(&memorySource{err: boom}, options())

	_, err := f.RunAssembly(context.Background(), Params{City: "Village", TargetArea: 500}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestRunInvalidParams(t *testing.T) {
	src := village(t)
	f := New(src, options())

	tests := []struct {
		name   string
		params Params
	}{
		{"missing city", Params{TargetArea: 500}},
		{"zero target", Params{City: "Village"}},
		{"negative precision", Params{City: "Village", TargetArea: 500, AreaPrecision: -1}},
		{"negative building size", Params{City: "Village", TargetArea: 500, MinBuildingSize: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Run(context.Background(), tt.params, nil)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, src.calls, "invalid parameters never reach the source")
}

func TestRunAssembly(t *testing.T) {
	f := New(village(t), options())

	// 500 + 300 = 800 is within the default 25 m2 tolerance of 790
	var buf bytes.Buffer
	r, err := f.RunAssembly(context.Background(), Params{City: "Village", TargetArea: 790}, &buf)
	require.NoError(t, err)

	require.Len(t, r.Lines, 1)
	assert.Contains(t, r.Lines[0], "1: 500.0 m2 + 300.0 m2 = 800.0 m2, building: 100 m2")
	assert.Equal(t, 1, r.Count)
	assert.Contains(t, buf.String(), "matches: 1\n")
}

func TestRunAssemblyTolerance(t *testing.T) {
	opts := options()
	opts.Tolerance = 5
	f := New(village(t), opts)

	r, err := f.RunAssembly(context.Background(), Params{City: "Village", TargetArea: 790}, nil)
	require.NoError(t, err)
	assert.Zero(t, r.Count)
}
