// Package finder runs a complete search: load the parcels and buildings of a
// city, filter them by area, match them and write the report.
package finder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/1F47E/parcel-finder/pkg/report"
	"github.com/1F47E/parcel-finder/pkg/search"
	"github.com/rs/zerolog/log"
)

// Source supplies the polygons of one category for a city
type Source interface {
	Load(ctx context.Context, city string, category models.Category) (*geo.PolygonSet, error)
}

// Params describe one search
type Params struct {
	City            string
	TargetArea      float64
	AreaPrecision   float64
	MinBuildingSize float64
}

func (p Params) validate() error {
	if p.City == "" {
		return fmt.Errorf("city is required")
	}
	if p.TargetArea <= 0 {
		return fmt.Errorf("target area must be positive, got %g", p.TargetArea)
	}
	if p.AreaPrecision < 0 || p.MinBuildingSize < 0 {
		return fmt.Errorf("area precision and minimum building size must not be negative")
	}
	return nil
}

// Options tune the matchers and the report
type Options struct {
	UseIndex           bool
	Progress           search.Progress
	Report             report.Config
	OccupancyThreshold float64
	Tolerance          float64
}

// Finder wires a Source to the matchers and the formatter
type Finder struct {
	src  Source
	opts Options
}

func New(src Source, opts Options) *Finder {
	return &Finder{src: src, opts: opts}
}

// Run finds the parcels with an area in [target, target+precision] holding at
// least one building with an area in [min building size, target], then
// writes the report to w. Zero matches is a successful run.
func (f *Finder) Run(ctx context.Context, p Params, w io.Writer) (*report.Report, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	parcels, buildings, err := f.load(ctx, p.City)
	if err != nil {
		return nil, err
	}

	parcels = parcels.FilterAreaRange(p.TargetArea, p.TargetArea+p.AreaPrecision)
	buildings = buildings.FilterAreaRange(p.MinBuildingSize, p.TargetArea)

	start := time.Now()
	matcher := search.NewContainmentMatcher(search.ContainmentConfig{
		UseIndex: f.opts.UseIndex,
		Progress: f.opts.Progress,
	})
	matches := matcher.Match(parcels, buildings)
	log.Info().
		Int("matches", len(matches)).
		Bool("index", f.opts.UseIndex).
		Dur("elapsed", time.Since(start)).
		Msg("Containment search done")

	r, err := report.NewFormatter(f.opts.Report).Containment(matches)
	if err != nil {
		return nil, err
	}
	return r, f.write(r, w)
}

// RunAssembly finds occupied parcels that, together with an adjacent free
// parcel, reach the target area within the tolerance
func (f *Finder) RunAssembly(ctx context.Context, p Params, w io.Writer) (*report.Report, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	parcels, buildings, err := f.load(ctx, p.City)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	matcher := search.NewAssemblyMatcher(search.AssemblyConfig{
		TargetArea:         p.TargetArea,
		Tolerance:          f.opts.Tolerance,
		OccupancyThreshold: f.opts.OccupancyThreshold,
		UseIndex:           f.opts.UseIndex,
		Progress:           f.opts.Progress,
	})
	matches := matcher.Match(parcels, buildings)
	low, high := matcher.Window()
	log.Info().
		Int("matches", len(matches)).
		Float64("min", low).
		Float64("max", high).
		Dur("elapsed", time.Since(start)).
		Msg("Assembly search done")

	r, err := report.NewFormatter(f.opts.Report).Assembly(matches)
	if err != nil {
		return nil, err
	}
	return r, f.write(r, w)
}

func (f *Finder) load(ctx context.Context, city string) (*geo.PolygonSet, *geo.PolygonSet, error) {
	parcels, err := f.src.Load(ctx, city, models.Parcels)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load parcels: %w", err)
	}
	buildings, err := f.src.Load(ctx, city, models.Buildings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load buildings: %w", err)
	}
	return parcels, buildings, nil
}

func (f *Finder) write(r *report.Report, w io.Writer) error {
	if w == nil {
		return nil
	}
	if _, err := r.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
