package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/1F47E/parcel-finder/pkg/finder"
	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/links"
	"github.com/1F47E/parcel-finder/pkg/logger"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/1F47E/parcel-finder/pkg/report"
	"github.com/1F47E/parcel-finder/pkg/search"
	"github.com/1F47E/parcel-finder/pkg/synth"
)

// memorySource serves fixed sets whatever the city
type memorySource map[models.Category]*geo.PolygonSet

func (m memorySource) Load(_ context.Context, _ string, category models.Category) (*geo.PolygonSet, error) {
	return m[category], nil
}

func main() {
	logger.Logger{Level: "info"}.Setup()

	// A street of four 20 x 25 m parcels. The first two hold a house, the
	// third only a shed, the last one is empty.
	parcels := geo.NewPolygonSet(models.Parcels,
		synth.MustRectMeters(0, 0, 20, 25),
		synth.MustRectMeters(20, 0, 20, 25),
		synth.MustRectMeters(40, 0, 20, 25),
		synth.MustRectMeters(60, 0, 20, 25),
	)
	buildings := geo.NewPolygonSet(models.Buildings,
		synth.MustRectMeters(2, 2, 10, 12),
		synth.MustRectMeters(22, 2, 12, 14),
		synth.MustRectMeters(23, 18, 4, 4),
		synth.MustRectMeters(42, 2, 5, 5),
	)

	f := finder.New(memorySource{models.Parcels: parcels, models.Buildings: buildings}, finder.Options{
		UseIndex: true,
		Progress: search.NopProgress,
		Report:   report.Config{Links: links.NewBingMaps()},
	})

	ctx := context.Background()

	fmt.Println("=== Parcels of about 500 m2 with a building ===")
	if _, err := f.Run(ctx, finder.Params{City: "example", TargetArea: 495, AreaPrecision: 10, MinBuildingSize: 10}, os.Stdout); err != nil {
		log.Fatal(err)
	}

	fmt.Println("\n=== Built parcels reaching 1000 m2 with a free neighbour ===")
	if _, err := f.RunAssembly(ctx, finder.Params{City: "example", TargetArea: 1000}, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
