package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/1F47E/parcel-finder/pkg/cadastre"
	"github.com/1F47E/parcel-finder/pkg/config"
	"github.com/1F47E/parcel-finder/pkg/finder"
	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/links"
	"github.com/1F47E/parcel-finder/pkg/logger"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/1F47E/parcel-finder/pkg/postgis"
	"github.com/1F47E/parcel-finder/pkg/report"
	"github.com/1F47E/parcel-finder/pkg/search"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	exitError          = 1
	exitRegionNotFound = 2
	exitMalformed      = 3
)

var (
	configFile string
	logLevel   string
	logFormat  string
	noIndex    bool
	source     string

	areaPrecision   float64
	minBuildingSize float64
	importPostGIS   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "parcel-finder",
	Short: "Find cadastral parcels of a given area holding buildings",
	Long: `Search the French cadastre of a city for parcels whose area falls in a target
range and that contain buildings, or for built parcels that reach a target area
together with an adjacent empty parcel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		if cmd.Flags().Changed("source") {
			cfg.Source = source
		}
		if noIndex {
			cfg.Search.UseIndex = false
		}
		logger.Logger{Level: cfg.Log.Level, Format: cfg.Log.Format}.Setup()
		return cfg.Validate()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <city> <target_area>",
	Short: "Find parcels of the target area containing buildings",
	Long: `List the parcels with an area between target_area and target_area+precision
that contain at least one building with an area between min_building_size and
target_area.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

var assembleCmd = &cobra.Command{
	Use:   "assemble <city> <target_area>",
	Short: "Find built parcels reaching the target area with an adjacent free parcel",
	Args:  cobra.ExactArgs(2),
	RunE:  runAssemble,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <city>",
	Short: "Download and extract the cadastre files of a city",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&source, "source", config.SourceEtalab, "Polygon source (etalab, postgis)")
	rootCmd.PersistentFlags().BoolVar(&noIndex, "no-index", false, "Disable the R-Tree prefilter")

	searchCmd.Flags().Float64VarP(&areaPrecision, "precision", "p", 0, "Accepted parcel area above the target, in m2")
	searchCmd.Flags().Float64VarP(&minBuildingSize, "min-building-size", "s", 0, "Minimum building area, in m2")

	fetchCmd.Flags().BoolVar(&importPostGIS, "import", false, "Import the parsed polygons into PostGIS")

	rootCmd.AddCommand(searchCmd, assembleCmd, fetchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode prints err and maps it to the process exit status
func exitCode(err error) int {
	switch {
	case errors.Is(err, cadastre.ErrRegionNotFound):
		fmt.Fprintf(os.Stderr, "no such region: %v\n", err)
		return exitRegionNotFound
	case errors.Is(err, geo.ErrMalformedGeometry):
		fmt.Fprintf(os.Stderr, "malformed input data: %v\n", err)
		return exitMalformed
	default:
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	target, err := parseArea(args[1])
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("precision") {
		areaPrecision = cfg.Search.AreaPrecision
	}
	if !cmd.Flags().Changed("min-building-size") {
		minBuildingSize = cfg.Search.MinBuildingSize
	}

	f, closer, err := newFinder()
	if err != nil {
		return err
	}
	defer closer()

	_, err = f.Run(cmd.Context(), finder.Params{
		City:            args[0],
		TargetArea:      target,
		AreaPrecision:   areaPrecision,
		MinBuildingSize: minBuildingSize,
	}, cmd.OutOrStdout())
	return err
}

func runAssemble(cmd *cobra.Command, args []string) error {
	target, err := parseArea(args[1])
	if err != nil {
		return err
	}

	f, closer, err := newFinder()
	if err != nil {
		return err
	}
	defer closer()

	_, err = f.RunAssembly(cmd.Context(), finder.Params{City: args[0], TargetArea: target}, cmd.OutOrStdout())
	return err
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := cadastre.NewClient(cfg.Cadastre.ClientConfig())

	var store *postgis.Store
	if importPostGIS {
		var err error
		store, err = postgis.NewStore(cfg.PostGIS.StoreConfig(), cadastre.NewResolver(cfg.Cadastre.InseeFile))
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.InitSchema(ctx); err != nil {
			return err
		}
	}

	for _, category := range []models.Category{models.Parcels, models.Buildings} {
		files, err := client.Fetch(ctx, args[0], category)
		if err != nil {
			return err
		}
		for _, file := range files {
			fmt.Fprintln(cmd.OutOrStdout(), file.Path)
			if store == nil {
				continue
			}
			polygons, err := cadastre.ParseFile(file.Path)
			if err != nil {
				return err
			}
			if err := store.Import(ctx, file.Code, geo.NewPolygonSet(category, polygons...)); err != nil {
				return err
			}
		}

		if store != nil {
			rows, err := store.Count(ctx, category)
			if err != nil {
				return err
			}
			log.Info().
				Str("category", string(category)).
				Int64("rows", rows).
				Msg("PostGIS table size")
		}
	}
	return nil
}

// newFinder builds the finder over the configured source. The returned
// function releases the source.
func newFinder() (*finder.Finder, func(), error) {
	var src finder.Source
	closer := func() {}

	switch cfg.Source {
	case config.SourcePostGIS:
		store, err := postgis.NewStore(cfg.PostGIS.StoreConfig(), cadastre.NewResolver(cfg.Cadastre.InseeFile))
		if err != nil {
			return nil, nil, err
		}
		src = store
		closer = func() { _ = store.Close() }
	default:
		src = cadastre.NewClient(cfg.Cadastre.ClientConfig())
	}
	log.Debug().Str("source", cfg.Source).Bool("index", cfg.Search.UseIndex).Msg("Source selected")

	return finder.New(src, finder.Options{
		UseIndex: cfg.Search.UseIndex,
		Progress: progressFor(cfg.Report.Progress),
		Report: report.Config{
			BatchSize:      cfg.Report.BatchSize,
			NumberingWrap:  cfg.Report.NumberingWrap,
			SeparatorWidth: cfg.Report.SeparatorWidth,
			Links:          links.NewBingMaps(),
		},
		OccupancyThreshold: cfg.Assembly.OccupancyThreshold,
		Tolerance:          cfg.Assembly.Tolerance,
	}), closer, nil
}

func progressFor(mode string) search.Progress {
	switch mode {
	case config.ProgressAlways:
		return search.NewBar(os.Stderr)
	case config.ProgressNever:
		return search.NopProgress
	default:
		return search.AutoProgress(os.Stderr)
	}
}

func parseArea(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target area %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("target area must be positive, got %g", v)
	}
	return v, nil
}
