package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/1F47E/parcel-finder/pkg/links"
	"github.com/1F47E/parcel-finder/pkg/logger"
	"github.com/1F47E/parcel-finder/pkg/report"
	"github.com/1F47E/parcel-finder/pkg/search"
	"github.com/1F47E/parcel-finder/pkg/synth"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type BenchmarkResult struct {
	Mode          string
	Parcels       int
	Buildings     int
	Comparisons   int
	TotalDuration time.Duration
	Matches       int
	Output        []byte
}

var (
	gridSize   int
	parcelSide float64
	perParcel  int
	straddling float64
	seed       int64
	target     float64
	runs       int
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Compare the exhaustive and indexed matchers on a synthetic grid",
	Long: `Generate a grid of adjacent square parcels with random buildings, run the
containment and assembly searches with and without the R-Tree prefilter, check
that both modes produce the same report and print the timings.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().IntVarP(&gridSize, "grid", "g", 40, "Parcels per grid side")
	rootCmd.Flags().Float64Var(&parcelSide, "side", 20, "Parcel side in meters")
	rootCmd.Flags().IntVarP(&perParcel, "buildings", "b", 3, "Buildings per parcel")
	rootCmd.Flags().Float64Var(&straddling, "straddling", 0.1, "Share of buildings crossing a parcel border")
	rootCmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	rootCmd.Flags().Float64VarP(&target, "target", "t", 400, "Target area in m2")
	rootCmd.Flags().IntVarP(&runs, "runs", "n", 3, "Runs per mode")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger.Logger{Level: logLevel, Format: "console"}.Setup()

	parcels, buildings, err := synth.Grid(synth.GridConfig{
		Size:               gridSize,
		ParcelSide:         parcelSide,
		BuildingsPerParcel: perParcel,
		Straddling:         straddling,
		Seed:               seed,
	})
	if err != nil {
		return err
	}
	log.Info().Int("parcels", parcels.Len()).Int("buildings", buildings.Len()).Msg("Grid generated")

	formatter := report.NewFormatter(report.Config{Links: links.NewBingMaps()})

	containment := func(useIndex bool) ([]byte, int, error) {
		matches := search.NewContainmentMatcher(search.ContainmentConfig{UseIndex: useIndex}).
			Match(parcels, buildings)
		r, err := formatter.Containment(matches)
		if err != nil {
			return nil, 0, err
		}
		return render(r), r.Count, nil
	}
	assembly := func(useIndex bool) ([]byte, int, error) {
		matches := search.NewAssemblyMatcher(search.AssemblyConfig{TargetArea: target, UseIndex: useIndex}).
			Match(parcels, buildings)
		r, err := formatter.Assembly(matches)
		if err != nil {
			return nil, 0, err
		}
		return render(r), r.Count, nil
	}

	out := cmd.OutOrStdout()
	for _, bench := range []struct {
		name        string
		comparisons int
		fn          func(bool) ([]byte, int, error)
	}{
		{"containment", parcels.Len() * buildings.Len(), containment},
		{"assembly", parcels.Len()*buildings.Len() + parcels.Len()*parcels.Len(), assembly},
	} {
		exhaustive, err := measure(bench.name+"/exhaustive", false, bench.fn)
		if err != nil {
			return err
		}
		indexed, err := measure(bench.name+"/indexed", true, bench.fn)
		if err != nil {
			return err
		}
		if !bytes.Equal(exhaustive.Output, indexed.Output) {
			return fmt.Errorf("%s: indexed report differs from the exhaustive one", bench.name)
		}

		for _, res := range []BenchmarkResult{exhaustive, indexed} {
			res.Parcels = parcels.Len()
			res.Buildings = buildings.Len()
			res.Comparisons = bench.comparisons
			printResult(out, res)
		}
		fmt.Fprintf(out, "Speedup: %.1fx\n\n",
			exhaustive.TotalDuration.Seconds()/indexed.TotalDuration.Seconds())
	}
	fmt.Fprintf(out, "CPU Cores: %d\n", runtime.NumCPU())
	return nil
}

// measure keeps the fastest of the runs
func measure(mode string, useIndex bool, fn func(bool) ([]byte, int, error)) (BenchmarkResult, error) {
	res := BenchmarkResult{Mode: mode, TotalDuration: time.Duration(1<<63 - 1)}
	for range max(runs, 1) {
		start := time.Now()
		output, matches, err := fn(useIndex)
		if err != nil {
			return res, err
		}
		if elapsed := time.Since(start); elapsed < res.TotalDuration {
			res.TotalDuration = elapsed
		}
		res.Output = output
		res.Matches = matches
	}
	return res, nil
}

func render(r *report.Report) []byte {
	var buf bytes.Buffer
	_, _ = r.WriteTo(&buf)
	return buf.Bytes()
}

func printResult(w io.Writer, res BenchmarkResult) {
	fmt.Fprintf(w, "=== %s ===\n", res.Mode)
	fmt.Fprintf(w, "Parcels: %d\n", res.Parcels)
	fmt.Fprintf(w, "Buildings: %d\n", res.Buildings)
	fmt.Fprintf(w, "Pairs (exhaustive): %d\n", res.Comparisons)
	fmt.Fprintf(w, "Best Duration: %v\n", res.TotalDuration)
	fmt.Fprintf(w, "Matched Parcels: %d\n", res.Matches)
}
