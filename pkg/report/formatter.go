// Package report turns match results into the text report and the map link
// batches shown to the user.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/1F47E/parcel-finder/pkg/links"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/1F47E/parcel-finder/pkg/search"
	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultBatchSize      = 100
	DefaultNumberingWrap  = 100
	DefaultSeparatorWidth = 100
)

// Config controls a Formatter. Zero values take the defaults.
type Config struct {
	// BatchSize caps the points per coordinate batch
	BatchSize int
	// NumberingWrap restarts line numbers at 1 after this many entries
	NumberingWrap  int
	SeparatorWidth int
	Links          links.Builder
}

// Formatter renders matches. It holds no state between calls.
type Formatter struct {
	batchSize int
	wrap      int
	sepWidth  int
	links     links.Builder
}

// NewFormatter fills zero settings with the defaults. The batch size never
// exceeds the link builder limit.
func NewFormatter(cfg Config) *Formatter {
	f := &Formatter{
		batchSize: cfg.BatchSize,
		wrap:      cfg.NumberingWrap,
		sepWidth:  cfg.SeparatorWidth,
		links:     cfg.Links,
	}
	if f.batchSize <= 0 {
		f.batchSize = DefaultBatchSize
	}
	if f.links != nil && f.links.Limit() < f.batchSize {
		f.batchSize = f.links.Limit()
	}
	if f.wrap <= 0 {
		f.wrap = DefaultNumberingWrap
	}
	if f.sepWidth <= 0 {
		f.sepWidth = DefaultSeparatorWidth
	}
	return f
}

// Report is a rendered result set
type Report struct {
	Lines []string
	// Batches hold the centroid of each match's largest building, in match order
	Batches [][]models.Location
	URLs    []string
	// Count is the number of distinct matched parcels
	Count     int
	separator string
}

// Containment renders matches in the order they were produced. Each line
// shows the parcel area, every building area rounded to the unit, and the
// centroid of the largest building.
func (f *Formatter) Containment(matches []search.ContainmentMatch) (*Report, error) {
	r := &Report{Count: len(matches), separator: strings.Repeat("-", f.sepWidth)}

	centroids := make([]models.Location, 0, len(matches))
	for i, m := range matches {
		c := m.Largest().Centroid()
		centroids = append(centroids, c)

		areas := make([]string, len(m.Buildings))
		for j, b := range m.Buildings {
			areas[j] = fmt.Sprintf("'%.0f'", b.Area())
		}

		r.Lines = append(r.Lines, fmt.Sprintf("%d: %.1f m2, buildings: [%s] m2 -> (%.5f, %.5f)",
			f.number(i), m.ParcelArea, strings.Join(areas, ", "), c.Lon, c.Lat))
	}

	return f.finish(r, centroids)
}

// Assembly renders assembled pairs in production order
func (f *Formatter) Assembly(matches []search.AssemblyMatch) (*Report, error) {
	r := &Report{separator: strings.Repeat("-", f.sepWidth)}

	parcels := make(map[int]struct{})
	centroids := make([]models.Location, 0, len(matches))
	for i, m := range matches {
		parcels[m.Occupied.ParcelIndex] = struct{}{}

		c := m.Largest().Centroid()
		centroids = append(centroids, c)

		r.Lines = append(r.Lines, fmt.Sprintf("%d: %.1f m2 + %.1f m2 = %.1f m2, building: %.0f m2 -> (%.5f, %.5f)",
			f.number(i), m.Occupied.Parcel.Area(), m.Free.Area(), m.CombinedArea,
			m.Occupied.Building.Area(), c.Lon, c.Lat))
	}
	r.Count = len(parcels)

	return f.finish(r, centroids)
}

func (f *Formatter) number(i int) int {
	return 1 + i%f.wrap
}

func (f *Formatter) finish(r *Report, centroids []models.Location) (*Report, error) {
	r.Batches = Batch(centroids, f.batchSize)
	if f.links == nil {
		return r, nil
	}

	for _, batch := range r.Batches {
		lons := make([]float64, len(batch))
		lats := make([]float64, len(batch))
		for i, loc := range batch {
			lons[i] = loc.Lon
			lats[i] = loc.Lat
		}
		urls, err := f.links.Build(lons, lats)
		if err != nil {
			return nil, fmt.Errorf("failed to build map links: %w", err)
		}
		r.URLs = append(r.URLs, urls...)
	}
	return r, nil
}

// Batch splits points into consecutive groups of at most size points
func Batch(points []models.Location, size int) [][]models.Location {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches [][]models.Location
	for start := 0; start < len(points); start += size {
		end := min(start+size, len(points))
		batches = append(batches, points[start:end:end])
	}
	return batches
}

// WriteTo prints the report: match lines between separators, the map links,
// then the match count. Styling is dropped when w is not a terminal.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	style := lipgloss.NewRenderer(w).NewStyle().Faint(true)
	countStyle := lipgloss.NewRenderer(w).NewStyle().Bold(true)

	var sb strings.Builder
	sep := style.Render(r.separator)
	sb.WriteString(sep + "\n")
	for _, line := range r.Lines {
		sb.WriteString(line + "\n")
	}
	sb.WriteString(sep + "\n")
	for _, u := range r.URLs {
		sb.WriteString(u + "\n")
	}
	sb.WriteString(countStyle.Render(fmt.Sprintf("matches: %d", r.Count)) + "\n")

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
