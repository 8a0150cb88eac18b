// Package cadastre retrieves the Etalab cadastre GeoJSON files of a city and
// turns them into polygon sets.
package cadastre

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1F47E/parcel-finder/pkg/geo"
	"github.com/1F47E/parcel-finder/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultBaseURL = "https://cadastre.data.gouv.fr/data/etalab-cadastre/latest/geojson/communes/"

// Config locates the remote archive and the local working directories
type Config struct {
	BaseURL     string
	InseeFile   string
	DownloadDir string
	InputDir    string
	Timeout     time.Duration
	Parallel    int
}

// Client downloads, extracts and parses cadastre files
type Client struct {
	cfg      Config
	http     *http.Client
	resolver *Resolver
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.InseeFile == "" {
		cfg.InseeFile = "insee_code.csv"
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = os.TempDir()
	}
	if cfg.InputDir == "" {
		cfg.InputDir = "inputs"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}

	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		resolver: NewResolver(cfg.InseeFile),
	}
}

// FileURL returns the archive URL of one commune file
func (c *Client) FileURL(code string, category models.Category) string {
	department := code
	if len(code) > 2 {
		department = code[:2]
	}
	return fmt.Sprintf("%s%s/%s/cadastre-%s-%s.json.gz", c.cfg.BaseURL, department, code, code, category)
}

// File is one extracted commune file
type File struct {
	Code string
	Path string
}

type download struct {
	code    string
	url     string
	archive string
	dest    string
}

// Fetch makes sure the extracted GeoJSON of every commune of city is present
// in the input directory and returns them in INSEE code order. Files already
// extracted are neither downloaded nor extracted again.
func (c *Client) Fetch(ctx context.Context, city string, category models.Category) ([]File, error) {
	codes, err := c.resolver.Codes(city)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.cfg.InputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create input directory: %w", err)
	}

	downloads := make([]download, len(codes))
	for i, code := range codes {
		name := fmt.Sprintf("%s-%s-%d.json", code, category, i+1)
		downloads[i] = download{
			code:    code,
			url:     c.FileURL(code, category),
			archive: filepath.Join(c.cfg.DownloadDir, name+".gz"),
			dest:    filepath.Join(c.cfg.InputDir, name),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallel)
	for _, d := range downloads {
		g.Go(func() error {
			if _, err := os.Stat(d.dest); err == nil {
				log.Debug().Str("path", d.dest).Msg("Extracted file exists, skipping")
				return nil
			}
			if err := c.download(gctx, d); err != nil {
				return err
			}
			return extract(d.archive, d.dest)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make([]File, len(downloads))
	for i, d := range downloads {
		files[i] = File{Code: d.code, Path: d.dest}
	}
	return files, nil
}

// Load fetches then parses every file of city into one set, files in INSEE
// code order and features in file order
func (c *Client) Load(ctx context.Context, city string, category models.Category) (*geo.PolygonSet, error) {
	files, err := c.Fetch(ctx, city, category)
	if err != nil {
		return nil, err
	}

	set := geo.NewPolygonSet(category)
	for _, file := range files {
		polygons, err := ParseFile(file.Path)
		if err != nil {
			return nil, err
		}
		set.Add(polygons...)
	}

	log.Info().
		Str("city", city).
		Str("category", string(category)).
		Int("files", len(files)).
		Int("polygons", set.Len()).
		Msg("Loaded cadastre")

	return set, nil
}

func (c *Client) download(ctx context.Context, d download) error {
	log.Info().
		Str("code", d.code).
		Str("url", d.url).
		Str("path", d.archive).
		Msg("Downloading cadastre file")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", d.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %d", d.url, resp.StatusCode)
	}

	return writeFile(d.archive, resp.Body)
}

// extract gunzips src into dest
func extract(src, dest string) error {
	log.Info().Str("src", src).Str("dest", dest).Msg("Extracting")

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", src, err)
	}
	defer zr.Close()

	return writeFile(dest, zr)
}

// writeFile writes through a temporary file so an interrupted copy never
// leaves a partial file behind under the final name
func writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
