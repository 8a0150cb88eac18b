package cadastre

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/encoding/charmap"
)

// ErrRegionNotFound is returned when a city matches no row of the INSEE table
var ErrRegionNotFound = errors.New("region not found")

// Resolver maps city names to INSEE commune codes using the reference CSV:
// ';' separated, ISO-8859-1 encoded, code in the first column and upper-case
// city name in the second. The first line is a header.
type Resolver struct {
	path  string
	cache *gocache.Cache
}

func NewResolver(path string) *Resolver {
	return &Resolver{
		path:  path,
		cache: gocache.New(30*time.Minute, time.Hour),
	}
}

// Codes returns the sorted, distinct INSEE codes of city. A city spanning
// several communes (e.g. with arrondissements) yields several codes.
func (r *Resolver) Codes(city string) ([]string, error) {
	key := strings.ToUpper(strings.TrimSpace(city))
	if cached, ok := r.cache.Get(key); ok {
		return cached.([]string), nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open INSEE table: %w", err)
	}
	defer f.Close()

	codes, err := lookup(f, key)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: no INSEE code for city %q", ErrRegionNotFound, city)
	}

	r.cache.SetDefault(key, codes)
	return codes, nil
}

func lookup(src io.Reader, city string) ([]string, error) {
	reader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(src))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read INSEE header: %w", err)
	}

	seen := make(map[string]struct{})
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read INSEE table: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		if row[1] == city {
			seen[row[0]] = struct{}{}
		}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}
