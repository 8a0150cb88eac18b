// Package links builds map URLs that show many points at once.
package links

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultBingBaseURL = "https://bing.com/maps/default.aspx"
	// BingPointLimit is the number of points one Bing Maps URL can carry
	BingPointLimit = 100
)

// ErrLengthMismatch is returned when longitudes and latitudes differ in length
var ErrLengthMismatch = errors.New("longitude and latitude counts differ")

// Builder turns parallel coordinate sequences into one URL per batch
type Builder interface {
	Limit() int
	Build(longitudes, latitudes []float64) ([]string, error)
}

// BingMaps builds Bing Maps URLs with numbered pushpins
type BingMaps struct {
	BaseURL string
	// PointLimit caps the points per URL, at most BingPointLimit
	PointLimit int
}

// NewBingMaps returns a builder for the public Bing Maps endpoint
func NewBingMaps() *BingMaps {
	return &BingMaps{BaseURL: DefaultBingBaseURL, PointLimit: BingPointLimit}
}

// Limit is the effective points per URL
func (b *BingMaps) Limit() int {
	if b.PointLimit <= 0 || b.PointLimit > BingPointLimit {
		return BingPointLimit
	}
	return b.PointLimit
}

// Build returns one URL per run of Limit() points, in input order
func (b *BingMaps) Build(longitudes, latitudes []float64) ([]string, error) {
	if len(longitudes) != len(latitudes) {
		return nil, fmt.Errorf("%w: %d longitudes, %d latitudes",
			ErrLengthMismatch, len(longitudes), len(latitudes))
	}

	limit := b.Limit()
	var urls []string
	for start := 0; start < len(longitudes); start += limit {
		end := min(start+limit, len(longitudes))
		urls = append(urls, b.url(longitudes[start:end], latitudes[start:end]))
	}
	return urls, nil
}

func (b *BingMaps) url(longitudes, latitudes []float64) string {
	base := b.BaseURL
	if base == "" {
		base = DefaultBingBaseURL
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("?sp=")
	for i := range longitudes {
		fmt.Fprintf(&sb, "point.%.5f_%.5f_%d~", latitudes[i], longitudes[i], i+1)
	}
	sb.WriteString("&style=h")
	return sb.String()
}
