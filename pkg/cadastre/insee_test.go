package cadastre

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inseeTable is ISO-8859-1 encoded: \xc9 is an upper-case E acute
const inseeTable = "Code INSEE;Commune;Code Postal\n" +
	"42218;SAINT-\xc9TIENNE;42000\n" +
	"75120;PARIS;75020\n" +
	"75101;PARIS;75001\n" +
	"75101;PARIS;75001\n" +
	"35238;RENNES;35000\n" +
	"99999\n"

func writeInsee(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "insee_code.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolverCodes(t *testing.T) {
	r := NewResolver(writeInsee(t, inseeTable))

	tests := []struct {
		city string
		want []string
	}{
		{"RENNES", []string{"35238"}},
		{"rennes", []string{"35238"}},
		{"  Paris ", []string{"75101", "75120"}},
		{"Saint-Étienne", []string{"42218"}},
	}
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			codes, err := r.Codes(tt.city)
			require.NoError(t, err)
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestResolverRegionNotFound(t *testing.T) {
	r := NewResolver(writeInsee(t, inseeTable))

	_, err := r.Codes("ATLANTIS")
	assert.ErrorIs(t, err, ErrRegionNotFound)

	// the header is not a city
	_, err = r.Codes("Commune")
	assert.ErrorIs(t, err, ErrRegionNotFound)
}

func TestResolverEmptyTable(t *testing.T) {
	r := NewResolver(writeInsee(t, ""))
	_, err := r.Codes("PARIS")
	assert.ErrorIs(t, err, ErrRegionNotFound)
}

func TestResolverMissingFile(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "missing.csv"))
	_, err := r.Codes("PARIS")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRegionNotFound)
}

func TestResolverCachesLookups(t *testing.T) {
	path := writeInsee(t, inseeTable)
	r := NewResolver(path)

	first, err := r.Codes("RENNES")
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	second, err := r.Codes("Rennes")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLookupIgnoresShortRows(t *testing.T) {
	codes, err := lookup(strings.NewReader(inseeTable), "99999")
	require.NoError(t, err)
	assert.Empty(t, codes)
}
