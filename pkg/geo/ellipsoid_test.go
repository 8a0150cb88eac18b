package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestAuthalicLatitude(t *testing.T) {
	assert.Equal(t, 0.0, GRS80.AuthalicLatitude(0))
	assert.InDelta(t, 90.0, GRS80.AuthalicLatitude(90), 1e-9)
	assert.InDelta(t, -90.0, GRS80.AuthalicLatitude(-90), 1e-9)

	// authalic latitude is slightly smaller in magnitude than geodetic
	beta := GRS80.AuthalicLatitude(45)
	assert.Less(t, beta, 45.0)
	assert.InDelta(t, 45.0, beta, 0.2)
	assert.Equal(t, -beta, GRS80.AuthalicLatitude(-45))
}

func TestAuthalicRadius(t *testing.T) {
	// GRS80 authalic radius
	assert.InDelta(t, 6371007.181, GRS80.AuthalicRadius(), 1e-3)
}

func TestSphereMatchesSphericalFormula(t *testing.T) {
	sphere := NewEllipsoid(orb.EarthRadius, 0)
	r := square(10, 20, 1)

	lat1, lat2 := 20*math.Pi/180, 21*math.Pi/180
	want := orb.EarthRadius * orb.EarthRadius * (1 * math.Pi / 180) * (math.Sin(lat2) - math.Sin(lat1))

	assert.InEpsilon(t, want, sphere.RingArea(r), 1e-9)
}

func TestRingAreaDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, GRS80.RingArea(nil))
	assert.Equal(t, 0.0, GRS80.RingArea(orb.Ring{{0, 0}, {1, 1}}))
}
