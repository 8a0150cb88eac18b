package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Ellipsoid describes a reference ellipsoid by its equatorial radius (meters)
// and flattening.
type Ellipsoid struct {
	Radius     float64
	Flattening float64

	e   float64 // first eccentricity
	e2  float64
	qp  float64 // q at the pole
	rq2 float64 // squared authalic radius
}

// GRS80 is the reference ellipsoid used for all area computations.
var GRS80 = NewEllipsoid(6378137.0, 1/298.257222101)

// NewEllipsoid precomputes the authalic sphere of the ellipsoid.
func NewEllipsoid(radius, flattening float64) *Ellipsoid {
	e2 := flattening * (2 - flattening)
	el := &Ellipsoid{
		Radius:     radius,
		Flattening: flattening,
		e:          math.Sqrt(e2),
		e2:         e2,
	}
	el.qp = el.q(1)
	el.rq2 = radius * radius * el.qp / 2
	return el
}

// q is the authalic latitude function of sin(latitude).
func (el *Ellipsoid) q(sinPhi float64) float64 {
	if el.e == 0 {
		return 2 * sinPhi
	}
	es := el.e * sinPhi
	return (1 - el.e2) * (sinPhi/(1-es*es) - math.Log((1-es)/(1+es))/(2*el.e))
}

// AuthalicLatitude maps a geodetic latitude (degrees) to the latitude on the
// sphere of equal surface area (degrees).
func (el *Ellipsoid) AuthalicLatitude(lat float64) float64 {
	sinBeta := el.q(math.Sin(lat*math.Pi/180)) / el.qp
	sinBeta = math.Max(-1, math.Min(1, sinBeta))
	return math.Asin(sinBeta) * 180 / math.Pi
}

// AuthalicRadius returns the radius of the sphere with the same surface area.
func (el *Ellipsoid) AuthalicRadius() float64 {
	return math.Sqrt(el.rq2)
}

// RingArea returns the unsigned surface area of a lon/lat ring in square meters.
//
// The ring is mapped onto the authalic sphere, which preserves area exactly,
// and measured with the spherical line integral from orb/geo. orb assumes a
// sphere of radius orb.EarthRadius, so the result is rescaled.
func (el *Ellipsoid) RingArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	authalic := make(orb.Ring, len(r))
	for i, p := range r {
		authalic[i] = orb.Point{p[0], el.AuthalicLatitude(p[1])}
	}
	return orbgeo.Area(authalic) * el.rq2 / (orb.EarthRadius * orb.EarthRadius)
}
