package models

// Category labels a polygon population, matching the cadastre file types.
type Category string

const (
	Parcels   Category = "parcelles"
	Buildings Category = "batiments"
)

// Location is a geographic position in degrees, longitude first
type Location struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location
	TopRight   Location
}

// Intersects reports whether the two boxes share any point, edges included
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.BottomLeft.Lon <= o.TopRight.Lon && o.BottomLeft.Lon <= b.TopRight.Lon &&
		b.BottomLeft.Lat <= o.TopRight.Lat && o.BottomLeft.Lat <= b.TopRight.Lat
}
