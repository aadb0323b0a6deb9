package types

import "math"

// Point is a WGS84 coordinate stored as plain lat/lng columns.
type Point struct {
	Lat float64 `gorm:"column:lat;not null" json:"lat"`
	Lng float64 `gorm:"column:lng;not null" json:"lng"`
}

// IsValid reports whether the coordinate is finite, in range, and not the null island.
func (p Point) IsValid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return false
	}
	return !(p.Lat == 0 && p.Lng == 0)
}
