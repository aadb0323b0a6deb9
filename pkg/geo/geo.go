// Package geo holds the spherical helpers used by near queries and the
// blocked-route penalty. Distances are kilometres unless stated otherwise.
package geo

import (
	"math"

	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

const earthRadiusKm = 6371.0088

// DistanceKm returns the haversine distance between two points.
func DistanceKm(a, b types.Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceMeters is DistanceKm scaled to metres.
func DistanceMeters(a, b types.Point) float64 {
	return DistanceKm(a, b) * 1000
}

// Box is a lat/lng bounding box used as an index-friendly prefilter. When
// MinLng > MaxLng the box crosses the antimeridian and covers lng >= MinLng
// or lng <= MaxLng.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// CrossesAntimeridian reports whether the longitude range wraps past ±180.
func (b Box) CrossesAntimeridian() bool {
	return b.MinLng > b.MaxLng
}

// Contains reports whether p falls inside the box.
func (b Box) Contains(p types.Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return p.Lng >= b.MinLng || p.Lng <= b.MaxLng
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// BoundingBox returns a box that contains every point within radiusKm of center.
func BoundingBox(center types.Point, radiusKm float64) Box {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	box := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	// A circle touching a pole spans every meridian.
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		return box
	}
	dLng := dLat / math.Cos(toRad(center.Lat))
	if dLng >= 180 {
		return box
	}
	box.MinLng = wrapLng(center.Lng - dLng)
	box.MaxLng = wrapLng(center.Lng + dLng)
	return box
}

// wrapLng maps a longitude into [-180, 180].
func wrapLng(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	wrapped := math.Mod(lng+180, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped - 180
}

// Midpoint returns the arithmetic midpoint of a short segment.
func Midpoint(a, b types.Point) types.Point {
	return types.Point{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
}

// PointToSegmentKm approximates the distance from p to segment ab using an
// equirectangular projection centred on p.
func PointToSegmentKm(p, a, b types.Point) float64 {
	ax, ay := project(a, p)
	bx, by := project(b, p)
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(ax, ay)
	}
	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	cx := ax + t*dx
	cy := ay + t*dy
	return math.Hypot(cx, cy)
}

func project(pt, origin types.Point) (float64, float64) {
	x := toRad(wrapLng(pt.Lng-origin.Lng)) * math.Cos(toRad(origin.Lat)) * earthRadiusKm
	y := toRad(pt.Lat-origin.Lat) * earthRadiusKm
	return x, y
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
