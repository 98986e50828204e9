// Package utils holds small geographic helpers shared by the normalizer, the
// stop index and the HTTP handlers.
package utils

import "math"

// RadiusOfEarthInMeters is the mean Earth radius.
const RadiusOfEarthInMeters = 6371010.0

const degToRad = math.Pi / 180

// CoordinateBounds is a latitude/longitude box.
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Distance returns the great-circle distance between two points in meters.
// Points less than 0.2 degrees apart on both axes use the equirectangular
// approximation, which is accurate to centimeters at city scale.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if math.Abs(lat2-lat1) < 0.2 && math.Abs(lon2-lon1) < 0.2 {
		x := (lon2 - lon1) * degToRad * math.Cos((lat1+lat2)/2*degToRad)
		y := (lat2 - lat1) * degToRad
		return RadiusOfEarthInMeters * math.Hypot(x, y)
	}

	phi1, phi2 := lat1*degToRad, lat2*degToRad
	dLambda := (lon2 - lon1) * degToRad

	y := math.Hypot(
		math.Cos(phi2)*math.Sin(dLambda),
		math.Cos(phi1)*math.Sin(phi2)-math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda),
	)
	x := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return RadiusOfEarthInMeters * math.Atan2(y, x)
}

// CalculateBounds returns the box enclosing a circle of radius meters.
func CalculateBounds(lat, lon, radius float64) CoordinateBounds {
	latOffset := radius / RadiusOfEarthInMeters / degToRad
	lonOffset := radius / (math.Cos(lat*degToRad) * RadiusOfEarthInMeters) / degToRad
	return CoordinateBounds{
		MinLat: lat - latOffset,
		MaxLat: lat + latOffset,
		MinLon: lon - lonOffset,
		MaxLon: lon + lonOffset,
	}
}

// Extend grows b to include the point. A zero box adopts the point.
func (b CoordinateBounds) Extend(lat, lon float64, first bool) CoordinateBounds {
	if first {
		return CoordinateBounds{MinLat: lat, MaxLat: lat, MinLon: lon, MaxLon: lon}
	}
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLon = math.Max(b.MaxLon, lon)
	return b
}

// Center returns the midpoint of the box.
func (b CoordinateBounds) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Contains reports whether the point lies in the box, edges included.
func (b CoordinateBounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// IsOutOfBounds returns true only if the inner bounds have no overlap
// with the outer bounds.
func IsOutOfBounds(inner, outer CoordinateBounds) bool {
	return inner.MaxLat < outer.MinLat ||
		inner.MinLat > outer.MaxLat ||
		inner.MaxLon < outer.MinLon ||
		inner.MinLon > outer.MaxLon
}

// SamePosition reports whether two coordinates agree within tolerance degrees
// on both axes.
func SamePosition(lat1, lon1, lat2, lon2, tolerance float64) bool {
	return math.Abs(lat1-lat2) <= tolerance && math.Abs(lon1-lon2) <= tolerance
}
