package geo

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// RectDistance returns the minimum distance in meters from (lat, lon) to any point of the
// lat/lon rectangle [minLat,maxLat]x[minLon,maxLon]. Zero when the point lies inside.
func RectDistance(lat, lon, minLat, minLon, maxLat, maxLon float64) float64 {
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(minLat, minLon)).
		AddPoint(s2.LatLngFromDegrees(maxLat, maxLon))
	p := s2.LatLngFromDegrees(lat, lon)
	if rect.ContainsLatLng(p) {
		return 0
	}
	return angleToMeters(rect.DistanceToLatLng(p))
}

// S2Distance is the spherical distance in meters computed by s2; used to cross-check haversine.
func S2Distance(latOne, lonOne, latTwo, lonTwo float64) float64 {
	a := s2.LatLngFromDegrees(latOne, lonOne)
	b := s2.LatLngFromDegrees(latTwo, lonTwo)
	return angleToMeters(a.Distance(b))
}

func angleToMeters(a s1.Angle) float64 {
	return a.Radians() * earthRadiusM
}
