// Package geo computes geodesic distances for store adapters that cannot
// push the computation into the database.
package geo

import (
	"github.com/jftuga/geodist"

	"github.com/dropspot/dropspot/internal/model"
)

// Meters returns the geodesic distance between two points in meters on the
// WGS84 ellipsoid (Vincenty). Vincenty fails to converge for some nearly
// antipodal pairs; those fall back to the spherical haversine distance.
// Every caller must use this one function for both radius filtering and
// distance ordering so the two can never disagree.
func Meters(a, b model.LatLng) float64 {
	p1 := geodist.Coord{Lat: a.Latitude, Lon: a.Longitude}
	p2 := geodist.Coord{Lat: b.Latitude, Lon: b.Longitude}
	_, km, err := geodist.VincentyDistance(p1, p2)
	if err != nil {
		_, km = geodist.HaversineDistance(p1, p2)
	}
	return km * 1000
}
