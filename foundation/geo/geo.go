// Package geo provides distance calculations between coordinates
package geo

import (
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusMeters is the mean earth radius used by DistanceMeters
const EarthRadiusMeters = 6371000.0

const degreesToRadians = math.Pi / 180

//DistanceMeters calculates the great-circle distance between two pairs of coordinates using the haversine formula
//returns distance in METERS
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * degreesToRadians
	dLon := (lon2 - lon1) * degreesToRadians
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1*degreesToRadians)*math.Cos(lat2*degreesToRadians)*sinLon*sinLon
	//rounding can push a slightly above 1 for antipodal points
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

//OffsetNorth returns the latitude that lies meters north of lat along the same meridian.
//negative meters move south
func OffsetNorth(lat float64, meters float64) float64 {
	return lat + (meters/EarthRadiusMeters)/degreesToRadians
}

// Point is a single latitude, longitude pair
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

//EncodeTrack returns points in the encoded polyline format, suitable for drawing a breadcrumb on a map
func EncodeTrack(points []Point) string {
	if len(points) == 0 {
		return ""
	}
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}
