package guidance

import (
	"github.com/OpenTransitTools/trainguide/business/data/topology"
	"github.com/OpenTransitTools/trainguide/foundation/geo"
)

// Nearest is the closest eligible station to a fix
type Nearest struct {
	StationId string  `json:"station_id"`
	Distance  float64 `json:"distance"`
}

//nearestStation finds the closest station with coordinates. When routeLock is set only stations on the locked
//line are eligible, which keeps junction stations shared with that line
func nearestStation(topo *topology.Topology, lat, lon float64, routeLock string) (Nearest, bool) {
	var best Nearest
	found := false
	for _, s := range topo.Stations() {
		if !s.HasCoordinates() {
			continue
		}
		if routeLock != "" && !topo.OnLine(s.ID, routeLock) {
			continue
		}
		d := geo.DistanceMeters(lat, lon, *s.Lat, *s.Lon)
		if !found || d < best.Distance {
			best = Nearest{StationId: s.ID, Distance: d}
			found = true
		}
	}
	return best, found
}

//resolveRoute evaluates the junction decision table against the unfiltered nearest station.
//Returns the first matching rule's line, false when no rule matches
func resolveRoute(topo *topology.Topology, n Nearest, direction topology.Direction, destination string) (string, bool) {
	category := topo.DestinationCategory(destination)
	for _, rule := range topo.JunctionRules() {
		if rule.Station != n.StationId || n.Distance > rule.Radius {
			continue
		}
		if rule.Direction != "" && rule.Direction != direction {
			continue
		}
		if rule.Category != "" && rule.Category != category {
			continue
		}
		return rule.Line, true
	}
	return "", false
}
