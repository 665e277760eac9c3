package guidance

import (
	"time"
)

// StartupMode is the state of the startup detector
type StartupMode string

const (
	// Searching until the first fixes tell whether the train is at a station or between stations
	Searching StartupMode = "searching"
	// Fixed once the position is known, the announcement rules are running
	Fixed StartupMode = "fixed"
)

const (
	atStationRadius  = 200.0
	atStationMatches = 3
	searchTimeout    = 8 * time.Second
)

type startupOutcome int

const (
	stillSearching startupOutcome = iota
	betweenStations
	atStation
)

//startupDetector decides from the first fixes after a (re)start whether the train is standing at a station
type startupDetector struct {
	mode      StartupMode
	candidate string
	count     int
	since     time.Time
}

//begin enters Searching at now, the search timeout runs from here
func (s *startupDetector) begin(now time.Time) {
	*s = startupDetector{mode: Searching, since: now}
}

//observe feeds the nearest station of a fix. On a final outcome the detector moves to Fixed
func (s *startupDetector) observe(n Nearest, now time.Time) startupOutcome {
	if s.mode != Searching {
		return stillSearching
	}
	if n.Distance > atStationRadius {
		s.mode = Fixed
		return betweenStations
	}
	if n.StationId != s.candidate {
		s.candidate = n.StationId
		s.count = 0
	}
	s.count++
	if s.count >= atStationMatches || now.Sub(s.since) >= searchTimeout {
		s.mode = Fixed
		return atStation
	}
	return stillSearching
}
