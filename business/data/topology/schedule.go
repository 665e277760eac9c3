package topology

import (
	"github.com/OpenTransitTools/trainguide/foundation/daytype"
)

// TrainNumberMatch is the identity a train number resolves to
type TrainNumberMatch struct {
	TrainNumber int
	Type        string
	Destination string
	Direction   Direction
}

// LookupTrainNumber finds the range containing trainNumber, the last matching row wins.
// Even numbers run up, odd numbers run down
func (t *Topology) LookupTrainNumber(trainNumber int) (TrainNumberMatch, bool) {
	var found *TrainNumberRange
	for i := range t.network.TrainNumbers {
		row := &t.network.TrainNumbers[i]
		if trainNumber >= row.From && trainNumber <= row.To {
			found = row
		}
	}
	if found == nil {
		return TrainNumberMatch{}, false
	}
	match := TrainNumberMatch{TrainNumber: trainNumber, Type: found.Type}
	if trainNumber%2 == 0 {
		match.Direction = Up
		match.Destination = found.DestinationEven
	} else {
		match.Direction = Down
		match.Destination = found.DestinationOdd
	}
	return match, true
}

// NonRevenueSubtype returns the operational subtype of a non revenue train, or defaultSubtype when not listed
func (t *Topology) NonRevenueSubtype(trainNumber int, dayType daytype.DayType, defaultSubtype string) string {
	for _, s := range t.network.NonRevenue.Subtypes {
		if s.TrainNumber == trainNumber && s.DayType == dayType {
			return s.Subtype
		}
	}
	return defaultSubtype
}

// ScheduledPlatform returns the platform trainNumber is assigned at stationID on dayType, or "" when unassigned
func (t *Topology) ScheduledPlatform(dayType daytype.DayType, stationID string, trainNumber int) string {
	for _, p := range t.network.Platforms {
		if p.DayType != dayType || p.Station != stationID {
			continue
		}
		for _, n := range p.TrainNumbers {
			if n == trainNumber {
				return p.Platform
			}
		}
	}
	return ""
}
