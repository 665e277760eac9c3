// Package topology holds the static line, station and schedule tables a guidance session runs against
package topology

import (
	"fmt"
	"strings"
)

// Topology is an indexed, validated Network. It is immutable after New and safe for concurrent readers
type Topology struct {
	network      Network
	stations     map[string]*Station
	stationOrder []*Station
	lines        map[string]*Line
	lineOrder    []*Line
	// position of a station within each line it belongs to
	index           map[string]map[string]int
	linesOf         map[string][]string
	categories      map[string]string
	nonRevenueTypes map[string]bool
	specialClasses  map[string]bool
}

// New indexes network and checks every reference it makes. Bad data is rejected rather than corrected
func New(network Network) (*Topology, error) {
	t := Topology{
		network:         network,
		stations:        make(map[string]*Station),
		lines:           make(map[string]*Line),
		index:           make(map[string]map[string]int),
		linesOf:         make(map[string][]string),
		categories:      make(map[string]string),
		nonRevenueTypes: make(map[string]bool),
		specialClasses:  make(map[string]bool),
	}

	for i := range t.network.Stations {
		s := &t.network.Stations[i]
		if _, present := t.stations[s.ID]; present {
			return nil, fmt.Errorf("duplicate station id %s", s.ID)
		}
		if (s.Lat == nil) != (s.Lon == nil) {
			return nil, fmt.Errorf("station %s has only one of lat and lon", s.ID)
		}
		t.stations[s.ID] = s
		t.stationOrder = append(t.stationOrder, s)
	}

	for i := range t.network.Lines {
		l := &t.network.Lines[i]
		if _, present := t.lines[l.ID]; present {
			return nil, fmt.Errorf("duplicate line id %s", l.ID)
		}
		positions := make(map[string]int, len(l.Stations))
		for pos, stationID := range l.Stations {
			if _, ok := t.stations[stationID]; !ok {
				return nil, fmt.Errorf("line %s references unknown station %s", l.ID, stationID)
			}
			if _, repeated := positions[stationID]; repeated {
				return nil, fmt.Errorf("line %s lists station %s twice", l.ID, stationID)
			}
			positions[stationID] = pos
			t.linesOf[stationID] = append(t.linesOf[stationID], l.ID)
		}
		t.lines[l.ID] = l
		t.lineOrder = append(t.lineOrder, l)
		t.index[l.ID] = positions
	}

	for _, d := range t.network.Destinations {
		t.categories[d.Name] = d.Category
	}
	for _, nrType := range t.network.NonRevenue.Types {
		t.nonRevenueTypes[nrType] = true
	}
	for _, class := range t.network.SpecialClasses {
		t.specialClasses[class] = true
	}

	if err := t.checkReferences(); err != nil {
		return nil, err
	}
	return &t, nil
}

//checkReferences verifies that every table names stations and lines that exist
func (t *Topology) checkReferences() error {
	if ts := t.network.ThroughService; ts != nil {
		if _, ok := t.stations[ts.CutoffStation]; !ok {
			return fmt.Errorf("through service cutoff references unknown station %s", ts.CutoffStation)
		}
	}
	for _, j := range t.network.Junctions {
		if err := t.checkStationOnLine("junction", j.Station, j.Line); err != nil {
			return err
		}
	}
	for _, b := range t.network.Branches {
		if err := t.checkStationOnLine("branch", b.Station, b.Line); err != nil {
			return err
		}
	}
	for _, p := range t.network.Platforms {
		if _, ok := t.stations[p.Station]; !ok {
			return fmt.Errorf("platform %s references unknown station %s", p.Platform, p.Station)
		}
	}
	for i := range t.network.Reminders {
		r := &t.network.Reminders[i]
		if _, ok := t.stations[r.Station]; !ok {
			return fmt.Errorf("reminder %s references unknown station %s", r.Key, r.Station)
		}
		if r.Window != nil {
			if err := r.Window.parse(); err != nil {
				return fmt.Errorf("reminder %s window: %w", r.Key, err)
			}
		}
	}
	return nil
}

func (t *Topology) checkStationOnLine(table string, stationID string, lineID string) error {
	if _, ok := t.stations[stationID]; !ok {
		return fmt.Errorf("%s rule references unknown station %s", table, stationID)
	}
	if _, ok := t.lines[lineID]; !ok {
		return fmt.Errorf("%s rule at %s references unknown line %s", table, stationID, lineID)
	}
	if !t.OnLine(stationID, lineID) {
		return fmt.Errorf("%s rule station %s is not on line %s", table, stationID, lineID)
	}
	return nil
}

// Station returns the station with id
func (t *Topology) Station(id string) (*Station, bool) {
	s, ok := t.stations[id]
	return s, ok
}

// StationName returns the display name for id, or id itself when unknown
func (t *Topology) StationName(id string) string {
	if s, ok := t.stations[id]; ok {
		return s.Name
	}
	return id
}

// FindStation resolves a station id or display name
func (t *Topology) FindStation(ref string) (*Station, bool) {
	if s, ok := t.stations[ref]; ok {
		return s, true
	}
	ref = strings.TrimSpace(ref)
	for _, s := range t.stationOrder {
		if s.Name == ref {
			return s, true
		}
	}
	return nil, false
}

// Stations returns all stations in data file order
func (t *Topology) Stations() []*Station {
	return t.stationOrder
}

// Line returns the line with id
func (t *Topology) Line(id string) (*Line, bool) {
	l, ok := t.lines[id]
	return l, ok
}

// Lines returns all lines in data file order
func (t *Topology) Lines() []*Line {
	return t.lineOrder
}

// LinesOf returns the ids of every line stationID belongs to, in data file order
func (t *Topology) LinesOf(stationID string) []string {
	return t.linesOf[stationID]
}

// OnLine returns true if stationID is part of lineID's sequence
func (t *Topology) OnLine(stationID string, lineID string) bool {
	_, ok := t.index[lineID][stationID]
	return ok
}

// IsJunction returns true for stations shared by more than one line
func (t *Topology) IsJunction(stationID string) bool {
	return len(t.linesOf[stationID]) > 1
}

// DestinationCategory returns the routing category of a destination, falling back to the default category
func (t *Topology) DestinationCategory(destination string) string {
	if c, ok := t.categories[destination]; ok {
		return c
	}
	return t.network.DefaultCategory
}

// IsStopFor returns whether trainType is scheduled to stop at stationID.
// Stations or types missing from the stop pattern data are treated as stops
func (t *Topology) IsStopFor(stationID string, trainType string) bool {
	s, ok := t.stations[stationID]
	if !ok || s.StopPatterns == nil {
		return true
	}
	stop, ok := s.StopPatterns[trainType]
	if !ok {
		return true
	}
	return stop
}

// PassStations returns the set of stations trainType is scheduled to pass
func (t *Topology) PassStations(trainType string) StationSet {
	pass := make(StationSet)
	for _, s := range t.stationOrder {
		if !t.IsStopFor(s.ID, trainType) {
			pass[s.ID] = true
		}
	}
	return pass
}

// JunctionRules returns the route lock decision table in evaluation order
func (t *Topology) JunctionRules() []JunctionRule {
	return t.network.Junctions
}

// Reminders returns the special reminder rules
func (t *Topology) Reminders() []Reminder {
	return t.network.Reminders
}

// FullLengthCars is the car count that needs no stopping position caution, zero when not configured
func (t *Topology) FullLengthCars() int {
	return t.network.FullLengthCars
}

// IsNonRevenue returns true for train types that carry no passengers
func (t *Topology) IsNonRevenue(trainType string) bool {
	return t.nonRevenueTypes[trainType]
}

// IsSpecialClass returns true for train types that receive the station caution pair on arrival
func (t *Topology) IsSpecialClass(trainType string) bool {
	return t.specialClasses[trainType]
}

// MarkerLabel returns the stopping marker label for a train of cars length at stationID heading in direction
func (t *Topology) MarkerLabel(stationID string, cars int, direction Direction) string {
	s, ok := t.stations[stationID]
	if !ok {
		return ""
	}
	for _, m := range s.Markers {
		if m.Cars == cars && m.Direction == direction {
			return m.Label
		}
	}
	return ""
}

// Cautions returns the ordered caution pair for stationID, nil when none are configured
func (t *Topology) Cautions(stationID string) []string {
	s, ok := t.stations[stationID]
	if !ok {
		return nil
	}
	return s.Cautions
}
