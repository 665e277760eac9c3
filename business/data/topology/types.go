package topology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTransitTools/trainguide/foundation/daytype"
)

// Direction of travel along a line. Increasing station index is Down, decreasing is Up
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts the english names and the japanese 上り / 下り
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "上り":
		return Up, nil
	case "down", "下り":
		return Down, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Valid returns true for Up and Down
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// step is the index increment when travelling in direction d
func (d Direction) step() int {
	if d == Down {
		return 1
	}
	return -1
}

// Station is a physical station. Stations without coordinates are never returned by nearest station searches
type Station struct {
	ID   string   `yaml:"id" validate:"required"`
	Name string   `yaml:"name" validate:"required"`
	Lat  *float64 `yaml:"lat" validate:"omitempty,latitude"`
	Lon  *float64 `yaml:"lon" validate:"omitempty,longitude"`
	// StopPatterns maps a train type to whether it is scheduled to stop. A missing type means stop
	StopPatterns map[string]bool `yaml:"stop_patterns"`
	Markers      []Marker        `yaml:"markers" validate:"dive"`
	// Cautions are announced in order on arrival of a special class train
	Cautions []string `yaml:"cautions" validate:"omitempty,len=2,dive,required"`
}

// HasCoordinates returns true when the station has a location
func (s *Station) HasCoordinates() bool {
	return s.Lat != nil && s.Lon != nil
}

// Marker is a platform stopping marker for a train of a given length travelling in one direction
type Marker struct {
	Cars      int       `yaml:"cars" validate:"gt=0"`
	Direction Direction `yaml:"direction" validate:"oneof=up down"`
	Label     string    `yaml:"label" validate:"required"`
}

// Line is an ordered station sequence
type Line struct {
	ID       string   `yaml:"id" validate:"required"`
	Name     string   `yaml:"name"`
	Stations []string `yaml:"stations" validate:"min=2,dive,required"`
}

// Destination assigns a destination display name to a routing category
type Destination struct {
	Name     string `yaml:"name" validate:"required"`
	Category string `yaml:"category" validate:"required"`
}

// ThroughService marks a destination category that leaves the network at CutoffStation when travelling up.
// Next stop searches return nothing beyond the cutoff
type ThroughService struct {
	Category      string `yaml:"category" validate:"required"`
	CutoffStation string `yaml:"cutoff_station" validate:"required"`
}

// JunctionRule resolves the route lock when the unfiltered nearest station is Station within Radius.
// Empty Direction or Category match anything
type JunctionRule struct {
	Station   string    `yaml:"station" validate:"required"`
	Direction Direction `yaml:"direction" validate:"omitempty,oneof=up down"`
	Category  string    `yaml:"category"`
	Radius    float64   `yaml:"radius" validate:"gt=0"`
	Line      string    `yaml:"line" validate:"required"`
}

// BranchRule selects the line a next stop search continues on when it starts at Station
type BranchRule struct {
	Station   string    `yaml:"station" validate:"required"`
	Direction Direction `yaml:"direction" validate:"omitempty,oneof=up down"`
	Category  string    `yaml:"category"`
	Line      string    `yaml:"line" validate:"required"`
}

// TrainNumberRange maps an inclusive train number range to a type and destination pair.
// Even numbers run up to DestinationEven, odd numbers run down to DestinationOdd
type TrainNumberRange struct {
	From            int    `yaml:"from" validate:"gte=0"`
	To              int    `yaml:"to" validate:"gtefield=From"`
	Type            string `yaml:"type" validate:"required"`
	DestinationEven string `yaml:"destination_even"`
	DestinationOdd  string `yaml:"destination_odd"`
}

// NonRevenue lists the types that carry no passengers and their operational subtypes
type NonRevenue struct {
	Types    []string            `yaml:"types"`
	Subtypes []NonRevenueSubtype `yaml:"subtypes" validate:"dive"`
}

// NonRevenueSubtype names the operational purpose of one non revenue train on a day type
type NonRevenueSubtype struct {
	TrainNumber int             `yaml:"train_number" validate:"gt=0"`
	DayType     daytype.DayType `yaml:"day_type" validate:"oneof=weekday holiday"`
	Subtype     string          `yaml:"subtype" validate:"required"`
}

// Platform assigns trains to a platform at a station on a day type
type Platform struct {
	DayType      daytype.DayType `yaml:"day_type" validate:"oneof=weekday holiday"`
	Station      string          `yaml:"station" validate:"required"`
	Platform     string          `yaml:"platform" validate:"required"`
	TrainNumbers []int           `yaml:"train_numbers" validate:"min=1"`
}

// ReminderMode selects whether a reminder fires when entering or leaving its radius
type ReminderMode string

const (
	Enter ReminderMode = "enter"
	Exit  ReminderMode = "exit"
)

// Reminder is a special announcement fired on a radius crossing at one station, optionally gated by
// direction, destination and time of day
type Reminder struct {
	Key                 string       `yaml:"key" validate:"required"`
	Station             string       `yaml:"station" validate:"required"`
	Direction           Direction    `yaml:"direction" validate:"omitempty,oneof=up down"`
	Destination         string       `yaml:"destination"`
	DestinationContains string       `yaml:"destination_contains"`
	Mode                ReminderMode `yaml:"mode" validate:"oneof=enter exit"`
	Radius              float64      `yaml:"radius" validate:"gt=0"`
	Window              *TimeWindow  `yaml:"window"`
	Text                string       `yaml:"text" validate:"required"`
}

// TimeWindow is a local time of day range given as "HH:MM". From after To wraps midnight
type TimeWindow struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`

	from, to int
}

// parse fills the minute of day fields
func (w *TimeWindow) parse() error {
	var err error
	if w.from, err = minuteOfDay(w.From); err != nil {
		return err
	}
	if w.to, err = minuteOfDay(w.To); err != nil {
		return err
	}
	return nil
}

// Contains returns true if minute (0-1439) is inside the window, From inclusive and To exclusive
func (w *TimeWindow) Contains(minute int) bool {
	if w.from <= w.to {
		return minute >= w.from && minute < w.to
	}
	return minute >= w.from || minute < w.to
}

func minuteOfDay(hhmm string) (int, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("time %q is not HH:MM", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("time %q has an invalid hour", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q has an invalid minute", hhmm)
	}
	return (h*60 + m) % (24 * 60), nil
}

// Network is the topology and schedule data file
type Network struct {
	Lines           []Line             `yaml:"lines" validate:"min=1,dive"`
	Stations        []Station          `yaml:"stations" validate:"min=1,dive"`
	Destinations    []Destination      `yaml:"destinations" validate:"dive"`
	DefaultCategory string             `yaml:"default_category"`
	ThroughService  *ThroughService    `yaml:"through_service"`
	Junctions       []JunctionRule     `yaml:"junctions" validate:"dive"`
	Branches        []BranchRule       `yaml:"branches" validate:"dive"`
	TrainNumbers    []TrainNumberRange `yaml:"train_numbers" validate:"dive"`
	NonRevenue      NonRevenue         `yaml:"non_revenue"`
	SpecialClasses  []string           `yaml:"special_classes"`
	FullLengthCars  int                `yaml:"full_length_cars" validate:"gte=0"`
	Platforms       []Platform         `yaml:"platforms" validate:"dive"`
	Reminders       []Reminder         `yaml:"reminders" validate:"dive"`
}
