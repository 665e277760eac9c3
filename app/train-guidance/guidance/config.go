package guidance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTransitTools/trainguide/business/data/topology"
	"github.com/OpenTransitTools/trainguide/foundation/daytype"
)

// SecondLeg is the identity a train takes over from ChangeStation onward
type SecondLeg struct {
	Type          string `json:"type"`
	Destination   string `json:"destination"`
	Cars          int    `json:"cars"`
	TrainNumber   string `json:"train_number"`
	ChangeStation string `json:"change_station"`
}

// TrainConfig is the published identity of the train being guided
type TrainConfig struct {
	Direction   topology.Direction `json:"direction"`
	Type        string             `json:"type"`
	Destination string             `json:"destination"`
	Cars        int                `json:"cars"`
	TrainNumber string             `json:"train_number"`
	DayType     daytype.DayType    `json:"day_type"`
	SecondLeg   *SecondLeg         `json:"second_leg,omitempty"`
}

const defaultCars = 10

//trainNumberValue returns the numeric part of a train number such as "1234" or "A1234", or 0 when there is none
func trainNumberValue(trainNumber string) int {
	digits := strings.TrimLeftFunc(strings.TrimSpace(trainNumber), func(r rune) bool {
		return r < '0' || r > '9'
	})
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

//ResolveTrainConfig fills the type, destination and direction missing from cfg using the train number table,
//and checks every field names something the topology knows
func ResolveTrainConfig(topo *topology.Topology, cfg TrainConfig) (TrainConfig, error) {
	if cfg.TrainNumber != "" {
		if match, ok := topo.LookupTrainNumber(trainNumberValue(cfg.TrainNumber)); ok {
			if cfg.Type == "" {
				cfg.Type = match.Type
			}
			if cfg.Destination == "" {
				cfg.Destination = match.Destination
			}
			if cfg.Direction == "" {
				cfg.Direction = match.Direction
			}
		}
	}
	if !cfg.Direction.Valid() {
		return cfg, fmt.Errorf("train direction %q must be up or down", cfg.Direction)
	}
	if cfg.Type == "" {
		return cfg, fmt.Errorf("train type is required when train number %q is not in the train number table",
			cfg.TrainNumber)
	}
	if cfg.Cars <= 0 {
		cfg.Cars = defaultCars
	}
	if cfg.DayType == "" {
		cfg.DayType = daytype.Weekday
	}
	if !cfg.DayType.Valid() {
		return cfg, fmt.Errorf("day type %q must be weekday or holiday", cfg.DayType)
	}

	if leg := cfg.SecondLeg; leg != nil {
		s, ok := topo.FindStation(leg.ChangeStation)
		if !ok {
			return cfg, fmt.Errorf("second leg change station %q is unknown", leg.ChangeStation)
		}
		resolved := *leg
		resolved.ChangeStation = s.ID
		if resolved.TrainNumber != "" {
			if match, ok := topo.LookupTrainNumber(trainNumberValue(resolved.TrainNumber)); ok {
				if resolved.Type == "" {
					resolved.Type = match.Type
				}
				if resolved.Destination == "" {
					resolved.Destination = match.Destination
				}
			}
		}
		if resolved.Type == "" && resolved.Destination == "" && resolved.TrainNumber == "" {
			return cfg, fmt.Errorf("second leg at %s changes nothing", s.Name)
		}
		cfg.SecondLeg = &resolved
	}
	return cfg, nil
}
