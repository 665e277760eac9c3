package guidance

import (
	"sort"
	"time"

	"github.com/OpenTransitTools/trainguide/foundation/geo"
)

// NearestStatus is the nearest station shown on the display
type NearestStatus struct {
	StationId   string  `json:"station_id"`
	StationName string  `json:"station_name"`
	Distance    float64 `json:"distance"`
}

// SwapStatus is the state of a mid route reassignment
type SwapStatus struct {
	Pending   bool       `json:"pending"`
	Applied   bool       `json:"applied"`
	Boundary  string     `json:"boundary,omitempty"`
	Trigger   string     `json:"trigger,omitempty"`
	SecondLeg *SecondLeg `json:"second_leg,omitempty"`
}

// Status is a snapshot of an Engine for display
type Status struct {
	SessionId          string            `json:"session_id"`
	Active             bool              `json:"active"`
	StartupMode        StartupMode       `json:"startup_mode"`
	Nearest            *NearestStatus    `json:"nearest,omitempty"`
	SpeedKmh           float64           `json:"speed_kmh"`
	RouteLock          string            `json:"route_lock,omitempty"`
	NextStop           string            `json:"next_stop,omitempty"`
	Train              TrainConfig       `json:"train"`
	Swap               SwapStatus        `json:"swap"`
	Underground        bool              `json:"underground"`
	TemporaryStops     []string          `json:"temporary_stops"`
	TemporaryPasses    []string          `json:"temporary_passes"`
	PlatformOverrides  map[string]string `json:"platform_overrides"`
	FeedStation        string            `json:"feed_station,omitempty"`
	DelayKnown         bool              `json:"delay_known"`
	DelayMinutes       int               `json:"delay_minutes"`
	ScheduledDeparture *time.Time        `json:"scheduled_departure,omitempty"`
	Track              string            `json:"track"`
}

//Status returns a snapshot of the engine state
func (e *Engine) Status() Status {
	st := Status{
		SessionId:         e.sessionId,
		Active:            e.active,
		StartupMode:       e.startup.mode,
		SpeedKmh:          e.speed.speed(),
		RouteLock:         e.routeLock,
		Train:             e.train,
		Underground:       e.underground,
		TemporaryStops:    sortedKeys(e.manualStops),
		TemporaryPasses:   sortedKeys(e.manualPasses),
		PlatformOverrides: make(map[string]string, len(e.platformOverrides)),
		FeedStation:       e.lookup.StationName,
		Track:             geo.EncodeTrack(e.track),
		Swap: SwapStatus{
			Pending:   e.swap.pending,
			Applied:   e.swap.applied,
			Boundary:  e.swap.boundary,
			Trigger:   e.swap.trigger,
			SecondLeg: e.train.SecondLeg,
		},
	}
	if e.nearest != nil {
		st.Nearest = &NearestStatus{
			StationId:   e.nearest.StationId,
			StationName: e.topo.StationName(e.nearest.StationId),
			Distance:    e.nearest.Distance,
		}
	}
	if e.nextStopMemo != "" {
		st.NextStop = e.topo.StationName(e.nextStopMemo)
	}
	for k, v := range e.platformOverrides {
		st.PlatformOverrides[k] = v
	}
	if e.lookup.DelayMinutes != nil {
		st.DelayKnown = true
		st.DelayMinutes = *e.lookup.DelayMinutes
	}
	st.ScheduledDeparture = e.lookup.ScheduledDeparture
	return st
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
