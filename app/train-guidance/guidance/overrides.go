package guidance

import (
	"fmt"
)

//stationRef resolves a station id or name to its id
func (e *Engine) stationRef(ref string) (string, error) {
	s, ok := e.topo.FindStation(ref)
	if !ok {
		return "", fmt.Errorf("unknown station %q", ref)
	}
	return s.ID, nil
}

//AddTemporaryStop makes the train stop at ref, overriding a scheduled or temporary pass
func (e *Engine) AddTemporaryStop(ref string) error {
	id, err := e.stationRef(ref)
	if err != nil {
		return err
	}
	e.manualStops[id] = true
	delete(e.manualPasses, id)
	e.overridesChanged()
	return nil
}

//RemoveTemporaryStop drops a temporary stop at ref
func (e *Engine) RemoveTemporaryStop(ref string) error {
	id, err := e.stationRef(ref)
	if err != nil {
		return err
	}
	delete(e.manualStops, id)
	e.overridesChanged()
	return nil
}

//AddTemporaryPass makes the train run through ref, overriding a scheduled or temporary stop
func (e *Engine) AddTemporaryPass(ref string) error {
	id, err := e.stationRef(ref)
	if err != nil {
		return err
	}
	e.manualPasses[id] = true
	delete(e.manualStops, id)
	e.overridesChanged()
	return nil
}

//RemoveTemporaryPass drops a temporary pass at ref
func (e *Engine) RemoveTemporaryPass(ref string) error {
	id, err := e.stationRef(ref)
	if err != nil {
		return err
	}
	delete(e.manualPasses, id)
	e.overridesChanged()
	return nil
}

func (e *Engine) overridesChanged() {
	e.rebuildPassStations()
	e.computeTrigger()
}

//SetPlatformOverride sets the platform used at ref, an empty platform restores the timetable one
func (e *Engine) SetPlatformOverride(ref string, platform string) error {
	id, err := e.stationRef(ref)
	if err != nil {
		return err
	}
	if platform == "" {
		delete(e.platformOverrides, id)
		return nil
	}
	e.platformOverrides[id] = platform
	return nil
}

//ForceRouteLock locks the route to lineID, an empty id clears the lock until the next junction decides it
func (e *Engine) ForceRouteLock(lineID string) error {
	if lineID != "" {
		if _, ok := e.topo.Line(lineID); !ok {
			return fmt.Errorf("unknown line %q", lineID)
		}
	}
	e.log.Printf("route lock %q -> %q forced", e.routeLock, lineID)
	e.routeLock = lineID
	e.computeTrigger()
	return nil
}

//SetUnderground enters or leaves underground mode. Fixes are ignored while underground, leaving it resets the
//position so stale crossings cannot fire
func (e *Engine) SetUnderground(on bool) {
	if on == e.underground {
		return
	}
	e.underground = on
	if on {
		e.log.Printf("underground mode on")
		return
	}
	e.log.Printf("underground mode off")
	e.ResetPosition()
}

//ResetPosition clears the hysteresis memory and route lock and re-enters startup detection. Cooldowns,
//overrides and a pending reassignment survive
func (e *Engine) ResetPosition() {
	e.enterSearching()
	e.routeLock = ""
	e.speed.reset()
	e.computeTrigger()
	e.log.Printf("position reset")
}

//ApplyLookup stores a delay lookup result for display. Results for another train number are stale and dropped
func (e *Engine) ApplyLookup(r LookupResult) {
	if r.TrainNumber != e.train.TrainNumber {
		return
	}
	e.lookup = r
}

//LookupRequest describes what the delay lookup should ask the feed about
func (e *Engine) LookupRequest() LookupRequest {
	req := LookupRequest{TrainNumber: e.train.TrainNumber, Direction: e.train.Direction}
	if e.nearest != nil {
		req.StationId = e.nearest.StationId
	}
	if e.routeLock != "" {
		req.LineId = e.routeLock
	}
	return req
}
