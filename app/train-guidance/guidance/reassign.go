package guidance

import (
	"fmt"
	"time"

	"github.com/OpenTransitTools/trainguide/business/data/announcement"
	"github.com/OpenTransitTools/trainguide/foundation/geo"
)

//midChange tracks a change of train identity part way along the run
type midChange struct {
	pending bool
	applied bool
	// boundary is the station where the new identity begins
	boundary string
	// trigger is the station whose departure applies the swap, the boundary or the passed station before it
	trigger string
	// behind is the station before the boundary the train was already beyond when its position was fixed
	behind         string
	arrivalHandled bool
}

//ReassignAt schedules a change to trainNumber from the station ref onward. Type and destination come from the
//train number table, direction and cars are kept
func (e *Engine) ReassignAt(ref string, trainNumber string) error {
	stationId, err := e.stationRef(ref)
	if err != nil {
		return err
	}
	match, ok := e.topo.LookupTrainNumber(trainNumberValue(trainNumber))
	if !ok {
		return fmt.Errorf("train number %s is not in the train number table", trainNumber)
	}
	e.train.SecondLeg = &SecondLeg{
		Type:          match.Type,
		Destination:   match.Destination,
		Cars:          e.train.Cars,
		TrainNumber:   trainNumber,
		ChangeStation: stationId,
	}
	e.swap = midChange{pending: true, boundary: stationId}
	e.computeTrigger()
	if e.startup.mode == Fixed {
		e.locateSwap()
	}
	e.log.Printf("reassignment to %s scheduled at %s", trainNumber, e.topo.StationName(stationId))
	return nil
}

//computeTrigger picks the station whose departure applies a pending swap. When the train passes the station
//before the boundary, the swap happens on leaving that station so the next stop announcement already names the
//boundary under the new identity
func (e *Engine) computeTrigger() {
	if !e.swap.pending {
		return
	}
	boundary := e.swap.boundary
	lineID := e.routeLock
	if lineID == "" || !e.topo.OnLine(boundary, lineID) {
		lines := e.topo.LinesOf(boundary)
		if len(lines) == 0 {
			e.swap.trigger = boundary
			return
		}
		lineID = lines[0]
	}
	trigger := boundary
	if before, ok := e.topo.StationBefore(lineID, boundary, e.train.Direction); ok && e.passStations[before] &&
		before != e.swap.behind {
		trigger = before
	}
	if trigger != e.swap.trigger {
		e.log.Printf("swap trigger set to %s", e.topo.StationName(trigger))
	}
	e.swap.trigger = trigger
}

//locateSwap moves the trigger to the boundary when the latest fix is already beyond the trigger station
func (e *Engine) locateSwap() {
	if !e.swap.pending || e.swap.trigger == e.swap.boundary || len(e.track) == 0 {
		return
	}
	if !e.beyond(e.swap.trigger, e.swap.boundary) {
		return
	}
	e.log.Printf("already beyond swap trigger %s", e.topo.StationName(e.swap.trigger))
	e.swap.behind = e.swap.trigger
	e.computeTrigger()
}

//beyond reports whether the latest fix has left stationId behind on the way to toward
func (e *Engine) beyond(stationId string, toward string) bool {
	from, ok := e.topo.Station(stationId)
	if !ok || !from.HasCoordinates() {
		return false
	}
	to, ok := e.topo.Station(toward)
	if !ok || !to.HasCoordinates() {
		return false
	}
	p := e.track[len(e.track)-1]
	if geo.DistanceMeters(p.Lat, p.Lon, *from.Lat, *from.Lon) <= departureRadius {
		return false
	}
	return geo.DistanceMeters(p.Lat, p.Lon, *to.Lat, *to.Lon) < geo.DistanceMeters(*from.Lat, *from.Lon, *to.Lat, *to.Lon)
}

//applySwap replaces the train identity with the second leg and announces it
func (e *Engine) applySwap(out []announcement.Announcement, now time.Time) []announcement.Announcement {
	leg := e.train.SecondLeg
	if leg == nil {
		e.swap.pending = false
		return out
	}
	if leg.Type != "" {
		e.train.Type = leg.Type
	}
	if leg.Destination != "" {
		e.train.Destination = leg.Destination
	}
	if leg.Cars > 0 {
		e.train.Cars = leg.Cars
	}
	if leg.TrainNumber != "" {
		e.train.TrainNumber = leg.TrainNumber
	}
	e.swap.pending = false
	e.swap.applied = true
	e.rebuildPassStations()
	e.log.Printf("identity changed to %s", identityText(e.train.TrainNumber, e.train.Type, e.train.Destination))
	return e.emit(out, keySwap+e.train.TrainNumber, announcement.KindSwap, leg.ChangeStation,
		swapText(e.train.TrainNumber, e.train.Type, e.train.Destination), now)
}

//boundaryArrival runs on arrival at a stop. A swap still pending at its boundary triggers on departure from it,
//an applied swap announces the new identity once and schedules the crew confirmation
func (e *Engine) boundaryArrival(out []announcement.Announcement, stationId string,
	now time.Time) []announcement.Announcement {
	if e.swap.boundary != stationId {
		return out
	}
	if e.swap.pending {
		if e.swap.trigger != stationId {
			e.log.Printf("swap trigger %s missed, applying on departure from %s",
				e.topo.StationName(e.swap.trigger), e.topo.StationName(stationId))
			e.swap.trigger = stationId
		}
		return out
	}
	if !e.swap.applied || e.swap.arrivalHandled {
		return out
	}
	e.swap.arrivalHandled = true
	out = e.emit(out, keyBoundary+stationId, announcement.KindBoundary, stationId,
		identityText(e.train.TrainNumber, e.train.Type, e.train.Destination), now)
	e.schedule(keyConfirmation+stationId, announcement.KindConfirmation, stationId,
		confirmationText(e.train.TrainNumber, e.train.Type, e.train.Destination), now.Add(confirmationDelay))
	return out
}
