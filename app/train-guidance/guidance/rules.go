package guidance

import (
	"fmt"
	"strings"
	"time"

	"github.com/OpenTransitTools/trainguide/business/data/announcement"
	"github.com/OpenTransitTools/trainguide/business/data/topology"
)

//crossing reports edge triggered threshold crossings for one fix against the preceding one
type crossing struct {
	hasPrev bool
	// prevSame is the preceding distance when the preceding fix had the same nearest station
	prevSame *float64
	distance float64
}

//into is true when the train crossed from outside radius to inside it
func (c crossing) into(radius float64) bool {
	if !c.hasPrev || c.distance > radius {
		return false
	}
	return c.prevSame == nil || *c.prevSame > radius
}

//outOf is true when the train crossed from inside radius to outside it
func (c crossing) outOf(radius float64) bool {
	return c.prevSame != nil && *c.prevSame <= radius && c.distance > radius
}

//evaluate runs the announcement rules for a fix whose nearest eligible station is ns
func (e *Engine) evaluate(ns Nearest, now time.Time) []announcement.Announcement {
	c := crossing{hasPrev: e.prev != nil, distance: ns.Distance}
	if e.prev != nil && e.prev.stationId == ns.StationId {
		d := e.prev.distance
		c.prevSame = &d
	}

	var out []announcement.Announcement
	out = e.reminders(out, ns.StationId, c, now)

	if e.prev != nil && e.prev.distance <= departureRadius &&
		(e.prev.stationId != ns.StationId || ns.Distance > departureRadius) {
		out = e.depart(out, e.prev.stationId, now)
	}

	if e.isStop(ns.StationId) {
		return e.stopRules(out, ns.StationId, c, now)
	}
	return e.passRules(out, ns.StationId, c, now)
}

//reminders fires the configured enter and exit reminders of stationId whose filters match the train
func (e *Engine) reminders(out []announcement.Announcement, stationId string, c crossing,
	now time.Time) []announcement.Announcement {
	for _, r := range e.topo.Reminders() {
		if r.Station != stationId {
			continue
		}
		if r.Direction != "" && r.Direction != e.train.Direction {
			continue
		}
		if r.Destination != "" && r.Destination != e.train.Destination {
			continue
		}
		if r.DestinationContains != "" && !strings.Contains(e.train.Destination, r.DestinationContains) {
			continue
		}
		if r.Window != nil {
			local := now.In(e.conf.Location)
			if !r.Window.Contains(local.Hour()*60 + local.Minute()) {
				continue
			}
		}
		fired := false
		switch r.Mode {
		case topology.Enter:
			fired = c.into(r.Radius)
		case topology.Exit:
			fired = c.outOf(r.Radius)
		}
		if fired {
			out = e.emit(out, r.Key, announcement.KindReminder, r.Station, r.Text, now)
		}
	}
	return out
}

//depart handles leaving stationId: a pending identity swap triggers here, and stop stations announce the next stop
func (e *Engine) depart(out []announcement.Announcement, stationId string, now time.Time) []announcement.Announcement {
	if e.swap.pending && (e.swap.trigger == stationId || e.swap.boundary == stationId) {
		if e.swap.trigger != stationId {
			e.log.Printf("swap trigger %s missed, applying on departure from %s",
				e.topo.StationName(e.swap.trigger), e.topo.StationName(stationId))
		}
		out = e.applySwap(out, now)
		e.nextStopMemo = ""
	} else if !e.isStop(stationId) {
		return out
	}

	next := e.nextStopMemo
	e.nextStopMemo = ""
	if next == "" {
		next = e.nextStop(stationId)
	}
	if next == "" {
		return out
	}

	name := e.topo.StationName(next)
	switch {
	case e.isStop(next):
		label := e.topo.MarkerLabel(next, e.train.Cars, e.train.Direction)
		out = e.emit(out, keyNextStop+next, announcement.KindNextStop, next,
			nextStopText(name, e.isExtraStop(next), e.platformFor(next), label), now)
	case e.baseStop(next):
		out = e.emit(out, keyNextStop+next, announcement.KindNextStop, next, nextExtraPassText(name), now)
	}
	return out
}

//stopRules announces the approach and arrival of a station the train stops at
func (e *Engine) stopRules(out []announcement.Announcement, stationId string, c crossing,
	now time.Time) []announcement.Announcement {
	extra := e.isExtraStop(stationId)
	nonRevenue := e.topo.IsNonRevenue(e.train.Type)

	if c.into(approachRadius) {
		out = e.emit(out, keyApproach+stationId, announcement.KindApproach, stationId,
			approachText(e.topo.StationName(stationId), extra, e.train.Cars, e.platformChanged(stationId)), now)
		if nonRevenue {
			out = e.emit(out, keyDoorApproach+stationId, announcement.KindCaution, stationId, doorCautionText, now)
		}
	}

	if !c.into(arrivalRadius) {
		return out
	}
	variant := carVariant(e.train.Cars, e.topo.FullLengthCars(),
		e.topo.MarkerLabel(stationId, e.train.Cars, e.train.Direction))
	out = e.emit(out, keyArrival+stationId, announcement.KindArrival, stationId,
		arrivalText(extra, e.platformFor(stationId), variant), now)
	if e.nextStopMemo == "" || e.nextStopMemo == stationId {
		e.nextStopMemo = e.nextStop(stationId)
	}
	if nonRevenue {
		out = e.emit(out, keyDoorArrival+stationId, announcement.KindCaution, stationId, doorCautionText, now)
	}
	if e.topo.IsSpecialClass(e.train.Type) {
		for i, text := range e.topo.Cautions(stationId) {
			out = e.emit(out, fmt.Sprintf("%s%s_%d", keyCaution, stationId, i+1), announcement.KindCaution,
				stationId, text, now)
		}
	}
	return e.boundaryArrival(out, stationId, now)
}

//passRules announces running through a station at low speed. Faster trains pass silently
func (e *Engine) passRules(out []announcement.Announcement, stationId string, c crossing,
	now time.Time) []announcement.Announcement {
	speed := e.speed.speed()

	if e.topo.IsNonRevenue(e.train.Type) {
		subtype := e.topo.NonRevenueSubtype(trainNumberValue(e.train.TrainNumber), e.train.DayType, e.train.Type)
		if c.into(arrivalRadius) && speed <= passSpeedKmh {
			out = e.emit(out, keyNonRevenue200+stationId, announcement.KindPass, stationId,
				nonRevenueText(subtype, false), now)
		}
		if c.into(closeRadius) && speed <= closePassSpeedKmh {
			out = e.emit(out, keyNonRevenue120+stationId, announcement.KindPass, stationId,
				nonRevenueText(subtype, true), now)
		}
		return out
	}

	extraPass := e.baseStop(stationId)
	if c.into(arrivalRadius) && speed <= passSpeedKmh {
		out = e.emit(out, keyPass200+stationId, announcement.KindPass, stationId,
			passText(e.train.Type, extraPass, false), now)
	}
	if c.into(closeRadius) && speed <= closePassSpeedKmh {
		out = e.emit(out, keyPass120+stationId, announcement.KindPass, stationId,
			passText(e.train.Type, extraPass, true), now)
	}
	return out
}
