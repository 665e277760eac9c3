package guidance

import (
	"log"
	"time"

	"github.com/OpenTransitTools/trainguide/business/data/announcement"
	"github.com/OpenTransitTools/trainguide/business/data/topology"
	"github.com/OpenTransitTools/trainguide/foundation/geo"
	"github.com/google/uuid"
)

// Conf tunes fix filtering and time handling of an Engine
type Conf struct {
	// fixes older than MaxFixAge or less accurate than MaxAccuracy meters are dropped, zero disables the check
	MaxFixAge   time.Duration
	MaxAccuracy float64
	// Location is the local time zone for time of day gated reminders
	Location *time.Location
	// Clock returns the current time, time.Now when nil
	Clock func() time.Time
}

const (
	approachRadius    = 400.0
	arrivalRadius     = 200.0
	departureRadius   = 190.0
	closeRadius       = 120.0
	passSpeedKmh      = 45.0
	closePassSpeedKmh = 30.0
	confirmationDelay = 20 * time.Second
	trackLength       = 60
)

//prevFix is the nearest station and distance recorded for the preceding fix
type prevFix struct {
	stationId string
	distance  float64
}

type delayedAnnouncement struct {
	due       time.Time
	key       string
	kind      announcement.Kind
	stationId string
	text      string
}

//Engine is the announcement state machine for one guidance session. It is not safe for concurrent use,
//a single goroutine owns it and feeds it fixes, ticks and control commands
type Engine struct {
	log   *log.Logger
	topo  *topology.Topology
	conf  Conf
	train TrainConfig

	sessionId string
	active    bool
	gate      *DedupGate
	speed     speedEstimator
	startup   startupDetector

	routeLock         string
	manualStops       topology.StationSet
	manualPasses      topology.StationSet
	passStations      topology.StationSet
	platformOverrides map[string]string

	prev         *prevFix
	nextStopMemo string
	swap         midChange
	delayed      []delayedAnnouncement

	underground bool
	nearest     *Nearest
	track       []geo.Point
	lookup      LookupResult
}

//NewEngine creates an inactive Engine for train. train should already be resolved with ResolveTrainConfig
func NewEngine(log *log.Logger, topo *topology.Topology, train TrainConfig, conf Conf) *Engine {
	if conf.Clock == nil {
		conf.Clock = time.Now
	}
	if conf.Location == nil {
		conf.Location = time.Local
	}
	e := &Engine{
		log:               log,
		topo:              topo,
		conf:              conf,
		train:             train,
		gate:              NewDedupGate(),
		manualStops:       make(topology.StationSet),
		manualPasses:      make(topology.StationSet),
		platformOverrides: make(map[string]string),
	}
	e.startup.mode = Searching
	e.rebuildPassStations()
	if leg := train.SecondLeg; leg != nil {
		e.swap = midChange{pending: true, boundary: leg.ChangeStation}
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.conf.Clock()
}

//Start begins a session: a new session id, the dedup gate opens and startup detection begins.
//Returns the session start announcement
func (e *Engine) Start() []announcement.Announcement {
	now := e.now()
	e.sessionId = uuid.NewString()
	e.active = true
	e.gate.Start(now)
	e.enterSearching()
	e.computeTrigger()
	e.log.Printf("session %s started for %s", e.sessionId,
		identityText(e.train.TrainNumber, e.train.Type, e.train.Destination))
	return e.emit(nil, SessionStartKey, announcement.KindSession, "",
		sessionStartText+"、"+identityText(e.train.TrainNumber, e.train.Type, e.train.Destination), now)
}

//Stop ends the session, further fixes and ticks are ignored
func (e *Engine) Stop() {
	if !e.active {
		return
	}
	e.active = false
	e.gate.Stop()
	e.log.Printf("session %s stopped", e.sessionId)
}

//SessionId identifies the current session, empty before Start
func (e *Engine) SessionId() string {
	return e.sessionId
}

//enterSearching clears the hysteresis memory and restarts startup detection
func (e *Engine) enterSearching() {
	e.startup.begin(e.now())
	e.prev = nil
	e.nextStopMemo = ""
	e.swap.behind = ""
}

//HandleFix runs one fix through the speed estimator, route lock, nearest station search and, once the startup
//position is known, the announcement rules. Returns the announcements to deliver
func (e *Engine) HandleFix(f Fix) []announcement.Announcement {
	if !e.active {
		return nil
	}
	now := e.now()
	if reason := rejectReason(f, now, e.conf.MaxFixAge, e.conf.MaxAccuracy); reason != "" {
		e.log.Printf("dropping fix at %s: %s", f.Timestamp.Format(time.RFC3339), reason)
		return nil
	}
	if e.underground {
		return nil
	}
	e.speed.update(f)
	e.appendTrack(f)

	if unfiltered, ok := nearestStation(e.topo, f.Lat, f.Lon, ""); ok {
		e.updateRouteLock(unfiltered)
	}
	ns, ok := nearestStation(e.topo, f.Lat, f.Lon, e.routeLock)
	if !ok {
		return nil
	}
	e.nearest = &ns

	if e.startup.mode == Searching {
		e.finishStartup(ns, now)
		return nil
	}

	out := e.evaluate(ns, now)
	e.prev = &prevFix{stationId: ns.StationId, distance: ns.Distance}
	return out
}

//Tick releases delayed announcements that are due
func (e *Engine) Tick() []announcement.Announcement {
	if !e.active || len(e.delayed) == 0 {
		return nil
	}
	now := e.now()
	var out []announcement.Announcement
	remaining := e.delayed[:0]
	for _, d := range e.delayed {
		if now.Before(d.due) {
			remaining = append(remaining, d)
			continue
		}
		out = e.emit(out, d.key, d.kind, d.stationId, d.text, now)
	}
	e.delayed = remaining
	return out
}

//finishStartup feeds the startup detector and, on a decision, seeds the hysteresis memory
func (e *Engine) finishStartup(ns Nearest, now time.Time) {
	switch e.startup.observe(ns, now) {
	case betweenStations:
		e.prev = &prevFix{stationId: ns.StationId, distance: ns.Distance}
		e.nextStopMemo = e.nextStop(ns.StationId)
		e.log.Printf("startup: between stations, %.0fm from %s", ns.Distance, e.topo.StationName(ns.StationId))
	case atStation:
		if e.passStations[ns.StationId] {
			e.manualStops[ns.StationId] = true
			delete(e.manualPasses, ns.StationId)
			e.rebuildPassStations()
			e.computeTrigger()
		}
		e.prev = &prevFix{stationId: ns.StationId, distance: 0}
		e.nextStopMemo = e.nextStop(ns.StationId)
		e.log.Printf("startup: at station %s", e.topo.StationName(ns.StationId))
	default:
		return
	}
	e.locateSwap()
}

//updateRouteLock applies the junction decision table to the unfiltered nearest station
func (e *Engine) updateRouteLock(unfiltered Nearest) {
	line, ok := resolveRoute(e.topo, unfiltered, e.train.Direction, e.train.Destination)
	if !ok || line == e.routeLock {
		return
	}
	e.log.Printf("route lock %q -> %q at %s", e.routeLock, line, e.topo.StationName(unfiltered.StationId))
	e.routeLock = line
	e.computeTrigger()
}

//rebuildPassStations derives the pass set from the stop pattern of the current type and the manual overrides.
//Non revenue trains pass every station unless a stop is added
func (e *Engine) rebuildPassStations() {
	var pass topology.StationSet
	if e.topo.IsNonRevenue(e.train.Type) {
		pass = make(topology.StationSet)
		for _, s := range e.topo.Stations() {
			pass[s.ID] = true
		}
	} else {
		pass = e.topo.PassStations(e.train.Type)
	}
	for id := range e.manualPasses {
		pass[id] = true
	}
	for id := range e.manualStops {
		delete(pass, id)
	}
	e.passStations = pass
}

func (e *Engine) isStop(stationId string) bool {
	return !e.passStations[stationId]
}

//baseStop returns whether the timetable, ignoring manual overrides, has the train stop at stationId
func (e *Engine) baseStop(stationId string) bool {
	return !e.topo.IsNonRevenue(e.train.Type) && e.topo.IsStopFor(stationId, e.train.Type)
}

func (e *Engine) isExtraStop(stationId string) bool {
	return e.isStop(stationId) && !e.baseStop(stationId)
}

//nextStop returns the next station the train stops at after from, "" when there is none
func (e *Engine) nextStop(from string) string {
	next, ok := e.topo.NextStop(from, e.train.Direction, e.train.Destination, e.passStations, e.routeLock)
	if !ok {
		return ""
	}
	return next
}

//scheduledPlatform is the timetable platform of the current train at stationId
func (e *Engine) scheduledPlatform(stationId string) string {
	return e.topo.ScheduledPlatform(e.train.DayType, stationId, trainNumberValue(e.train.TrainNumber))
}

//platformFor returns the manual override platform, or the scheduled one
func (e *Engine) platformFor(stationId string) string {
	if p, ok := e.platformOverrides[stationId]; ok {
		return p
	}
	return e.scheduledPlatform(stationId)
}

func (e *Engine) platformChanged(stationId string) bool {
	p, ok := e.platformOverrides[stationId]
	return ok && p != e.scheduledPlatform(stationId)
}

//emit appends an announcement when the dedup gate allows key
func (e *Engine) emit(out []announcement.Announcement, key string, kind announcement.Kind, stationId string,
	text string, now time.Time) []announcement.Announcement {
	if !e.gate.ShouldEmit(key, now) {
		return out
	}
	return append(out, announcement.Announcement{
		SessionId:   e.sessionId,
		Key:         key,
		Kind:        kind,
		StationId:   stationId,
		TrainNumber: e.train.TrainNumber,
		Text:        text,
		EmittedAt:   now,
	})
}

//schedule queues an announcement for release by Tick once due
func (e *Engine) schedule(key string, kind announcement.Kind, stationId string, text string, due time.Time) {
	e.delayed = append(e.delayed, delayedAnnouncement{
		due:       due,
		key:       key,
		kind:      kind,
		stationId: stationId,
		text:      text,
	})
}

func (e *Engine) appendTrack(f Fix) {
	e.track = append(e.track, geo.Point{Lat: f.Lat, Lon: f.Lon})
	if len(e.track) > trackLength {
		e.track = e.track[len(e.track)-trackLength:]
	}
}
