package guidance

import (
	"bytes"
	"log"
	"math"
	"testing"
	"time"

	"github.com/OpenTransitTools/trainguide/business/data/announcement"
	"github.com/OpenTransitTools/trainguide/business/data/topology"
	"github.com/OpenTransitTools/trainguide/foundation/daytype"
	"github.com/OpenTransitTools/trainguide/foundation/geo"
)

// the test network runs north along one meridian, stations 2000m apart:
//
//	A(0) B(2000) C(4000) D(6000) E(8000) on line main
//	F lies 2000m east of C on line branch [C, F]
//
// down trains run north from A, up trains south
const (
	baseLat        = 35.0
	baseLon        = 139.0
	stationSpacing = 2000.0
)

var tokyo = mustLocation("Asia/Tokyo")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

//latAt returns the latitude north meters from station A
func latAt(north float64) float64 {
	return geo.OffsetNorth(baseLat, north)
}

//lonEast returns the longitude east meters from the meridian at lat
func lonEast(lat float64, east float64) float64 {
	return baseLon + (east/(geo.EarthRadiusMeters*math.Cos(lat*math.Pi/180)))*180/math.Pi
}

func testStation(id, name string, north, east float64) topology.Station {
	lat := latAt(north)
	lon := lonEast(lat, east)
	return topology.Station{ID: id, Name: name, Lat: &lat, Lon: &lon}
}

func testNetwork() topology.Network {
	a := testStation("A", "青葉", 0, 0)
	b := testStation("B", "坂下", stationSpacing, 0)
	b.StopPatterns = map[string]bool{"rapid": false, "limited": false}
	c := testStation("C", "中原", 2*stationSpacing, 0)
	c.Markers = []topology.Marker{{Cars: 8, Direction: topology.Down, Label: "中央"}}
	c.Cautions = []string{"ホーム注意", "乗務員確認"}
	d := testStation("D", "竹林", 3*stationSpacing, 0)
	d.StopPatterns = map[string]bool{"rapid": false, "limited": false}
	e := testStation("E", "終点", 4*stationSpacing, 0)
	f := testStation("F", "支線口", 2*stationSpacing, stationSpacing)

	return topology.Network{
		Lines: []topology.Line{
			{ID: "main", Name: "本線", Stations: []string{"A", "B", "C", "D", "E"}},
			{ID: "branch", Name: "支線", Stations: []string{"C", "F"}},
		},
		Stations: []topology.Station{a, b, c, d, e, f},
		Destinations: []topology.Destination{
			{Name: "青葉", Category: "main"},
			{Name: "終点", Category: "main"},
			{Name: "支線口", Category: "branch"},
		},
		DefaultCategory: "main",
		Junctions: []topology.JunctionRule{
			{Station: "C", Direction: topology.Down, Category: "branch", Radius: 300, Line: "branch"},
			{Station: "C", Radius: 300, Line: "main"},
		},
		Branches: []topology.BranchRule{
			{Station: "C", Direction: topology.Down, Category: "branch", Line: "branch"},
			{Station: "C", Line: "main"},
		},
		TrainNumbers: []topology.TrainNumberRange{
			{From: 100, To: 199, Type: "limited", DestinationEven: "青葉", DestinationOdd: "終点"},
			{From: 1000, To: 1999, Type: "local", DestinationEven: "青葉", DestinationOdd: "終点"},
			{From: 2000, To: 2999, Type: "rapid", DestinationEven: "青葉", DestinationOdd: "終点"},
			{From: 3000, To: 3999, Type: "local", DestinationEven: "青葉", DestinationOdd: "支線口"},
			{From: 9000, To: 9999, Type: "回送", DestinationEven: "青葉", DestinationOdd: "終点"},
		},
		NonRevenue: topology.NonRevenue{
			Types: []string{"回送"},
			Subtypes: []topology.NonRevenueSubtype{
				{TrainNumber: 9001, DayType: daytype.Weekday, Subtype: "入庫"},
			},
		},
		SpecialClasses: []string{"limited"},
		FullLengthCars: 10,
		Platforms: []topology.Platform{
			{DayType: daytype.Weekday, Station: "C", Platform: "3", TrainNumbers: []int{2001}},
			{DayType: daytype.Weekday, Station: "C", Platform: "2", TrainNumbers: []int{1001}},
		},
		Reminders: []topology.Reminder{
			{Key: "rem-d-enter", Station: "D", Direction: topology.Down, Mode: topology.Enter, Radius: 300,
				Text: "竹林接近、確認"},
			{Key: "rem-d-exit", Station: "D", Mode: topology.Exit, Radius: 150,
				Window: &topology.TimeWindow{From: "08:00", To: "10:00"}, Text: "竹林出発、確認"},
			{Key: "rem-d-branch", Station: "D", DestinationContains: "支線", Mode: topology.Enter, Radius: 300,
				Text: "支線直通、確認"},
		},
	}
}

func testTopology(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.New(testNetwork())
	if err != nil {
		t.Fatalf("building test topology: %v", err)
	}
	return topo
}

//harness drives an Engine with a fake clock and fixes placed on the test network
type harness struct {
	t      *testing.T
	topo   *topology.Topology
	engine *Engine
	now    time.Time
	step   time.Duration
	logs   *bytes.Buffer
	all    []announcement.Announcement
}

//newHarness starts an engine for train and moves the clock past the start grace period
func newHarness(t *testing.T, train TrainConfig) *harness {
	t.Helper()
	topo := testTopology(t)
	resolved, err := ResolveTrainConfig(topo, train)
	if err != nil {
		t.Fatalf("resolving train: %v", err)
	}
	h := &harness{
		t:    t,
		topo: topo,
		now:  time.Date(2026, 10, 19, 9, 0, 0, 0, tokyo),
		step: time.Second,
		logs: &bytes.Buffer{},
	}
	h.engine = NewEngine(log.New(h.logs, "", 0), topo, resolved, Conf{
		MaxFixAge:   10 * time.Second,
		MaxAccuracy: 200,
		Location:    tokyo,
		Clock:       func() time.Time { return h.now },
	})
	h.all = append(h.all, h.engine.Start()...)
	h.now = h.now.Add(startGrace)
	return h
}

//fixAt feeds a fix north meters from A on the main line, one step after the previous fix
func (h *harness) fixAt(north float64) []announcement.Announcement {
	return h.fixAtPoint(latAt(north), baseLon)
}

//fixOnBranch feeds a fix east meters from C towards F
func (h *harness) fixOnBranch(east float64) []announcement.Announcement {
	lat := latAt(2 * stationSpacing)
	return h.fixAtPoint(lat, lonEast(lat, east))
}

func (h *harness) fixAtPoint(lat, lon float64) []announcement.Announcement {
	h.now = h.now.Add(h.step)
	out := h.engine.HandleFix(Fix{Lat: lat, Lon: lon, Timestamp: h.now, Accuracy: 10})
	h.all = append(h.all, out...)
	return out
}

//drive feeds fixes at each position in turn and returns everything announced
func (h *harness) drive(positions ...float64) []announcement.Announcement {
	var out []announcement.Announcement
	for _, p := range positions {
		out = append(out, h.fixAt(p)...)
	}
	return out
}

func (h *harness) tick(d time.Duration) []announcement.Announcement {
	h.now = h.now.Add(d)
	out := h.engine.Tick()
	h.all = append(h.all, out...)
	return out
}

func keys(announcements []announcement.Announcement) []string {
	result := make([]string, 0, len(announcements))
	for _, a := range announcements {
		result = append(result, a.Key)
	}
	return result
}

func countKey(announcements []announcement.Announcement, key string) int {
	n := 0
	for _, a := range announcements {
		if a.Key == key {
			n++
		}
	}
	return n
}

func findKey(announcements []announcement.Announcement, key string) (announcement.Announcement, bool) {
	for _, a := range announcements {
		if a.Key == key {
			return a, true
		}
	}
	return announcement.Announcement{}, false
}
