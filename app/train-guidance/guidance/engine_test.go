package guidance

import (
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestEngine_SessionStart(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})

	is.Equal(keys(h.all), []string{SessionStartKey})
	is.Equal(h.all[0].Text, "案内を開始します、列番1001、種別local、終点行き")
	is.True(h.all[0].SessionId != "")
	is.Equal(h.engine.Status().StartupMode, Searching)
}

func TestEngine_ApproachFiresOncePerCrossing(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})

	h.drive(900) // between stations, 900m from A
	out := h.drive(1550, 1650)
	is.Equal(keys(out), []string{"arr400_B"})
	is.Equal(out[0].Text, "まもなく坂下、停車、10両")
	is.Equal(out[0].StationId, "B")
	is.Equal(out[0].TrainNumber, "1001")

	// back out to 420m and in to 380m within the cooldown
	out = h.drive(1580, 1620)
	is.Equal(countKey(out, "arr400_B"), 0)

	// staying inside the band never refires
	out = h.drive(1630, 1640, 1645)
	is.Equal(countKey(out, "arr400_B"), 0)
	is.Equal(countKey(h.all, "arr400_B"), 1)
}

func TestEngine_ArrivalAndNextStop(t *testing.T) {
	tests := []struct {
		name        string
		cars        int
		wantArrival string
		wantNext    string
	}{
		{
			name:        "full length train",
			cars:        10,
			wantArrival: "停車、10両",
			wantNext:    "次は中原、停車、2番線",
		},
		{
			name:        "short train with a stopping marker at the next stop",
			cars:        8,
			wantArrival: "停車、8両、停止位置注意",
			wantNext:    "次は中原、停車、2番線、中央あわせ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			h := newHarness(t, TrainConfig{TrainNumber: "1001", Cars: tt.cars})

			h.drive(900)
			out := h.drive(1610, 1850)
			is.Equal(countKey(out, "arr400_B"), 1)
			arrival, ok := findKey(out, "arr200_B")
			is.True(ok)
			is.Equal(arrival.Text, tt.wantArrival)
			is.Equal(h.engine.Status().NextStop, "中原")

			// standing in the platform does not depart
			out = h.drive(2000)
			is.Equal(countKey(out, "next_C"), 0)

			out = h.drive(2250)
			next, ok := findKey(out, "next_C")
			is.True(ok)
			is.Equal(next.Text, tt.wantNext)
			is.Equal(h.engine.Status().NextStop, "")
		})
	}
}

func TestEngine_StartupFarFromStations(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})

	out := h.drive(600)
	is.Equal(len(out), 0)
	st := h.engine.Status()
	is.Equal(st.StartupMode, Fixed)
	is.Equal(st.Nearest.StationId, "A")
	is.Equal(st.NextStop, "坂下")
	is.True(strings.Contains(h.logs.String(), "between stations"))
}

func TestEngine_StartupAtStation(t *testing.T) {
	is := is.New(t)
	// rapid trains pass B
	h := newHarness(t, TrainConfig{TrainNumber: "2001"})
	// restart the search so the timeout runs from now
	h.engine.ResetPosition()

	h.drive(2010, 2020)
	is.Equal(h.engine.Status().StartupMode, Searching)

	h.drive(2030)
	st := h.engine.Status()
	is.Equal(st.StartupMode, Fixed)
	is.Equal(st.TemporaryStops, []string{"B"})
	is.Equal(st.NextStop, "中原")

	out := h.drive(2300)
	next, ok := findKey(out, "next_C")
	is.True(ok)
	is.Equal(next.Text, "次は中原、停車、3番線")
}

func TestEngine_StartupTimesOutAtStation(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})
	h.engine.ResetPosition()
	h.step = 3 * time.Second

	h.drive(10)
	is.Equal(h.engine.Status().StartupMode, Searching)
	// a different nearest candidate, but searching has lasted past the timeout
	h.drive(1990, 1995)
	is.Equal(h.engine.Status().StartupMode, Fixed)
	is.Equal(h.engine.Status().Nearest.StationId, "B")
}

func TestEngine_StartupAfterDelayedFixes(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})
	h.engine.ResetPosition()
	h.step = searchTimeout + time.Second

	// the first fix after the reset arrives past the timeout and settles the position alone
	h.drive(10)
	st := h.engine.Status()
	is.Equal(st.StartupMode, Fixed)
	is.Equal(st.NextStop, "坂下")
	is.True(strings.Contains(h.logs.String(), "startup: at station 青葉"))
}

func TestEngine_RouteLockStaysOnBranch(t *testing.T) {
	is := is.New(t)
	// 3001 runs down to the branch terminus
	h := newHarness(t, TrainConfig{TrainNumber: "3001"})

	h.drive(3200, 3500)
	is.Equal(h.engine.Status().RouteLock, "")

	h.drive(3750)
	is.Equal(h.engine.Status().RouteLock, "branch")

	out := h.drive(3850)
	is.Equal(countKey(out, "arr200_C"), 1)
	is.Equal(h.engine.Status().NextStop, "支線口")

	h.fixOnBranch(100)
	out = h.fixOnBranch(250)
	next, ok := findKey(out, "next_F")
	is.True(ok)
	is.Equal(next.Text, "次は支線口、停車")

	for _, east := range []float64{600, 1000, 1400, 1800} {
		h.fixOnBranch(east)
		is.Equal(h.engine.Status().RouteLock, "branch")
	}
	is.Equal(h.engine.Status().Nearest.StationId, "F")
	is.True(strings.Contains(h.logs.String(), `route lock "" -> "branch"`))
}

func TestEngine_MidRouteSwapAtPassedStation(t *testing.T) {
	is := is.New(t)
	// rapid 2001 passes B, the new identity 1001 is a local from C
	h := newHarness(t, TrainConfig{TrainNumber: "2001"})
	is.NoErr(h.engine.ReassignAt("中原", "1001"))
	is.Equal(h.engine.Status().Swap.Trigger, "B")

	out := h.drive(900, 1500, 1700, 1850, 2000)
	for _, a := range out {
		is.True(!strings.HasPrefix(a.Key, "swap_"))
	}
	is.Equal(h.engine.Status().Train.TrainNumber, "2001")

	out = h.drive(2250)
	is.Equal(keys(out), []string{"swap_1001", "next_C"})
	is.Equal(out[0].Text, "列番1001、種別local、終点行きに変更")
	is.Equal(out[1].Text, "次は中原、停車、2番線")
	is.Equal(out[1].TrainNumber, "1001")
	st := h.engine.Status()
	is.True(st.Swap.Applied)
	is.True(!st.Swap.Pending)
	is.Equal(st.Train.Type, "local")

	out = h.drive(3700, 3850)
	is.Equal(countKey(out, "arr200_C"), 1)
	boundary, ok := findKey(out, "boundary_C")
	is.True(ok)
	is.Equal(boundary.Text, "列番1001、種別local、終点行き")

	is.Equal(len(h.tick(19*time.Second)), 0)
	out = h.tick(time.Second)
	is.Equal(keys(out), []string{"swapconfirm_C"})
	is.Equal(out[0].Text, "列番1001、種別local、終点行き、確認")

	// the confirmation is scheduled once
	h.drive(3900, 4000, 3990)
	is.Equal(len(h.tick(time.Minute)), 0)
}

func TestEngine_SwapAtBoundaryWhenPreviousStationStops(t *testing.T) {
	is := is.New(t)
	// local 1001 stops at B, so the swap waits for departure from C
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})
	is.NoErr(h.engine.ReassignAt("C", "2001"))
	is.Equal(h.engine.Status().Swap.Trigger, "C")

	out := h.drive(900, 1850, 2250)
	is.Equal(countKey(out, "next_C"), 1)
	is.True(h.engine.Status().Swap.Pending)

	out = h.drive(3850, 4000, 4300)
	is.Equal(keys(out)[len(out)-2:], []string{"swap_2001", "next_E"})
	is.Equal(h.engine.Status().Train.Type, "rapid")
}

func TestEngine_SwapAfterStartingBeyondTrigger(t *testing.T) {
	is := is.New(t)
	// rapid 2001 passes C and D, so leaving C would apply the swap
	h := newHarness(t, TrainConfig{TrainNumber: "2001"})
	is.NoErr(h.engine.AddTemporaryPass("C"))
	is.NoErr(h.engine.ReassignAt("D", "1001"))
	is.Equal(h.engine.Status().Swap.Trigger, "C")

	// the position is first fixed between C and D
	h.drive(5100)
	is.Equal(h.engine.Status().Swap.Trigger, "D")
	is.True(strings.Contains(h.logs.String(), "already beyond swap trigger 中原"))

	out := h.drive(5500, 5700, 5850, 6000)
	is.Equal(countKey(out, "swap_1001"), 0)

	out = h.drive(6250)
	is.Equal(countKey(out, "swap_1001"), 1)
	next, ok := findKey(out, "next_E")
	is.True(ok)
	is.Equal(next.TrainNumber, "1001")
	st := h.engine.Status()
	is.True(st.Swap.Applied)
	is.True(!st.Swap.Pending)
	is.Equal(st.Train.TrainNumber, "1001")
	is.Equal(st.Train.Type, "local")
}

func TestEngine_MissedTriggerAppliesLeavingPassedBoundary(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "2001"})
	is.NoErr(h.engine.AddTemporaryPass("C"))
	h.drive(5100)

	// scheduled once the train is already beyond C
	is.NoErr(h.engine.ReassignAt("D", "1001"))
	is.Equal(h.engine.Status().Swap.Trigger, "D")

	h.drive(5500, 5700, 5850, 6000)
	out := h.drive(6250)
	is.Equal(countKey(out, "swap_1001"), 1)
	is.Equal(h.engine.Status().Train.Type, "local")
}

func TestEngine_PassWording(t *testing.T) {
	tests := []struct {
		name        string
		trainNumber string
		setup       func(e *Engine) error
		start       float64
		station     string
		want200     string
		want120     string
	}{
		{
			name:        "scheduled pass",
			trainNumber: "2001",
			start:       1410,
			station:     "B",
			want200:     "種別rapid、通過",
			want120:     "種別rapid、通過、速度注意",
		},
		{
			name:        "temporary pass at a scheduled stop",
			trainNumber: "1001",
			setup: func(e *Engine) error {
				return e.AddTemporaryPass("C")
			},
			start:   3410,
			station: "C",
			want200: "種別local、臨時通過",
			want120: "種別local、臨時通過、速度注意",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			h := newHarness(t, TrainConfig{TrainNumber: tt.trainNumber})
			if tt.setup != nil {
				is.NoErr(tt.setup(h.engine))
			}
			// 80m every 10s is under 30km/h
			h.step = 10 * time.Second
			var out []string
			for p := tt.start; p < tt.start+500; p += 80 {
				out = append(out, keys(h.fixAt(p))...)
			}
			is.Equal(out, []string{"pass200_" + tt.station, "pass120_" + tt.station})
			a200, _ := findKey(h.all, "pass200_"+tt.station)
			a120, _ := findKey(h.all, "pass120_"+tt.station)
			is.Equal(a200.Text, tt.want200)
			is.Equal(a120.Text, tt.want120)
		})
	}
}

func TestEngine_FastPassIsSilent(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "2001"})

	out := h.drive(1400, 1430, 1460, 1500, 1600, 1700, 1800, 1900, 2000, 2100)
	is.Equal(len(out), 0)
}

func TestEngine_NonRevenue(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "9001"})
	h.step = 10 * time.Second

	var out []string
	for p := 1410.0; p < 1910; p += 80 {
		out = append(out, keys(h.fixAt(p))...)
	}
	is.Equal(out, []string{"nonp200_B", "nonp120_B"})
	a200, _ := findKey(h.all, "nonp200_B")
	a120, _ := findKey(h.all, "nonp120_B")
	is.Equal(a200.Text, "種別入庫、ていつう確認")
	is.Equal(a120.Text, "種別入庫、ドアあつかい注意")
}

func TestEngine_NonRevenueTemporaryStop(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "9001"})
	is.NoErr(h.engine.AddTemporaryStop("B"))

	out := h.drive(900, 1650, 1850)
	is.Equal(keys(out), []string{"arr400_B", "door400_B", "arr200_B", "door200_B"})
	is.Equal(out[0].Text, "まもなく坂下、臨時停車、10両")
	is.Equal(out[1].Text, "ドアあつかい注意")
	is.Equal(out[2].Text, "臨時停車、10両")
}

func TestEngine_SpecialClassCautions(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "101"})

	out := h.drive(3200, 3610, 3810)
	is.Equal(keys(out), []string{"arr400_C", "arr200_C", "caution_C_1", "caution_C_2"})
	is.Equal(out[1].Text, "停車、10両")
	is.Equal(out[2].Text, "ホーム注意")
	is.Equal(out[3].Text, "乗務員確認")
}

func TestEngine_PlatformOverride(t *testing.T) {
	tests := []struct {
		name         string
		platform     string
		wantApproach string
		wantArrival  string
	}{
		{
			name:         "changed platform",
			platform:     "4",
			wantApproach: "まもなく中原、停車、10両、着発線変更",
			wantArrival:  "停車、4番線、10両",
		},
		{
			name:         "same as scheduled",
			platform:     "3",
			wantApproach: "まもなく中原、停車、10両",
			wantArrival:  "停車、3番線、10両",
		},
		{
			name:         "cleared",
			platform:     "",
			wantApproach: "まもなく中原、停車、10両",
			wantArrival:  "停車、3番線、10両",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			h := newHarness(t, TrainConfig{TrainNumber: "2001"})
			is.NoErr(h.engine.SetPlatformOverride("中原", "9"))
			is.NoErr(h.engine.SetPlatformOverride("中原", tt.platform))

			out := h.drive(3200, 3610, 3810)
			is.Equal(keys(out), []string{"arr400_C", "arr200_C"})
			is.Equal(out[0].Text, tt.wantApproach)
			is.Equal(out[1].Text, tt.wantArrival)
		})
	}
}

func TestEngine_Reminders(t *testing.T) {
	tests := []struct {
		name        string
		trainNumber string
		clock       time.Time
		positions   []float64
		want        []string
	}{
		{
			name:        "down train enters and leaves inside the window",
			trainNumber: "1001",
			clock:       time.Date(2026, 10, 19, 9, 0, 0, 0, tokyo),
			positions:   []float64{5500, 5750, 5900, 6200},
			want:        []string{"rem-d-enter", "rem-d-exit"},
		},
		{
			name:        "up train is not reminded on entry",
			trainNumber: "1002",
			clock:       time.Date(2026, 10, 19, 9, 0, 0, 0, tokyo),
			positions:   []float64{6500, 6250, 6100, 5800},
			want:        []string{"rem-d-exit"},
		},
		{
			name:        "exit reminder outside its time window",
			trainNumber: "1001",
			clock:       time.Date(2026, 10, 19, 11, 0, 0, 0, tokyo),
			positions:   []float64{5500, 5750, 5900, 6200},
			want:        []string{"rem-d-enter"},
		},
		{
			name:        "destination filter",
			trainNumber: "3001",
			clock:       time.Date(2026, 10, 19, 9, 0, 0, 0, tokyo),
			positions:   []float64{5500, 5750},
			want:        []string{"rem-d-enter", "rem-d-branch"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			h := newHarness(t, TrainConfig{TrainNumber: tt.trainNumber})
			h.now = tt.clock
			h.drive(tt.positions...)
			var got []string
			for _, k := range keys(h.all) {
				if strings.HasPrefix(k, "rem-") {
					got = append(got, k)
				}
			}
			is.Equal(got, tt.want)
		})
	}
}

func TestEngine_ResetKeepsCooldowns(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})

	h.drive(900, 1650)
	is.Equal(countKey(h.all, "arr400_B"), 1)

	h.engine.ResetPosition()
	st := h.engine.Status()
	is.Equal(st.StartupMode, Searching)
	is.Equal(st.RouteLock, "")
	is.Equal(st.SpeedKmh, 0.0)

	out := h.drive(1500, 1650)
	is.Equal(countKey(out, "arr400_B"), 0)

	h.now = h.now.Add(dedupCooldown)
	h.engine.ResetPosition()
	out = h.drive(1500, 1650)
	is.Equal(countKey(out, "arr400_B"), 1)
}

func TestEngine_Underground(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})
	h.drive(900)

	h.engine.SetUnderground(true)
	out := h.drive(1550, 1650, 1850)
	is.Equal(len(out), 0)
	st := h.engine.Status()
	is.True(st.Underground)
	is.Equal(st.Nearest.StationId, "A")

	h.engine.SetUnderground(false)
	st = h.engine.Status()
	is.True(!st.Underground)
	is.Equal(st.StartupMode, Searching)
}

func TestEngine_RejectedFixes(t *testing.T) {
	tests := []struct {
		name string
		fix  func(now time.Time) Fix
		log  string
	}{
		{
			name: "stale",
			fix: func(now time.Time) Fix {
				return Fix{Lat: latAt(1650), Lon: baseLon, Timestamp: now.Add(-11 * time.Second), Accuracy: 10}
			},
			log: "stale by 11s",
		},
		{
			name: "inaccurate",
			fix: func(now time.Time) Fix {
				return Fix{Lat: latAt(1650), Lon: baseLon, Timestamp: now, Accuracy: 250}
			},
			log: "accuracy 250m",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			h := newHarness(t, TrainConfig{TrainNumber: "1001"})
			h.drive(900)
			before := h.engine.Status()

			h.now = h.now.Add(time.Second)
			out := h.engine.HandleFix(tt.fix(h.now))
			is.Equal(len(out), 0)
			is.Equal(h.engine.Status().Nearest, before.Nearest)
			is.True(strings.Contains(h.logs.String(), tt.log))
		})
	}
}

func TestEngine_Setters(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})
	e := h.engine

	is.True(e.AddTemporaryStop("nowhere") != nil)
	is.True(e.AddTemporaryPass("nowhere") != nil)
	is.True(e.SetPlatformOverride("nowhere", "1") != nil)
	is.True(e.ForceRouteLock("nowhere") != nil)
	is.True(e.ReassignAt("nowhere", "1001") != nil)
	is.True(e.ReassignAt("C", "5555") != nil)

	is.NoErr(e.AddTemporaryPass("B"))
	is.Equal(e.Status().TemporaryPasses, []string{"B"})
	is.NoErr(e.AddTemporaryStop("B"))
	st := e.Status()
	is.Equal(st.TemporaryStops, []string{"B"})
	is.Equal(st.TemporaryPasses, []string{})
	is.NoErr(e.RemoveTemporaryStop("坂下"))
	is.Equal(e.Status().TemporaryStops, []string{})

	is.NoErr(e.ForceRouteLock("branch"))
	is.Equal(e.Status().RouteLock, "branch")
	is.NoErr(e.ForceRouteLock(""))
	is.Equal(e.Status().RouteLock, "")

	is.NoErr(e.SetPlatformOverride("C", "5"))
	is.Equal(e.Status().PlatformOverrides, map[string]string{"C": "5"})
}

func TestEngine_StoppedIgnoresFixes(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})
	h.engine.Stop()

	out := h.drive(900, 1650)
	is.Equal(len(out), 0)
	is.True(!h.engine.Status().Active)
}

func TestEngine_LookupResults(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})

	st := h.engine.Status()
	is.True(!st.DelayKnown)

	delay := 3
	h.engine.ApplyLookup(LookupResult{TrainNumber: "1001", DelayMinutes: &delay, StationName: "坂下"})
	st = h.engine.Status()
	is.True(st.DelayKnown)
	is.Equal(st.DelayMinutes, 3)
	is.Equal(st.FeedStation, "坂下")

	// another train's result is stale
	other := 9
	h.engine.ApplyLookup(LookupResult{TrainNumber: "2001", DelayMinutes: &other})
	is.Equal(h.engine.Status().DelayMinutes, 3)

	// a failed lookup reports unknown
	h.engine.ApplyLookup(LookupResult{TrainNumber: "1001"})
	is.True(!h.engine.Status().DelayKnown)
}

func TestEngine_StatusTrack(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, TrainConfig{TrainNumber: "1001"})

	is.Equal(h.engine.Status().Track, "")
	for i := 0; i < trackLength+10; i++ {
		h.fixAt(900 + float64(i))
	}
	is.Equal(len(h.engine.track), trackLength)
	is.True(h.engine.Status().Track != "")
}
