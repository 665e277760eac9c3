package guidance

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestStartupDetector(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	type step struct {
		nearest Nearest
		after   time.Duration
		want    startupOutcome
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "between stations on the first fix",
			steps: []step{
				{Nearest{StationId: "A", Distance: 600}, 0, betweenStations},
			},
		},
		{
			name: "three fixes at the same station",
			steps: []step{
				{Nearest{StationId: "B", Distance: 10}, 0, stillSearching},
				{Nearest{StationId: "B", Distance: 15}, time.Second, stillSearching},
				{Nearest{StationId: "B", Distance: 20}, 2 * time.Second, atStation},
			},
		},
		{
			name: "a new candidate restarts the count",
			steps: []step{
				{Nearest{StationId: "B", Distance: 190}, 0, stillSearching},
				{Nearest{StationId: "B", Distance: 190}, time.Second, stillSearching},
				{Nearest{StationId: "C", Distance: 190}, 2 * time.Second, stillSearching},
				{Nearest{StationId: "C", Distance: 190}, 3 * time.Second, stillSearching},
				{Nearest{StationId: "C", Distance: 190}, 4 * time.Second, atStation},
			},
		},
		{
			name: "timeout runs from entering the search",
			steps: []step{
				{Nearest{StationId: "B", Distance: 50}, 2 * time.Second, stillSearching},
				{Nearest{StationId: "C", Distance: 50}, searchTimeout, atStation},
			},
		},
		{
			name: "a late first fix at a station decides at once",
			steps: []step{
				{Nearest{StationId: "B", Distance: 50}, searchTimeout + time.Second, atStation},
			},
		},
		{
			name: "leaving the platform ends the search",
			steps: []step{
				{Nearest{StationId: "B", Distance: 150}, 0, stillSearching},
				{Nearest{StationId: "B", Distance: 210}, time.Second, betweenStations},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			var s startupDetector
			s.begin(start)
			for _, st := range tt.steps {
				is.Equal(s.observe(st.nearest, start.Add(st.after)), st.want)
			}
			is.Equal(s.mode, Fixed)
			is.Equal(s.observe(Nearest{StationId: "A"}, start), stillSearching)
		})
	}
}
