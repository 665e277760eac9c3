package guidance

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/OpenTransitTools/trainguide/business/data/topology"
	geojson "github.com/paulmach/go.geojson"
)

//ReadTrace decodes a recorded trace: a GeoJSON FeatureCollection of Point features with a timestamp property in
//epoch milliseconds, an accuracy property in meters and an optional speed property in km/h.
//Fixes are returned in timestamp order
func ReadTrace(data []byte) ([]Fix, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	fixes := make([]Fix, 0, len(fc.Features))
	for i, feature := range fc.Features {
		if feature.Geometry == nil || !feature.Geometry.IsPoint() || len(feature.Geometry.Point) < 2 {
			return nil, fmt.Errorf("trace feature %d is not a point", i)
		}
		ts, err := feature.PropertyFloat64("timestamp")
		if err != nil {
			return nil, fmt.Errorf("trace feature %d timestamp: %w", i, err)
		}
		f := Fix{
			Lon:       feature.Geometry.Point[0],
			Lat:       feature.Geometry.Point[1],
			Timestamp: time.UnixMilli(int64(ts)),
		}
		if accuracy, err := feature.PropertyFloat64("accuracy"); err == nil {
			f.Accuracy = accuracy
		}
		if speed, err := feature.PropertyFloat64("speed"); err == nil {
			f.DeviceSpeedKmh = &speed
		}
		fixes = append(fixes, f)
	}
	sort.SliceStable(fixes, func(i, j int) bool {
		return fixes[i].Timestamp.Before(fixes[j].Timestamp)
	})
	return fixes, nil
}

//RunReplay runs a fresh engine over fixes with the clock pinned to each fix timestamp, publishing to sink.
//The session starts one start grace period before the first fix so the opening fixes are evaluated.
//Returns the final engine status
func RunReplay(log *log.Logger,
	topo *topology.Topology,
	train TrainConfig,
	conf Conf,
	fixes []Fix,
	sink AnnouncementSink) Status {
	var now time.Time
	if len(fixes) > 0 {
		now = fixes[0].Timestamp.Add(-startGrace)
	}
	conf.Clock = func() time.Time {
		return now
	}
	engine := NewEngine(log, topo, train, conf)
	sink.Publish(engine.Start())
	for _, f := range fixes {
		now = f.Timestamp
		sink.Publish(engine.HandleFix(f))
		sink.Publish(engine.Tick())
	}
	now = now.Add(confirmationDelay)
	sink.Publish(engine.Tick())
	status := engine.Status()
	engine.Stop()
	return status
}
