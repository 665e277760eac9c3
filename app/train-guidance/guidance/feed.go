package guidance

import (
	"context"
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/OpenTransitTools/trainguide/foundation/httpclient"
	"google.golang.org/protobuf/proto"
)

//fetchFeed retrieves and decodes a GTFS-RT feed from url
func fetchFeed(ctx context.Context, client *httpclient.Client, url string) (*gtfs.FeedMessage, error) {
	data, _, err := client.RetrieveBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(data, feed); err != nil {
		return nil, fmt.Errorf("failed to parse gtfs-rt feed from %s: %w", url, err)
	}
	return feed, nil
}

//vehicleFix finds the vehicle whose id or label is vehicleId in feed and returns its position as a Fix.
//Returns the position timestamp in seconds, or false when the vehicle or its position is missing
func vehicleFix(feed *gtfs.FeedMessage, vehicleId string) (Fix, uint64, bool) {
	for _, entity := range feed.Entity {
		vp := entity.Vehicle
		if vp == nil || vp.Position == nil || vp.Vehicle == nil {
			continue
		}
		if vp.Vehicle.GetId() != vehicleId && vp.Vehicle.GetLabel() != vehicleId {
			continue
		}
		ts := vp.GetTimestamp()
		if ts == 0 {
			ts = feed.GetHeader().GetTimestamp()
		}
		f := Fix{
			Lat:       float64(vp.Position.GetLatitude()),
			Lon:       float64(vp.Position.GetLongitude()),
			Timestamp: time.Unix(int64(ts), 0),
		}
		if vp.Position.Speed != nil {
			kmh := float64(vp.Position.GetSpeed()) * 3.6
			f.DeviceSpeedKmh = &kmh
		}
		return f, ts, true
	}
	return Fix{}, 0, false
}

// TripDelay is the delay the trip updates feed reports for one train
type TripDelay struct {
	DelayMinutes       *int
	StationId          string
	ScheduledDeparture *time.Time
}

//tripDelay finds the trip update for trainNumber, matched against the trip id or vehicle label, and reads the delay
//at stationId, or at the first reported stop when stationId has no update
func tripDelay(feed *gtfs.FeedMessage, trainNumber string, stationId string) (TripDelay, bool) {
	for _, entity := range feed.Entity {
		tu := entity.TripUpdate
		if tu == nil || tu.Trip == nil {
			continue
		}
		if tu.Trip.GetTripId() != trainNumber && tu.GetVehicle().GetLabel() != trainNumber {
			continue
		}
		if len(tu.StopTimeUpdate) == 0 {
			return TripDelay{}, true
		}
		stu := tu.StopTimeUpdate[0]
		for _, candidate := range tu.StopTimeUpdate {
			if candidate.GetStopId() == stationId {
				stu = candidate
				break
			}
		}
		result := TripDelay{StationId: stu.GetStopId()}
		var delaySeconds *int32
		switch {
		case stu.Departure != nil && stu.Departure.Delay != nil:
			delaySeconds = stu.Departure.Delay
		case stu.Arrival != nil && stu.Arrival.Delay != nil:
			delaySeconds = stu.Arrival.Delay
		}
		if delaySeconds != nil {
			minutes := int(*delaySeconds) / 60
			result.DelayMinutes = &minutes
		}
		if stu.Departure != nil && stu.Departure.Time != nil {
			scheduled := time.Unix(stu.Departure.GetTime(), 0)
			if delaySeconds != nil {
				scheduled = scheduled.Add(-time.Duration(*delaySeconds) * time.Second)
			}
			result.ScheduledDeparture = &scheduled
		}
		return result, true
	}
	return TripDelay{}, false
}
