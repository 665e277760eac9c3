// Package guidance turns a stream of position fixes into station approach announcements for one train
package guidance

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

//Fix is a single position sample from the train's position source.
//DeviceSpeedKmh is nil when the source did not report a speed
type Fix struct {
	Lat            float64
	Lon            float64
	Timestamp      time.Time
	Accuracy       float64
	DeviceSpeedKmh *float64
}

//fixMessage is the json representation of a Fix carried over NATS and in recorded traces
type fixMessage struct {
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	TimestampMs int64    `json:"timestamp_ms"`
	Accuracy    float64  `json:"accuracy"`
	SpeedKmh    *float64 `json:"speed_kmh,omitempty"`
}

//decodeFix unmarshals a fixMessage, rejecting coordinates that cannot be a position
func decodeFix(data []byte) (Fix, error) {
	var msg fixMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Fix{}, fmt.Errorf("decoding fix: %w", err)
	}
	if math.IsNaN(msg.Lat) || math.IsNaN(msg.Lon) || math.Abs(msg.Lat) > 90 || math.Abs(msg.Lon) > 180 {
		return Fix{}, fmt.Errorf("fix has invalid coordinates %f,%f", msg.Lat, msg.Lon)
	}
	if msg.TimestampMs <= 0 {
		return Fix{}, fmt.Errorf("fix is missing timestamp_ms")
	}
	return Fix{
		Lat:            msg.Lat,
		Lon:            msg.Lon,
		Timestamp:      time.UnixMilli(msg.TimestampMs),
		Accuracy:       msg.Accuracy,
		DeviceSpeedKmh: msg.SpeedKmh,
	}, nil
}

//rejectReason returns why f must not reach the engine, or "" when it is usable
func rejectReason(f Fix, now time.Time, maxAge time.Duration, maxAccuracy float64) string {
	if maxAge > 0 && now.Sub(f.Timestamp) > maxAge {
		return fmt.Sprintf("stale by %s", now.Sub(f.Timestamp).Round(time.Millisecond))
	}
	if maxAccuracy > 0 && f.Accuracy > maxAccuracy {
		return fmt.Sprintf("accuracy %.0fm", f.Accuracy)
	}
	return ""
}
