package guidance

import (
	"math"
	"sort"
	"time"

	"github.com/OpenTransitTools/trainguide/foundation/geo"
)

const (
	speedWindowSize = 5
	minSampleGap    = 300 * time.Millisecond
	maxSampleGap    = 30 * time.Second
	// instantaneous speeds are clamped before comparison, reported speed is clamped to maxReportedKmh
	maxInstantKmh  = 250.0
	maxReportedKmh = 200.0
	// a sample within acceptDeltaKmh of the smoothed speed is plausible
	acceptDeltaKmh = 60.0
	// a sample within deviceAgreeKmh of the device speed is plausible even when it jumps
	deviceAgreeKmh = 25.0
	// device and computed speeds within blendDeltaKmh are averaged
	blendDeltaKmh = 30.0
	// consecutive rejections treated as a real change in speed
	reseedStreak = 5
)

//speedEstimator smooths speeds derived from consecutive fixes with a median over a small window,
//rejecting samples that jump implausibly unless the device agrees or the jump persists
type speedEstimator struct {
	window   []float64
	smoothed float64
	streak   int
	// rejected is the last rejected sample while the window is empty
	rejected *float64

	hasPrev  bool
	prevLat  float64
	prevLon  float64
	prevTime time.Time
}

//reset discards the window and the previous fix, the reported speed returns to zero
func (s *speedEstimator) reset() {
	*s = speedEstimator{}
}

//speed returns the current smoothed speed in km/h
func (s *speedEstimator) speed() float64 {
	return s.smoothed
}

//update feeds a fix to the estimator and returns the smoothed speed in km/h
func (s *speedEstimator) update(f Fix) float64 {
	var device *float64
	if f.DeviceSpeedKmh != nil && !math.IsNaN(*f.DeviceSpeedKmh) && !math.IsInf(*f.DeviceSpeedKmh, 0) {
		d := clamp(*f.DeviceSpeedKmh, 0, maxInstantKmh)
		device = &d
	}

	instant, haveInstant := 0.0, false
	if !s.hasPrev {
		s.setPrev(f)
	} else {
		dt := f.Timestamp.Sub(s.prevTime)
		switch {
		case dt > minSampleGap && dt < maxSampleGap:
			meters := geo.DistanceMeters(s.prevLat, s.prevLon, f.Lat, f.Lon)
			if math.IsNaN(meters) || math.IsInf(meters, 0) {
				return s.smoothed
			}
			instant = clamp(meters/dt.Seconds()*3.6, 0, maxInstantKmh)
			haveInstant = true
			s.setPrev(f)
		case dt >= maxSampleGap:
			// too old to derive a speed from, start again from this fix
			s.setPrev(f)
		}
		// samples too close together keep the earlier fix as the reference
	}

	if !haveInstant {
		if device != nil {
			s.push(*device)
		}
		return s.smoothed
	}

	accepted := math.Abs(instant-s.smoothed) < acceptDeltaKmh ||
		(device != nil && math.Abs(instant-*device) <= deviceAgreeKmh)
	// with nothing to smooth against, a sample agreeing with the one rejected before it seeds the window
	if !accepted && len(s.window) == 0 && s.rejected != nil {
		accepted = math.Abs(instant-*s.rejected) < acceptDeltaKmh
	}
	if accepted {
		s.push(s.blend(instant, device))
		return s.smoothed
	}

	if len(s.window) == 0 {
		s.rejected = &instant
	}
	s.streak++
	if s.streak >= reseedStreak {
		s.window = s.window[:0]
		seed := instant
		if device != nil {
			seed = *device
		}
		s.push(seed)
	}
	return s.smoothed
}

func (s *speedEstimator) setPrev(f Fix) {
	s.hasPrev = true
	s.prevLat = f.Lat
	s.prevLon = f.Lon
	s.prevTime = f.Timestamp
}

//blend combines the computed and device speeds into a single sample
func (s *speedEstimator) blend(instant float64, device *float64) float64 {
	if device == nil {
		return instant
	}
	if math.Abs(instant-*device) <= blendDeltaKmh {
		return (instant + *device) / 2
	}
	if math.Abs(*device-s.smoothed) < math.Abs(instant-s.smoothed) {
		return *device
	}
	return instant
}

//push adds an accepted sample and recomputes the smoothed speed
func (s *speedEstimator) push(sample float64) {
	s.streak = 0
	s.rejected = nil
	s.window = append(s.window, sample)
	if len(s.window) > speedWindowSize {
		s.window = s.window[len(s.window)-speedWindowSize:]
	}
	s.smoothed = clamp(median(s.window), 0, maxReportedKmh)
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
