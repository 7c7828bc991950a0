package ledlink

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// DefaultLoadSamples is the number of MEASURE_LOAD requests MeasureLoad issues by default
const DefaultLoadSamples = 50

// Stats summarizes a set of durations in microseconds
type Stats struct {
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`

	sum int64
}

func (s *Stats) add(d int64) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if s.Count == 0 || d > s.Max {
		s.Max = d
	}
	s.Count++
	s.sum += d
	s.Mean = float64(s.sum) / float64(s.Count)
}

func (s Stats) String() string {
	return fmt.Sprintf("min=%d max=%d mean=%.2f (n=%d)", s.Min, s.Max, s.Mean, s.Count)
}

// MeasureLoad issues MEASURE_LOAD n times and summarizes the capacitor charge durations.
// The module measures with its current settings, use Receiver.MeasureLoad to configure them first.
// Every value is kept, including the -1 the module reports when the charge timed out.
// n <= 0 selects DefaultLoadSamples. Each request blocks for up to one charge timeout.
func MeasureLoad(dev ControlSurface, n int) (Stats, error) {
	if n <= 0 {
		n = DefaultLoadSamples
	}
	var st Stats
	for i := 0; i < n; i++ {
		v, err := dev.Control(RequestMeasureLoad, 0)
		if err != nil {
			return st, fmt.Errorf("could not measure load (%d/%d): %w", i+1, n, err)
		}
		log.Debugf("Load sample %d: %dus", i, v)
		st.add(int64(v))
	}
	return st, nil
}

// MeasureLoad measures the charge time of the configured capacitor n times.
// The Receiver must be configured in Capacitor mode, so the module knows the pin
// and the charge times before the first measurement.
func (r *Receiver) MeasureLoad(n int) (Stats, error) {
	if r.state == idle {
		return Stats{}, fmt.Errorf("measure load in state %v: %w", r.state, ErrState)
	}
	if r.mode.Kind != Capacitor {
		return Stats{}, fmt.Errorf("%w: load measurement needs capacitor mode, configured %v", ErrInvalidMode, r.mode)
	}
	return MeasureLoad(r.dev, n)
}
