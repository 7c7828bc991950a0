package ledlink

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Profile holds the bit timing of a link, all durations in microseconds
type Profile struct {
	One   int `json:"one" yaml:"one"`
	Zero  int `json:"zero" yaml:"zero"`
	Guard int `json:"guard" yaml:"guard"`
}

// Validate checks that both bit durations are positive and that a one is the longer pulse,
// receivers decode the shorter pulse as zero.
func (p Profile) Validate() error {
	switch {
	case p.One <= 0 || p.Zero <= 0:
		return fmt.Errorf("%w: bit durations must be positive (one=%d, zero=%d)", ErrInvalidProfile, p.One, p.Zero)
	case p.Guard < 0:
		return fmt.Errorf("%w: negative guard duration %d", ErrInvalidProfile, p.Guard)
	case p.One == p.Zero:
		return fmt.Errorf("%w: one and zero durations are both %dus", ErrInvalidProfile, p.One)
	case p.One < p.Zero:
		return fmt.Errorf("%w: one (%dus) must be longer than zero (%dus)", ErrInvalidProfile, p.One, p.Zero)
	}
	return nil
}

func (p Profile) String() string {
	return fmt.Sprintf("one=%dus zero=%dus guard=%dus", p.One, p.Zero, p.Guard)
}

// Pulse is one light-on interval followed by a dark guard interval
type Pulse struct {
	On    time.Duration
	Guard time.Duration
}

// Schedule returns the pulses the far-end transmitter emits for payload:
// eight pulses per byte, most significant bit first.
func (p Profile) Schedule(payload []byte) []Pulse {
	var (
		one   = time.Duration(p.One) * time.Microsecond
		zero  = time.Duration(p.Zero) * time.Microsecond
		guard = time.Duration(p.Guard) * time.Microsecond
	)
	pulses := make([]Pulse, 0, 8*len(payload))
	for _, c := range payload {
		for i := 7; i >= 0; i-- {
			on := zero
			if (c>>uint(i))&1 == 1 {
				on = one
			}
			pulses = append(pulses, Pulse{On: on, Guard: guard})
		}
	}
	return pulses
}

// Airtime is the total duration the far end needs to emit payload
func (p Profile) Airtime(payload []byte) time.Duration {
	var d time.Duration
	for _, pl := range p.Schedule(payload) {
		d += pl.On + pl.Guard
	}
	return d
}

// ProfileTable maps device-class identifiers to tuned profiles
type ProfileTable map[string]Profile

// Profiles are the tuned timings for the receiving devices the link was tested with.
// The numeric aliases are the device-class identifiers used on the command line.
var Profiles = ProfileTable{
	"raspi":    {One: 150, Zero: 75, Guard: 40},
	"t21p":     {One: 7000, Zero: 3000, Guard: 3000},
	"wr1043nd": {One: 400, Zero: 200, Guard: 100},
}

var profileAliases = map[int]string{
	0: "raspi",
	1: "t21p",
	2: "wr1043nd",
}

// Lookup finds a profile by device name or numeric device-class identifier
func (t ProfileTable) Lookup(id string) (Profile, error) {
	if p, ok := t[id]; ok {
		return p, nil
	}
	if i, err := strconv.Atoi(id); err == nil {
		if name, ok := profileAliases[i]; ok {
			if p, ok := t[name]; ok {
				return p, nil
			}
		}
	}
	return Profile{}, fmt.Errorf("no profile for device %q", id)
}

// Names returns the sorted device names of the table
func (t ProfileTable) Names() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Thresholds are the receiver's decision limits in microseconds.
// Samples in (Lower, Center) decode to 0, samples in (Center, Upper) to 1.
type Thresholds struct {
	Lower  int64 `json:"lower" yaml:"lower"`
	Center int64 `json:"center" yaml:"center"`
	Upper  int64 `json:"upper" yaml:"upper"`
}

// Validate checks Lower < Center < Upper
func (th Thresholds) Validate() error {
	if !(th.Lower < th.Center && th.Center < th.Upper) {
		return fmt.Errorf("%w: need lower < center < upper (got %d, %d, %d)",
			ErrInvalidThresholds, th.Lower, th.Center, th.Upper)
	}
	return nil
}

// classify returns the bit for a sample and whether the sample is in range
func (th Thresholds) classify(d int64) (bit byte, ok bool) {
	switch {
	case th.Lower < d && d < th.Center:
		return 0, true
	case th.Center < d && d < th.Upper:
		return 1, true
	}
	return 0, false
}
