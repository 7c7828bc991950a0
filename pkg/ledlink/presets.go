package ledlink

import (
	"fmt"
	"sort"
)

// ReceiverPreset is the tuned receiver configuration of a target board
type ReceiverPreset struct {
	Pin         int         `json:"pin" yaml:"pin"`
	Mode        SensingMode `json:"mode" yaml:",inline"`
	BufferLen   int         `json:"buffer_len" yaml:"buffer_len"`
	Lower       int64       `json:"lower" yaml:"lower"`
	Center      int64       `json:"center,omitempty" yaml:"center,omitempty"`
	Upper       int64       `json:"upper" yaml:"upper"`
	MaxDuration int         `json:"max_duration,omitempty" yaml:"max_duration,omitempty"`
	// DisableWatchdog is set for AR9331 boards, whose watchdog fires during a long reception
	DisableWatchdog bool `json:"disable_watchdog,omitempty" yaml:"disable_watchdog,omitempty"`
}

// Thresholds returns the preset's limits around center.
// A center of zero keeps the preset's own center.
func (p ReceiverPreset) Thresholds(center int64) Thresholds {
	if center == 0 {
		center = p.Center
	}
	return Thresholds{Lower: p.Lower, Center: center, Upper: p.Upper}
}

// Validate checks the sensing mode and the limits. The center is only checked if set.
func (p ReceiverPreset) Validate() error {
	if p.Pin < 0 {
		return fmt.Errorf("invalid gpio %d", p.Pin)
	}
	if p.BufferLen < 0 {
		return fmt.Errorf("invalid buffer length %d", p.BufferLen)
	}
	if err := p.Mode.Validate(); err != nil {
		return err
	}
	if p.Center != 0 {
		return p.Thresholds(0).Validate()
	}
	if p.Lower >= p.Upper {
		return fmt.Errorf("%w: need lower < upper (got %d, %d)", ErrInvalidThresholds, p.Lower, p.Upper)
	}
	return nil
}

// Apply copies the preset's pin, buffer length and maximum duration to r
func (p ReceiverPreset) Apply(r *Receiver) {
	r.Pin = p.Pin
	r.BufferLen = p.BufferLen
	r.MaxDuration = p.MaxDuration
}

// PresetTable maps board names to receiver presets
type PresetTable map[string]ReceiverPreset

// Presets are the receiver settings the target boards were tuned with
var Presets = PresetTable{
	"raspi": {
		Pin: 26, Mode: ResistorMode(),
		Lower: 0, Upper: 10000000,
	},
	"t21p": {
		Pin: 112, Mode: CapacitorMode(120, 20), BufferLen: 8000,
		Lower: 10, Upper: 1000000,
	},
	"wr1043nd": {
		Pin: 5, Mode: ResistorMode(), BufferLen: 16000,
		Lower: 30, Upper: 10000,
		DisableWatchdog: true,
	},
	"mr3020": {
		Pin: 0, Mode: ResistorMode(), BufferLen: 8000,
		Lower: 10, Upper: 100000,
		DisableWatchdog: true,
	},
}

// Lookup finds a preset by board name
func (t PresetTable) Lookup(name string) (ReceiverPreset, error) {
	if p, ok := t[name]; ok {
		return p, nil
	}
	return ReceiverPreset{}, fmt.Errorf("no receiver preset for board %q", name)
}

// Names returns the sorted board names of the table
func (t PresetTable) Names() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
