package ledlink

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ModeKind selects how the receiving circuit senses light
type ModeKind int

const (
	// Resistor relies on the natural discharge through a pull-down resistor
	Resistor ModeKind = 0
	// Capacitor actively charges and discharges a capacitor, the charge time measures the light
	Capacitor ModeKind = 1
)

func (k ModeKind) String() string {
	switch k {
	case Resistor:
		return "resistor"
	case Capacitor:
		return "capacitor"
	}
	return fmt.Sprintf("ModeKind(%d)", int(k))
}

// ParseModeKind accepts "res", "resistor", "cap", "capacitor" or the numeric value
func ParseModeKind(s string) (ModeKind, error) {
	switch strings.ToLower(s) {
	case "res", "resistor", "0":
		return Resistor, nil
	case "cap", "capacitor", "1":
		return Capacitor, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidMode, s)
}

// MarshalText implements encoding.TextMarshaler
func (k ModeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ModeKind) UnmarshalText(b []byte) error {
	v, err := ParseModeKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// SensingMode is the receiver's sensing configuration. Load and Unload, the capacitor
// charge and discharge times in microseconds, are only used in Capacitor mode.
type SensingMode struct {
	Kind   ModeKind `json:"kind" yaml:"mode"`
	Load   int      `json:"load,omitempty" yaml:"load,omitempty"`
	Unload int      `json:"unload,omitempty" yaml:"unload,omitempty"`
}

// ResistorMode returns the passive sensing mode
func ResistorMode() SensingMode { return SensingMode{Kind: Resistor} }

// CapacitorMode returns the active sensing mode with the given charge and discharge times
func CapacitorMode(load, unload int) SensingMode {
	return SensingMode{Kind: Capacitor, Load: load, Unload: unload}
}

// Validate checks the mode kind and, for Capacitor mode, the charge times
func (m SensingMode) Validate() error {
	switch m.Kind {
	case Resistor:
		return nil
	case Capacitor:
		if m.Load <= 0 || m.Unload <= 0 {
			return fmt.Errorf("%w: capacitor mode needs positive load and unload times (load=%d, unload=%d)",
				ErrInvalidMode, m.Load, m.Unload)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidMode, m.Kind)
}

func (m SensingMode) String() string {
	if m.Kind == Capacitor {
		return fmt.Sprintf("capacitor(load=%dus, unload=%dus)", m.Load, m.Unload)
	}
	return m.Kind.String()
}

// Pull is the pull resistor setting of an input pin
type Pull int

const (
	PullOff Pull = iota // tri-state
	PullDown
	PullUp
)

func (p Pull) arg() string {
	switch p {
	case PullDown:
		return "down"
	case PullUp:
		return "up"
	}
	return "tri"
}

// PinConfigurator sets up the sensing GPIO before the kernel module takes over
type PinConfigurator interface {
	Input(pin int) error
	Pull(pin int, p Pull) error
}

// GPIOUtility configures pins with the wiringPi gpio utility using BCM numbering.
// It leaves the pin unexported so the kernel module can still request it.
type GPIOUtility struct {
	// Path to the gpio binary, "gpio" if empty
	Path string
}

func (g GPIOUtility) run(args ...string) error {
	bin := g.Path
	if bin == "" {
		bin = "gpio"
	}
	args = append([]string{"-g", "mode"}, args...)
	log.Debugf("Running %s %s", bin, strings.Join(args, " "))
	out, err := exec.Command(bin, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("could not run %s %s: %w (%s)", bin, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Input switches pin to input
func (g GPIOUtility) Input(pin int) error { return g.run(strconv.Itoa(pin), "in") }

// Pull sets the pull resistor of pin
func (g GPIOUtility) Pull(pin int, p Pull) error { return g.run(strconv.Itoa(pin), p.arg()) }

// NopPins leaves pin configuration to the board, e.g. when the kernel module alone drives the GPIO
type NopPins struct{}

func (NopPins) Input(pin int) error        { return nil }
func (NopPins) Pull(pin int, p Pull) error { return nil }
