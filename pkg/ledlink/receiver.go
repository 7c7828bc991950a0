package ledlink

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// ReceiverState is a type for possible states of the Receiver state machine
type ReceiverState byte

const (
	idle           ReceiverState = iota // No sensing mode configured
	modeConfigured                      // Sensing mode applied to the module
	armed                               // Module answered the status request
	receiving                           // Pulses captured, waiting to be decoded
	complete                            // Samples consumed
	aborted                             // Module reported no data or timed out
)

var receiverStateNames = [...]string{
	idle:           "idle",
	modeConfigured: "mode-configured",
	armed:          "armed",
	receiving:      "receiving",
	complete:       "complete",
	aborted:        "aborted",
}

func (s ReceiverState) String() string {
	if int(s) < len(receiverStateNames) {
		return receiverStateNames[s]
	}
	return fmt.Sprintf("ReceiverState(%d)", byte(s))
}

// abortedCount is the pulse count the module reports when nothing was received
const abortedCount = 1

// Receiver configures the kernel module for reception and decodes the captured pulses.
// It exclusively owns its ControlSurface.
type Receiver struct {
	dev   ControlSurface
	pins  PinConfigurator
	th    Thresholds
	state ReceiverState
	mode  SensingMode
	count int

	// Pin is the GPIO the receiving LED is attached to
	Pin int
	// BufferLen limits the samples the module stores, the module default is used if zero
	BufferLen int
	// MaxDuration is the longest expected pulse, twice the center threshold if zero
	MaxDuration int
}

// NewReceiver creates a Receiver for the LED on pin, decoding with th
func NewReceiver(dev ControlSurface, pins PinConfigurator, pin int, th Thresholds) (*Receiver, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if pins == nil {
		pins = NopPins{}
	}
	return &Receiver{dev: dev, pins: pins, th: th, Pin: pin}, nil
}

// State returns the current state
func (r *Receiver) State() ReceiverState { return r.state }

// Mode returns the configured sensing mode
func (r *Receiver) Mode() SensingMode { return r.mode }

// Thresholds returns the decision thresholds
func (r *Receiver) Thresholds() Thresholds { return r.th }

// Count is the pulse count of the last reception
func (r *Receiver) Count() int { return r.count }

func (r *Receiver) setState(s ReceiverState) {
	if s != r.state {
		log.Debugf("State changed: %v --> %v", r.state, s)
	}
	r.state = s
}

func (r *Receiver) maxDuration() int {
	if r.MaxDuration > 0 {
		return r.MaxDuration
	}
	return int(2 * r.th.Center)
}

// Configure applies a sensing mode. Only one mode can be active: to switch, Reset first.
func (r *Receiver) Configure(mode SensingMode) error {
	if r.state != idle {
		return fmt.Errorf("configure %v in state %v: %w", mode, r.state, ErrState)
	}
	if err := mode.Validate(); err != nil {
		return err
	}

	if err := r.dev.Set(SettingGPIOPin, r.Pin); err != nil {
		return err
	}
	if r.BufferLen > 0 {
		if err := r.dev.Set(SettingBufferLen, r.BufferLen); err != nil {
			return err
		}
	}

	if err := r.pins.Input(r.Pin); err != nil {
		return err
	}
	switch mode.Kind {
	case Resistor:
		if err := r.pins.Pull(r.Pin, PullDown); err != nil {
			return err
		}
	case Capacitor:
		if err := r.pins.Pull(r.Pin, PullOff); err != nil {
			return err
		}
		if err := r.dev.Set(SettingCapLoad, mode.Load); err != nil {
			return err
		}
		if err := r.dev.Set(SettingCapUnload, mode.Unload); err != nil {
			return err
		}
	}

	if err := r.dev.Set(SettingMaxDuration, r.maxDuration()); err != nil {
		return err
	}
	if _, err := r.dev.Control(RequestMode, int(mode.Kind)); err != nil {
		return err
	}

	r.mode = mode
	r.setState(modeConfigured)
	log.Debugf("Configured %v on gpio %d", mode, r.Pin)
	return nil
}

// Reset returns the Receiver to idle so another sensing mode can be configured
func (r *Receiver) Reset() {
	r.mode = SensingMode{}
	r.count = 0
	r.setState(idle)
}

// Arm checks that the module answers. A configured Receiver can be armed again after a reception.
func (r *Receiver) Arm() error {
	switch r.state {
	case modeConfigured, complete, aborted:
	default:
		return fmt.Errorf("arm in state %v: %w", r.state, ErrState)
	}
	if _, err := r.dev.Control(RequestStatus, 0); err != nil {
		return err
	}
	r.setState(armed)
	return nil
}

// Receive starts the reception and returns the number of captured pulses.
// It blocks until a transmission ends or the module's maximum-duration timeout elapses;
// there is no way to cancel it. A count of one means nothing was received and is
// reported as ErrAbortedReception.
func (r *Receiver) Receive() (int, error) {
	if r.state != armed {
		return 0, fmt.Errorf("receive in state %v: %w", r.state, ErrState)
	}
	log.Debugf("Waiting for data")
	n, err := r.dev.Control(RequestReceive, 0)
	if err != nil {
		r.setState(aborted)
		return 0, newError("receive", StatusFailed, -1, err)
	}
	if n < 0 {
		r.setState(aborted)
		return 0, newError("receive", StatusFailed, n, nil)
	}
	r.count = n
	if n == abortedCount {
		r.setState(aborted)
		return n, newError("receive", StatusAborted, n, nil)
	}
	r.setState(receiving)
	log.Debugf("Captured %d pulses", n)
	return n, nil
}

// readSamples reads up to n samples, calling fn for each. A stream that ends early is not an error.
func (r *Receiver) readSamples(n int, fn func(int64)) error {
	for i := 0; i < n; i++ {
		d, err := ReadSample(r.dev)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				log.Debugf("Sample stream ended after %d of %d samples", i, n)
				return nil
			}
			return fmt.Errorf("could not read sample %d: %w", i, err)
		}
		fn(d)
	}
	return nil
}

// Decode reads n samples and decodes them into bytes. Samples outside the thresholds are
// dropped without advancing the bit position, and a trailing partial byte is dropped.
func (r *Receiver) Decode(n int) ([]byte, error) {
	if r.state != receiving {
		return nil, fmt.Errorf("decode in state %v: %w", r.state, ErrState)
	}
	defer r.setState(complete)

	var (
		dec = NewBitDecoder(r.th)
		out = make([]byte, 0, n/8)
	)
	err := r.readSamples(n, func(d int64) {
		if c, ok := dec.Push(d); ok {
			out = append(out, c)
		}
	})
	if dec.Discarded > 0 {
		log.Debugf("Discarded %d samples outside (%d, %d)", dec.Discarded, r.th.Lower, r.th.Upper)
	}
	if dec.Pending() > 0 {
		log.Debugf("Dropped %d trailing bits", dec.Pending())
	}
	return out, err
}

// Measure reads n samples and summarizes those within (Lower, Upper).
// It helps choosing the center threshold and consumes the reception like Decode.
func (r *Receiver) Measure(n int) (Stats, error) {
	if r.state != receiving {
		return Stats{}, fmt.Errorf("measure in state %v: %w", r.state, ErrState)
	}
	defer r.setState(complete)

	var st Stats
	err := r.readSamples(n, func(d int64) {
		if r.th.Lower < d && d < r.th.Upper {
			st.add(d)
		}
	})
	return st, err
}

// ReceiveTo arms the module, waits for a transmission and writes the decoded bytes to w.
// It blocks like Receive.
func (r *Receiver) ReceiveTo(w io.Writer) (int, error) {
	if err := r.Arm(); err != nil {
		return 0, err
	}
	n, err := r.Receive()
	if err != nil {
		return 0, err
	}
	data, err := r.Decode(n)
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}
