package ledlink

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Preamble is the byte the kernel module sends ahead of the data when the preamble flag is set
const Preamble = 0xaa

// KernelTransmitter sends data by blinking the target's LED through the kernel module
type KernelTransmitter struct {
	dev ControlSurface
}

// NewKernelTransmitter returns a transmitter owning dev
func NewKernelTransmitter(dev ControlSurface) *KernelTransmitter {
	return &KernelTransmitter{dev: dev}
}

// Configure applies the LED pin and the bit timing in microseconds
func (t *KernelTransmitter) Configure(pin, bitDuration, guard int, preamble bool) error {
	if bitDuration <= 0 || guard < 0 {
		return fmt.Errorf("%w: bit duration %dus, guard %dus", ErrInvalidProfile, bitDuration, guard)
	}
	flag := 0
	if preamble {
		flag = 1
	}
	for _, s := range []struct {
		id Setting
		v  int
	}{
		{SettingGPIOPin, pin},
		{SettingBitDuration, bitDuration},
		{SettingGuard, guard},
		{SettingPreamble, flag},
	} {
		if err := t.dev.Set(s.id, s.v); err != nil {
			return fmt.Errorf("could not set %v: %w", s.id, err)
		}
	}
	return nil
}

// Transmit hands data to the module and sends it. It blocks until the module is done
// and returns the number of bytes the module reports as sent.
func (t *KernelTransmitter) Transmit(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	n, err := t.dev.Write(data)
	if err != nil {
		return 0, fmt.Errorf("could not write transmit buffer: %w", err)
	}
	if n != len(data) {
		log.Warnf("Module accepted %d of %d bytes", n, len(data))
	}
	if _, err := t.dev.Control(RequestStatus, 0); err != nil {
		return 0, err
	}
	sent, err := t.dev.Control(RequestTransmit, 0)
	if err != nil {
		return 0, err
	}
	log.Debugf("Transmitted %d bytes", sent)
	return sent, nil
}

// TransmitTest sends the module's built-in test pattern
func (t *KernelTransmitter) TransmitTest() error {
	_, err := t.dev.Control(RequestTransmitTest, 0)
	return err
}
