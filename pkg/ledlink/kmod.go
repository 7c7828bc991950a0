package ledlink

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultKmodPath is the char device created by the led_transceiver kernel module
const DefaultKmodPath = "/dev/led_transceiver"

// Setting is a numbered parameter of the kernel module, applied with the SETTING request
type Setting int

const (
	SettingMaxDuration Setting = 0 // Maximum bit duration, reception ends after twice this without a pulse
	SettingCapLoad     Setting = 1 // Capacitor charge time
	SettingCapUnload   Setting = 2 // Capacitor discharge time
	SettingGPIOPin     Setting = 3 // GPIO the LED is attached to
	SettingBufferLen   Setting = 4 // Number of pulse samples the module can hold
	SettingGuard       Setting = 5 // Dark interval after every transmitted byte
	SettingBitDuration Setting = 6 // Duration of one transmitted bit
	SettingPreamble    Setting = 7 // 1 to send a 0xaa byte ahead of the data
)

var settingNames = map[Setting]string{
	SettingMaxDuration: "MAX_DURATION",
	SettingCapLoad:     "CAP_LOAD",
	SettingCapUnload:   "CAP_UNLOAD",
	SettingGPIOPin:     "GPIO_PIN",
	SettingBufferLen:   "BUFFER_LEN",
	SettingGuard:       "GUARD",
	SettingBitDuration: "BIT_DURATION",
	SettingPreamble:    "PREAMBLE_FLAG",
}

func (s Setting) String() string {
	if n, ok := settingNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Setting(%d)", int(s))
}

// Request is a control request of the kernel module
type Request int

const (
	RequestStatus       Request = 0 // Liveness check, logs the settings to the kernel log
	RequestMode         Request = 1 // Select Resistor (0) or Capacitor (1) sensing
	RequestGetSample    Request = 2 // Read the LED level once
	RequestReceive      Request = 3 // Block until a transmission ends, returns the pulse count
	RequestSetting      Request = 4 // Apply a Setting
	RequestMeasureLoad  Request = 5 // Returns one capacitor charge duration
	RequestTransmit     Request = 6 // Send the written buffer, returns the byte count
	RequestTransmitTest Request = 7 // Send the self-test pattern
)

var requestNames = [...]string{
	RequestStatus:       "STATUS",
	RequestMode:         "MODE",
	RequestGetSample:    "GET_SAMPLE",
	RequestReceive:      "RECEIVE",
	RequestSetting:      "SETTING",
	RequestMeasureLoad:  "MEASURE_LOAD",
	RequestTransmit:     "TRANSMIT",
	RequestTransmitTest: "TRANSMIT_TEST",
}

func (r Request) String() string {
	if r >= 0 && int(r) < len(requestNames) {
		return requestNames[r]
	}
	return fmt.Sprintf("Request(%d)", int(r))
}

// code returns the ioctl request number, as declared by the kernel module
func (r Request) code() uint {
	switch r {
	case RequestMode, RequestSetting:
		return iow(uintptr(r))
	}
	return ior(uintptr(r))
}

// ControlSurface is the kernel-exposed side of the link: numbered settings and control
// requests, a stream of pulse samples to read and a transmit buffer to write.
// Control blocks for as long as the request takes; RECEIVE until the hardware timeout.
type ControlSurface interface {
	Set(s Setting, value int) error
	Control(r Request, arg int) (int, error)
	io.ReadWriter
}

// SampleSize is the wire size of one pulse sample
const SampleSize = 8

// ReadSample reads one pulse duration in microseconds from r
func ReadSample(r io.Reader) (int64, error) {
	var buf [SampleSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.NativeEndian.Uint64(buf[:])), nil
}
