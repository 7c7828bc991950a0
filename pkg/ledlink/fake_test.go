package ledlink

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// firmware emulates the far-end transmitter behind a serial port
type firmware struct {
	written bytes.Buffer // everything the host wrote
	out     bytes.Buffer // bytes waiting for the host

	noLine   bool // tcp-like link without control line
	dtr      []bool
	flushed  int
	bootAck  byte
	modeAck  byte
	frameAck byte
	room     byte
	capacity int
	nackAt   int  // 1-based frame number answered with a nack
	silent   bool // never answer after boot

	profile Profile
	lines   []int
	line    []byte
	want    int
	payload []byte
	frames  [][]byte
	pulses  []Pulse
	closed  bool
}

func newFirmware() *firmware {
	return &firmware{bootAck: NUL, modeAck: NUL, frameAck: NUL, room: 0x02, want: -1}
}

func (fw *firmware) boot() {
	fw.lines = nil
	fw.line = nil
	fw.want = -1
	fw.payload = nil
	fw.profile = Profile{}
}

func (fw *firmware) reply(b byte) {
	if !fw.silent {
		fw.out.WriteByte(b)
	}
}

func (fw *firmware) Write(p []byte) (int, error) {
	if fw.closed {
		return 0, io.ErrClosedPipe
	}
	fw.written.Write(p)
	for _, c := range p {
		fw.consume(c)
	}
	return len(p), nil
}

func (fw *firmware) consume(c byte) {
	if fw.want > 0 {
		fw.payload = append(fw.payload, c)
		if len(fw.payload) == fw.want {
			fw.endFrame()
		}
		return
	}
	if c != '\n' {
		fw.line = append(fw.line, c)
		return
	}
	v, err := strconv.Atoi(string(fw.line))
	fw.line = nil
	if err != nil {
		panic(fmt.Errorf("firmware: invalid line: %w", err))
	}
	if len(fw.lines) < 3 {
		fw.lines = append(fw.lines, v)
		if len(fw.lines) == 3 {
			fw.profile = Profile{One: fw.lines[0], Zero: fw.lines[1], Guard: fw.lines[2]}
			fw.reply(fw.modeAck)
		}
		return
	}
	if fw.capacity > 0 && v > fw.capacity {
		fw.reply(SOH)
		return
	}
	fw.reply(fw.room)
	fw.want = v
	if v == 0 {
		fw.endFrame()
	}
}

func (fw *firmware) endFrame() {
	fw.frames = append(fw.frames, fw.payload)
	fw.pulses = append(fw.pulses, fw.profile.Schedule(fw.payload)...)
	fw.payload = nil
	fw.want = -1
	if len(fw.frames) == fw.nackAt {
		fw.reply(0x55)
		return
	}
	fw.reply(fw.frameAck)
}

func (fw *firmware) Read(p []byte) (int, error) {
	if fw.closed {
		return 0, io.EOF
	}
	if fw.out.Len() == 0 {
		return 0, ErrTimeout
	}
	return fw.out.Read(p)
}

func (fw *firmware) Close() error {
	fw.closed = true
	return nil
}

func (fw *firmware) setDTR(on bool) error {
	if fw.noLine {
		return ErrNoControlLine
	}
	fw.dtr = append(fw.dtr, on)
	if !on {
		fw.boot()
		return nil
	}
	fw.reply(fw.bootAck)
	return nil
}

func (fw *firmware) flush() error {
	fw.flushed++
	fw.out.Reset()
	if fw.noLine {
		fw.boot()
		fw.reply(fw.bootAck)
	}
	return nil
}

// newTestDevice returns a Device attached to fw without any delays
func newTestDevice(fw *firmware) *Device {
	dev := NewDevice()
	dev.Settle = 0
	dev.Warmup = 0
	dev.link = "fake"
	dev.attach(fw)
	return dev
}

// fakeKmod emulates the led_transceiver char device
type fakeKmod struct {
	calls    []string
	settings map[Setting]int
	mode     int
	count    int
	samples  bytes.Buffer
	loads    []int
	tx       bytes.Buffer
	sent     [][]byte
	fail     map[Request]error
	failSet  error
}

func newFakeKmod() *fakeKmod {
	return &fakeKmod{settings: make(map[Setting]int), mode: -1}
}

func (k *fakeKmod) load(samples ...int64) {
	var buf [SampleSize]byte
	for _, s := range samples {
		binary.NativeEndian.PutUint64(buf[:], uint64(s))
		k.samples.Write(buf[:])
	}
	k.count = len(samples)
}

func (k *fakeKmod) Set(s Setting, value int) error {
	if k.failSet != nil {
		return k.failSet
	}
	k.calls = append(k.calls, fmt.Sprintf("%v=%d", s, value))
	k.settings[s] = value
	return nil
}

func (k *fakeKmod) Control(r Request, arg int) (int, error) {
	if err := k.fail[r]; err != nil {
		return 0, err
	}
	k.calls = append(k.calls, r.String())
	switch r {
	case RequestMode:
		k.mode = arg
	case RequestReceive:
		return k.count, nil
	case RequestMeasureLoad:
		if len(k.loads) == 0 {
			return -1, nil
		}
		v := k.loads[0]
		k.loads = append(k.loads[1:], v)
		return v, nil
	case RequestTransmit:
		n := k.tx.Len()
		k.sent = append(k.sent, append([]byte(nil), k.tx.Bytes()...))
		k.tx.Reset()
		return n, nil
	}
	return 0, nil
}

func (k *fakeKmod) Read(p []byte) (int, error) { return k.samples.Read(p) }

func (k *fakeKmod) Write(p []byte) (int, error) { return k.tx.Write(p) }

// fakePins records pin configuration
type fakePins struct {
	calls []string
}

func (p *fakePins) Input(pin int) error {
	p.calls = append(p.calls, fmt.Sprintf("%d in", pin))
	return nil
}

func (p *fakePins) Pull(pin int, pull Pull) error {
	p.calls = append(p.calls, fmt.Sprintf("%d %s", pin, pull.arg()))
	return nil
}
