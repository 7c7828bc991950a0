package ledlink

import (
	"bytes"
	"errors"
	"testing"
)

var raspi = Profile{One: 150, Zero: 75, Guard: 40}

// readyEncoder returns an Encoder that went through reset and mode selection
func readyEncoder(t *testing.T, fw *firmware, p Profile) *Encoder {
	t.Helper()
	enc := NewEncoder(newTestDevice(fw))
	if err := enc.Reset(); err != nil {
		t.Fatalf("could not reset link: %+v", err)
	}
	if err := enc.SelectMode(p); err != nil {
		t.Fatalf("could not select mode: %+v", err)
	}
	fw.written.Reset()
	return enc
}

func TestEncoderReset(t *testing.T) {
	fw := newFirmware()
	enc := NewEncoder(newTestDevice(fw))
	if got, want := enc.State(), uninitialized; got != want {
		t.Fatalf("invalid initial state: got=%v, want=%v", got, want)
	}
	if err := enc.Reset(); err != nil {
		t.Fatalf("could not reset link: %+v", err)
	}
	if got, want := enc.State(), reset; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	fw.bootAck = 0x7f
	err := enc.Reset()
	if !errors.Is(err, ErrLinkReset) {
		t.Fatalf("invalid error: %+v", err)
	}
	if got, want := enc.State(), uninitialized; got != want {
		t.Fatalf("invalid state after failed reset: got=%v, want=%v", got, want)
	}
}

func TestEncoderSelectMode(t *testing.T) {
	fw := newFirmware()
	enc := NewEncoder(newTestDevice(fw))

	if err := enc.SelectMode(raspi); !errors.Is(err, ErrState) {
		t.Fatalf("mode selection before reset: %+v", err)
	}
	if fw.written.Len() != 0 {
		t.Fatalf("wrote %q before reset", fw.written.String())
	}

	if err := enc.Reset(); err != nil {
		t.Fatalf("could not reset link: %+v", err)
	}
	if err := enc.SelectMode(Profile{One: 100, Zero: 100, Guard: 100}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("invalid profile accepted: %+v", err)
	}
	if fw.written.Len() != 0 {
		t.Fatalf("wrote %q for invalid profile", fw.written.String())
	}

	if err := enc.SelectMode(raspi); err != nil {
		t.Fatalf("could not select mode: %+v", err)
	}
	if got, want := fw.written.String(), "150\n75\n40\n"; got != want {
		t.Fatalf("invalid mode lines: got=%q, want=%q", got, want)
	}
	if !enc.Ready() || enc.Profile() != raspi {
		t.Fatalf("invalid encoder: state=%v profile=%v", enc.State(), enc.Profile())
	}
	if fw.profile != raspi {
		t.Fatalf("far end got profile %v", fw.profile)
	}
}

func TestEncoderSelectModeNack(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(fw *firmware)
		got   int
	}{
		{name: "wrong-byte", setup: func(fw *firmware) { fw.modeAck = 0x01 }, got: 0x01},
		{name: "timeout", setup: func(fw *firmware) { fw.silent = true }, got: -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fw := newFirmware()
			enc := NewEncoder(newTestDevice(fw))
			if err := enc.Reset(); err != nil {
				t.Fatalf("could not reset link: %+v", err)
			}
			tc.setup(fw)

			err := enc.SelectMode(raspi)
			if !errors.Is(err, ErrModeSelect) {
				t.Fatalf("invalid error: %+v", err)
			}
			if got, want := StatusOf(err), StatusModeSelectFailed; got != want {
				t.Fatalf("invalid status: got=%v, want=%v", got, want)
			}
			var pe *Error
			if !errors.As(err, &pe) || pe.Got != tc.got {
				t.Fatalf("invalid error details: %#v", err)
			}
			if got, want := enc.State(), reset; got != want {
				t.Fatalf("invalid state: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestEncoderSelectDevice(t *testing.T) {
	for _, tc := range []struct {
		id   string
		want Profile
	}{
		{"0", Profile{150, 75, 40}},
		{"raspi", Profile{150, 75, 40}},
		{"1", Profile{7000, 3000, 3000}},
		{"t21p", Profile{7000, 3000, 3000}},
		{"2", Profile{400, 200, 100}},
		{"wr1043nd", Profile{400, 200, 100}},
	} {
		t.Run(tc.id, func(t *testing.T) {
			fw := newFirmware()
			enc := NewEncoder(newTestDevice(fw))
			if err := enc.Reset(); err != nil {
				t.Fatalf("could not reset link: %+v", err)
			}
			if err := enc.SelectDevice(Profiles, tc.id); err != nil {
				t.Fatalf("could not select device: %+v", err)
			}
			if got := enc.Profile(); got != tc.want {
				t.Fatalf("invalid profile: got=%v, want=%v", got, tc.want)
			}
		})
	}

	fw := newFirmware()
	enc := NewEncoder(newTestDevice(fw))
	if err := enc.Reset(); err != nil {
		t.Fatalf("could not reset link: %+v", err)
	}
	for _, id := range []string{"3", "mr3020", "toaster"} {
		if err := enc.SelectDevice(Profiles, id); err == nil {
			t.Fatalf("device %q selected", id)
		}
	}
}

func TestEncoderSendFrame(t *testing.T) {
	fw := newFirmware()
	enc := readyEncoder(t, fw, raspi)

	f, err := enc.SendFrame([]byte("AB"))
	if err != nil {
		t.Fatalf("could not send frame: %+v", err)
	}
	if got, want := fw.written.String(), "2\nAB"; got != want {
		t.Fatalf("invalid frame on wire: got=%q, want=%q", got, want)
	}
	if f.Len() != 2 || f.ID.String() == "" {
		t.Fatalf("invalid frame %+v", f)
	}
	if !enc.Ready() {
		t.Fatalf("invalid state after frame: %v", enc.State())
	}

	g, err := enc.SendFrame([]byte("C"))
	if err != nil {
		t.Fatalf("could not send second frame: %+v", err)
	}
	if g.ID == f.ID {
		t.Fatalf("frames share id %v", f.ID)
	}
	if got, want := len(fw.frames), 2; got != want {
		t.Fatalf("invalid number of frames: got=%d, want=%d", got, want)
	}
}

func TestEncoderSendFrameNotReady(t *testing.T) {
	fw := newFirmware()
	enc := NewEncoder(newTestDevice(fw))
	if _, err := enc.SendFrame([]byte("x")); !errors.Is(err, ErrState) {
		t.Fatalf("frame sent before reset: %+v", err)
	}
	if err := enc.Reset(); err != nil {
		t.Fatalf("could not reset link: %+v", err)
	}
	if _, err := enc.SendFrame([]byte("x")); !errors.Is(err, ErrState) {
		t.Fatalf("frame sent before mode selection: %+v", err)
	}
	if fw.written.Len() != 0 {
		t.Fatalf("wrote %q", fw.written.String())
	}
}

func TestEncoderBufferFull(t *testing.T) {
	fw := newFirmware()
	fw.capacity = 4
	enc := readyEncoder(t, fw, raspi)

	_, err := enc.SendFrame([]byte("too long"))
	if !errors.Is(err, ErrBufferFull) {
		t.Fatalf("invalid error: %+v", err)
	}
	if got, want := fw.written.String(), "8\n"; got != want {
		t.Fatalf("payload written after buffer full: got=%q, want=%q", got, want)
	}
	if !enc.Ready() {
		t.Fatalf("invalid state: %v", enc.State())
	}

	fw.written.Reset()
	if _, err := enc.SendFrame([]byte("ok")); err != nil {
		t.Fatalf("could not send frame after buffer full: %+v", err)
	}
}

func TestEncoderCapacity(t *testing.T) {
	fw := newFirmware()
	enc := readyEncoder(t, fw, raspi)
	enc.Capacity = 2

	_, err := enc.SendFrame([]byte("abc"))
	if got, want := StatusOf(err), StatusBufferFull; got != want {
		t.Fatalf("invalid status: got=%v, want=%v", got, want)
	}
	if fw.written.Len() != 0 {
		t.Fatalf("wrote %q for oversize frame", fw.written.String())
	}
}

func TestEncoderNoAck(t *testing.T) {
	for _, tc := range []struct {
		name string
		ack  byte
		mute bool
	}{
		{name: "wrong-byte", ack: 0x55},
		{name: "timeout", mute: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fw := newFirmware()
			enc := readyEncoder(t, fw, raspi)
			fw.frameAck = tc.ack
			if tc.mute {
				// answer the length, then go quiet
				enc.link = &muteAfter{Transport: enc.link, n: 1}
			}

			_, err := enc.SendFrame([]byte("AB"))
			if !errors.Is(err, ErrNoAck) {
				t.Fatalf("invalid error: %+v", err)
			}
			if got, want := StatusOf(err), StatusNoAck; got != want {
				t.Fatalf("invalid status: got=%v, want=%v", got, want)
			}
			if !enc.Ready() {
				t.Fatalf("invalid state: %v", enc.State())
			}
			if got, want := fw.written.String(), "2\nAB"; got != want {
				t.Fatalf("invalid frame on wire: got=%q, want=%q", got, want)
			}
		})
	}
}

// muteAfter lets n bytes through and times out afterwards
type muteAfter struct {
	Transport
	n int
}

func (m *muteAfter) ReadByte() (byte, error) {
	if m.n == 0 {
		return 0, ErrTimeout
	}
	m.n--
	return m.Transport.ReadByte()
}

func TestSendChunks(t *testing.T) {
	fw := newFirmware()
	enc := readyEncoder(t, fw, raspi)

	data := []byte("hello, world")
	n, err := enc.SendChunks(data, 5)
	if err != nil {
		t.Fatalf("could not send chunks: %+v", err)
	}
	if n != len(data) {
		t.Fatalf("invalid count: got=%d, want=%d", n, len(data))
	}
	want := []string{"hello", ", wor", "ld"}
	if len(fw.frames) != len(want) {
		t.Fatalf("invalid frames: %q", fw.frames)
	}
	for i, f := range fw.frames {
		if string(f) != want[i] {
			t.Fatalf("frame %d: got=%q, want=%q", i, f, want[i])
		}
	}
}

func TestSendChunksStopsAtFailure(t *testing.T) {
	fw := newFirmware()
	fw.nackAt = 2
	enc := readyEncoder(t, fw, raspi)

	n, err := enc.SendChunks([]byte("abcdefghij"), 4)
	if !errors.Is(err, ErrNoAck) {
		t.Fatalf("invalid error: %+v", err)
	}
	if n != 4 {
		t.Fatalf("invalid acknowledged count: got=%d, want=4", n)
	}
	if got, want := fw.written.String(), "4\nabcd4\nefgh"; got != want {
		t.Fatalf("frames sent after failure: got=%q, want=%q", got, want)
	}

	if _, err := enc.SendChunks([]byte("x"), 0); err == nil {
		t.Fatalf("zero chunk size accepted")
	}
}

func TestSendFrom(t *testing.T) {
	fw := newFirmware()
	enc := readyEncoder(t, fw, raspi)

	n, err := enc.SendFrom(bytes.NewBufferString("covert"), 0)
	if err != nil {
		t.Fatalf("could not send: %+v", err)
	}
	if n != 6 || len(fw.frames) != 1 {
		t.Fatalf("invalid send: n=%d frames=%q", n, fw.frames)
	}

	n, err = enc.SendFrom(bytes.NewBuffer(nil), 4)
	if err != nil || n != 0 {
		t.Fatalf("invalid empty send: n=%d err=%+v", n, err)
	}
}

func TestMeasurementPattern(t *testing.T) {
	for _, tc := range []struct {
		kind int
		n    int
		c    byte
	}{
		{0, 50, 0x00},
		{1, 50, 0xff},
		{2, 100, 0xaa},
	} {
		p := MeasurementPattern(tc.kind)
		if len(p) != tc.n || !bytes.Equal(p, bytes.Repeat([]byte{tc.c}, tc.n)) {
			t.Fatalf("invalid pattern %d: %x", tc.kind, p)
		}
	}
}
