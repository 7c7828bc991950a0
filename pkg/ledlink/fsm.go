package ledlink

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Transport is the byte channel from the Encoder to the far-end transmitter.
// Every call blocks; ReadByte until a byte arrives or the transport's timeout elapses.
type Transport interface {
	Reset() error
	WriteLine(v int) error
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
}

var _ Transport = (*Device)(nil)

// EncoderState is a type for possible states of the Encoder state machine
type EncoderState byte

const (
	uninitialized EncoderState = iota // No acknowledged reset yet
	reset                             // Far end rebooted, no timing selected
	ready                             // Timing selected, accepting frames
	sending                           // Frame in flight
)

var encoderStateNames = [...]string{
	uninitialized: "uninitialized",
	reset:         "reset",
	ready:         "ready",
	sending:       "sending",
}

func (s EncoderState) String() string {
	if int(s) < len(encoderStateNames) {
		return encoderStateNames[s]
	}
	return fmt.Sprintf("EncoderState(%d)", byte(s))
}

// Frame is one length-framed submission to the far end
type Frame struct {
	ID      uuid.UUID
	Payload []byte
}

// Len is the length announced for the frame
func (f Frame) Len() int { return len(f.Payload) }

// Encoder drives the far-end transmitter: link reset, timing negotiation and
// length-framed data submission. It exclusively owns its Transport.
type Encoder struct {
	link    Transport
	state   EncoderState
	profile Profile

	// Capacity is the far end's buffer size. If positive, larger frames are refused
	// with ErrBufferFull before anything is written.
	Capacity int
}

// NewEncoder creates an Encoder on link
func NewEncoder(link Transport) *Encoder {
	return &Encoder{link: link, state: uninitialized}
}

// State returns the current state
func (e *Encoder) State() EncoderState { return e.state }

// Profile returns the selected timing, valid once the Encoder is ready
func (e *Encoder) Profile() Profile { return e.profile }

// Ready reports whether the Encoder accepts frames
func (e *Encoder) Ready() bool { return e.state == ready }

func (e *Encoder) setState(s EncoderState) {
	if s != e.state {
		log.Debugf("State changed: %v --> %v", e.state, s)
	}
	e.state = s
}

// waitfor reads one byte and compares it with w
func (e *Encoder) waitfor(w byte) (byte, error) {
	log.Debugf("State: %v, WaitingFor: %#02x", e.state, w)
	b, err := e.link.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != w {
		log.Warnf("Received unexpected byte %#02x (expected %#02x)", b, w)
	}
	return b, nil
}

// Reset reboots the far end and waits for its ready acknowledgment.
// On failure the Encoder stays uninitialized.
func (e *Encoder) Reset() error {
	if err := e.link.Reset(); err != nil {
		e.setState(uninitialized)
		var pe *Error
		if errors.As(err, &pe) {
			return err
		}
		return newError("reset", StatusFailed, -1, err)
	}
	e.profile = Profile{}
	e.setState(reset)
	return nil
}

// SelectMode negotiates the bit timing with the far end. It is valid after Reset,
// and may be repeated to switch timings. On failure the Encoder falls back to reset.
func (e *Encoder) SelectMode(p Profile) error {
	if e.state != reset && e.state != ready {
		return fmt.Errorf("select mode in state %v: %w", e.state, ErrState)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	for _, v := range []int{p.One, p.Zero, p.Guard} {
		if err := e.link.WriteLine(v); err != nil {
			e.setState(reset)
			return newError("select mode", StatusFailed, -1, err)
		}
	}

	b, err := e.waitfor(NUL)
	if err != nil {
		e.setState(reset)
		return newError("select mode", StatusModeSelectFailed, -1, err)
	}
	if b != NUL {
		e.setState(reset)
		return newError("select mode", StatusModeSelectFailed, int(b), nil)
	}

	e.profile = p
	e.setState(ready)
	log.Debugf("Selected timing %v", p)
	return nil
}

// SelectDevice selects the tuned timing of a well-known receiving device
func (e *Encoder) SelectDevice(table ProfileTable, id string) error {
	p, err := table.Lookup(id)
	if err != nil {
		return err
	}
	return e.SelectMode(p)
}

// SendFrame submits payload as a single frame and waits for the far end's acknowledgment.
// A frame refused with ErrBufferFull had none of its bytes written; after ErrNoAck the
// far end's state is unknown and the whole frame has to be sent again.
func (e *Encoder) SendFrame(payload []byte) (Frame, error) {
	f := Frame{ID: uuid.New(), Payload: payload}
	if e.state != ready {
		return f, fmt.Errorf("send frame in state %v: %w", e.state, ErrState)
	}

	if e.Capacity > 0 && f.Len() > e.Capacity {
		log.Warnf("Frame %v: %d bytes exceed capacity of %d", f.ID, f.Len(), e.Capacity)
		return f, newError("send frame", StatusBufferFull, f.Len(), nil)
	}

	e.setState(sending)
	defer e.setState(ready)

	if err := e.link.WriteLine(f.Len()); err != nil {
		return f, newError("send frame", StatusFailed, -1, err)
	}
	b, err := e.link.ReadByte()
	if err != nil {
		return f, newError("send frame", StatusFailed, -1, err)
	}
	if b == SOH {
		log.Warnf("Frame %v: no free space on far end for %d bytes", f.ID, f.Len())
		return f, newError("send frame", StatusBufferFull, int(b), nil)
	}

	if _, err := e.link.Write(f.Payload); err != nil {
		return f, newError("send frame", StatusFailed, -1, err)
	}

	b, err = e.waitfor(NUL)
	if err != nil {
		return f, newError("send frame", StatusNoAck, -1, err)
	}
	if b != NUL {
		return f, newError("send frame", StatusNoAck, int(b), nil)
	}
	log.Debugf("Frame %v: %d bytes acknowledged", f.ID, f.Len())
	return f, nil
}
