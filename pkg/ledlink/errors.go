package ledlink

import (
	"errors"
	"fmt"
)

// Protocol failures. They are returned wrapped in an *Error, use errors.Is to test for them.
var (
	ErrLinkReset        = errors.New("link reset not acknowledged")
	ErrModeSelect       = errors.New("mode selection not acknowledged")
	ErrBufferFull       = errors.New("far end has no buffer space for frame")
	ErrNoAck            = errors.New("frame not acknowledged")
	ErrAbortedReception = errors.New("reception aborted (no data or timeout)")
)

var (
	ErrState             = errors.New("operation not allowed in current state")
	ErrInvalidProfile    = errors.New("invalid link profile")
	ErrInvalidThresholds = errors.New("invalid decision thresholds")
	ErrInvalidMode       = errors.New("invalid sensing mode")
	ErrTimeout           = errors.New("timed out waiting for far end")
	ErrUnsupported       = errors.New("not supported on this platform")
	ErrNoControlLine     = errors.New("link has no control line")
)

// Status is the tagged result of a protocol operation
type Status byte

const (
	StatusOK Status = iota
	StatusLinkResetFailed
	StatusModeSelectFailed
	StatusBufferFull
	StatusNoAck
	StatusAborted
	StatusFailed // transport or usage error without a protocol meaning
)

var statusNames = [...]string{
	StatusOK:               "ok",
	StatusLinkResetFailed:  "link-reset-failed",
	StatusModeSelectFailed: "mode-select-failed",
	StatusBufferFull:       "buffer-full",
	StatusNoAck:            "no-ack",
	StatusAborted:          "aborted",
	StatusFailed:           "failed",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", byte(s))
}

func (s Status) sentinel() error {
	switch s {
	case StatusLinkResetFailed:
		return ErrLinkReset
	case StatusModeSelectFailed:
		return ErrModeSelect
	case StatusBufferFull:
		return ErrBufferFull
	case StatusNoAck:
		return ErrNoAck
	case StatusAborted:
		return ErrAbortedReception
	}
	return nil
}

// Error reports a failed protocol step.
// Got holds the byte (or count) the far end answered with, Err the underlying
// transport error if the answer could not be read at all.
type Error struct {
	Op     string
	Status Status
	Got    int
	Err    error
}

func newError(op string, s Status, got int, err error) *Error {
	return &Error{Op: op, Status: s, Got: got, Err: err}
}

func (e *Error) Error() string {
	msg := e.Status.String()
	if s := e.Status.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s (got %#x)", e.Op, msg, e.Got)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel belonging to the error's status.
func (e *Error) Is(target error) bool {
	s := e.Status.sentinel()
	return s != nil && s == target
}

// StatusOf maps err to its tagged result. A nil error is StatusOK.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusFailed
}
