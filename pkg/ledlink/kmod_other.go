//go:build !linux

package ledlink

import "fmt"

// Kmod is the ControlSurface of the led_transceiver kernel module, only available on linux
type Kmod struct{}

var _ ControlSurface = (*Kmod)(nil)

// OpenKmod always fails outside linux
func OpenKmod(path string) (*Kmod, error) {
	return nil, fmt.Errorf("could not open kernel module device %q: %w", path, ErrUnsupported)
}

func (k *Kmod) Set(s Setting, value int) error          { return ErrUnsupported }
func (k *Kmod) Control(r Request, arg int) (int, error) { return 0, ErrUnsupported }
func (k *Kmod) Read(p []byte) (int, error)              { return 0, ErrUnsupported }
func (k *Kmod) Write(p []byte) (int, error)             { return 0, ErrUnsupported }
func (k *Kmod) Close() error                            { return nil }
