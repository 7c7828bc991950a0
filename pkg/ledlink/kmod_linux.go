//go:build linux

package ledlink

import (
	"fmt"
	"os"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Kmod is the ControlSurface of the led_transceiver kernel module
type Kmod struct {
	f *os.File
}

var _ ControlSurface = (*Kmod)(nil)

// OpenKmod opens the module's char device, usually DefaultKmodPath
func OpenKmod(path string) (*Kmod, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open kernel module device %q: %w", path, err)
	}
	return &Kmod{f: f}, nil
}

func (k *Kmod) ioctl(req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, k.f.Fd(), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Set applies a numbered setting
func (k *Kmod) Set(s Setting, value int) error {
	data := [2]int32{int32(s), int32(value)}
	log.Debugf("ioctl SETTING %v=%d", s, value)
	if err := k.ioctl(RequestSetting.code(), unsafe.Pointer(&data[0])); err != nil {
		return fmt.Errorf("could not apply setting %v=%d: %w", s, value, err)
	}
	return nil
}

// Control issues request r with arg and returns the integer the module answers with.
// It blocks for as long as the module handles the request.
func (k *Kmod) Control(r Request, arg int) (int, error) {
	v := int32(arg)
	log.Debugf("ioctl %v arg=%d", r, arg)
	if err := k.ioctl(r.code(), unsafe.Pointer(&v)); err != nil {
		return 0, fmt.Errorf("could not issue %v: %w", r, err)
	}
	log.Debugf("ioctl %v returned %d", r, v)
	return int(v), nil
}

// Read reads pulse samples recorded by the last reception
func (k *Kmod) Read(p []byte) (int, error) { return k.f.Read(p) }

// Write fills the module's transmit buffer
func (k *Kmod) Write(p []byte) (int, error) { return k.f.Write(p) }

// Close closes the char device
func (k *Kmod) Close() error { return k.f.Close() }
