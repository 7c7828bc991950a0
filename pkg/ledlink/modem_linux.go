//go:build linux

package ledlink

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// modemLines drives the modem control lines of a tty through its own descriptor,
// tarm/serial does not expose them.
type modemLines struct {
	f *os.File
}

func openModemLines(name string) (*modemLines, error) {
	f, err := os.OpenFile(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	return &modemLines{f: f}, nil
}

func (m *modemLines) setDTR(on bool) error {
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	if err := unix.IoctlSetPointerInt(int(m.f.Fd()), req, unix.TIOCM_DTR); err != nil {
		return fmt.Errorf("could not set DTR=%v on %s: %w", on, m.f.Name(), err)
	}
	return nil
}

func (m *modemLines) Close() error { return m.f.Close() }
