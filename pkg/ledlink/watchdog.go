package ledlink

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultDevMem is the physical memory device the watchdog registers are mapped from
const DefaultDevMem = "/dev/mem"

// AR9331 reset controller, see the datasheet section 6.6
const (
	ar9331ResetBase    = 0x18060000
	ar9331WatchdogCtrl = 0x08       // RST_WATCHDOG_TIMER_CONTROL
	ar9331WatchdogOff  = 0x80000000 // action bits [1:0] cleared: no action on expiry
)

// disableWatchdog clears the watchdog action in the reset controller registers mapped at w
func disableWatchdog(w io.WriterAt) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], ar9331WatchdogOff)
	if _, err := w.WriteAt(buf[:], ar9331WatchdogCtrl); err != nil {
		return fmt.Errorf("could not write watchdog control register: %w", err)
	}
	return nil
}

// regs gives io.WriterAt access to mapped registers
type regs []byte

func (r regs) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || int64(len(r)) < off {
		return 0, fmt.Errorf("invalid register offset %d", off)
	}
	n := copy(r[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
