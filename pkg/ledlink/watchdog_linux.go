//go:build linux

package ledlink

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// DisableAR9331Watchdog stops the hardware watchdog of AR9331 boards (TL-MR3020, TL-WR1043ND).
// The kernel module busy-waits during RECEIVE, long enough for the watchdog to reset the board.
func DisableAR9331Watchdog(devmem string) error {
	f, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", devmem, err)
	}
	defer f.Close()

	data, err := unix.Mmap(
		int(f.Fd()),
		ar9331ResetBase, os.Getpagesize(),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return fmt.Errorf("could not mmap reset controller: %w", err)
	}
	defer unix.Munmap(data)

	if err := disableWatchdog(regs(data)); err != nil {
		return err
	}
	log.Debugf("Disabled hardware watchdog")
	return nil
}
