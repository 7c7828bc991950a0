//go:build !linux

package ledlink

import "fmt"

// DisableAR9331Watchdog always fails outside linux
func DisableAR9331Watchdog(devmem string) error {
	return fmt.Errorf("could not disable watchdog via %q: %w", devmem, ErrUnsupported)
}
