package ledlink

import "unsafe"

const (
	iocNrBits   = 8
	iocTypeBits = 8

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// kmodMagic is the ioctl type of /dev/led_transceiver
const kmodMagic = 0x77

// argSize is sizeof(int *), the argument type the kernel module declares its requests with
const argSize = unsafe.Sizeof(uintptr(0))

func ioc(dir, typ, nr, size uintptr) uint {
	return uint(dir<<iocDirShift | size<<iocSizeShift | typ<<iocTypeShift | nr<<iocNrShift)
}

func ior(nr uintptr) uint { return ioc(iocRead, kmodMagic, nr, argSize) }
func iow(nr uintptr) uint { return ioc(iocWrite, kmodMagic, nr, argSize) }
