//go:build mips || mipsle || mips64 || mips64le || ppc64 || ppc64le

package ledlink

// _IOC layout of mips and powerpc, the routers the kernel module runs on are mips
const (
	iocNone  = 1
	iocRead  = 2
	iocWrite = 4

	iocSizeBits = 13
)
