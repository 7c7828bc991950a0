//go:build !(mips || mipsle || mips64 || mips64le || ppc64 || ppc64le)

package ledlink

// _IOC layout of x86, arm, arm64 and riscv
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocSizeBits = 14
)
