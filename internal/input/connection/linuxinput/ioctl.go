package linuxinput

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding, see the _IOC macro in asm-generic/ioctl.h.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

// Input properties from input-event-codes.h.
const (
	propPointer = 0x00
	propDirect  = 0x01
)

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

// absRangeOf reads the range of an absolute axis with EVIOCGABS.
func absRangeOf(fd int, code int) (absRange, error) {
	var info absInfo
	req := ioc(iocRead, 'E', uint32(0x40+code), uint32(unsafe.Sizeof(info)))
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&info))); errno != 0 {
		return absRange{}, errno
	}
	return absRange{min: info.Min, max: info.Max}, nil
}

// hasProp reports whether the device advertises an input property,
// using EVIOCGPROP.
func hasProp(fd int, prop uint) bool {
	var bits [4]byte
	req := ioc(iocRead, 'E', 0x09, uint32(len(bits)))
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&bits[0]))); errno != 0 {
		return false
	}
	return bits[prop/8]&(1<<(prop%8)) != 0
}
