package hostio

import (
	"bytes"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding (Linux _IOC macro)
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

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

// EVIOCGBIT(ev, len) = _IOC(_IOC_READ, 'E', 0x20 + ev, len)
func eviocgbit(evType, size int) uintptr {
	return ioc(iocRead, uint32('E'), uint32(0x20+evType), uint32(size))
}

// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
func eviocgname(size int) uintptr {
	return ioc(iocRead, uint32('E'), 0x06, uint32(size))
}

func readBitmask(fd uintptr, evType, maxCode int) (Bitmask, error) {
	words := maxCode/64 + 1
	mask := make(Bitmask, words)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, eviocgbit(evType, words*8), uintptr(unsafe.Pointer(&mask[0])))
	if errno != 0 {
		return nil, errno
	}
	return mask, nil
}

// DeviceCapabilities queries the absolute-axis, relative-axis and key
// bitmasks of an event node through EVIOCGBIT.
func (h *SysfsHost) DeviceCapabilities(path string) (Capabilities, error) {
	f, err := os.Open(path)
	if err != nil {
		return Capabilities{}, err
	}
	defer f.Close()
	fd := f.Fd()

	abs, err := readBitmask(fd, EvAbs, absMax)
	if err != nil {
		return Capabilities{}, err
	}
	rel, err := readBitmask(fd, EvRel, relMax)
	if err != nil {
		return Capabilities{}, err
	}
	key, err := readBitmask(fd, EvKey, keyMax)
	if err != nil {
		return Capabilities{}, err
	}
	return Capabilities{Abs: abs, Rel: rel, Key: key}, nil
}

// DeviceResponsive opens the node and asks it for its name via EVIOCGNAME.
// A device whose driver has wedged will refuse the open or return nothing.
func (h *SysfsHost) DeviceResponsive(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		// A vanished node is a negative answer; anything else means the
		// probe itself could not run.
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	var name [256]byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), eviocgname(len(name)), uintptr(unsafe.Pointer(&name[0])))
	if errno != 0 {
		return false, nil
	}
	return len(bytes.TrimRight(name[:], "\x00")) > 0, nil
}

// DeviceEvents checks the supported-event-type mask (EVIOCGBIT with type 0).
// A node that advertises key, relative or absolute events can generate input.
func (h *SysfsHost) DeviceEvents(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	types, err := readBitmask(f.Fd(), 0, evMax)
	if err != nil {
		return false, err
	}
	return types.Test(EvKey) || types.Test(EvRel) || types.Test(EvAbs), nil
}
