package hostio

// Host is the boundary between the verification engine and the machine it
// inspects. The engine never touches the filesystem or issues ioctls itself;
// everything goes through this interface so the whole engine can be driven
// by fakes in tests.
type Host interface {
	// ReadDirectory returns the entry names of a directory.
	ReadDirectory(path string) ([]string, error)
	// ReadFile returns the contents of a small text file, bounded in size
	// and trimmed of trailing whitespace.
	ReadFile(path string) ([]byte, error)
	// DeviceCapabilities returns the absolute-axis, relative-axis and key
	// capability bitmasks of an input device node.
	DeviceCapabilities(path string) (Capabilities, error)
	// ModuleLoaded reports whether a kernel module backing the named
	// device is currently loaded.
	ModuleLoaded(deviceName string) (bool, error)
	// DeviceResponsive reports whether the device node answers basic
	// queries.
	DeviceResponsive(path string) (bool, error)
	// DeviceEvents reports whether the device node can produce input
	// events.
	DeviceEvents(path string) (bool, error)
}

// Capabilities holds the three evdev capability bitmasks of a device.
type Capabilities struct {
	Abs Bitmask
	Rel Bitmask
	Key Bitmask
}

// Bitmask is a bit-per-event-code mask as reported by EVIOCGBIT, packed in
// 64-bit words, lowest codes first.
type Bitmask []uint64

// Test reports whether the bit for the given event code is set. Codes beyond
// the mask length are reported as unset.
func (m Bitmask) Test(code int) bool {
	if code < 0 {
		return false
	}
	word := code / 64
	if word >= len(m) {
		return false
	}
	return m[word]&(1<<uint(code%64)) != 0
}

// Linux input event codes the classifier cares about. Values match
// linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03

	AbsX = 0x00
	AbsY = 0x01

	RelX = 0x00
	RelY = 0x01

	// Alphabetic key rows on the standard keymap.
	KeyQ = 16
	KeyP = 25
	KeyA = 30
	KeyL = 38
	KeyZ = 44
	KeyM = 50

	evMax  = 0x1f
	relMax = 0x0f
	absMax = 0x3f
	keyMax = 0x2ff
)
