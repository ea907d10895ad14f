package verifier

import (
	"os"

	"github.com/giorgiosld/driver-verifier/internal/hostio"
)

// fakeHost scripts the host boundary and counts probe invocations so tests
// can assert which checks actually ran.
type fakeHost struct {
	entries []string
	dirErr  error

	names   map[string]string // name-file path -> content
	nameErr map[string]error

	caps     map[string]hostio.Capabilities
	capsErr  map[string]error
	capCalls int

	moduleLoaded    bool
	moduleErr       error
	moduleCalls     int
	responsive      bool
	responsiveErr   error
	responsiveCalls int
	events          bool
	eventsErr       error
	eventsCalls     int
}

func (f *fakeHost) ReadDirectory(path string) ([]string, error) {
	if f.dirErr != nil {
		return nil, f.dirErr
	}
	return f.entries, nil
}

func (f *fakeHost) ReadFile(path string) ([]byte, error) {
	if err, ok := f.nameErr[path]; ok {
		return nil, err
	}
	if v, ok := f.names[path]; ok {
		return []byte(v), nil
	}
	return nil, os.ErrNotExist
}

func (f *fakeHost) DeviceCapabilities(path string) (hostio.Capabilities, error) {
	f.capCalls++
	if err, ok := f.capsErr[path]; ok {
		return hostio.Capabilities{}, err
	}
	return f.caps[path], nil
}

func (f *fakeHost) ModuleLoaded(deviceName string) (bool, error) {
	f.moduleCalls++
	return f.moduleLoaded, f.moduleErr
}

func (f *fakeHost) DeviceResponsive(path string) (bool, error) {
	f.responsiveCalls++
	return f.responsive, f.responsiveErr
}

func (f *fakeHost) DeviceEvents(path string) (bool, error) {
	f.eventsCalls++
	return f.events, f.eventsErr
}

// mask builds a capability bitmask with the given event codes set.
func mask(codes ...int) hostio.Bitmask {
	m := make(hostio.Bitmask, 0x2ff/64+1)
	for _, c := range codes {
		m[c/64] |= 1 << uint(c%64)
	}
	return m
}
