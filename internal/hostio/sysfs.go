package hostio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const maxFileRead = 4096

// SysfsHost is the real Linux implementation of Host, built on sysfs,
// /proc/modules and the evdev ioctl interface.
type SysfsHost struct {
	// ProcModules is the module list to consult, normally /proc/modules.
	ProcModules string
	// SysModuleDir is the built-in/module sysfs root, normally /sys/module.
	// Drivers compiled into the kernel never show up in /proc/modules but
	// do get a directory here.
	SysModuleDir string
}

// NewSysfsHost returns a host bound to the standard kernel interfaces.
func NewSysfsHost() *SysfsHost {
	return &SysfsHost{
		ProcModules:  "/proc/modules",
		SysModuleDir: "/sys/module",
	}
}

func (h *SysfsHost) ReadDirectory(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (h *SysfsHost) ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, maxFileRead)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return bytes.TrimSpace(buf[:n]), nil
}

// ModuleLoaded checks /proc/modules, then /sys/module for built-in drivers,
// against the candidate modules for the device name.
func (h *SysfsHost) ModuleLoaded(deviceName string) (bool, error) {
	raw, err := os.ReadFile(h.ProcModules)
	if err != nil {
		return false, err
	}
	loaded := parseModuleList(raw)
	for _, mod := range driverCandidates(deviceName) {
		if _, ok := loaded[mod]; ok {
			return true, nil
		}
		if h.SysModuleDir != "" {
			if _, err := os.Stat(filepath.Join(h.SysModuleDir, mod)); err == nil {
				return true, nil
			}
		}
	}
	return false, nil
}

// parseModuleList extracts the module names from /proc/modules content.
// Dashes are normalized to underscores, as the kernel does on load.
func parseModuleList(raw []byte) map[string]struct{} {
	loaded := make(map[string]struct{})
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		loaded[strings.ReplaceAll(fields[0], "-", "_")] = struct{}{}
	}
	return loaded
}

// driverCandidates maps a device name to the kernel modules that plausibly
// drive it. PS/2-era touchpads (Synaptics, ALPS, Elantech ETPS/2) sit behind
// psmouse; I2C/HID ones behind the hid and elan drivers.
func driverCandidates(deviceName string) []string {
	lower := strings.ToLower(deviceName)
	var candidates []string
	switch {
	case strings.Contains(lower, "synaptics"):
		candidates = []string{"psmouse", "synaptics_i2c", "synaptics_usb"}
	case strings.Contains(lower, "alps"):
		candidates = []string{"psmouse"}
	case strings.Contains(lower, "elan") || strings.Contains(lower, "etps"):
		candidates = []string{"elan_i2c", "psmouse"}
	}
	return append(candidates, "hid_multitouch", "i2c_hid", "i2c_hid_acpi", "psmouse")
}
