package verifier

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/giorgiosld/driver-verifier/internal/hostio"
)

// Only event* nodes generate input events; js*, mice, mouseN and the rest
// are legacy or aggregate interfaces.
const eventNodePrefix = "event"

// Enumerate walks the input-device directory and returns one DeviceInfo per
// readable event node, classified, in directory order. A failure to read the
// directory itself is fatal; a device whose name cannot be read or decoded
// is skipped.
func Enumerate(h hostio.Host, devDir, sysfsDir string) ([]DeviceInfo, error) {
	entries, err := h.ReadDirectory(devDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", devDir, err)
	}

	devices := make([]DeviceInfo, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry, ".") || !strings.HasPrefix(entry, eventNodePrefix) {
			continue
		}
		devPath := filepath.Join(devDir, entry)
		raw, err := h.ReadFile(filepath.Join(sysfsDir, entry, "device", "name"))
		if err != nil {
			slog.Debug("device name unreadable, skipping", "entry", entry, "error", err)
			continue
		}
		name := strings.TrimSpace(string(raw))
		if name == "" || !utf8.ValidString(name) {
			slog.Debug("device name empty or undecodable, skipping", "entry", entry)
			continue
		}
		devices = append(devices, DeviceInfo{
			Name: name,
			Path: devPath,
			Type: classifyDevice(h, name, devPath),
		})
	}
	return devices, nil
}
