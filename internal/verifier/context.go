// Package verifier implements the input-device discovery, classification and
// touchpad verification engine. All machine access goes through the
// hostio.Host boundary; the engine itself is synchronous and free of
// locking. Callers own the serialization of access.
package verifier

import (
	"log/slog"

	"github.com/giorgiosld/driver-verifier/internal/hostio"
)

// Default kernel interface locations, overridable for tests and containers.
const (
	DefaultDevDir   = "/dev/input"
	DefaultSysfsDir = "/sys/class/input"
)

// Options configures a Context.
type Options struct {
	// DevDir is the input-device directory holding the event nodes.
	DevDir string
	// SysfsDir is the sysfs input class directory holding device metadata.
	SysfsDir string
}

// Context is the single long-lived verifier state: what the last scan
// selected and what the last verification concluded. Exactly one instance
// exists per process; it is mutated only by ScanDevices and VerifyTouchpad.
type Context struct {
	host     hostio.Host
	devDir   string
	sysfsDir string
	onStage  func(stage, outcome string)

	touchpadFound   bool
	touchpadPath    string
	touchpadName    string
	touchpadWorking bool
}

// Status is a read-only snapshot of the context.
type Status struct {
	TouchpadFound   bool   `json:"touchpad_found"`
	TouchpadPath    string `json:"touchpad_path,omitempty"`
	TouchpadName    string `json:"touchpad_name,omitempty"`
	TouchpadWorking bool   `json:"touchpad_working"`
}

// New constructs the verifier context around a host boundary.
func New(h hostio.Host, opts Options) *Context {
	if opts.DevDir == "" {
		opts.DevDir = DefaultDevDir
	}
	if opts.SysfsDir == "" {
		opts.SysfsDir = DefaultSysfsDir
	}
	slog.Info("input device verifier initialized", "dev_dir", opts.DevDir, "sysfs_dir", opts.SysfsDir)
	return &Context{
		host:     h,
		devDir:   opts.DevDir,
		sysfsDir: opts.SysfsDir,
	}
}

// SetStageObserver registers a callback invoked with each verification
// stage outcome. Stage results are already logged; the observer exists for
// metrics and persistence.
func (c *Context) SetStageObserver(fn func(stage, outcome string)) {
	c.onStage = fn
}

// ScanDevices enumerates and classifies the input devices and records the
// touchpad selection. On enumeration failure the previous selection is left
// untouched. The returned device list belongs to the caller; the context
// retains only the selected touchpad's name and path.
func (c *Context) ScanDevices() ([]DeviceInfo, error) {
	slog.Info("scanning for input devices", "dir", c.devDir)
	devices, err := Enumerate(c.host, c.devDir, c.sysfsDir)
	if err != nil {
		slog.Error("input device scan failed", "error", err)
		return nil, err
	}

	selected, found := SelectTouchpad(devices)
	c.touchpadFound = found
	if found {
		c.touchpadPath = selected.Path
		c.touchpadName = selected.Name
		slog.Info("touchpad identified", "name", selected.Name, "path", selected.Path)
	} else {
		c.touchpadPath = ""
		c.touchpadName = ""
		c.touchpadWorking = false
		slog.Info("no touchpad identified", "devices", len(devices))
	}
	slog.Info("input device scan complete", "devices", len(devices))
	return devices, nil
}

// Status returns the current selection and verdict.
func (c *Context) Status() Status {
	return Status{
		TouchpadFound:   c.touchpadFound,
		TouchpadPath:    c.touchpadPath,
		TouchpadName:    c.touchpadName,
		TouchpadWorking: c.touchpadWorking,
	}
}

func (c *Context) notifyStage(stage, outcome string) {
	if c.onStage != nil {
		c.onStage(stage, outcome)
	}
}
