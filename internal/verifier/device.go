package verifier

import (
	"encoding/json"
	"fmt"
)

// DeviceType classifies an input device node.
type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DeviceTouchpad
	DeviceKeyboard
	DeviceMouse
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTouchpad:
		return "touchpad"
	case DeviceKeyboard:
		return "keyboard"
	case DeviceMouse:
		return "mouse"
	default:
		return "unknown"
	}
}

func (t DeviceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *DeviceType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "touchpad":
		*t = DeviceTouchpad
	case "keyboard":
		*t = DeviceKeyboard
	case "mouse":
		*t = DeviceMouse
	case "unknown":
		*t = DeviceUnknown
	default:
		return fmt.Errorf("unknown device type %q", s)
	}
	return nil
}

// DeviceInfo describes one discovered input device. Instances live for the
// duration of a single scan pass; the context keeps only the selected
// touchpad's name and path.
type DeviceInfo struct {
	Name string     `json:"name"`
	Path string     `json:"path"`
	Type DeviceType `json:"type"`
}
