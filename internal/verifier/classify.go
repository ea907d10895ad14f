package verifier

import (
	"log/slog"
	"strings"

	"github.com/giorgiosld/driver-verifier/internal/hostio"
)

// Generic touchpad terms, matched case-insensitively.
var touchpadTerms = []string{"touchpad", "trackpad", "glidepoint", "clickpad"}

// Vendor and model tokens, matched case-sensitively: product strings carry
// these in fixed casing (ELAN0501, SynPS/2 Synaptics TouchPad, AlpsPS/2 ALPS
// GlidePoint, PNP0C50 precision touchpads, ETPS/2 Elantech).
var touchpadTokens = []string{"Elantech", "ELAN", "Synaptics", "ALPS", "PNP0C50", "ETPS/2"}

// Alphabetic rows of the standard keymap. Anything that claims one of these
// keys is keyboard-like.
var letterKeyRanges = [][2]int{
	{hostio.KeyQ, hostio.KeyP},
	{hostio.KeyA, hostio.KeyL},
	{hostio.KeyZ, hostio.KeyM},
}

// ClassifyName applies the name heuristic. It is a pure function of the
// name string.
func ClassifyName(name string) DeviceType {
	lower := strings.ToLower(name)
	for _, term := range touchpadTerms {
		if strings.Contains(lower, term) {
			return DeviceTouchpad
		}
	}
	for _, token := range touchpadTokens {
		if strings.Contains(name, token) {
			return DeviceTouchpad
		}
	}
	if strings.Contains(lower, "keyboard") {
		return DeviceKeyboard
	}
	if strings.Contains(lower, "mouse") {
		return DeviceMouse
	}
	return DeviceUnknown
}

// ClassifyCapabilities classifies from the raw capability bitmasks. Absolute
// X/Y positioning is the touchpad signature, relative X/Y the mouse one, and
// letter keys the keyboard one. Pure function of the masks.
func ClassifyCapabilities(caps hostio.Capabilities) DeviceType {
	if caps.Abs.Test(hostio.AbsX) && caps.Abs.Test(hostio.AbsY) {
		return DeviceTouchpad
	}
	if caps.Rel.Test(hostio.RelX) && caps.Rel.Test(hostio.RelY) {
		return DeviceMouse
	}
	for _, r := range letterKeyRanges {
		for code := r[0]; code <= r[1]; code++ {
			if caps.Key.Test(code) {
				return DeviceKeyboard
			}
		}
	}
	return DeviceUnknown
}

// classifyDevice runs the two-tier strategy: name heuristic first, capability
// bitmasks only when the name is inconclusive. A failed capability query
// degrades the device to unknown rather than failing the scan.
func classifyDevice(h hostio.Host, name, path string) DeviceType {
	if t := ClassifyName(name); t != DeviceUnknown {
		return t
	}
	caps, err := h.DeviceCapabilities(path)
	if err != nil {
		slog.Debug("capability query failed", "path", path, "error", err)
		return DeviceUnknown
	}
	return ClassifyCapabilities(caps)
}
