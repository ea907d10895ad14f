package verifier

// SelectTouchpad picks the touchpad candidate from a scan result. First pass
// takes the first device classified as a touchpad; second pass re-applies
// the name heuristic directly, which catches devices whose classification
// degraded to unknown (e.g. after a failed capability query) but whose name
// still identifies them. First match wins, there is no ranking.
func SelectTouchpad(devices []DeviceInfo) (DeviceInfo, bool) {
	for _, d := range devices {
		if d.Type == DeviceTouchpad {
			return d, true
		}
	}
	for _, d := range devices {
		if ClassifyName(d.Name) == DeviceTouchpad {
			return d, true
		}
	}
	return DeviceInfo{}, false
}
