package contracts

// DeviceInfo describes a MIDI input device as reported by a driver.
type DeviceInfo struct {
	Name         string `json:"name"`                   // Device name, used to open the device.
	Manufacturer string `json:"manufacturer,omitempty"` // Device manufacturer, when the driver knows it.
	EntityName   string `json:"entity,omitempty"`       // Name of the entity to which the device belongs.
}

// String returns the name used to select the device.
func (d DeviceInfo) String() string {
	return d.Name
}

// DeviceNames extracts the selectable names from a device list.
func DeviceNames(devices []DeviceInfo) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}
