package autoid

// DeviceInfo is the identity metadata an adapter publishes for the bridged reader.
type DeviceInfo struct {
	Name             string `json:"name"`
	Manufacturer     string `json:"manufacturer"`
	Model            string `json:"model"`
	SerialNumber     string `json:"serial_number"`
	DeviceRevision   string `json:"device_revision"`
	HardwareRevision string `json:"hardware_revision"`
	SoftwareRevision string `json:"software_revision"`
}

// DefaultDeviceInfo returns the identity of the demo reader.
func DefaultDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Name:             "Scanner",
		Manufacturer:     "basysKom GmbH",
		Model:            "Demo RFID Reader",
		SerialNumber:     "12345678",
		DeviceRevision:   "1.3",
		HardwareRevision: "1.2",
		SoftwareRevision: "1.15",
	}
}
