package autoid

// ResultCode is the output value of a scan start command.
type ResultCode int32

const (
	// ResultSuccess reports an accepted command.
	ResultSuccess ResultCode = 0
	// ResultDeviceNotReady reports a command rejected because the device cannot scan now.
	ResultDeviceNotReady ResultCode = 17
)

// String returns string representation of the result code.
func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "success"
	case ResultDeviceNotReady:
		return "device-not-ready"
	default:
		return "unknown"
	}
}

// Commander is the command surface an adapter drives.
type Commander interface {
	// StartScan starts a scan session. autoStop ends the session after the first reading.
	// A rejected start returns ResultDeviceNotReady and an error wrapping ErrInvalidState.
	StartScan(autoStop bool) (ResultCode, error)
	// StopScan stops the running scan session, or returns an error wrapping ErrInvalidState.
	StopScan() error
	// DeviceStatus returns the current device status.
	DeviceStatus() DeviceStatus
	// DeviceInfo returns the identity of the bridged device.
	DeviceInfo() DeviceInfo
}
