package autoid

import "fmt"

// DeviceStatus is the externally visible health and activity state of the reader device.
//
// The numeric values are part of the adapter contract and must not change.
type DeviceStatus int32

const (
	// StatusIdle indicates the reader link is up and no scan is active.
	StatusIdle DeviceStatus = 0
	// StatusError indicates the reader link is down.
	StatusError DeviceStatus = 1
	// StatusScanning indicates a scan session is active.
	StatusScanning DeviceStatus = 2
	// StatusBusy is reserved. No transition produces it.
	StatusBusy DeviceStatus = 3
)

// String returns string representation of the status.
func (s DeviceStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusError:
		return "error"
	case StatusScanning:
		return "scanning"
	case StatusBusy:
		return "busy"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// IsValid reports whether s is one of the defined statuses.
func (s DeviceStatus) IsValid() bool {
	return s >= StatusIdle && s <= StatusBusy
}

// MarshalText encodes the status name, so JSON adapters publish "idle" rather than 0.
func (s DeviceStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid device status %d", int32(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name produced by MarshalText.
func (s *DeviceStatus) UnmarshalText(text []byte) error {
	for st := StatusIdle; st <= StatusBusy; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}

	return fmt.Errorf("unknown device status %q", text)
}
