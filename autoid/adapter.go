package autoid

// Adapter receives bridge notifications and surfaces them through an external façade.
//
// Notifications are delivered sequentially in the order they were produced. Implementations
// must not block for long; they may call back into a Commander.
type Adapter interface {
	// DeviceStatusChanged is invoked whenever the device status changes.
	DeviceStatusChanged(status DeviceStatus)
	// ScanEvent is invoked for every reading processed during an active scan session.
	ScanEvent(event ScanEvent)
}

// Adapters fans notifications out to every adapter in order.
type Adapters []Adapter

var _ Adapter = Adapters(nil)

func (a Adapters) DeviceStatusChanged(status DeviceStatus) {
	for _, adapter := range a {
		if adapter != nil {
			adapter.DeviceStatusChanged(status)
		}
	}
}

func (a Adapters) ScanEvent(event ScanEvent) {
	for _, adapter := range a {
		if adapter != nil {
			adapter.ScanEvent(event)
		}
	}
}

// NopAdapter discards all notifications.
type NopAdapter struct{}

var _ Adapter = NopAdapter{}

func (NopAdapter) DeviceStatusChanged(DeviceStatus) {}

func (NopAdapter) ScanEvent(ScanEvent) {}

// AdapterFuncs adapts plain functions to the Adapter interface. Nil fields are ignored.
type AdapterFuncs struct {
	OnDeviceStatus func(DeviceStatus)
	OnScanEvent    func(ScanEvent)
}

var _ Adapter = AdapterFuncs{}

func (f AdapterFuncs) DeviceStatusChanged(status DeviceStatus) {
	if f.OnDeviceStatus != nil {
		f.OnDeviceStatus(status)
	}
}

func (f AdapterFuncs) ScanEvent(event ScanEvent) {
	if f.OnScanEvent != nil {
		f.OnScanEvent(event)
	}
}
