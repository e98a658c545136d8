// Package scan implements the scan session state machine of an RFID device.
//
// The Controller decides, from commands and reader link events, whether readings become scan
// events and which device status to publish. It performs no I/O and no locking: it is owned by a
// single bridge, which serializes every call.
package scan

import (
	"time"

	"github.com/arloliu/go-autoid/autoid"
)

// Sink receives the notifications produced by a Controller.
type Sink interface {
	// DeviceStatusChanged is called only when the status value actually changes.
	DeviceStatusChanged(status autoid.DeviceStatus)
	// ScanEvent is called once per accepted reading.
	ScanEvent(event autoid.ScanEvent)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source of scan event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller is the scan session state machine. It is NOT goroutine-safe.
type Controller struct {
	sink Sink
	now  func() time.Time

	status   autoid.DeviceStatus
	linkUp   bool
	running  bool
	autoStop bool
	seq      uint64
}

// NewController creates a controller for a device whose reader link is not yet connected,
// so the initial status is StatusError.
func NewController(sink Sink, opts ...Option) *Controller {
	if sink == nil {
		sink = autoid.NopAdapter{}
	}

	c := &Controller{
		sink:   sink,
		now:    time.Now,
		status: autoid.StatusError,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins a scan session. With autoStop the session ends after the first scan event.
//
// It is rejected with ResultDeviceNotReady and an error wrapping autoid.ErrInvalidState when a
// session is already running or the reader link is down; the state is left untouched then.
func (c *Controller) Start(autoStop bool) (autoid.ResultCode, error) {
	if c.running {
		return autoid.ResultDeviceNotReady, autoid.ErrScanRunning
	}
	if !c.linkUp {
		return autoid.ResultDeviceNotReady, autoid.ErrLinkDown
	}

	c.running = true
	c.autoStop = autoStop
	c.setStatus(autoid.StatusScanning)

	return autoid.ResultSuccess, nil
}

// Stop ends the running scan session. It returns autoid.ErrScanNotRunning when none is running.
func (c *Controller) Stop() error {
	if !c.running {
		return autoid.ErrScanNotRunning
	}

	c.endSession(autoid.StatusIdle)

	return nil
}

// OnReading turns r into a scan event if a session is running and reports whether it did.
func (c *Controller) OnReading(r autoid.Reading) bool {
	if !c.running {
		return false
	}

	now := c.now()
	c.seq++
	c.sink.ScanEvent(autoid.ScanEvent{
		Sequence:          c.seq,
		CodeType:          autoid.CodeTypeRawString,
		Data:              r.Data,
		RSSI:              r.RSSI,
		PowerLevel:        autoid.DefaultPowerLevel,
		Timestamp:         now,
		SightingTimestamp: now,
	})

	if c.autoStop {
		c.endSession(autoid.StatusIdle)
	}

	return true
}

// OnLinkHealthChanged applies a reader link health transition.
// Losing the link aborts a running session and reports StatusError.
func (c *Controller) OnLinkHealthChanged(connected bool) {
	c.linkUp = connected

	if !connected {
		c.endSession(autoid.StatusError)
		return
	}

	if !c.running {
		c.setStatus(autoid.StatusIdle)
	}
}

// Status returns the current device status.
func (c *Controller) Status() autoid.DeviceStatus { return c.status }

// Running reports whether a scan session is running.
func (c *Controller) Running() bool { return c.running }

// AutoStop reports whether the running session stops after its first scan event.
func (c *Controller) AutoStop() bool { return c.running && c.autoStop }

// LinkUp reports the last known reader link health.
func (c *Controller) LinkUp() bool { return c.linkUp }

// EventCount returns the number of scan events emitted so far.
func (c *Controller) EventCount() uint64 { return c.seq }

func (c *Controller) endSession(status autoid.DeviceStatus) {
	c.running = false
	c.autoStop = false
	c.setStatus(status)
}

func (c *Controller) setStatus(status autoid.DeviceStatus) {
	if c.status == status {
		return
	}

	c.status = status
	c.sink.DeviceStatusChanged(status)
}
