// Package autoidtest provides test doubles for the autoid interfaces.
package autoidtest

import (
	"sync"

	"github.com/arloliu/go-autoid/autoid"
)

// Commander is an in-memory autoid.Commander following the scan session rules:
// a scan starts only when Ready and not already running.
type Commander struct {
	mu       sync.Mutex
	ready    bool
	running  bool
	autoStop bool
	info     autoid.DeviceInfo

	StartCalls int
	StopCalls  int
}

var _ autoid.Commander = (*Commander)(nil)

// NewCommander creates a commander whose device is ready to scan.
func NewCommander() *Commander {
	return &Commander{ready: true, info: autoid.DefaultDeviceInfo()}
}

// SetReady sets whether the reader link is up. Going down ends a running scan.
func (c *Commander) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready = ready
	if !ready {
		c.running = false
	}
}

func (c *Commander) StartScan(autoStop bool) (autoid.ResultCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.StartCalls++
	switch {
	case c.running:
		return autoid.ResultDeviceNotReady, autoid.ErrScanRunning
	case !c.ready:
		return autoid.ResultDeviceNotReady, autoid.ErrLinkDown
	}

	c.running = true
	c.autoStop = autoStop

	return autoid.ResultSuccess, nil
}

func (c *Commander) StopScan() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.StopCalls++
	if !c.running {
		return autoid.ErrScanNotRunning
	}
	c.running = false

	return nil
}

func (c *Commander) DeviceStatus() autoid.DeviceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.ready:
		return autoid.StatusError
	case c.running:
		return autoid.StatusScanning
	default:
		return autoid.StatusIdle
	}
}

func (c *Commander) DeviceInfo() autoid.DeviceInfo {
	return c.info
}

// AutoStop reports the autoStop flag of the last accepted start.
func (c *Commander) AutoStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.autoStop
}

// Calls returns the number of StartScan and StopScan calls.
func (c *Commander) Calls() (starts int, stops int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.StartCalls, c.StopCalls
}
