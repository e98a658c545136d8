package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/internal/queue"
	"github.com/arloliu/go-autoid/logger"
	"github.com/arloliu/go-autoid/readerlink"
	"github.com/arloliu/go-autoid/scan"
)

// Bridge is one reader-to-adapter bridge instance.
type Bridge struct {
	cfg     *Config
	logger  logger.Logger
	adapter autoid.Adapter
	link    *readerlink.Link

	// mu guards controller and pending.
	mu         sync.Mutex
	controller *scan.Controller
	pending    *queue.Queue[notification]

	// dispatchMu is held by the goroutine delivering pending notifications.
	dispatchMu sync.Mutex

	closed atomic.Bool
}

var _ autoid.Commander = (*Bridge)(nil)

type notificationKind uint8

const (
	statusNotification notificationKind = iota
	scanEventNotification
)

type notification struct {
	kind   notificationKind
	status autoid.DeviceStatus
	event  autoid.ScanEvent
}

// pendingSink queues controller notifications. It is only called with Bridge.mu held.
type pendingSink struct {
	q *queue.Queue[notification]
}

func (s pendingSink) DeviceStatusChanged(status autoid.DeviceStatus) {
	s.q.Enqueue(notification{kind: statusNotification, status: status})
}

func (s pendingSink) ScanEvent(event autoid.ScanEvent) {
	s.q.Enqueue(notification{kind: scanEventNotification, event: event})
}

// New creates a bridge delivering notifications to adapter. A nil adapter discards them.
// The reader link is not dialed until Open.
func New(ctx context.Context, cfg *Config, adapter autoid.Adapter) (*Bridge, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if adapter == nil {
		adapter = autoid.NopAdapter{}
	}

	b := &Bridge{
		cfg:     cfg,
		logger:  cfg.logger.With("component", "bridge"),
		adapter: adapter,
		pending: queue.New[notification](8),
	}
	b.controller = scan.NewController(pendingSink{q: b.pending}, scan.WithClock(cfg.now))

	link, err := readerlink.NewLink(ctx, cfg.link, readerlink.HandlerFuncs{
		OnLinkState: b.onLinkState,
		OnReading:   b.onReading,
	})
	if err != nil {
		return nil, err
	}
	b.link = link

	return b, nil
}

// Open starts connecting to the reader.
func (b *Bridge) Open() error {
	return b.link.Open()
}

// Close stops the reader link and delivers the resulting notifications. It is idempotent.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := b.link.Close()
	b.dispatch()

	b.logger.Info("bridge closed", "method", "Close")

	return err
}

// StartScan starts a scan session, see scan.Controller.Start.
func (b *Bridge) StartScan(autoStop bool) (autoid.ResultCode, error) {
	b.mu.Lock()
	code, err := b.controller.Start(autoStop)
	b.mu.Unlock()

	b.dispatch()

	if err != nil {
		b.logger.Debug("scan start rejected", "method", "StartScan", "result", code, "error", err)
	} else {
		b.logger.Info("scan started", "method", "StartScan", "autoStop", autoStop)
	}

	return code, err
}

// StopScan stops the running scan session, see scan.Controller.Stop.
func (b *Bridge) StopScan() error {
	b.mu.Lock()
	err := b.controller.Stop()
	b.mu.Unlock()

	b.dispatch()

	if err != nil {
		b.logger.Debug("scan stop rejected", "method", "StopScan", "error", err)
	} else {
		b.logger.Info("scan stopped", "method", "StopScan")
	}

	return err
}

// DeviceStatus returns the current device status.
func (b *Bridge) DeviceStatus() autoid.DeviceStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.controller.Status()
}

// ScanRunning reports whether a scan session is running.
func (b *Bridge) ScanRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.controller.Running()
}

// LinkConnected reports the reader link health as last applied to the scan controller.
func (b *Bridge) LinkConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.controller.LinkUp()
}

// DeviceInfo returns the identity of the bridged device.
func (b *Bridge) DeviceInfo() autoid.DeviceInfo {
	return b.cfg.deviceInfo
}

// WaitLinkState waits until the reader link reaches state or ctx is done.
func (b *Bridge) WaitLinkState(ctx context.Context, state readerlink.LinkState) error {
	return b.link.WaitState(ctx, state)
}

// LinkMetrics returns the reader link metrics.
func (b *Bridge) LinkMetrics() *readerlink.Metrics {
	return b.link.Metrics()
}

func (b *Bridge) onLinkState(connected bool) {
	b.mu.Lock()
	b.controller.OnLinkHealthChanged(connected)
	b.mu.Unlock()

	b.dispatch()
}

func (b *Bridge) onReading(r autoid.Reading) {
	b.mu.Lock()
	accepted := b.controller.OnReading(r)
	b.mu.Unlock()

	if !accepted {
		b.logger.Debug("reading ignored, no scan running", "method", "onReading", "data", r.Data)
		return
	}

	b.dispatch()
}

// dispatch delivers pending notifications in queue order. Only one goroutine delivers at a time;
// a caller that finds delivery in progress leaves its notifications to that goroutine.
func (b *Bridge) dispatch() {
	for {
		if !b.dispatchMu.TryLock() {
			return
		}

		for {
			n, ok := b.nextPending()
			if !ok {
				break
			}
			b.deliver(n)
		}

		b.dispatchMu.Unlock()

		// a notification queued between the last dequeue and Unlock has no other deliverer
		if !b.hasPending() {
			return
		}
	}
}

func (b *Bridge) nextPending() (notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pending.Dequeue()
}

func (b *Bridge) hasPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return !b.pending.IsEmpty()
}

func (b *Bridge) deliver(n notification) {
	switch n.kind {
	case statusNotification:
		b.logger.Debug("device status changed", "method", "deliver", "status", n.status)
		b.adapter.DeviceStatusChanged(n.status)
	case scanEventNotification:
		b.logger.Debug("scan event", "method", "deliver", "seq", n.event.Sequence, "data", n.event.Data)
		b.adapter.ScanEvent(n.event)
	}
}
