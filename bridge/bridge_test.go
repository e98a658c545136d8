package bridge

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/frame"
	"github.com/arloliu/go-autoid/readerlink"
	"github.com/arloliu/go-autoid/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordAdapter struct {
	mu       sync.Mutex
	statuses []autoid.DeviceStatus
	events   []autoid.ScanEvent
}

func (a *recordAdapter) DeviceStatusChanged(status autoid.DeviceStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses = append(a.statuses, status)
}

func (a *recordAdapter) ScanEvent(event autoid.ScanEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordAdapter) Statuses() []autoid.DeviceStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]autoid.DeviceStatus(nil), a.statuses...)
}

func (a *recordAdapter) Events() []autoid.ScanEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]autoid.ScanEvent(nil), a.events...)
}

func (a *recordAdapter) lastStatus() autoid.DeviceStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.statuses) == 0 {
		return autoid.StatusError
	}
	return a.statuses[len(a.statuses)-1]
}

const waitFor = 3 * time.Second

func startSimulator(t *testing.T, port int) *simulator.Endpoint {
	t.Helper()

	cfg, err := simulator.NewConfig(port)
	require.NoError(t, err)

	ep, err := simulator.NewEndpoint(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, ep.Initialize())
	t.Cleanup(func() { _ = ep.Shutdown() })

	return ep
}

func newTestBridge(t *testing.T, port int, adapter autoid.Adapter, opts ...Option) *Bridge {
	t.Helper()

	linkCfg, err := readerlink.NewConfig("127.0.0.1", port, readerlink.WithReconnectDelay(20*time.Millisecond))
	require.NoError(t, err)

	cfg, err := NewConfig(linkCfg, opts...)
	require.NoError(t, err)

	b, err := New(context.Background(), cfg, adapter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return b
}

func waitIdle(t *testing.T, b *Bridge, ep *simulator.Endpoint, clients int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return b.DeviceStatus() == autoid.StatusIdle && ep.ConnCount() == clients
	}, waitFor, 5*time.Millisecond)
}

func TestNewConfig(t *testing.T) {
	require := require.New(t)

	_, err := NewConfig(nil)
	require.ErrorIs(err, ErrConfigNil)

	linkCfg, err := readerlink.NewConfig("127.0.0.1", 5678)
	require.NoError(err)

	_, err = NewConfig(linkCfg, WithDeviceInfo(autoid.DeviceInfo{}))
	require.Error(err)

	_, err = NewConfig(linkCfg, WithClock(nil))
	require.Error(err)

	_, err = NewConfig(linkCfg, WithLogger(nil))
	require.Error(err)

	info := autoid.DefaultDeviceInfo()
	info.SerialNumber = "X-1"
	cfg, err := NewConfig(linkCfg, WithDeviceInfo(info))
	require.NoError(err)

	b, err := New(context.Background(), cfg, nil)
	require.NoError(err)
	defer b.Close()
	require.Equal("X-1", b.DeviceInfo().SerialNumber)
	require.Equal("Scanner", b.DeviceInfo().Name)
}

func TestBridge_ScanSession(t *testing.T) {
	require := require.New(t)

	now := time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)
	ep := startSimulator(t, 0)
	adapter := &recordAdapter{}
	b := newTestBridge(t, ep.Port(), adapter, WithClock(func() time.Time { return now }))

	require.Equal(autoid.StatusError, b.DeviceStatus())
	code, err := b.StartScan(false)
	require.Equal(autoid.ResultDeviceNotReady, code)
	require.ErrorIs(err, autoid.ErrLinkDown)

	require.NoError(b.Open())
	waitIdle(t, b, ep, 1)
	require.True(b.LinkConnected())

	// not scanning: readings are dropped
	require.NoError(ep.SimulateRead("DROPPED", 1))
	require.Eventually(func() bool {
		return b.LinkMetrics().FrameRecvCount.Load() == 1
	}, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	code, err = b.StartScan(false)
	require.NoError(err)
	require.Equal(autoid.ResultSuccess, code)
	require.True(b.ScanRunning())

	require.NoError(ep.SimulateRead("3034257BF7194E4000000001", 42))
	require.NoError(ep.SimulateRead("E200", -61))

	require.Eventually(func() bool { return len(adapter.Events()) == 2 }, waitFor, 5*time.Millisecond)
	events := adapter.Events()
	require.Equal(uint64(1), events[0].Sequence)
	require.Equal("3034257BF7194E4000000001", events[0].Data)
	require.Equal(42, events[0].RSSI)
	require.Equal(autoid.CodeTypeRawString, events[0].CodeType)
	require.Equal(autoid.DefaultPowerLevel, events[0].PowerLevel)
	require.Equal(now, events[0].Timestamp)
	require.Equal(now, events[0].SightingTimestamp)
	require.Equal("E200", events[1].Data)

	require.NoError(b.StopScan())
	require.ErrorIs(b.StopScan(), autoid.ErrScanNotRunning)

	require.Equal([]autoid.DeviceStatus{
		autoid.StatusIdle,
		autoid.StatusScanning,
		autoid.StatusIdle,
	}, adapter.Statuses())
}

func TestBridge_AutoStop(t *testing.T) {
	require := require.New(t)

	ep := startSimulator(t, 0)
	adapter := &recordAdapter{}
	b := newTestBridge(t, ep.Port(), adapter)

	require.NoError(b.Open())
	waitIdle(t, b, ep, 1)

	_, err := b.StartScan(true)
	require.NoError(err)

	require.NoError(ep.SimulateRead("FIRST", 10))
	require.NoError(ep.SimulateRead("SECOND", 20))

	require.Eventually(func() bool { return !b.ScanRunning() }, waitFor, 5*time.Millisecond)

	// SECOND arrives after the auto-stop; give it time to be (not) delivered
	time.Sleep(50 * time.Millisecond)
	events := adapter.Events()
	require.Len(events, 1)
	require.Equal("FIRST", events[0].Data)
	require.Equal(autoid.StatusIdle, adapter.lastStatus())
}

func TestBridge_SplitFrameFromReader(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer ln.Close()

	adapter := &recordAdapter{}
	b := newTestBridge(t, ln.Addr().(*net.TCPAddr).Port, adapter)
	require.NoError(b.Open())

	conn, err := ln.Accept()
	require.NoError(err)
	defer conn.Close()

	require.Eventually(func() bool { return b.DeviceStatus() == autoid.StatusIdle }, waitFor, 5*time.Millisecond)
	_, err = b.StartScan(false)
	require.NoError(err)

	payload := []byte(`{"data":"A1","rssi":42}`)
	msg, err := frame.Encode(payload)
	require.NoError(err)

	_, err = conn.Write(msg[:10])
	require.NoError(err)
	time.Sleep(30 * time.Millisecond)
	require.Empty(adapter.Events())

	_, err = conn.Write(msg[10:])
	require.NoError(err)

	require.Eventually(func() bool { return len(adapter.Events()) == 1 }, waitFor, 5*time.Millisecond)
	event := adapter.Events()[0]
	require.Equal("A1", event.Data)
	require.Equal(42, event.RSSI)
	require.True(b.ScanRunning())
}

func TestBridge_ReaderLossResetsScan(t *testing.T) {
	require := require.New(t)

	ep := startSimulator(t, 0)
	port := ep.Port()
	adapter := &recordAdapter{}
	b := newTestBridge(t, port, adapter)

	require.NoError(b.Open())
	waitIdle(t, b, ep, 1)

	_, err := b.StartScan(true)
	require.NoError(err)

	require.NoError(ep.Shutdown())

	require.Eventually(func() bool { return b.DeviceStatus() == autoid.StatusError }, waitFor, 5*time.Millisecond)
	require.False(b.ScanRunning())
	require.False(b.LinkConnected())

	code, err := b.StartScan(false)
	require.Equal(autoid.ResultDeviceNotReady, code)
	require.ErrorIs(err, autoid.ErrLinkDown)

	// the reader comes back on the same port
	restarted := startSimulator(t, port)
	waitIdle(t, b, restarted, 1)

	_, err = b.StartScan(false)
	require.NoError(err)
	require.NoError(restarted.SimulateRead("BACK", 5))
	require.Eventually(func() bool { return len(adapter.Events()) == 1 }, waitFor, 5*time.Millisecond)

	require.Equal([]autoid.DeviceStatus{
		autoid.StatusIdle,
		autoid.StatusScanning,
		autoid.StatusError,
		autoid.StatusIdle,
		autoid.StatusScanning,
	}, adapter.Statuses())
}

func TestBridge_AdapterCommandsFromCallback(t *testing.T) {
	require := require.New(t)

	ep := startSimulator(t, 0)

	var b *Bridge
	var mu sync.Mutex
	var started bool
	adapter := autoid.AdapterFuncs{
		OnDeviceStatus: func(status autoid.DeviceStatus) {
			// start a scan as soon as the device becomes ready, from inside the callback
			if status != autoid.StatusIdle {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if started {
				return
			}
			started = true
			_, err := b.StartScan(false)
			assert.NoError(t, err)
		},
	}
	b = newTestBridge(t, ep.Port(), adapter)

	require.NoError(b.Open())
	require.Eventually(func() bool { return b.ScanRunning() }, waitFor, 5*time.Millisecond)
	require.Equal(autoid.StatusScanning, b.DeviceStatus())
}

func TestBridge_CloseReportsError(t *testing.T) {
	require := require.New(t)

	ep := startSimulator(t, 0)
	adapter := &recordAdapter{}
	b := newTestBridge(t, ep.Port(), adapter)

	require.NoError(b.Open())
	waitIdle(t, b, ep, 1)

	require.NoError(b.Close())
	require.NoError(b.Close())

	require.Equal(autoid.StatusError, b.DeviceStatus())
	require.Equal([]autoid.DeviceStatus{autoid.StatusIdle, autoid.StatusError}, adapter.Statuses())
	require.ErrorIs(b.Open(), readerlink.ErrLinkClosed)

	require.Eventually(func() bool { return ep.ConnCount() == 0 }, waitFor, 5*time.Millisecond)
}
