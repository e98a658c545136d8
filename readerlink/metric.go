package readerlink

import "sync/atomic"

// Metrics contains atomic counters for a reader link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// ConnectCount indicates the number of successful dials.
	ConnectCount atomic.Uint64
	// DisconnectCount indicates the number of times an established or pending connection was lost.
	DisconnectCount atomic.Uint64
	// ConnRetryGauge indicates the number of reconnects scheduled since the last successful connect.
	ConnRetryGauge atomic.Uint32

	// FrameRecvCount indicates the number of complete frames decoded.
	FrameRecvCount atomic.Uint64
	// FrameErrCount indicates the number of frames dropped because the payload was malformed.
	FrameErrCount atomic.Uint64
	// BytesRecvCount indicates the number of bytes read from the reader.
	BytesRecvCount atomic.Uint64
}

func (m *Metrics) incConnectCount() {
	m.ConnectCount.Add(1)
}

func (m *Metrics) incDisconnectCount() {
	m.DisconnectCount.Add(1)
}

func (m *Metrics) resetConnRetryGauge() {
	m.ConnRetryGauge.Store(0)
}

func (m *Metrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *Metrics) incFrameErrCount() {
	m.FrameErrCount.Add(1)
}

func (m *Metrics) addBytesRecvCount(n int) {
	m.BytesRecvCount.Add(uint64(n)) //nolint:gosec
}
