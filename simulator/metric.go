package simulator

import "sync/atomic"

// Metrics contains atomic counters for a simulator endpoint.
type Metrics struct {
	// AcceptCount indicates the number of accepted client connections.
	AcceptCount atomic.Uint64
	// CloseCount indicates the number of client connections removed from the set.
	CloseCount atomic.Uint64
	// ReadCount indicates the number of simulated readings.
	ReadCount atomic.Uint64
	// FrameSendCount indicates the number of frames written, one per client per reading.
	FrameSendCount atomic.Uint64
	// WriteErrCount indicates the number of failed client writes.
	WriteErrCount atomic.Uint64
	// BytesDiscardCount indicates the number of bytes received from clients and discarded.
	BytesDiscardCount atomic.Uint64
}

func (m *Metrics) incAcceptCount()    { m.AcceptCount.Add(1) }
func (m *Metrics) incCloseCount()     { m.CloseCount.Add(1) }
func (m *Metrics) incReadCount()      { m.ReadCount.Add(1) }
func (m *Metrics) incFrameSendCount() { m.FrameSendCount.Add(1) }
func (m *Metrics) incWriteErrCount()  { m.WriteErrCount.Add(1) }

func (m *Metrics) addBytesDiscardCount(n int) {
	m.BytesDiscardCount.Add(uint64(n)) //nolint:gosec
}
