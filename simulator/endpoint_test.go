package simulator

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEndpoint(t *testing.T, opts ...Option) *Endpoint {
	t.Helper()

	cfg, err := NewConfig(0, opts...)
	require.NoError(t, err)

	ep, err := NewEndpoint(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, ep.Initialize())
	t.Cleanup(func() { _ = ep.Shutdown() })

	return ep
}

func dialClient(t *testing.T, ep *Endpoint) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp", ep.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func dialClients(t *testing.T, ep *Endpoint, n int) []net.Conn {
	t.Helper()

	conns := make([]net.Conn, n)
	for i := range conns {
		conns[i] = dialClient(t, ep)
	}

	require.Eventually(t, func() bool { return ep.ConnCount() == n }, 3*time.Second, 5*time.Millisecond)

	return conns
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	header := make([]byte, frame.HeaderSize)
	_, err := io.ReadFull(conn, header)
	require.NoError(t, err)

	payload := make([]byte, binary.BigEndian.Uint16(header))
	_, err = io.ReadFull(conn, payload)
	require.NoError(t, err)

	return append(header, payload...)
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		description string
		port        int
		opts        []Option
		expectedErr bool
	}{
		{description: "ephemeral port", port: 0},
		{description: "default port", port: DefaultPort},
		{description: "negative port", port: -1, expectedErr: true},
		{description: "port too large", port: 70000, expectedErr: true},
		{description: "all interfaces", port: 1, opts: []Option{WithListenHost("")}},
		{description: "invalid host", port: 1, opts: []Option{WithListenHost("a b")}, expectedErr: true},
		{description: "write timeout disabled", port: 1, opts: []Option{WithWriteTimeout(0)}},
		{description: "write timeout too long", port: 1, opts: []Option{WithWriteTimeout(time.Hour)}, expectedErr: true},
		{description: "auto-read disabled", port: 1, opts: []Option{WithAutoRead(0, "", 0)}},
		{description: "auto-read negative", port: 1, opts: []Option{WithAutoRead(-time.Second, "A", 1)}, expectedErr: true},
		{description: "auto-read too fast", port: 1, opts: []Option{WithAutoRead(time.Microsecond, "A", 1)}, expectedErr: true},
		{description: "nil logger", port: 1, opts: []Option{WithLogger(nil)}, expectedErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			_, err := NewConfig(tt.port, tt.opts...)
			if tt.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewEndpoint_NilConfig(t *testing.T) {
	_, err := NewEndpoint(context.Background(), nil)
	require.ErrorIs(t, err, ErrConfigNil)
}

func TestEndpoint_BroadcastToAllClients(t *testing.T) {
	require := require.New(t)

	ep := newTestEndpoint(t)
	clients := dialClients(t, ep, 3)

	require.NoError(ep.SimulateRead("3034257BF7194E4000000001", 42))

	expected, err := frame.Encode([]byte(`{"rssi":42,"data":"3034257BF7194E4000000001"}`))
	require.NoError(err)

	for i, conn := range clients {
		require.Equal(expected, readFrame(t, conn), "client %d", i)
	}

	require.Equal(uint64(1), ep.Metrics().ReadCount.Load())
	require.Equal(uint64(3), ep.Metrics().FrameSendCount.Load())
}

func TestEndpoint_SimulateReadWithoutClients(t *testing.T) {
	ep := newTestEndpoint(t)

	require.NoError(t, ep.SimulateRead("A1", 1))
	require.Zero(t, ep.Metrics().FrameSendCount.Load())
}

func TestEndpoint_SimulateReadTooLarge(t *testing.T) {
	ep := newTestEndpoint(t)

	data := make([]byte, frame.MaxPayloadSize)
	for i := range data {
		data[i] = 'A'
	}

	err := ep.SimulateRead(string(data), 1)
	require.ErrorIs(t, err, frame.ErrPayloadTooLarge)
}

func TestEndpoint_ClientDisconnectRemoved(t *testing.T) {
	require := require.New(t)

	ep := newTestEndpoint(t)
	clients := dialClients(t, ep, 3)

	require.NoError(clients[1].Close())
	require.Eventually(func() bool { return ep.ConnCount() == 2 }, 3*time.Second, 5*time.Millisecond)

	require.NoError(ep.SimulateRead("E200", -61))

	for _, conn := range []net.Conn{clients[0], clients[2]} {
		reading, err := autoid.ParseReading(readFrame(t, conn)[frame.HeaderSize:])
		require.NoError(err)
		require.Equal(autoid.Reading{Data: "E200", RSSI: -61}, reading)
	}

	require.Equal(uint64(1), ep.Metrics().CloseCount.Load())
}

func TestEndpoint_WriteFailureIsolated(t *testing.T) {
	require := require.New(t)

	ep := newTestEndpoint(t)
	clients := dialClients(t, ep, 2)

	// a client whose socket is already gone, every write to it fails
	broken, peer := net.Pipe()
	require.NoError(broken.Close())
	require.NoError(peer.Close())
	bad := &client{id: ep.nextID.Add(1), conn: broken}
	ep.conns.Store(bad.id, bad)
	require.Equal(3, ep.ConnCount())

	require.NoError(ep.SimulateRead("E200", -61))

	for i, conn := range clients {
		reading, err := autoid.ParseReading(readFrame(t, conn)[frame.HeaderSize:])
		require.NoError(err, "client %d", i)
		require.Equal(autoid.Reading{Data: "E200", RSSI: -61}, reading, "client %d", i)
	}

	require.Equal(uint64(1), ep.Metrics().WriteErrCount.Load())
	require.Equal(uint64(2), ep.Metrics().FrameSendCount.Load())
	require.Equal(2, ep.ConnCount())
	_, found := ep.conns.Load(bad.id)
	require.False(found)

	// the remaining clients keep receiving
	require.NoError(ep.SimulateRead("E201", -60))
	for _, conn := range clients {
		reading, err := autoid.ParseReading(readFrame(t, conn)[frame.HeaderSize:])
		require.NoError(err)
		require.Equal("E201", reading.Data)
	}
	require.Equal(uint64(1), ep.Metrics().WriteErrCount.Load())
}

func TestEndpoint_InboundBytesDiscarded(t *testing.T) {
	require := require.New(t)

	ep := newTestEndpoint(t)
	conn := dialClients(t, ep, 1)[0]

	_, err := conn.Write([]byte("hello reader"))
	require.NoError(err)
	require.Eventually(func() bool {
		return ep.Metrics().BytesDiscardCount.Load() == uint64(len("hello reader"))
	}, 3*time.Second, 5*time.Millisecond)

	require.Equal(1, ep.ConnCount())
	require.NoError(ep.SimulateRead("A1", 1))
	require.NotEmpty(readFrame(t, conn))
}

func TestEndpoint_ShutdownClosesClients(t *testing.T) {
	require := require.New(t)

	ep := newTestEndpoint(t)
	clients := dialClients(t, ep, 2)

	require.NoError(ep.Shutdown())
	require.Zero(ep.ConnCount())
	require.Zero(ep.taskMgr.TaskCount())

	for _, conn := range clients {
		require.NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
		_, err := conn.Read(make([]byte, 1))
		require.Error(err)
	}

	// listener is closed
	_, err := net.DialTimeout("tcp", ep.Addr().String(), time.Second)
	require.Error(err)
}

func TestEndpoint_ShutdownWithoutClients(t *testing.T) {
	require := require.New(t)

	ep := newTestEndpoint(t)
	require.NoError(ep.Shutdown())
	require.NoError(ep.Shutdown())
	require.ErrorIs(ep.Initialize(), ErrEndpointClosed)
}

func TestEndpoint_ShutdownBeforeInitialize(t *testing.T) {
	cfg, err := NewConfig(0)
	require.NoError(t, err)

	ep, err := NewEndpoint(context.Background(), cfg)
	require.NoError(t, err)

	require.Nil(t, ep.Addr())
	require.Zero(t, ep.Port())
	require.NoError(t, ep.Shutdown())
}

func TestEndpoint_InitializeTwice(t *testing.T) {
	ep := newTestEndpoint(t)
	require.ErrorIs(t, ep.Initialize(), ErrAlreadyInitialized)
}

func TestEndpoint_BindFailure(t *testing.T) {
	require := require.New(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer busy.Close()

	cfg, err := NewConfig(busy.Addr().(*net.TCPAddr).Port)
	require.NoError(err)

	ep, err := NewEndpoint(context.Background(), cfg)
	require.NoError(err)

	require.Error(ep.Initialize())
	require.NoError(ep.Shutdown())
}

func TestEndpoint_AutoRead(t *testing.T) {
	require := require.New(t)

	ep := newTestEndpoint(t, WithAutoRead(20*time.Millisecond, "AUTO", -50))
	conn := dialClients(t, ep, 1)[0]

	for i := 0; i < 2; i++ {
		reading, err := autoid.ParseReading(readFrame(t, conn)[frame.HeaderSize:])
		require.NoError(err)
		require.Equal(autoid.Reading{Data: "AUTO", RSSI: -50}, reading)
	}

	require.NoError(ep.Shutdown())
	reads := ep.Metrics().ReadCount.Load()
	time.Sleep(60 * time.Millisecond)
	require.Equal(reads, ep.Metrics().ReadCount.Load())
}
