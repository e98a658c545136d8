package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/frame"
	"github.com/arloliu/go-autoid/internal/task"
	"github.com/arloliu/go-autoid/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// Endpoint is a simulated reader serving any number of clients.
type Endpoint struct {
	cfg    *Config
	logger logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	taskMgr *task.Manager

	listenerMu sync.Mutex
	listener   net.Listener

	conns  *xsync.MapOf[uint64, *client]
	nextID atomic.Uint64

	initialized atomic.Bool
	shutdown    atomic.Bool

	metrics Metrics
}

type client struct {
	id      uint64
	conn    net.Conn
	writeMu sync.Mutex
}

// NewEndpoint creates an endpoint. It does not listen until Initialize.
func NewEndpoint(ctx context.Context, cfg *Config) (*Endpoint, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	ep := &Endpoint{
		cfg:    cfg,
		logger: cfg.logger.With("component", "simulator"),
		conns:  xsync.NewMapOf[uint64, *client](),
	}
	ep.ctx, ep.cancel = context.WithCancel(ctx)
	ep.taskMgr = task.NewManager(ep.ctx, ep.logger)

	return ep, nil
}

// Initialize binds the listener and starts accepting clients.
// A bind failure is returned to the caller and leaves the endpoint unusable.
func (ep *Endpoint) Initialize() error {
	if ep.shutdown.Load() {
		return ErrEndpointClosed
	}
	if !ep.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	address := ep.cfg.Address()

	var lc net.ListenConfig
	listener, err := lc.Listen(ep.ctx, "tcp", address)
	if err != nil {
		ep.logger.Error("failed to listen", "method", "Initialize", "address", address, "error", err)
		return fmt.Errorf("simulator listen on %s: %w", address, err)
	}

	ep.listenerMu.Lock()
	ep.listener = listener
	ep.listenerMu.Unlock()

	ep.logger.Info("simulator listening", "method", "Initialize", "address", listener.Addr().String())

	if err := ep.taskMgr.Start("acceptConn", func() bool { return ep.acceptConn(listener) }); err != nil {
		_ = ep.closeListener()
		return err
	}

	if ep.cfg.autoReadInterval > 0 {
		err := ep.taskMgr.StartInterval("autoRead", func() bool {
			if err := ep.SimulateRead(ep.cfg.autoReadData, ep.cfg.autoReadRSSI); err != nil {
				ep.logger.Error("auto-read failed", "method", "autoRead", "error", err)
				return false
			}
			return true
		}, ep.cfg.autoReadInterval, false)
		if err != nil {
			ep.logger.Warn("failed to start auto-read", "method", "Initialize", "error", err)
		}
	}

	return nil
}

// SimulateRead broadcasts one reading to every connected client.
//
// The frame is encoded once and the same bytes are written to each client. A failed client write
// is logged and counted, the client is dropped, and the remaining clients are still served.
// Only encoding errors are returned.
func (ep *Endpoint) SimulateRead(data string, rssi int) error {
	payload, err := autoid.Reading{Data: data, RSSI: rssi}.MarshalPayload()
	if err != nil {
		return err
	}

	msg, err := frame.Encode(payload)
	if err != nil {
		return fmt.Errorf("simulate read: %w", err)
	}

	ep.metrics.incReadCount()

	ep.conns.Range(func(_ uint64, c *client) bool {
		ep.writeTo(c, msg)
		return true
	})

	return nil
}

// Shutdown stops auto-read, closes the listener and every client connection, and waits for all
// endpoint goroutines. It is safe with no clients and on repeated calls.
func (ep *Endpoint) Shutdown() error {
	if !ep.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	ep.logger.Info("simulator shutting down", "method", "Shutdown", "clients", ep.conns.Size())

	ep.taskMgr.Stop()

	err := ep.closeListener()

	ep.conns.Range(func(_ uint64, c *client) bool {
		ep.removeClient(c)
		return true
	})

	ep.taskMgr.Wait()
	ep.cancel()

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	return err
}

// ConnCount returns the number of connected clients.
func (ep *Endpoint) ConnCount() int {
	return ep.conns.Size()
}

// Addr returns the listen address, or nil before Initialize.
func (ep *Endpoint) Addr() net.Addr {
	ep.listenerMu.Lock()
	defer ep.listenerMu.Unlock()

	if ep.listener == nil {
		return nil
	}

	return ep.listener.Addr()
}

// Port returns the bound TCP port, or 0 before Initialize.
func (ep *Endpoint) Port() int {
	if addr, ok := ep.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}

	return 0
}

// Metrics returns the endpoint metrics.
func (ep *Endpoint) Metrics() *Metrics {
	return &ep.metrics
}

func (ep *Endpoint) acceptConn(listener net.Listener) bool {
	conn, err := listener.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) || ep.shutdown.Load() {
			return false
		}

		ep.logger.Warn("failed to accept connection", "method", "acceptConn", "error", err)

		return true
	}

	c := &client{id: ep.nextID.Add(1), conn: conn}
	ep.conns.Store(c.id, c)
	ep.metrics.incAcceptCount()

	// Shutdown may have swept the set between Accept and Store
	if ep.shutdown.Load() {
		ep.removeClient(c)
		return false
	}

	ep.logger.Debug("new client connection established",
		"method", "acceptConn",
		"client", c.id,
		"remote_address", conn.RemoteAddr().String(),
	)

	if err := ep.taskMgr.Go("client", func(context.Context) { ep.discardInbound(c) }); err != nil {
		ep.removeClient(c)
		return false
	}

	return true
}

// discardInbound reads and drops client bytes until the client goes away.
func (ep *Endpoint) discardInbound(c *client) {
	buf := make([]byte, 512)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			ep.metrics.addBytesDiscardCount(n)
			ep.logger.Debug("data received", "method", "discardInbound", "client", c.id, "size", n)
		}

		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				ep.logger.Debug("client disconnected", "method", "discardInbound", "client", c.id)
			case errors.Is(err, net.ErrClosed):
			default:
				ep.logger.Debug("client read failed", "method", "discardInbound", "client", c.id, "error", err)
			}

			ep.removeClient(c)

			return
		}
	}
}

func (ep *Endpoint) writeTo(c *client, msg []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if ep.cfg.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(ep.cfg.writeTimeout))
	}

	if _, err := c.conn.Write(msg); err != nil {
		ep.metrics.incWriteErrCount()
		ep.logger.Warn("failed to write to client", "method", "writeTo", "client", c.id, "error", err)
		ep.removeClient(c)

		return
	}

	ep.metrics.incFrameSendCount()
}

// removeClient deletes c from the set and closes its socket. Only the first call has an effect.
func (ep *Endpoint) removeClient(c *client) {
	if _, loaded := ep.conns.LoadAndDelete(c.id); !loaded {
		return
	}

	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		ep.logger.Debug("failed to close client connection", "method", "removeClient", "client", c.id, "error", err)
	}
	ep.metrics.incCloseCount()
}

func (ep *Endpoint) closeListener() error {
	ep.listenerMu.Lock()
	defer ep.listenerMu.Unlock()

	if ep.listener == nil {
		return nil
	}

	// the listener is kept so Addr stays valid after Shutdown
	return ep.listener.Close()
}
