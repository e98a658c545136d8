package readerlink

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/frame"
	"github.com/arloliu/go-autoid/internal/pool"
	"github.com/arloliu/go-autoid/internal/task"
	"github.com/arloliu/go-autoid/logger"
)

// Link is an outbound, self-healing TCP connection to a reader.
type Link struct {
	cfg     *Config
	address string
	logger  logger.Logger
	handler Handler

	// ctx lives until Close.
	ctx    context.Context
	cancel context.CancelFunc

	stateMgr *stateMgr
	// taskMgr runs the receiver of the current connection.
	taskMgr *task.Manager
	// timerMgr runs the pending reconnect timer.
	timerMgr *task.Manager

	connMu sync.Mutex
	conn   net.Conn

	opened       atomic.Bool
	shutdown     atomic.Bool
	reconnectGen atomic.Uint64

	metrics Metrics
}

// NewLink creates a link to the reader described by cfg. The link stays disconnected until Open.
//
// handler receives connection health and readings; see Handler for the delivery guarantees.
func NewLink(ctx context.Context, cfg *Config, handler Handler) (*Link, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}

	l := &Link{
		cfg:     cfg,
		address: net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port)),
		handler: handler,
	}
	l.logger = cfg.logger.With("component", "readerlink", "reader", l.address)
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.taskMgr = task.NewManager(l.ctx, l.logger)
	l.timerMgr = task.NewManager(l.ctx, l.logger)
	l.stateMgr = newStateMgr(l.ctx, l.logger, l.linkStateHandler)

	return l, nil
}

// Open starts connecting to the reader. It returns immediately; failures are retried in the
// background. Calling Open on an opened link is a no-op.
func (l *Link) Open() error {
	if l.shutdown.Load() {
		return ErrLinkClosed
	}

	if !l.opened.CompareAndSwap(false, true) {
		return nil
	}

	l.logger.Info("open reader link", "method", "Open")
	l.stateMgr.transitAsync(ConnectingState)

	return nil
}

// Close stops the link permanently: the pending reconnect is canceled, the socket is closed and
// the receiver is waited for. Close is idempotent.
func (l *Link) Close() error {
	if !l.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	l.logger.Info("close reader link", "method", "Close")

	l.reconnectGen.Add(1)
	// aborts an in-flight dial and the reconnect timer before the state lock is taken
	l.cancel()

	err := l.stateMgr.transit(StoppedState)

	l.timerMgr.Stop()
	l.timerMgr.Wait()

	return err
}

// State returns the current link state.
func (l *Link) State() LinkState {
	return l.stateMgr.State()
}

// Connected reports whether the link is connected.
func (l *Link) Connected() bool {
	return l.stateMgr.State().IsConnected()
}

// WaitState waits until the link reaches state or ctx is done.
func (l *Link) WaitState(ctx context.Context, state LinkState) error {
	return l.stateMgr.WaitState(ctx, state)
}

// AddStateChangeHandler adds handlers invoked on every link state change,
// after the link's own handling of the transition.
func (l *Link) AddStateChangeHandler(handlers ...StateChangeHandler) {
	l.stateMgr.AddHandler(handlers...)
}

// Metrics returns the link metrics.
func (l *Link) Metrics() *Metrics {
	return &l.metrics
}

// Address returns the reader address in host:port form.
func (l *Link) Address() string {
	return l.address
}

func (l *Link) linkStateHandler(prevState LinkState, curState LinkState) {
	l.logger.Debug("link state changed",
		"method", "linkStateHandler",
		"prevState", prevState,
		"newState", curState,
	)

	switch curState {
	case ConnectingState:
		l.connect()

	case ConnectedState:
		l.metrics.incConnectCount()
		l.metrics.resetConnRetryGauge()
		// health first, so no reading of this connection is seen before it
		l.handler.HandleLinkState(true)
		l.startReceiver()

	case DisconnectedState:
		l.closeConn()
		if prevState == ConnectedState {
			l.metrics.incDisconnectCount()
		}
		l.handler.HandleLinkState(false)
		l.scheduleReconnect()

	case StoppedState:
		l.closeConn()
		if prevState == ConnectedState {
			l.metrics.incDisconnectCount()
			l.handler.HandleLinkState(false)
		}
	}
}

func (l *Link) connect() {
	dialer := &net.Dialer{KeepAlive: l.cfg.keepAlive}

	dialCtx, cancel := context.WithTimeout(l.ctx, l.cfg.connectTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", l.address)
	if err != nil {
		if l.shutdown.Load() {
			return
		}

		// the first failure of a series is worth a warning, the retries are not
		if l.metrics.ConnRetryGauge.Load() == 0 {
			l.logger.Warn("failed to connect to reader", "method", "connect", "error", err)
		} else {
			l.logger.Debug("failed to connect to reader", "method", "connect", "error", err,
				"attempt", l.metrics.ConnRetryGauge.Load()+1)
		}
		l.stateMgr.transitAsync(DisconnectedState)

		return
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	l.logger.Info("connected to reader",
		"method", "connect",
		"local_addr", conn.LocalAddr().String(),
		"remote_addr", conn.RemoteAddr().String(),
	)

	l.stateMgr.transitAsync(ConnectedState)
}

func (l *Link) startReceiver() {
	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()

	if conn == nil {
		l.stateMgr.transitAsync(DisconnectedState)
		return
	}

	// a fresh buffer per connection, partial frames never survive a reconnect
	buf := &frame.Buffer{}
	chunk := make([]byte, l.cfg.readBufferSize)

	err := l.taskMgr.Start("receiver", func() bool {
		return l.receive(conn, buf, chunk)
	})
	if err != nil {
		l.logger.Debug("failed to start receiver", "method", "startReceiver", "error", err)
		l.stateMgr.transitAsync(DisconnectedState)
	}
}

// receive reads one chunk and dispatches every frame it completes.
func (l *Link) receive(conn net.Conn, buf *frame.Buffer, chunk []byte) bool {
	n, err := conn.Read(chunk)
	if n > 0 {
		l.metrics.addBytesRecvCount(n)
		buf.Append(chunk[:n])
		l.dispatchFrames(buf)
	}

	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, net.ErrClosed):
		// closed locally by closeConn
		return false
	case errors.Is(err, io.EOF):
		l.logger.Info("reader closed the connection", "method", "receive", "pending", buf.Len())
	default:
		l.logger.Warn("failed to read from reader", "method", "receive", "error", err)
	}

	l.stateMgr.transitAsync(DisconnectedState)

	return false
}

func (l *Link) dispatchFrames(buf *frame.Buffer) {
	defer buf.DropConsumed()

	for _, payload := range buf.TryDecodeFrames() {
		l.metrics.incFrameRecvCount()

		if len(payload) == 0 {
			l.logger.Debug("empty reader frame ignored", "method", "dispatchFrames")
			continue
		}

		reading, err := autoid.ParseReading(payload)
		if err != nil {
			l.metrics.incFrameErrCount()
			l.logger.Warn("malformed reader frame dropped",
				"method", "dispatchFrames",
				"error", err,
				"size", len(payload),
			)

			continue
		}

		l.handler.HandleReading(reading)
	}
}

// closeConn closes the socket and waits for the receiver, bounded by the close timeout.
func (l *Link) closeConn() {
	l.taskMgr.Stop()

	l.connMu.Lock()
	if l.conn != nil {
		if err := l.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.logger.Error("failed to close TCP connection", "method", "closeConn", "error", err)
		}
		l.conn = nil
	}
	l.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		l.taskMgr.Wait()
		close(done)
	}()

	timer := pool.GetTimer(l.cfg.closeTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-done:
		l.logger.Debug("receiver terminated", "method", "closeConn")
	case <-timer.C:
		l.logger.Error("close timeout", "method", "closeConn", "timeout", l.cfg.closeTimeout)
	}
}

// scheduleReconnect arms a one-shot timer that moves the link back to connecting.
// Only the most recently armed timer may fire, and none after Close.
func (l *Link) scheduleReconnect() {
	if l.shutdown.Load() {
		return
	}

	attempt := int(l.metrics.ConnRetryGauge.Add(1))
	delay := l.cfg.retryPolicy.Delay(attempt)
	gen := l.reconnectGen.Add(1)

	l.logger.Debug("reconnect scheduled", "method", "scheduleReconnect", "attempt", attempt, "delay", delay)

	err := l.timerMgr.Go("reconnect", func(ctx context.Context) {
		if !pool.Sleep(ctx, delay) {
			return
		}
		if l.reconnectGen.Load() != gen || l.shutdown.Load() {
			return
		}

		l.stateMgr.transitAsync(ConnectingState)
	})
	if err != nil {
		l.logger.Debug("reconnect not scheduled", "method", "scheduleReconnect", "error", err)
	}
}
