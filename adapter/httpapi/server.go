// Package httpapi exposes a bridge over HTTP and streams its notifications over WebSocket.
//
// Routes:
//
//	GET  /health      liveness and current device status
//	GET  /device      device identity and status
//	POST /scan/start  start a scan session, body {"auto_stop":bool} or query ?auto_stop=true
//	POST /scan/stop   stop the running scan session
//	GET  /events      WebSocket stream of {"type":"status"|"scan","data":...} messages
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrNoCommander is reported by command routes before SetCommander was called.
var ErrNoCommander = errors.New("no device bound")

// Server is an autoid.Adapter serving the HTTP API.
type Server struct {
	engine   *gin.Engine
	upgrader websocket.Upgrader
	logger   logger.Logger
	now      func() time.Time

	commander atomic.Pointer[commanderBox]

	clients      *xsync.MapOf[uint64, *wsClient]
	nextClientID atomic.Uint64
	sendQueue    int
	writeTimeout time.Duration
	pingInterval time.Duration

	mu      sync.Mutex
	httpSrv *http.Server

	// DroppedCount indicates the number of messages dropped for slow WebSocket clients.
	DroppedCount atomic.Uint64
}

type commanderBox struct {
	autoid.Commander
}

var _ autoid.Adapter = (*Server)(nil)

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets the logger of the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) error {
		if l == nil {
			return errors.New("nil logger")
		}

		s.logger = l

		return nil
	}
}

// WithSendQueue sets the number of messages buffered per WebSocket client. Defaults to 64.
func WithSendQueue(n int) Option {
	return func(s *Server) error {
		if n < 1 || n > 65536 {
			return fmt.Errorf("send queue out of range [1, 65536], got %d", n)
		}

		s.sendQueue = n

		return nil
	}
}

// WithWriteTimeout sets the WebSocket write deadline. Defaults to 10 seconds.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("write timeout must be positive, got %v", d)
		}

		s.writeTimeout = d

		return nil
	}
}

// WithPingInterval sets the WebSocket ping interval. Defaults to 30 seconds.
// A client that answers neither pings nor anything else for two intervals is disconnected.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("ping interval must be positive, got %v", d)
		}

		s.pingInterval = d

		return nil
	}
}

// WithClock sets the time source of status message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) error {
		if now == nil {
			return errors.New("nil clock")
		}

		s.now = now

		return nil
	}
}

// New creates a server. Bind the device with SetCommander before serving command routes.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		logger:       logger.GetLogger(),
		now:          time.Now,
		clients:      xsync.NewMapOf[uint64, *wsClient](),
		sendQueue:    64,
		writeTimeout: 10 * time.Second,
		pingInterval: 30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "httpapi")

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.routes()

	return s, nil
}

// SetCommander binds the device the command routes act on.
func (s *Server) SetCommander(commander autoid.Commander) {
	if commander == nil {
		s.commander.Store(nil)
		return
	}

	s.commander.Store(&commanderBox{commander})
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts HTTP connections on ln until Shutdown. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	if s.httpSrv != nil {
		s.mu.Unlock()
		return errors.New("http api already serving")
	}
	s.httpSrv = srv
	s.mu.Unlock()

	s.logger.Info("http api listening", "method", "Serve", "address", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("http api listen on %s: %w", addr, err)
	}

	return s.Serve(ln)
}

// Shutdown disconnects every WebSocket client and stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clients.Range(func(_ uint64, c *wsClient) bool {
		s.removeClient(c)
		return true
	})

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	return s.clients.Size()
}

// DeviceStatusChanged broadcasts a status message to every WebSocket client.
func (s *Server) DeviceStatusChanged(status autoid.DeviceStatus) {
	s.broadcast("status", autoid.NewStatusMessage(status, s.now()))
}

// ScanEvent broadcasts a scan message to every WebSocket client.
func (s *Server) ScanEvent(event autoid.ScanEvent) {
	s.broadcast("scan", event)
}

// Message is the envelope of every WebSocket message.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) broadcast(kind string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal message", "method", "broadcast", "type", kind, "error", err)
		return
	}

	msg, err := json.Marshal(Message{Type: kind, Data: data})
	if err != nil {
		s.logger.Error("failed to marshal envelope", "method", "broadcast", "type", kind, "error", err)
		return
	}

	s.clients.Range(func(_ uint64, c *wsClient) bool {
		if !c.enqueue(msg) {
			s.DroppedCount.Add(1)
			s.logger.Warn("websocket client too slow, disconnecting", "method", "broadcast", "client", c.id)
			s.removeClient(c)
		}

		return true
	})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("http request",
			"http_method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/device", s.handleDevice)
	s.engine.POST("/scan/start", s.handleStart)
	s.engine.POST("/scan/stop", s.handleStop)
	s.engine.GET("/events", s.handleEvents)
}

func (s *Server) currentCommander() (autoid.Commander, bool) {
	box := s.commander.Load()
	if box == nil {
		return nil, false
	}

	return box.Commander, true
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok", "clients": s.ClientCount()}

	if cmd, ok := s.currentCommander(); ok {
		health["device_status"] = cmd.DeviceStatus()
	}

	c.JSON(http.StatusOK, health)
}

type deviceResponse struct {
	autoid.DeviceInfo
	Status autoid.DeviceStatus `json:"status"`
}

func (s *Server) handleDevice(c *gin.Context) {
	cmd, ok := s.currentCommander()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNoCommander.Error()})
		return
	}

	c.JSON(http.StatusOK, deviceResponse{DeviceInfo: cmd.DeviceInfo(), Status: cmd.DeviceStatus()})
}

type startRequest struct {
	AutoStop bool `json:"auto_stop"`
}

func (s *Server) handleStart(c *gin.Context) {
	cmd, ok := s.currentCommander()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNoCommander.Error()})
		return
	}

	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
			return
		}
	}
	if v := c.Query("auto_stop"); v != "" {
		autoStop, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid auto_stop: %q", v)})
			return
		}
		req.AutoStop = autoStop
	}

	writeReply(c, autoid.StartScanReply(cmd, req.AutoStop))
}

func (s *Server) handleStop(c *gin.Context) {
	cmd, ok := s.currentCommander()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNoCommander.Error()})
		return
	}

	writeReply(c, autoid.StopScanReply(cmd))
}

func writeReply(c *gin.Context, reply autoid.CommandReply) {
	code := http.StatusOK
	if !reply.OK() {
		code = http.StatusConflict
	}

	c.JSON(code, reply)
}
