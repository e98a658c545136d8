package httpapi

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const maxClientMessageSize = 4096

type wsClient struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// enqueue queues msg without blocking. It returns false when the client's queue is full.
func (c *wsClient) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", "method", "handleEvents", "error", err)
		return
	}

	client := &wsClient{
		id:   s.nextClientID.Add(1),
		conn: conn,
		send: make(chan []byte, s.sendQueue),
		done: make(chan struct{}),
	}
	s.clients.Store(client.id, client)

	s.logger.Debug("websocket client connected",
		"method", "handleEvents",
		"client", client.id,
		"remote_address", conn.RemoteAddr().String(),
		"clients", s.clients.Size(),
	)

	go s.writePump(client)
	go s.readPump(client)
}

func (s *Server) removeClient(c *wsClient) {
	if _, loaded := s.clients.LoadAndDelete(c.id); !loaded {
		return
	}

	c.close()

	s.logger.Debug("websocket client disconnected", "method", "removeClient", "client", c.id, "clients", s.clients.Size())
}

// readPump discards client messages and detects disconnects.
func (s *Server) readPump(c *wsClient) {
	defer s.removeClient(c)

	c.conn.SetReadLimit(maxClientMessageSize)
	pongWait := s.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", "method", "readPump", "client", c.id, "error", err)
			}

			return
		}
	}
}

// pongWait is how long a client may stay silent. It spans two ping intervals, so one late pong
// does not drop the client.
func (s *Server) pongWait() time.Duration {
	return 2 * s.pingInterval
}

func (s *Server) writePump(c *wsClient) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
	}()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("websocket write failed", "method", "writePump", "client", c.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
