package transport

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrSendBufferFull   = errors.New("connection send buffer full")
)

// Conn is the outbound handle the rest of the service holds for a client.
type Conn interface {
	ID() string
	UserID() string
	Send(data []byte) error
	IsOpen() bool
	Close(code int, reason string)
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Upgrader builds the gorilla upgrader for this configuration.
func (c ConnectionConfig) Upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  c.ReadBufferSize,
		WriteBufferSize: c.WriteBufferSize,
		CheckOrigin:     c.CheckOrigin,
	}
}

// Connection is a gorilla websocket with one reader and one writer goroutine.
// The send channel is never closed; shutdown is signalled through done.
type Connection struct {
	id     string
	userID string
	ws     *websocket.Conn
	config ConnectionConfig
	send   chan []byte
	done   chan struct{}

	open      atomic.Bool
	started   atomic.Bool
	closeOnce sync.Once

	ConnectedAt time.Time
	lastPing    atomic.Int64
}

// NewConnection wraps an upgraded websocket.
func NewConnection(ws *websocket.Conn, userID string, config ConnectionConfig) *Connection {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	c := &Connection{
		id:          uuid.New().String(),
		userID:      userID,
		ws:          ws,
		config:      config,
		send:        make(chan []byte, config.SendBufferSize),
		done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}
	c.open.Store(true)
	c.lastPing.Store(c.ConnectedAt.UnixNano())
	return c
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }
func (c *Connection) IsOpen() bool   { return c.open.Load() }

// LastPing is the time of the last pong received from the client.
func (c *Connection) LastPing() time.Time {
	return time.Unix(0, c.lastPing.Load())
}

// Send enqueues data for the writer without blocking.
func (c *Connection) Send(data []byte) error {
	if !c.open.Load() {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close sends a close frame with code and reason and stops both pumps.
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.config.WriteTimeout)); err != nil {
			log.Debug().Err(err).Str("connection_id", c.id).Msg("failed to write close frame")
		}
		close(c.done)
		if !c.started.Load() {
			c.ws.Close()
		}
	})
}

func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.done)
	})
}

// Start runs the read and write pumps. onMessage is called from the reader
// goroutine for every text frame; onClose is called exactly once after the
// reader stops.
func (c *Connection) Start(onMessage func([]byte), onClose func()) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.writePump()
	go c.readPump(onMessage, onClose)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				c.shutdown()
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump(onMessage func([]byte), onClose func()) {
	defer func() {
		c.shutdown()
		c.ws.Close()
		if onClose != nil {
			onClose()
		}
	}()

	c.ws.SetReadLimit(c.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		c.lastPing.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		if onMessage != nil {
			onMessage(message)
		}
	}
}
