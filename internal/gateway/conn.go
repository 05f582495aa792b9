package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn is one authenticated websocket connection. All writes go through a
// single writer goroutine fed by a bounded queue.
type Conn struct {
	ID          string
	UserID      uint
	ConnectedAt time.Time

	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	conf      Config
	log       *zap.Logger
}

func newConn(id string, userID uint, ws *websocket.Conn, conf Config, log *zap.Logger) *Conn {
	return &Conn{
		ID:          id,
		UserID:      userID,
		ConnectedAt: time.Now(),
		ws:          ws,
		send:        make(chan []byte, conf.SendQueueSize),
		done:        make(chan struct{}),
		conf:        conf,
		log:         log,
	}
}

// enqueue hands data to the writer without blocking. It reports false when
// the connection is closed or its queue is full.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.conf.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Websocket write failed", zap.String("conn", c.ID), zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
