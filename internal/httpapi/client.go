package httpapi

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// feedClient is one live-feed subscriber. The hub enqueues encoded events
// onto send; writePump is the only goroutine allowed to write to conn.
type feedClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newFeedClient(hub *Hub, conn *websocket.Conn) *feedClient {
	return &feedClient{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
}

// writePump drains the send channel onto the connection. It exits when the
// hub closes the channel or a write fails, then tears the client down.
func (c *feedClient) writePump() {
	defer c.close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Debug("feed write failed", "remoteAddr", c.conn.RemoteAddr(), "error", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(writeWait))
}

// readPump discards inbound frames until the peer disconnects. The feed is
// one-way; reading is only needed to notice the close.
func (c *feedClient) readPump() {
	defer c.close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// close unregisters the client and closes the connection, exactly once.
// The done select keeps teardown from blocking after the hub has stopped.
func (c *feedClient) close() {
	c.closeOnce.Do(func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	})
}
