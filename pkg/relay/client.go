package relay

import (
	"time"

	"github.com/campusgrid/campusgrid/pkg/log"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the client.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the client.
	pongWait = 60 * time.Second
	// pingPeriod is how often pings are sent. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// sendBufferSize is the per-client outbound buffer.
	sendBufferSize = 64
)

// Client is one connected participant from the hub's point of view.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// disconnect hands the client back to the hub. After the hub has shut
// down there is nobody left to receive it, so it returns immediately.
func (c *Client) disconnect() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("Unexpected close from %s: %v", c.conn.RemoteAddr().String(), err)
			}
			return
		}
		select {
		case c.hub.inbound <- inboundMessage{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
