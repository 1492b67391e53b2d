package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Viewers only send control frames
	maxMessageSize = 512

	sendBufferSize = 64
)

// Client is one viewer watching one match.
type Client struct {
	ID      string
	MatchID string

	conn *websocket.Conn
	send chan Message
	hub  *Hub
}

func newClient(id, matchID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:      id,
		MatchID: matchID,
		conn:    conn,
		send:    make(chan Message, sendBufferSize),
		hub:     hub,
	}
}

// TrySend queues msg without blocking; false means the viewer is too slow.
func (c *Client) TrySend(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readPump drains the connection so pongs and close frames are processed.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Printf("viewer %s unexpected close: %v", c.ID, err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.logger.Printf("viewer %s write error: %v", c.ID, err)
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
