package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ClientID identifies one observer connection for the lifetime of the server.
type ClientID uint64

// ClientInfo is a point-in-time view of one connected client.
type ClientInfo struct {
	ID           ClientID
	RemoteAddr   string
	ConnectedAt  time.Time
	MessagesSent uint64
	BytesSent    uint64
}

// client is the server-side connection record. Writes to the underlying
// websocket must hold writeMu; gorilla connections support one concurrent
// writer only.
type client struct {
	id          ClientID
	conn        *websocket.Conn
	remoteAddr  string
	connectedAt time.Time

	writeMu      sync.Mutex
	messagesSent atomic.Uint64
	bytesSent    atomic.Uint64
}

func (c *client) info() ClientInfo {
	return ClientInfo{
		ID:           c.id,
		RemoteAddr:   c.remoteAddr,
		ConnectedAt:  c.connectedAt,
		MessagesSent: c.messagesSent.Load(),
		BytesSent:    c.bytesSent.Load(),
	}
}

// send writes one text message, serialized against other writers to the same
// connection.
func (c *client) send(payload []byte, deadline time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(deadline))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	c.messagesSent.Add(1)
	c.bytesSent.Add(uint64(len(payload)))
	return nil
}
