package mocksolver

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ending int

const (
	endClean ending = iota // closing handshake with 1000
	endDrop                // tear down the TCP connection without a close frame
	endAbort               // peer already gone
)

const closeWait = 2 * time.Second

// client owns one stream socket. Frames are queued on send and written by
// writePump, the only writer on the connection.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	gone   chan struct{} // closed when the read loop ends
	end    ending
	logger *zap.Logger
	done   chan struct{}
}

func newClient(conn *websocket.Conn, logger *zap.Logger) *client {
	c := &client{
		conn:   conn,
		send:   make(chan []byte, 64),
		gone:   make(chan struct{}),
		logger: logger,
		done:   make(chan struct{}),
	}
	go c.readLoop()
	go c.writePump()
	return c
}

// readLoop discards inbound data and answers close frames.
func (c *client) readLoop() {
	defer close(c.gone)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer close(c.done)
	failed := false
	for msg := range c.send {
		if failed {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.logger.Debug("stream write failed", zap.Error(err))
			failed = true
		}
	}

	switch c.end {
	case endDrop:
		_ = c.conn.NetConn().Close()
	case endClean:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait)); err == nil {
			select {
			case <-c.gone:
			case <-time.After(closeWait):
			}
		}
	}
	_ = c.conn.Close()
	<-c.gone
}

// push queues v as a text frame. It reports false once the peer is gone.
func (c *client) push(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("encode frame", zap.Error(err))
		return false
	}
	select {
	case c.send <- data:
		return true
	case <-c.gone:
		return false
	}
}

// finish ends the stream and waits for the socket to be released.
func (c *client) finish(how ending) {
	c.end = how
	close(c.send)
	<-c.done
}
