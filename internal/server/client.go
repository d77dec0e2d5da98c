// Package server manages individual WebSocket connections, handling
// read/write pumps, rate limiting, and lifecycle control per connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/atlaschat/presence/internal/logger"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeWait     = 10 * time.Second
	sendQueueSize = 256
)

// Client represents one WebSocket connection. The connection id is a UUID
// minted at upgrade time; it is unique while the connection is open and
// never reused.
//
// loggedIn, username, and closed belong to the hub's run loop; the pumps
// never touch them.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
	addr string

	loggedIn bool
	username string
	closed   bool

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a Client for the given WebSocket connection with a fresh
// connection id. The send channel is buffered so a briefly slow consumer
// does not stall the hub.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		hub:            hub,
		send:           make(chan []byte, sendQueueSize),
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefillInterval),
		rateLimit:      RateLimitConfig{Burst: cfg.RateLimitBurst, RefillInterval: cfg.RateLimitRefillInterval},
	}
}

// ID returns the opaque connection identifier.
func (c *Client) ID() string {
	return c.id
}

// readPump reads frames from the connection, decodes event envelopes, and
// hands them to the hub. When the read loop ends for any reason the pump
// synthesizes a disconnect by unregistering the client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			logger.Warnf("error closing connection in readPump: %v", err)
		}
	}()

	c.setupReadDeadlines()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if c.rateLimiter != nil && !c.rateLimiter.allow() {
			logger.Warnf("rate limit exceeded for %s (%d frames per %s); discarding frame",
				c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Warnf("invalid frame from %s: %v", c.addr, err)
			continue
		}
		if env.Event == "" {
			logger.Warnf("frame without event name from %s; dropping", c.addr)
			continue
		}

		select {
		case c.hub.events <- inboundEvent{client: c, envelope: env}:
		case <-c.hub.ctx.Done():
			return
		}
	}
}

func (c *Client) setupReadDeadlines() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Warnf("error setting read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logger.Warnf("error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// logReadError classifies the error that ended the read loop.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		logger.Warnf("frame from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		logger.Infof("connection %s closed: %v", c.id, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		logger.Infof("connection %s closed: %v", c.id, err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		logger.Warnf("unexpected websocket error from %s: %v", c.addr, err)
	default:
		logger.Warnf("websocket read error from %s: %v", c.addr, err)
	}
}

// writePump drains the send queue to the connection and keeps it alive with
// periodic pings. It exits when the send channel is closed by the hub or a
// write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			logger.Warnf("error closing connection in writePump: %v", err)
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Warnf("error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					logger.Warnf("error writing close message to %s: %v", c.addr, err)
				}
				return
			}
			if !c.writeFrame(frame) {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Warnf("error setting write deadline for ping to %s: %v", c.addr, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					logger.Warnf("error writing ping to %s: %v", c.addr, err)
				}
				return
			}
		}
	}
}

// writeFrame writes one frame plus anything already queued behind it, one
// websocket message each so the client-side decoder sees whole envelopes.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			logger.Warnf("error writing frame to %s: %v", c.addr, err)
		}
		return false
	}

	queued := len(c.send)
	for i := 0; i < queued; i++ {
		next, ok := <-c.send
		if !ok {
			return false
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, next); err != nil {
			if !isExpectedCloseError(err) {
				logger.Warnf("error writing queued frame to %s: %v", c.addr, err)
			}
			return false
		}
	}
	return true
}
