// Package server fans out snapshot broadcasts and targeted notifications to
// connected clients through the broadcast bus.
package server

import (
	"github.com/atlaschat/presence/internal/logger"
)

// broadcastBus delivers frames to the logged-in group or to a single
// connection. Delivery is best-effort: a closed client or a full send queue
// drops the frame, there is no buffering or retry.
//
// The bus only reads registry snapshots handed to it by the hub; it never
// mutates registry state. All calls happen on the hub's run loop.
type broadcastBus struct {
	group map[string]*Client
}

func newBroadcastBus() *broadcastBus {
	return &broadcastBus{
		group: make(map[string]*Client),
	}
}

// Join adds a client to the logged-in group. Called once login completes.
func (b *broadcastBus) Join(c *Client) {
	b.group[c.id] = c
}

// Leave removes a connection from the logged-in group.
func (b *broadcastBus) Leave(connID string) {
	delete(b.group, connID)
}

// SendToGroup delivers an event to every member of the logged-in group.
func (b *broadcastBus) SendToGroup(event string, data interface{}) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		logger.Errorf("encode %s event: %v", event, err)
		return
	}
	for _, c := range b.group {
		b.deliver(c, event, frame)
	}
}

// SendTo delivers an event to a single connection. Unknown or departed
// targets are dropped silently.
func (b *broadcastBus) SendTo(connID, event string, data interface{}) {
	c, ok := b.group[connID]
	if !ok {
		return
	}
	frame, err := encodeEvent(event, data)
	if err != nil {
		logger.Errorf("encode %s event: %v", event, err)
		return
	}
	b.deliver(c, event, frame)
}

// deliver enqueues a frame on the client's send queue without blocking the
// event timeline. A slow consumer loses frames rather than stalling the hub.
func (b *broadcastBus) deliver(c *Client, event string, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		logger.Warnf("send queue full for %s, dropping %s frame", c.addr, event)
	}
}

// NotifyRoomInit implements roomNotifier for the room registry.
func (b *broadcastBus) NotifyRoomInit(connID, peerID string) {
	b.SendTo(connID, EventRoomInit, RoomInitPayload{PeerID: peerID})
}

// NotifyTeardown implements roomNotifier for the room registry.
func (b *broadcastBus) NotifyTeardown(connID string) {
	b.SendTo(connID, EventRoomDisconnect, nil)
}
