// Package server coordinates presence, room membership, and broadcast
// fan-out for all WebSocket connections via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/atlaschat/presence/internal/logger"
)

// inboundEvent pairs a decoded envelope with its originating client for
// processing on the hub's run loop.
type inboundEvent struct {
	client   *Client
	envelope Envelope
}

// Hub owns the connection and room registries and processes every event on
// a single run-loop goroutine. Clients never touch the registries directly;
// they post envelopes to the events channel, so no two mutations interleave
// and each broadcast reflects registry state exactly as of the mutation
// that triggered it.
type Hub struct {
	clients  map[*Client]bool
	presence *presenceRegistry
	rooms    *roomRegistry
	bus      *broadcastBus

	register   chan *Client
	unregister chan *Client
	events     chan inboundEvent

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub with freshly constructed registries. The registries
// live and die with the hub; nothing outside it holds a mutable reference.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	bus := newBroadcastBus()
	return &Hub{
		clients:    make(map[*Client]bool),
		presence:   newPresenceRegistry(),
		rooms:      newRoomRegistry(bus),
		bus:        bus,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop, handling client registration, inbound
// events, and disconnect reconciliation. Call it in its own goroutine; it
// runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				logger.Warn("received nil client registration; skipping")
				continue
			}
			h.clients[client] = true
			logger.Infof("connection %s registered from %s (%d total)", client.id, client.addr, len(h.clients))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.handleDisconnect(client)

		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

// dispatch routes one inbound envelope to its handler. Handler failures are
// contained here: a malformed payload or a panic never aborts the loop; the
// dispatcher always proceeds to the next event.
func (h *Hub) dispatch(ev inboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("recovered from panic handling %s from %s: %v", ev.envelope.Event, ev.client.id, r)
		}
	}()

	c := ev.client
	if !h.clients[c] {
		// Terminated connection; no transition is valid anymore.
		return
	}

	if ev.envelope.Event == EventLogin {
		h.handleLogin(c, ev.envelope.Data)
		return
	}

	// Everything except login requires a completed login. Events from
	// anonymous connections are defined no-ops.
	if !c.loggedIn {
		logger.Infof("ignoring %s from anonymous connection %s", ev.envelope.Event, c.id)
		return
	}

	switch ev.envelope.Event {
	case EventChatMessage:
		h.handleChatMessage(c, ev.envelope.Data)
	case EventRoomCreate:
		h.handleRoomCreate(c, ev.envelope.Data)
	case EventRoomJoin:
		h.handleRoomJoin(c, ev.envelope.Data)
	case EventRoomLeave:
		h.handleRoomLeave(c, ev.envelope.Data)
	default:
		logger.Infof("unknown event %q from %s", ev.envelope.Event, c.id)
	}
}

func (h *Hub) handleLogin(c *Client, data []byte) {
	var payload LoginPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warnf("invalid login payload from %s: %v", c.id, err)
		return
	}

	// Repeated login from the same connection overwrites the session.
	h.presence.Put(c.id, payload.Username, payload.Coords)
	c.loggedIn = true
	c.username = payload.Username
	h.bus.Join(c)

	logger.Infof("user %q logged in on %s", payload.Username, c.id)
	h.broadcastOnlineUsers()
	h.broadcastRooms()
}

func (h *Hub) handleChatMessage(c *Client, data []byte) {
	var payload ChatMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warnf("invalid chat-message payload from %s: %v", c.id, err)
		return
	}

	// Forward only to a registered receiver; otherwise drop.
	if !h.presence.Has(payload.ReceiverID) {
		return
	}
	h.bus.SendTo(payload.ReceiverID, EventChatMessage, ChatMessagePayload{
		SenderID: c.id,
		Content:  payload.Content,
		ID:       payload.ID,
	})
}

func (h *Hub) handleRoomCreate(c *Client, data []byte) {
	var payload RoomCreatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warnf("invalid room-create payload from %s: %v", c.id, err)
		return
	}

	h.rooms.Create(payload.NewRoomID, Participant{
		ConnectionID: c.id,
		PeerID:       payload.PeerID,
		Username:     c.username,
	})
	logger.Infof("room %q created by %s", payload.NewRoomID, c.id)
	h.broadcastRooms()
}

func (h *Hub) handleRoomJoin(c *Client, data []byte) {
	var payload RoomJoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warnf("invalid room-join payload from %s: %v", c.id, err)
		return
	}

	joined := h.rooms.Join(payload.RoomID, Participant{
		ConnectionID: c.id,
		PeerID:       payload.PeerID,
		Username:     c.username,
	})
	if joined {
		h.broadcastRooms()
	}
}

func (h *Hub) handleRoomLeave(c *Client, data []byte) {
	var payload RoomLeavePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warnf("invalid room-leave payload from %s: %v", c.id, err)
		return
	}

	if h.rooms.Leave(payload.RoomID, c.id) {
		h.broadcastRooms()
	}
}

// handleDisconnect reconciles a terminated connection: room cleanup first
// (anchor teardown notices, emptied-room deletion, room-table broadcast),
// then presence removal, then the user-disconnected announcement. Later
// steps must observe the earlier cleanup, so the order is fixed.
func (h *Hub) handleDisconnect(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.closed = true
	h.bus.Leave(c.id)

	if h.rooms.ReconcileDisconnect(c.id) {
		h.broadcastRooms()
	}
	h.presence.Remove(c.id)
	h.bus.SendToGroup(EventUserDisconnected, UserDisconnectedPayload{ConnectionID: c.id})

	c.loggedIn = false
	close(c.send)
	logger.Infof("connection %s disconnected (%d total)", c.id, len(h.clients))
}

// broadcastOnlineUsers sends the current online-users array to the
// logged-in group.
func (h *Hub) broadcastOnlineUsers() {
	h.bus.SendToGroup(EventOnlineUsers, h.presence.Snapshot())
}

// broadcastRooms sends the current room table to the logged-in group.
func (h *Hub) broadcastRooms() {
	h.bus.SendToGroup(EventRooms, h.rooms.Snapshot())
}

// shutdownClients closes all active client connections during hub shutdown.
func (h *Hub) shutdownClients() {
	logger.Info("shutting down all client connections")

	count := 0
	for client := range h.clients {
		client.closed = true
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				logger.Warnf("error closing client connection from %s: %v", client.addr, err)
			}
		}
		count++
	}

	logger.Infof("closed %d client connections", count)
}

// Shutdown stops the hub's run loop and waits for all client goroutines to
// finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
