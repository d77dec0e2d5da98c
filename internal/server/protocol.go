// Package server defines the JSON event envelope and payload types exchanged
// with clients, shared across client and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Inbound event names.
const (
	EventLogin       = "login"
	EventChatMessage = "chat-message"
	EventRoomCreate  = "room-create"
	EventRoomJoin    = "room-join"
	EventRoomLeave   = "room-leave"
)

// Outbound event names.
const (
	EventOnlineUsers      = "online-users"
	EventRooms            = "rooms"
	EventRoomInit         = "room-init"
	EventRoomDisconnect   = "room-disconnect"
	EventUserDisconnected = "user-disconnected"
)

// Envelope is the frame format used in both directions: an event name plus
// an event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Coords is a client-reported geographic position.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LoginPayload accompanies the login event.
type LoginPayload struct {
	Username string `json:"username"`
	Coords   Coords `json:"coords"`
}

// ChatMessagePayload is used inbound (ReceiverID set) and outbound
// (SenderID set); Content and ID pass through untouched.
type ChatMessagePayload struct {
	ReceiverID string `json:"receiverId,omitempty"`
	SenderID   string `json:"senderId,omitempty"`
	Content    string `json:"content"`
	ID         string `json:"id"`
}

// RoomCreatePayload accompanies the room-create event.
type RoomCreatePayload struct {
	PeerID    string `json:"peerId"`
	NewRoomID string `json:"newRoomId"`
}

// RoomJoinPayload accompanies the room-join event.
type RoomJoinPayload struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

// RoomLeavePayload accompanies the room-leave event.
type RoomLeavePayload struct {
	RoomID string `json:"roomId"`
}

// OnlineUser is one entry of the online-users snapshot.
type OnlineUser struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
	Coords       Coords `json:"coords"`
}

// RoomInitPayload tells an existing participant to open a peer link to the
// joining participant. The peer identifier is an opaque transport value.
type RoomInitPayload struct {
	PeerID string `json:"peerId"`
}

// UserDisconnectedPayload announces a terminated connection to the
// logged-in group.
type UserDisconnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// encodeEvent marshals a payload into a wire-ready envelope frame.
func encodeEvent(event string, data interface{}) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
