// Package server manages ephemeral call rooms with ordered participant
// lists in the room registry.
package server

// Participant is a connection's membership record within one room. PeerID is
// the opaque transport identifier other participants dial to establish a
// direct peer link.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	PeerID       string `json:"peerId"`
	Username     string `json:"username"`
}

// RoomSnapshot is the wire representation of one room in the rooms broadcast.
type RoomSnapshot struct {
	Participants []Participant `json:"participants"`
}

// room holds participants in join order. Rooms are only created through
// newRoom, so a room in the registry always has at least one participant.
type room struct {
	participants []Participant
}

func newRoom(creator Participant) *room {
	return &room{participants: []Participant{creator}}
}

// roomNotifier is the slice of the broadcast bus the registry needs for
// targeted participant notifications. Tests substitute a recording fake.
type roomNotifier interface {
	// NotifyRoomInit tells an existing participant to open a peer link to
	// the joining participant's peer id.
	NotifyRoomInit(connID, peerID string)
	// NotifyTeardown tells the anchor participant to tear down its peer link.
	NotifyTeardown(connID string)
}

// roomRegistry maps room ids to rooms. Like the presence registry it is
// owned by the hub's run loop and needs no internal locking.
//
// Every operation on an unknown room id or absent participant is a silent
// no-op; callers can always invoke these without checking existence first.
type roomRegistry struct {
	rooms  map[string]*room
	notify roomNotifier
}

func newRoomRegistry(notify roomNotifier) *roomRegistry {
	return &roomRegistry{
		rooms:  make(map[string]*room),
		notify: notify,
	}
}

// Create installs a fresh one-participant room under roomID, replacing any
// existing room of the same id.
func (r *roomRegistry) Create(roomID string, creator Participant) {
	r.rooms[roomID] = newRoom(creator)
}

// Join appends p to the room's participant list. Every existing participant
// is notified of p's peer id before the list is updated, so a notified peer
// that immediately queries room state never sees itself racing the append.
// Returns whether the registry changed.
func (r *roomRegistry) Join(roomID string, p Participant) bool {
	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	for _, existing := range rm.participants {
		r.notify.NotifyRoomInit(existing.ConnectionID, p.PeerID)
	}
	rm.participants = append(rm.participants, p)
	return true
}

// Leave removes every participant matching connID from the room. If
// participants remain, the new list head is told to tear down its peer
// link; an emptied room is deleted. Unknown rooms and non-member
// connections are no-ops. Returns whether the registry changed.
func (r *roomRegistry) Leave(roomID, connID string) bool {
	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	remaining := rm.participants[:0]
	for _, p := range rm.participants {
		if p.ConnectionID != connID {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == len(rm.participants) {
		return false
	}
	rm.participants = remaining

	if len(rm.participants) == 0 {
		delete(r.rooms, roomID)
		return true
	}
	r.notify.NotifyTeardown(rm.participants[0].ConnectionID)
	return true
}

// ReconcileDisconnect applies Leave semantics to every room containing
// connID. A connection may sit in several rooms at once; all memberships
// are cleaned up, not just the first found. Returns whether any room changed.
func (r *roomRegistry) ReconcileDisconnect(connID string) bool {
	var touched []string
	for id, rm := range r.rooms {
		for _, p := range rm.participants {
			if p.ConnectionID == connID {
				touched = append(touched, id)
				break
			}
		}
	}
	for _, id := range touched {
		r.Leave(id, connID)
	}
	return len(touched) > 0
}

// Len returns the number of active rooms.
func (r *roomRegistry) Len() int {
	return len(r.rooms)
}

// Snapshot returns the wire representation of the full room table. The
// participant slices are copied so the snapshot stays stable across later
// mutations.
func (r *roomRegistry) Snapshot() map[string]RoomSnapshot {
	table := make(map[string]RoomSnapshot, len(r.rooms))
	for id, rm := range r.rooms {
		participants := make([]Participant, len(rm.participants))
		copy(participants, rm.participants)
		table[id] = RoomSnapshot{Participants: participants}
	}
	return table
}
