// Package server tracks live logged-in sessions in the connection registry.
package server

// UserSession is the login-derived record for one live connection.
type UserSession struct {
	ConnectionID string
	Username     string
	Coords       Coords
}

// presenceRegistry maps connection ids to sessions. It keeps insertion order
// alongside the map so snapshot broadcasts list users in login order.
//
// The registry is owned by the hub's run loop and carries no lock of its
// own; all mutation happens on that single goroutine.
type presenceRegistry struct {
	sessions map[string]UserSession
	order    []string
}

func newPresenceRegistry() *presenceRegistry {
	return &presenceRegistry{
		sessions: make(map[string]UserSession),
	}
}

// Put inserts or overwrites the session for id. A repeated login from the
// same connection is last-write-wins and keeps its original position.
func (p *presenceRegistry) Put(id, username string, coords Coords) {
	if _, ok := p.sessions[id]; !ok {
		p.order = append(p.order, id)
	}
	p.sessions[id] = UserSession{
		ConnectionID: id,
		Username:     username,
		Coords:       coords,
	}
}

// Remove deletes the session for id. Absent ids are a no-op.
func (p *presenceRegistry) Remove(id string) {
	if _, ok := p.sessions[id]; !ok {
		return
	}
	delete(p.sessions, id)
	for i, key := range p.order {
		if key == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Has reports whether a session exists for id.
func (p *presenceRegistry) Has(id string) bool {
	_, ok := p.sessions[id]
	return ok
}

// Len returns the number of live sessions.
func (p *presenceRegistry) Len() int {
	return len(p.sessions)
}

// Snapshot returns the online-users array in registry order. The result is
// freshly allocated; callers may hold it across later mutations.
func (p *presenceRegistry) Snapshot() []OnlineUser {
	users := make([]OnlineUser, 0, len(p.order))
	for _, id := range p.order {
		s := p.sessions[id]
		users = append(users, OnlineUser{
			ConnectionID: s.ConnectionID,
			Username:     s.Username,
			Coords:       s.Coords,
		})
	}
	return users
}
