package ws

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadyRegistered is returned when a connection is registered twice.
	ErrAlreadyRegistered = errors.New("connection already registered")
	// ErrNotRegistered is returned for membership operations on an unknown connection.
	ErrNotRegistered = errors.New("connection not registered")
	// ErrRoomLimitExceeded is returned by Join when the connection already
	// holds its maximum number of rooms.
	ErrRoomLimitExceeded = errors.New("room limit exceeded")
)

// Registry is the in-memory table of live connections and their room
// memberships. It is the only owner of that state: every handler mutates
// membership through it, never through shared maps.
//
// Rooms are not materialized — a room exists while at least one connection
// has joined it, and operations on empty rooms are no-ops.
type Registry struct {
	mu        sync.RWMutex
	conns     map[*Conn]map[int64]struct{}
	rooms     map[int64]map[*Conn]struct{}
	roomLimit int
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[*Conn]map[int64]struct{}),
		rooms: make(map[int64]map[*Conn]struct{}),
	}
}

// SetRoomLimit caps how many rooms one connection may join; zero means
// unlimited. Set it once at startup, before the registry serves traffic.
func (r *Registry) SetRoomLimit(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomLimit = n
}

// Register starts tracking a connection with an empty room set.
func (r *Registry) Register(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; ok {
		return ErrAlreadyRegistered
	}
	r.conns[c] = make(map[int64]struct{})
	return nil
}

// Join adds the connection to a room. Idempotent: rejoining a held room
// succeeds and never counts against the room limit.
func (r *Registry) Join(c *Conn, roomID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.conns[c]
	if !ok {
		return ErrNotRegistered
	}
	if _, joined := rooms[roomID]; !joined && r.roomLimit > 0 && len(rooms) >= r.roomLimit {
		return ErrRoomLimitExceeded
	}
	rooms[roomID] = struct{}{}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Conn]struct{})
		r.rooms[roomID] = members
	}
	members[c] = struct{}{}
	return nil
}

// Leave removes the connection from a room. Idempotent; leaving a room that
// was never joined is a no-op.
func (r *Registry) Leave(c *Conn, roomID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.conns[c]
	if !ok {
		return ErrNotRegistered
	}
	delete(rooms, roomID)
	r.removeMember(c, roomID)
	return nil
}

// Unregister stops tracking the connection and returns the rooms it was in,
// so the caller can announce its departure to each of them. Unknown
// connections yield an empty slice.
func (r *Registry) Unregister(c *Conn) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.conns[c]
	if !ok {
		return nil
	}
	delete(r.conns, c)

	joined := make([]int64, 0, len(rooms))
	for roomID := range rooms {
		joined = append(joined, roomID)
		r.removeMember(c, roomID)
	}
	return joined
}

// IsMember reports whether the connection has joined the room.
func (r *Registry) IsMember(c *Conn, roomID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms, ok := r.conns[c]
	if !ok {
		return false
	}
	_, joined := rooms[roomID]
	return joined
}

// MembersOf returns a snapshot of the room's members. The slice is owned by
// the caller and stays valid while joins and leaves continue concurrently.
func (r *Registry) MembersOf(roomID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	snapshot := make([]*Conn, 0, len(members))
	for c := range members {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// ConnectionCount returns the number of tracked connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// removeMember drops c from the room index; callers hold the write lock.
func (r *Registry) removeMember(c *Conn, roomID int64) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}
