package room

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// LobbyID names the unbounded room every registered connection starts in
const LobbyID = "lobby"

// Router owns the lobby and every session room, and is the single source of
// truth for where a connection is. A registered connection is always in exactly
// one room.
//
// Router operations are not atomic with respect to each other; callers that
// mutate membership must serialize those calls. Reads are safe at any time.
type Router struct {
	logger logrus.FieldLogger
	lobby  *Room

	mu       sync.RWMutex
	rooms    map[string]*Room
	conns    map[string]Connection
	location map[string]*Room
	onClosed func(roomID string)
}

func NewRouter(logger logrus.FieldLogger) *Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Router{
		logger:   logger,
		lobby:    NewRoom(LobbyID, 0, Hooks{}, logger),
		rooms:    make(map[string]*Room),
		conns:    make(map[string]Connection),
		location: make(map[string]*Room),
	}
}

// OnRoomClosed sets the callback run after a session room is deleted
func (r *Router) OnRoomClosed(fn func(roomID string)) {
	r.mu.Lock()
	r.onClosed = fn
	r.mu.Unlock()
}

func (r *Router) Lobby() *Room { return r.lobby }

// Register places a new connection in the lobby
func (r *Router) Register(conn Connection) {
	r.mu.Lock()
	if _, ok := r.conns[conn.ID()]; ok {
		r.mu.Unlock()
		return
	}
	r.conns[conn.ID()] = conn
	r.location[conn.ID()] = r.lobby
	r.mu.Unlock()

	r.lobby.Add(conn)
	r.logger.WithField("conn", conn.ID()).Debug("Connection registered")
}

// Unregister removes a connection from wherever it is
func (r *Router) Unregister(conn Connection) {
	r.mu.Lock()
	current, ok := r.location[conn.ID()]
	delete(r.conns, conn.ID())
	delete(r.location, conn.ID())
	r.mu.Unlock()
	if !ok {
		return
	}

	current.Remove(conn, ReasonDisconnected)
	r.closeIfEmpty(current)
	r.logger.WithField("conn", conn.ID()).Debug("Connection unregistered")
}

// Connection looks up a registered connection
func (r *Router) Connection(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Count returns the number of registered connections
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CreateRoom adds an empty session room
func (r *Router) CreateRoom(id string, capacity int, hooks Hooks) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; ok || id == LobbyID {
		return nil, ErrRoomExists
	}
	room := NewRoom(id, capacity, hooks, r.logger)
	r.rooms[id] = room
	return room, nil
}

// Room looks up a session room
func (r *Router) Room(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// RoomOf returns the id of the room conn is in, or "" if unregistered
func (r *Router) RoomOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if room, ok := r.location[connID]; ok {
		return room.ID()
	}
	return ""
}

// MoveToRoom is the only way a connection changes rooms. It leaves the prior
// room first and returns false if the target rejects it, in which case the
// connection ends up in the lobby.
func (r *Router) MoveToRoom(conn Connection, roomID string) bool {
	r.mu.RLock()
	target := r.lobby
	if roomID != LobbyID {
		target = r.rooms[roomID]
	}
	prior, registered := r.location[conn.ID()]
	r.mu.RUnlock()

	if !registered || target == nil {
		return false
	}
	if prior == target {
		return true
	}
	if !target.CanAdd(conn) {
		return false
	}

	prior.Remove(conn, ReasonLeft)
	ok := target.Add(conn)
	dest := target
	if !ok {
		dest = r.lobby
		r.lobby.Add(conn)
	}

	r.mu.Lock()
	if _, still := r.conns[conn.ID()]; still {
		r.location[conn.ID()] = dest
	}
	r.mu.Unlock()

	r.closeIfEmpty(prior)
	return ok
}

// DeleteRoom moves every member back to the lobby and drops the room
func (r *Router) DeleteRoom(id string) error {
	r.mu.Lock()
	room, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	delete(r.rooms, id)
	onClosed := r.onClosed
	r.mu.Unlock()

	for _, conn := range room.Members() {
		room.Remove(conn, ReasonClosed)
		r.mu.Lock()
		_, registered := r.conns[conn.ID()]
		if registered {
			r.location[conn.ID()] = r.lobby
		}
		r.mu.Unlock()
		if registered {
			r.lobby.Add(conn)
		}
	}

	r.logger.WithField("room", id).Info("Room closed")
	if onClosed != nil {
		onClosed(id)
	}
	return nil
}

func (r *Router) closeIfEmpty(room *Room) {
	if room == r.lobby || room.Len() > 0 {
		return
	}
	r.mu.RLock()
	current, ok := r.rooms[room.ID()]
	r.mu.RUnlock()
	if !ok || current != room {
		return
	}
	_ = r.DeleteRoom(room.ID())
}
