package room

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrRoomExists       = errors.New("room already exists")
	ErrRoomNotFound     = errors.New("room not found")
)

// LeaveReason explains why a connection left a room
type LeaveReason string

const (
	ReasonLeft         LeaveReason = "left"
	ReasonDisconnected LeaveReason = "disconnected"
	ReasonClosed       LeaveReason = "closed"
)

// Hooks are fired synchronously after membership changes, outside the room lock
type Hooks struct {
	OnAdd    func(conn Connection)
	OnRemove func(conn Connection, reason LeaveReason)
}

// Room is a bounded group of connections sharing one broadcast channel.
// A capacity of 0 means unbounded.
type Room struct {
	id     string
	hooks  Hooks
	logger logrus.FieldLogger

	mu       sync.RWMutex
	capacity int
	members  map[string]Connection
	order    []string
}

func NewRoom(id string, capacity int, hooks Hooks, logger logrus.FieldLogger) *Room {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Room{
		id:       id,
		capacity: capacity,
		hooks:    hooks,
		logger:   logger.WithField("room", id),
		members:  make(map[string]Connection),
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) Capacity() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capacity
}

// SetCapacity resizes the room. Existing members are never evicted.
func (r *Room) SetCapacity(capacity int) {
	r.mu.Lock()
	r.capacity = capacity
	r.mu.Unlock()
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) Has(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[connID]
	return ok
}

// Members returns the connections in join order
func (r *Room) Members() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.members[id])
	}
	return out
}

// CanAdd reports whether Add would accept conn
func (r *Room) CanAdd(conn Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canAddLocked(conn)
}

func (r *Room) canAddLocked(conn Connection) bool {
	if _, ok := r.members[conn.ID()]; ok {
		return false
	}
	return r.capacity <= 0 || len(r.members) < r.capacity
}

// Add inserts conn. It returns false, changing nothing, if the room is full or
// conn is already a member.
func (r *Room) Add(conn Connection) bool {
	r.mu.Lock()
	if !r.canAddLocked(conn) {
		r.mu.Unlock()
		return false
	}
	r.members[conn.ID()] = conn
	r.order = append(r.order, conn.ID())
	r.mu.Unlock()

	conn.Join(r.id)
	if r.hooks.OnAdd != nil {
		r.hooks.OnAdd(conn)
	}
	return true
}

// Remove takes conn out of the room. It returns false if conn was not a member.
func (r *Room) Remove(conn Connection, reason LeaveReason) bool {
	r.mu.Lock()
	if _, ok := r.members[conn.ID()]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.members, conn.ID())
	for i, id := range r.order {
		if id == conn.ID() {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	conn.Leave(r.id)
	if r.hooks.OnRemove != nil {
		r.hooks.OnRemove(conn, reason)
	}
	return true
}

// Broadcast emits to every member except the excluded ids and returns how many
// deliveries succeeded. A failed send is logged and skipped.
func (r *Room) Broadcast(event string, data any, exclude ...string) int {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	delivered := 0
	for _, conn := range r.Members() {
		if skip[conn.ID()] {
			continue
		}
		if err := conn.Emit(event, data); err != nil {
			r.logger.WithFields(logrus.Fields{
				"conn":  conn.ID(),
				"event": event,
			}).WithError(err).Warn("Broadcast send failed")
			continue
		}
		delivered++
	}
	return delivered
}
