package room

import "sync"

// Connection is one participant, backed by a live transport or driven in-process
type Connection interface {
	ID() string
	// Emit delivers an event to this participant only
	Emit(event string, payload any) error
	// On registers a listener for events emitted to this participant
	On(event string, handler func(payload any))
	Join(roomID string)
	Leave(roomID string)
	// RoomID is the room this connection is currently in
	RoomID() string
	IsSynthetic() bool
}

// Base carries the identity, room and listener bookkeeping shared by every
// Connection implementation.
type Base struct {
	id string

	mu       sync.RWMutex
	roomID   string
	handlers map[string][]func(payload any)
}

// AnyEvent registers a listener that receives every emitted event
const AnyEvent = "*"

func NewBase(id string) *Base {
	return &Base{id: id, handlers: make(map[string][]func(payload any))}
}

func (b *Base) ID() string { return b.id }

func (b *Base) On(event string, handler func(payload any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

func (b *Base) Join(roomID string) {
	b.mu.Lock()
	b.roomID = roomID
	b.mu.Unlock()
}

func (b *Base) Leave(roomID string) {
	b.mu.Lock()
	if b.roomID == roomID {
		b.roomID = ""
	}
	b.mu.Unlock()
}

func (b *Base) RoomID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.roomID
}

// Dispatch runs the listeners registered for event. Listeners registered with
// AnyEvent receive an Envelope.
func (b *Base) Dispatch(event string, payload any) {
	b.mu.RLock()
	specific := append([]func(any){}, b.handlers[event]...)
	wildcard := append([]func(any){}, b.handlers[AnyEvent]...)
	b.mu.RUnlock()

	for _, h := range specific {
		h(payload)
	}
	for _, h := range wildcard {
		h(Envelope{Event: event, Data: payload})
	}
}

// Envelope is the wire frame for both directions
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
