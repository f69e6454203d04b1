package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/game/service"
	"github.com/wricardo/ratslap/transport/room"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

const maxIDAttempts = 64

// Manager is the session directory: it creates and destroys sessions, binds each
// one to a room on the router, and resolves which session a connection is in.
//
// A session lives exactly as long as its room. When the router deletes a room,
// because its last member left or because Delete was called, the session is
// dropped and the OnClosed callback runs.
type Manager struct {
	router *room.Router
	logger logrus.FieldLogger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*service.Session
	onClosed func(sessionID string)
}

// NewManager creates a session directory on top of router
func NewManager(router *room.Router, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		router:   router,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*service.Session),
	}
	router.OnRoomClosed(m.roomClosed)
	return m
}

// OnClosed sets the callback run after a session has been dropped
func (m *Manager) OnClosed(fn func(sessionID string)) {
	m.mu.Lock()
	m.onClosed = fn
	m.mu.Unlock()
}

// Create creates a session with the given ID, or a fresh 4-character ID when id is empty.
// The game broadcasts every event to the session room.
func (m *Manager) Create(id, configName string, settings engine.GameSettings, hooks service.HooksFunc, opts ...engine.Option) (*service.Session, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == room.LobbyID {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		generated, err := m.generateSessionID()
		if err != nil {
			return nil, err
		}
		id = generated
	} else if _, exists := m.sessions[id]; exists {
		return nil, ErrSessionAlreadyExists
	}

	var rm *room.Room
	notifier := engine.NotifierFunc(func(event string, payload any) {
		if rm != nil {
			rm.Broadcast(event, payload)
		}
	})
	base := []engine.Option{
		engine.WithNotifier(notifier),
		engine.WithLogger(m.logger),
	}
	game, err := engine.NewGame(id, settings, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	var h room.Hooks
	if hooks != nil {
		h = hooks(id)
	}
	rm, err = m.router.CreateRoom(id, settings.MaxPlayers, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	now := m.now()
	sess := &service.Session{
		ID:             id,
		Game:           game,
		Room:           rm,
		ConfigName:     configName,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.sessions[id] = sess

	m.logger.WithFields(logrus.Fields{"session": id, "config": configName}).Info("Session created")
	return sess, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ForConnection returns the session whose room holds the connection
func (m *Manager) ForConnection(connID string) (*service.Session, error) {
	roomID := m.router.RoomOf(connID)
	if roomID == "" || roomID == room.LobbyID {
		return nil, ErrSessionNotFound
	}
	return m.Get(roomID)
}

// List returns all active sessions, oldest first
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		result = append(result, sess)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete closes a session. Members are moved back to the lobby first.
func (m *Manager) Delete(id string) error {
	id = strings.ToLower(id)

	m.mu.RLock()
	_, exists := m.sessions[id]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	if err := m.router.DeleteRoom(id); err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) {
			return fmt.Errorf("failed to close room: %w", err)
		}
		// the room is already gone; drop the session directly
		m.roomClosed(id)
	}
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}
	sess.LastAccessedAt = m.now()
	return nil
}

// Expired returns the IDs of sessions that haven't been accessed in the given duration.
// Closing them is left to the caller so it happens on the caller's serialized path.
func (m *Manager) Expired(maxIdle time.Duration) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().Add(-maxIdle)
	var ids []string
	for id, sess := range m.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// roomClosed runs when the router drops a session room
func (m *Manager) roomClosed(roomID string) {
	m.mu.Lock()
	_, exists := m.sessions[roomID]
	delete(m.sessions, roomID)
	onClosed := m.onClosed
	m.mu.Unlock()
	if !exists {
		return
	}

	m.logger.WithField("session", roomID).Info("Session closed")
	if onClosed != nil {
		onClosed(roomID)
	}
}

// generateSessionID generates a random unused 4-character session ID; m.mu must be held
func (m *Manager) generateSessionID() (string, error) {
	bytes := make([]byte, 2)
	for range maxIDAttempts {
		if _, err := rand.Read(bytes); err != nil {
			return "", fmt.Errorf("failed to generate session ID: %w", err)
		}
		id := hex.EncodeToString(bytes)
		if _, exists := m.sessions[id]; !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no free ID after %d attempts", ErrSessionAlreadyExists, maxIDAttempts)
}
